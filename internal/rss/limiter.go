package rss

import (
	"context"
	"net/url"
	"sync"
	"time"
)

// hostLimiter caps in-flight requests per host and spaces consecutive
// requests to the same host.
type hostLimiter struct {
	perHost int
	delay   time.Duration

	mu          sync.Mutex
	semaphores  map[string]chan struct{}
	lastRequest map[string]time.Time
}

func newHostLimiter(perHost int, delay time.Duration) *hostLimiter {
	if perHost <= 0 {
		perHost = DefaultPerHostLimit
	}
	return &hostLimiter{
		perHost:     perHost,
		delay:       delay,
		semaphores:  make(map[string]chan struct{}),
		lastRequest: make(map[string]time.Time),
	}
}

// acquire gets a slot for the host, blocking if necessary.
func (hl *hostLimiter) acquire(ctx context.Context, host string) error {
	hl.mu.Lock()
	sem, ok := hl.semaphores[host]
	if !ok {
		sem = make(chan struct{}, hl.perHost)
		hl.semaphores[host] = sem
	}
	lastReq := hl.lastRequest[host]
	hl.mu.Unlock()

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if hl.delay <= 0 || lastReq.IsZero() {
		return nil
	}
	if wait := hl.delay - time.Since(lastReq); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			<-sem
			return ctx.Err()
		}
	}
	return nil
}

// release returns a slot for the host and records the request time.
func (hl *hostLimiter) release(host string) {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	hl.lastRequest[host] = time.Now()
	if sem, ok := hl.semaphores[host]; ok {
		<-sem
	}
}

// hostOf gets the host from a URL.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
