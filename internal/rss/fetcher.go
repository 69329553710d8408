// Package rss fetches, parses and stores syndication feeds.
package rss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Fetch defaults.
const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxRedirects = 10
	DefaultPerHostLimit = 2
	DefaultUserAgent    = "feedbox/1.0"
	DefaultMaxFeedBytes = 10 << 20

	validatorCacheSize = 4096
)

// ErrNotModified reports a 304 answer to a conditional request.
var ErrNotModified = errors.New("feed not modified")

// FetchError describes a failed document retrieval.
type FetchError struct {
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetcherConfig tunes a Fetcher. Zero fields take the defaults.
type FetcherConfig struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBytes     int64
	MaxRedirects int
	PerHostLimit int
	HostDelay    time.Duration
	// Client overrides the HTTP client; its Timeout and CheckRedirect are replaced.
	Client *http.Client
}

// validators are the cache headers remembered for conditional requests.
type validators struct {
	etag         string
	lastModified string
}

// Fetcher retrieves feed documents over HTTP(S).
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	limiter   *hostLimiter
	cache     *lru.Cache[string, validators]
}

// NewFetcher creates a fetcher that follows redirects and sends a fixed User-Agent.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxFeedBytes
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}

	client := &http.Client{}
	if cfg.Client != nil {
		c := *cfg.Client
		client = &c
	}
	client.Timeout = cfg.Timeout
	maxRedirects := cfg.MaxRedirects
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}

	// Size is a positive constant so New cannot fail.
	cache, _ := lru.New[string, validators](validatorCacheSize)

	return &Fetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
		limiter:   newHostLimiter(cfg.PerHostLimit, cfg.HostDelay),
		cache:     cache,
	}
}

// Fetch retrieves the document at url. When the server confirms a prior
// ETag or Last-Modified, it returns ErrNotModified.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.get(ctx, url, true)
}

// FetchFresh retrieves the document without conditional headers and leaves
// the cached validators untouched.
func (f *Fetcher) FetchFresh(ctx context.Context, url string) ([]byte, error) {
	return f.get(ctx, url, false)
}

func (f *Fetcher) get(ctx context.Context, url string, conditional bool) ([]byte, error) {
	host := hostOf(url)
	if err := f.limiter.acquire(ctx, host); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer f.limiter.release(host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.1")
	if conditional {
		if v, ok := f.cache.Get(url); ok {
			if v.etag != "" {
				req.Header.Set("If-None-Match", v.etag)
			}
			if v.lastModified != "" {
				req.Header.Set("If-Modified-Since", v.lastModified)
			}
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && conditional {
		return nil, ErrNotModified
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	// One byte past the limit tells an oversize body from an exact fit.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrDocumentTooLarge, url, f.maxBytes)
	}

	// Only conditional fetches own the validators. A fresh fetch must not
	// arm a 304 for a refresh that has never stored the document.
	if !conditional {
		return data, nil
	}
	etag, lastMod := resp.Header.Get("ETag"), resp.Header.Get("Last-Modified")
	if etag != "" || lastMod != "" {
		f.cache.Add(url, validators{etag: etag, lastModified: lastMod})
	} else {
		f.cache.Remove(url)
	}

	return data, nil
}

// Forget drops the cached validators for url so the next Fetch is unconditional.
func (f *Fetcher) Forget(url string) {
	f.cache.Remove(url)
}
