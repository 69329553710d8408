// Package feeds creates feed subscriptions, filling in missing channel metadata.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/bryan-buckman/feedbox/internal/model"
	"github.com/bryan-buckman/feedbox/internal/rss"
)

var (
	// ErrFeedNotFound means the feed URL could not be fetched or is not a feed.
	ErrFeedNotFound = errors.New("feed not found")
	ErrInvalidFeed  = errors.New("invalid feed")
)

// Store persists feeds.
type Store interface {
	CreateFeed(ctx context.Context, f model.Feed) (int64, error)
}

// MetadataResolver looks up a feed's title and site URL.
type MetadataResolver interface {
	Resolve(ctx context.Context, feedURL string) (rss.Metadata, error)
}

// Service creates feeds.
type Service struct {
	store    Store
	resolver MetadataResolver
	log      *slog.Logger
}

// NewService creates a feed service.
func NewService(store Store, resolver MetadataResolver, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, resolver: resolver, log: log}
}

// Create stores f and returns its id. When the name or site URL is blank,
// both are looked up from the feed document first; only blank fields are
// overwritten. A duplicate feed URL yields model.ErrDuplicate.
func (s *Service) Create(ctx context.Context, f model.Feed) (int64, error) {
	f.FeedURL = strings.TrimSpace(f.FeedURL)
	if err := validateURL(f.FeedURL); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFeed, err)
	}

	if f.Name == "" || f.URL == "" {
		md, err := s.resolver.Resolve(ctx, f.FeedURL)
		if err != nil {
			s.log.WarnContext(ctx, "could not resolve feed metadata", "feed_url", f.FeedURL, "error", err)
			return 0, fmt.Errorf("%w: %s: %v", ErrFeedNotFound, f.FeedURL, err)
		}
		if f.Name == "" {
			f.Name = md.Title
		}
		if f.URL == "" {
			f.URL = md.SiteURL
		}
	}
	if f.Name == "" {
		f.Name = f.FeedURL
	}

	id, err := s.store.CreateFeed(ctx, f)
	if err != nil {
		return 0, err
	}
	s.log.DebugContext(ctx, "feed created", "feed_id", id, "feed_url", f.FeedURL, "folder_id", f.FolderID)
	return id, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("feed url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("feed url has no host")
	}
	return nil
}
