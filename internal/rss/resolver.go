package rss

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoMetadata means the document parsed but is not a recognized feed.
var ErrNoMetadata = errors.New("document is not a recognized feed")

// Metadata is the channel-level information used to fill in a new feed.
type Metadata struct {
	Title   string
	SiteURL string
}

// Resolver reads channel metadata from a feed document URL.
type Resolver struct {
	fetcher *Fetcher
	parser  *Parser
}

// NewResolver creates a resolver that fetches unconditionally.
func NewResolver(fetcher *Fetcher, parser *Parser) *Resolver {
	return &Resolver{fetcher: fetcher, parser: parser}
}

// Resolve fetches feedURL and returns its title and site link.
func (r *Resolver) Resolve(ctx context.Context, feedURL string) (Metadata, error) {
	data, err := r.fetcher.FetchFresh(ctx, feedURL)
	if err != nil {
		return Metadata{}, err
	}

	feed, err := r.parser.parseFeed(data)
	if err != nil {
		return Metadata{}, fmt.Errorf("resolve %s: %w", feedURL, err)
	}
	if feed == nil {
		return Metadata{}, fmt.Errorf("resolve %s: %w", feedURL, ErrNoMetadata)
	}

	return Metadata{
		Title:   strings.TrimSpace(feed.Title),
		SiteURL: strings.TrimSpace(feed.Link),
	}, nil
}
