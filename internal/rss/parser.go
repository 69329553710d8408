package rss

import (
	"bytes"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/bryan-buckman/feedbox/internal/model"
)

// Entry is one parsed item, with its timestamp already in canonical form.
type Entry struct {
	Title       string
	Description string
	Content     string
	Link        string
	Published   string
	Authors     string
	ImageURL    string
	Categories  []string
}

// Parser turns feed documents into entries.
type Parser struct {
	limits Limits
}

// NewParser creates a parser enforcing the given limits.
func NewParser(limits Limits) *Parser {
	return &Parser{limits: limits.withDefaults()}
}

// Parse checks the document against the parser's limits and returns its
// entries in document order. Documents that are neither RSS nor Atom yield
// an empty sequence and no error.
func (p *Parser) Parse(data []byte) (iter.Seq[Entry], error) {
	feed, err := p.parseFeed(data)
	if err != nil {
		return nil, err
	}
	if feed == nil {
		return func(func(Entry) bool) {}, nil
	}

	items := feed.Items
	return func(yield func(Entry) bool) {
		for _, it := range items {
			if it == nil {
				continue
			}
			if !yield(toEntry(it)) {
				return
			}
		}
	}, nil
}

// parseFeed returns nil without error for unrecognized document families.
func (p *Parser) parseFeed(data []byte) (*gofeed.Feed, error) {
	if err := checkDocument(data, p.limits); err != nil {
		return nil, err
	}

	switch gofeed.DetectFeedType(bytes.NewReader(data)) {
	case gofeed.FeedTypeRSS, gofeed.FeedTypeAtom:
	default:
		return nil, nil
	}

	// gofeed parsers keep per-document state, so each call gets its own.
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func toEntry(it *gofeed.Item) Entry {
	return Entry{
		Title:       strings.TrimSpace(it.Title),
		Description: it.Description,
		Content:     it.Content,
		Link:        strings.TrimSpace(it.Link),
		Published:   published(it),
		Authors:     authors(it),
		ImageURL:    imageURL(it),
		Categories:  it.Categories,
	}
}

// published prefers the publication date, then the update date, then a
// lenient parse of the raw strings.
func published(it *gofeed.Item) string {
	switch {
	case it.PublishedParsed != nil:
		return FormatPublished(*it.PublishedParsed)
	case it.UpdatedParsed != nil:
		return FormatPublished(*it.UpdatedParsed)
	}

	for _, raw := range []string{it.Published, it.Updated} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseAny(raw); err == nil {
			return FormatPublished(t)
		}
	}
	return model.UnknownPublished
}

// FormatPublished renders t in the canonical UTC layout.
func FormatPublished(t time.Time) string {
	return t.UTC().Format(model.PublishedLayout)
}

func authors(it *gofeed.Item) string {
	var names []string
	for _, a := range it.Authors {
		if a == nil {
			continue
		}
		switch {
		case strings.TrimSpace(a.Name) != "":
			names = append(names, strings.TrimSpace(a.Name))
		case strings.TrimSpace(a.Email) != "":
			names = append(names, strings.TrimSpace(a.Email))
		}
	}
	return strings.Join(names, ", ")
}

func imageURL(it *gofeed.Item) string {
	if it.Image != nil && it.Image.URL != "" {
		return it.Image.URL
	}
	for _, enc := range it.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}
