package rss

import (
	"iter"
	"slices"

	"github.com/bryan-buckman/feedbox/internal/model"
)

// Normalize maps a parsed entry onto an unsaved article owned by feed.
func Normalize(feed model.Feed, e Entry) model.Article {
	pub := e.Published
	if pub == "" {
		pub = model.UnknownPublished
	}
	return model.Article{
		ID:          model.UnsetID,
		FeedID:      feed.ID,
		Publisher:   feed.Name,
		Title:       e.Title,
		Description: e.Description,
		Content:     e.Content,
		Link:        e.Link,
		Published:   pub,
		Authors:     e.Authors,
		ImageURL:    e.ImageURL,
		Categories:  slices.Clone(e.Categories),
	}
}

// NormalizeAll drains entries into articles for feed.
func NormalizeAll(feed model.Feed, entries iter.Seq[Entry]) []model.Article {
	var out []model.Article
	for e := range entries {
		out = append(out, Normalize(feed, e))
	}
	return out
}
