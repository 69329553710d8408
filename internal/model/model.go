// Package model defines shared data structures.
package model

import "errors"

// RootFolderID is the id of the seeded folder that holds top-level feeds.
const RootFolderID int64 = 0

// UnsetID marks an entity that has not been persisted yet.
const UnsetID int64 = -1

// Publication timestamps are stored as canonical UTC strings.
const (
	PublishedLayout  = "2006-01-02 15:04:05 UTC"
	UnknownPublished = "unknown pub date"
)

// Storage outcomes that callers are expected to branch on.
var (
	ErrDuplicate = errors.New("duplicate entity")
	ErrNotFound  = errors.New("entity not found")
)

// Folder groups feeds. Folders do not nest in storage.
type Folder struct {
	ID    int64  `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Color string `db:"color" json:"color,omitempty"`
}

// Feed represents an RSS/Atom feed subscription.
type Feed struct {
	ID       int64  `db:"id" json:"id"`
	FolderID int64  `db:"folder_id" json:"folderId"`
	Name     string `db:"name" json:"name"`
	URL      string `db:"url" json:"url"`          // site URL
	FeedURL  string `db:"feed_url" json:"feedUrl"` // document URL, unique
}

// FolderWithFeeds represents a folder containing its feeds for export.
type FolderWithFeeds struct {
	Folder
	Feeds []Feed `json:"feeds"`
}

// Article is a single entry from a feed.
type Article struct {
	ID          int64    `json:"id"`
	FeedID      int64    `json:"feedId"`
	Publisher   string   `json:"publisher"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Link        string   `json:"link"`
	Published   string   `json:"published"`
	Authors     string   `json:"authors"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Categories  []string `json:"categories,omitempty"`
}

// ArticleFilter narrows an article listing to one feed or one folder.
// Both nil lists everything.
type ArticleFilter struct {
	FeedID   *int64
	FolderID *int64
}

// ArticleCursor is the keyset position of the last article a client saw.
// The zero value starts from the newest article.
type ArticleCursor struct {
	LastID        int64
	LastPublished string
}

// IsZero reports whether the cursor points at the first page.
func (c ArticleCursor) IsZero() bool {
	return c.LastID == 0 && c.LastPublished == ""
}
