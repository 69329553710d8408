package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/bryan-buckman/feedbox/internal/model"
)

const (
	// ArticleBatchSize caps the rows sent in one insert statement.
	ArticleBatchSize = 500
	// ArticlePageSize is the number of articles returned per listing page.
	ArticlePageSize = 25
)

var articleInsertColumns = []string{
	"feed_id", "title", "description", "content", "link",
	"published", "authors", "image_url", "categories",
}

// InsertArticles writes articles for one feed in a single transaction,
// in chunks of ArticleBatchSize. Articles whose link is already stored are
// skipped. It returns the number of rows actually inserted.
func (db *DB) InsertArticles(ctx context.Context, feedID int64, articles []model.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	inserted := 0
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		for start := 0; start < len(articles); start += ArticleBatchSize {
			end := min(start+ArticleBatchSize, len(articles))

			n, err := db.insertChunk(ctx, tx, feedID, articles[start:end])
			if err != nil {
				return err
			}
			inserted += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("insert articles for feed %d: %w", feedID, err)
	}
	return inserted, nil
}

func (db *DB) insertChunk(ctx context.Context, tx *sqlx.Tx, feedID int64, chunk []model.Article) (int, error) {
	b := db.sb.Insert("article").Columns(articleInsertColumns...)
	for _, a := range chunk {
		cats, err := encodeCategories(a.Categories)
		if err != nil {
			return 0, err
		}
		b = b.Values(
			feedID,
			a.Title,
			a.Description,
			a.Content,
			nullable(a.Link),
			a.Published,
			a.Authors,
			nullable(a.ImageURL),
			cats,
		)
	}

	query, args, err := b.Suffix("ON CONFLICT (link) DO NOTHING").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build article insert: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec article insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

type articleRow struct {
	ID          int64          `db:"id"`
	FeedID      int64          `db:"feed_id"`
	Publisher   string         `db:"publisher"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Content     string         `db:"content"`
	Link        sql.NullString `db:"link"`
	Published   string         `db:"published"`
	Authors     string         `db:"authors"`
	ImageURL    sql.NullString `db:"image_url"`
	Categories  sql.NullString `db:"categories"`
}

// ListArticles returns up to ArticlePageSize articles ordered newest first,
// strictly after the cursor in (published, id) order.
func (db *DB) ListArticles(ctx context.Context, filter model.ArticleFilter, cursor model.ArticleCursor) ([]model.Article, error) {
	q := db.sb.Select(
		"a.id", "a.feed_id", "fe.name AS publisher", "a.title", "a.description",
		"a.content", "a.link", "a.published", "a.authors", "a.image_url", "a.categories",
	).
		From("article a").
		Join("feed fe ON fe.id = a.feed_id")

	if filter.FeedID != nil {
		q = q.Where(sq.Eq{"a.feed_id": *filter.FeedID})
	}
	if filter.FolderID != nil {
		q = q.Where(sq.Eq{"fe.folder_id": *filter.FolderID})
	}
	if !cursor.IsZero() {
		q = q.Where(sq.Or{
			sq.Lt{"a.published": cursor.LastPublished},
			sq.And{
				sq.Eq{"a.published": cursor.LastPublished},
				sq.Lt{"a.id": cursor.LastID},
			},
		})
	}

	query, args, err := q.OrderBy("a.published DESC", "a.id DESC").
		Limit(ArticlePageSize).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build article select: %w", err)
	}

	var rows []articleRow
	if err := db.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select articles: %w", err)
	}

	out := make([]model.Article, 0, len(rows))
	for _, r := range rows {
		cats, err := decodeCategories(r.Categories)
		if err != nil {
			return nil, fmt.Errorf("article %d: %w", r.ID, err)
		}
		out = append(out, model.Article{
			ID:          r.ID,
			FeedID:      r.FeedID,
			Publisher:   r.Publisher,
			Title:       r.Title,
			Description: r.Description,
			Content:     r.Content,
			Link:        r.Link.String,
			Published:   r.Published,
			Authors:     r.Authors,
			ImageURL:    r.ImageURL.String,
			Categories:  cats,
		})
	}
	return out, nil
}

// nullable stores empty strings as NULL so the link uniqueness
// constraint does not collapse link-less articles.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func encodeCategories(cats []string) (sql.NullString, error) {
	if len(cats) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(cats)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode categories: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeCategories(s sql.NullString) ([]string, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var cats []string
	if err := json.Unmarshal([]byte(s.String), &cats); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return cats, nil
}
