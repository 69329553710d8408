package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/bryan-buckman/feedbox/internal/model"
)

var feedColumns = []string{"id", "folder_id", "name", "url", "feed_url"}

// CreateFeed inserts a feed and returns its id.
// A feed URL that already exists yields model.ErrDuplicate.
func (db *DB) CreateFeed(ctx context.Context, f model.Feed) (int64, error) {
	query, args, err := db.sb.Insert("feed").
		Columns("folder_id", "name", "url", "feed_url").
		Values(f.FolderID, f.Name, f.URL, f.FeedURL).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build feed insert: %w", err)
	}

	var id int64
	if err := db.conn.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert feed %s: %w", f.FeedURL, mapErr(err))
	}
	return id, nil
}

// FeedByID returns one feed or model.ErrNotFound.
func (db *DB) FeedByID(ctx context.Context, id int64) (model.Feed, error) {
	query, args, err := db.sb.Select(feedColumns...).
		From("feed").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Feed{}, fmt.Errorf("build feed select: %w", err)
	}

	var f model.Feed
	if err := db.conn.GetContext(ctx, &f, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Feed{}, model.ErrNotFound
		}
		return model.Feed{}, fmt.Errorf("select feed %d: %w", id, err)
	}
	return f, nil
}

// Feeds returns every feed ordered by id.
func (db *DB) Feeds(ctx context.Context) ([]model.Feed, error) {
	query, args, err := db.sb.Select(feedColumns...).
		From("feed").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build feeds select: %w", err)
	}

	var feeds []model.Feed
	if err := db.conn.SelectContext(ctx, &feeds, query, args...); err != nil {
		return nil, fmt.Errorf("select feeds: %w", err)
	}
	return feeds, nil
}

// DeleteFeed removes a feed and, through the cascade, its articles.
func (db *DB) DeleteFeed(ctx context.Context, id int64) error {
	query, args, err := db.sb.Delete("feed").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build feed delete: %w", err)
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete feed %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete feed %d: %w", id, err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
