package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/bryan-buckman/feedbox/internal/model"
)

// CreateFolder inserts a folder and returns its id.
// A name that already exists yields model.ErrDuplicate.
func (db *DB) CreateFolder(ctx context.Context, name string) (int64, error) {
	query, args, err := db.sb.Insert("folder").
		Columns("name").
		Values(name).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build folder insert: %w", err)
	}

	var id int64
	if err := db.conn.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert folder %q: %w", name, mapErr(err))
	}
	return id, nil
}

// FolderByName looks a folder up by its unique name.
func (db *DB) FolderByName(ctx context.Context, name string) (model.Folder, error) {
	return db.getFolder(ctx, sq.Eq{"name": name})
}

// FolderByID looks a folder up by id.
func (db *DB) FolderByID(ctx context.Context, id int64) (model.Folder, error) {
	return db.getFolder(ctx, sq.Eq{"id": id})
}

func (db *DB) getFolder(ctx context.Context, where sq.Eq) (model.Folder, error) {
	query, args, err := db.sb.Select("id", "name", "color").
		From("folder").
		Where(where).
		ToSql()
	if err != nil {
		return model.Folder{}, fmt.Errorf("build folder select: %w", err)
	}

	var f model.Folder
	if err := db.conn.GetContext(ctx, &f, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Folder{}, model.ErrNotFound
		}
		return model.Folder{}, fmt.Errorf("select folder: %w", err)
	}
	return f, nil
}

type folderFeedRow struct {
	FolderID    int64          `db:"folder_id"`
	FolderName  string         `db:"folder_name"`
	FolderColor string         `db:"folder_color"`
	FeedID      sql.NullInt64  `db:"feed_id"`
	FeedName    sql.NullString `db:"feed_name"`
	FeedURL     sql.NullString `db:"feed_url"`
	FeedDocURL  sql.NullString `db:"feed_doc_url"`
}

// FoldersWithFeeds returns every folder with its feeds, folders sorted by
// name and feeds by name within each folder. The root folder is included
// wherever its name sorts.
func (db *DB) FoldersWithFeeds(ctx context.Context) ([]model.FolderWithFeeds, error) {
	query, args, err := db.sb.Select(
		"fo.id AS folder_id",
		"fo.name AS folder_name",
		"fo.color AS folder_color",
		"fe.id AS feed_id",
		"fe.name AS feed_name",
		"fe.url AS feed_url",
		"fe.feed_url AS feed_doc_url",
	).
		From("folder fo").
		LeftJoin("feed fe ON fe.folder_id = fo.id").
		OrderBy("fo.name", "fe.name", "fe.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build folder tree select: %w", err)
	}

	var rows []folderFeedRow
	if err := db.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select folder tree: %w", err)
	}

	var out []model.FolderWithFeeds
	for _, r := range rows {
		if len(out) == 0 || out[len(out)-1].ID != r.FolderID {
			out = append(out, model.FolderWithFeeds{
				Folder: model.Folder{ID: r.FolderID, Name: r.FolderName, Color: r.FolderColor},
			})
		}
		if !r.FeedID.Valid {
			continue
		}
		cur := &out[len(out)-1]
		cur.Feeds = append(cur.Feeds, model.Feed{
			ID:       r.FeedID.Int64,
			FolderID: r.FolderID,
			Name:     r.FeedName.String,
			URL:      r.FeedURL.String,
			FeedURL:  r.FeedDocURL.String,
		})
	}
	return out, nil
}
