package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	fberrs "github.com/bryan-buckman/feedbox/internal/errors"
	"github.com/bryan-buckman/feedbox/internal/feeds"
	"github.com/bryan-buckman/feedbox/internal/model"
	"github.com/bryan-buckman/feedbox/internal/opml"
	"github.com/bryan-buckman/feedbox/internal/rss"
)

// maxOPMLBytes caps an uploaded subscription list.
const maxOPMLBytes = 10 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) error {
	if err := s.db.Ping(r.Context()); err != nil {
		return fberrs.E(http.StatusServiceUnavailable, "database unavailable")
	}
	return writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) error {
	tree, err := s.db.FoldersWithFeeds(r.Context())
	if err != nil {
		return err
	}
	if tree == nil {
		tree = []model.FolderWithFeeds{}
	}
	return writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleListFeeds(w http.ResponseWriter, r *http.Request) error {
	list, err := s.db.Feeds(r.Context())
	if err != nil {
		return err
	}
	if list == nil {
		list = []model.Feed{}
	}
	return writeJSON(w, http.StatusOK, list)
}

type createFeedRequest struct {
	FolderID int64  `json:"folderId"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	FeedURL  string `json:"feedUrl"`
}

func (s *Server) handleCreateFeed(w http.ResponseWriter, r *http.Request) error {
	var req createFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return fberrs.E(http.StatusBadRequest, "invalid request body")
	}
	if req.FeedURL == "" {
		return fberrs.E(http.StatusBadRequest, "feed url is required",
			fberrs.Detail{Field: "feedUrl", Error: "required"})
	}
	if _, err := s.db.FolderByID(r.Context(), req.FolderID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fberrs.E(http.StatusBadRequest, "unknown folder",
				fberrs.Detail{Field: "folderId", Error: "not found"})
		}
		return err
	}

	id, err := s.feeds.Create(r.Context(), model.Feed{
		FolderID: req.FolderID,
		Name:     req.Name,
		URL:      req.URL,
		FeedURL:  req.FeedURL,
	})
	switch {
	case errors.Is(err, model.ErrDuplicate):
		return fberrs.E(http.StatusConflict, "feed already exists")
	case errors.Is(err, feeds.ErrInvalidFeed):
		return fberrs.E(http.StatusBadRequest, err)
	case errors.Is(err, feeds.ErrFeedNotFound):
		return fberrs.E(http.StatusNotFound, "feed could not be fetched")
	case err != nil:
		return err
	}

	// Populate the new feed right away; failures only show up in the result.
	s.forget(strings.TrimSpace(req.FeedURL))
	ctx, cancel := context.WithTimeout(r.Context(), RefreshTimeout)
	defer cancel()
	res, err := s.refresher.RefreshOne(ctx, id)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusCreated, map[string]any{
		"id":       id,
		"state":    res.State.String(),
		"inserted": res.Inserted,
	})
}

type refreshSummary struct {
	Feeds    int `json:"feeds"`
	Failed   int `json:"failed"`
	Inserted int `json:"inserted"`
}

func summarize(results []rss.Result) refreshSummary {
	sum := refreshSummary{Feeds: len(results)}
	for _, r := range results {
		sum.Inserted += r.Inserted
		if r.State == rss.StateFailed {
			sum.Failed++
		}
	}
	return sum
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), RefreshTimeout)
	defer cancel()

	results, err := s.refresher.RefreshAll(ctx)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, summarize(results))
}

func (s *Server) handleRefreshOne(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "feedID")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.Context(), RefreshTimeout)
	defer cancel()

	res, err := s.refresher.RefreshOne(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return fberrs.E(http.StatusNotFound, "feed not found")
	}
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, summarize([]rss.Result{res}))
}

func (s *Server) handleDeleteFeed(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "feedID")
	if err != nil {
		return err
	}

	f, err := s.db.FeedByID(r.Context(), id)
	if errors.Is(err, model.ErrNotFound) {
		return fberrs.E(http.StatusNotFound, "feed not found")
	}
	if err != nil {
		return err
	}

	err = s.db.DeleteFeed(r.Context(), id)
	if errors.Is(err, model.ErrNotFound) {
		return fberrs.E(http.StatusNotFound, "feed not found")
	}
	if err != nil {
		return err
	}
	s.forget(f.FeedURL)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()

	var filter model.ArticleFilter
	var details []fberrs.Detail
	parse := func(key string) *int64 {
		raw := q.Get(key)
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			details = append(details, fberrs.Detail{Field: key, Error: "must be an integer"})
			return nil
		}
		return &v
	}
	filter.FeedID = parse("feed")
	filter.FolderID = parse("folder")

	var cursor model.ArticleCursor
	if lastID := parse("lastId"); lastID != nil {
		cursor.LastID = *lastID
		cursor.LastPublished = q.Get("lastPublished")
		if cursor.LastPublished == "" {
			details = append(details, fberrs.Detail{Field: "lastPublished", Error: "required with lastId"})
		}
	}
	if len(details) > 0 {
		return fberrs.E(http.StatusBadRequest, "invalid query", details)
	}

	list, err := s.db.ListArticles(r.Context(), filter, cursor)
	if err != nil {
		return err
	}
	if list == nil {
		list = []model.Article{}
	}
	return writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleImportOPML(w http.ResponseWriter, r *http.Request) error {
	body, err := opmlBody(w, r)
	if err != nil {
		return err
	}
	defer body.Close()

	rep, err := s.importer.Import(r.Context(), body)
	if errors.Is(err, opml.ErrMalformedDocument) {
		return fberrs.E(http.StatusBadRequest, err)
	}
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rep)
}

// opmlBody accepts either a multipart upload in the "opml" field or a raw XML body.
func opmlBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxOPMLBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}

	file, _, err := r.FormFile("opml")
	if err != nil {
		return nil, fberrs.E(http.StatusBadRequest, "no file provided",
			fberrs.Detail{Field: "opml", Error: "required"})
	}
	return file, nil
}

func (s *Server) handleExportOPML(w http.ResponseWriter, r *http.Request) error {
	tree, err := s.db.FoldersWithFeeds(r.Context())
	if err != nil {
		return err
	}
	data, err := opml.Export(tree)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", "attachment; filename=feedbox.opml")
	_, err = w.Write(data)
	return err
}

func pathID(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil {
		return 0, fberrs.E(http.StatusBadRequest, "invalid id",
			fberrs.Detail{Field: key, Error: "must be an integer"})
	}
	return id, nil
}
