package rss

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/feedbox/internal/database"
	"github.com/bryan-buckman/feedbox/internal/model"
	"github.com/bryan-buckman/feedbox/internal/publisher"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []publisher.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev publisher.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.SQLite, filepath.Join(t.TempDir(), "rss.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func addFeed(t *testing.T, db *database.DB, feedURL string) model.Feed {
	t.Helper()

	f := model.Feed{FolderID: model.RootFolderID, Name: feedURL, URL: "https://site.example", FeedURL: feedURL}
	id, err := db.CreateFeed(context.Background(), f)
	require.NoError(t, err)
	f.ID = id
	return f
}

func newTestRefresher(db *database.DB, pub publisher.Publisher) *Refresher {
	return NewRefresher(RefresherConfig{
		Feeds:     db,
		Articles:  db,
		Fetcher:   NewFetcher(FetcherConfig{}),
		Parser:    NewParser(Limits{}),
		Publisher: pub,
		Workers:   4,
	})
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(rssWithLinks("https://a.example/1", "https://a.example/2")))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(rssWithLinks("https://b.example/1", "https://b.example/2")))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/bomb", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(entityBomb))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRefreshAll_IsolatesFailures(t *testing.T) {
	srv := feedServer(t)
	db := newTestDB(t)
	pub := &recordingPublisher{}

	a := addFeed(t, db, srv.URL+"/a")
	broken := addFeed(t, db, srv.URL+"/broken")
	b := addFeed(t, db, srv.URL+"/b")
	bomb := addFeed(t, db, srv.URL+"/bomb")

	results, err := newTestRefresher(db, pub).RefreshAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)

	byID := map[int64]Result{}
	for _, r := range results {
		byID[r.FeedID] = r
	}

	assert.Equal(t, StateDone, byID[a.ID].State)
	assert.Equal(t, 2, byID[a.ID].Inserted)
	assert.Equal(t, StateDone, byID[b.ID].State)
	assert.Equal(t, 2, byID[b.ID].Inserted)

	assert.Equal(t, StateFailed, byID[broken.ID].State)
	assert.Equal(t, StateFetching, byID[broken.ID].FailedAt)
	var fe *FetchError
	require.ErrorAs(t, byID[broken.ID].Err, &fe)
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)

	assert.Equal(t, StateFailed, byID[bomb.ID].State)
	assert.Equal(t, StateParsing, byID[bomb.ID].FailedAt)
	assert.ErrorIs(t, byID[bomb.ID].Err, ErrDTDForbidden)

	stored, err := db.ListArticles(context.Background(), model.ArticleFilter{}, model.ArticleCursor{})
	require.NoError(t, err)
	assert.Len(t, stored, 4)

	require.Len(t, pub.events, 4)
	states := map[string]int{}
	for _, ev := range pub.events {
		states[ev.State]++
		assert.NotEmpty(t, ev.CycleID)
	}
	assert.Equal(t, map[string]int{"DONE": 2, "FAILED": 2}, states)
}

func TestRefreshOne_Idempotent(t *testing.T) {
	srv := feedServer(t)
	db := newTestDB(t)
	feed := addFeed(t, db, srv.URL+"/a")
	r := newTestRefresher(db, nil)

	first, err := r.RefreshOne(context.Background(), feed.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDone, first.State)
	assert.Equal(t, 2, first.Inserted)

	second, err := r.RefreshOne(context.Background(), feed.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDone, second.State)
	assert.Zero(t, second.Inserted)
}

func TestRefreshOne_NotModified(t *testing.T) {
	var full atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-Modified-Since") != "" {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		full.Add(1)
		w.Header().Set("Last-Modified", "Tue, 10 Jun 2003 04:00:00 GMT")
		_, _ = w.Write([]byte(rssWithLinks("https://nm.example/1")))
	}))
	defer srv.Close()

	db := newTestDB(t)
	feed := addFeed(t, db, srv.URL)
	r := newTestRefresher(db, nil)

	_, err := r.RefreshOne(context.Background(), feed.ID)
	require.NoError(t, err)
	res, err := r.RefreshOne(context.Background(), feed.ID)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Zero(t, res.Inserted)
	assert.EqualValues(t, 1, full.Load())
}

func TestRefreshOne_UnknownFeed(t *testing.T) {
	_, err := newTestRefresher(newTestDB(t), nil).RefreshOne(context.Background(), 404)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

type failingWriter struct{}

func (failingWriter) InsertArticles(context.Context, int64, []model.Article) (int, error) {
	return 0, errors.New("disk full")
}

type stubFetcher struct {
	mu        sync.Mutex
	forgotten []string
}

func (s *stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	return []byte(rssWithLinks("https://w.example/1")), nil
}

func (s *stubFetcher) Forget(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forgotten = append(s.forgotten, url)
}

func TestRefreshOne_WriteFailure(t *testing.T) {
	db := newTestDB(t)
	feed := addFeed(t, db, "https://w.example/feed")
	fetcher := &stubFetcher{}

	r := NewRefresher(RefresherConfig{
		Feeds:    db,
		Articles: failingWriter{},
		Fetcher:  fetcher,
	})

	res, err := r.RefreshOne(context.Background(), feed.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StateWriting, res.FailedAt)
	assert.EqualError(t, res.Err, "disk full")
	assert.Equal(t, []string{"https://w.example/feed"}, fetcher.forgotten)
}

func TestRefreshAll_Empty(t *testing.T) {
	results, err := newTestRefresher(newTestDB(t), nil).RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "PENDING", StatePending.String())
	assert.Equal(t, "WRITING", StateWriting.String())
	assert.Equal(t, "State(42)", State(42).String())
}
