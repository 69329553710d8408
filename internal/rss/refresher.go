package rss

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bryan-buckman/feedbox/internal/logger"
	"github.com/bryan-buckman/feedbox/internal/model"
	"github.com/bryan-buckman/feedbox/internal/publisher"
)

// DefaultRefreshWorkers bounds concurrent feed tasks in one cycle.
const DefaultRefreshWorkers = 64

// State is the stage of a single feed task within a refresh cycle.
type State int

const (
	StatePending State = iota
	StateFetching
	StateParsing
	StateWriting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateFetching:
		return "FETCHING"
	case StateParsing:
		return "PARSING"
	case StateWriting:
		return "WRITING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is the terminal outcome of one feed task.
type Result struct {
	FeedID   int64
	FeedURL  string
	State    State // StateDone or StateFailed
	FailedAt State // stage that failed; meaningful only when State is StateFailed
	Inserted int
	Err      error
}

// FeedSource loads the feeds to refresh.
type FeedSource interface {
	Feeds(ctx context.Context) ([]model.Feed, error)
	FeedByID(ctx context.Context, id int64) (model.Feed, error)
}

// ArticleWriter persists one feed's articles atomically.
type ArticleWriter interface {
	InsertArticles(ctx context.Context, feedID int64, articles []model.Article) (int, error)
}

// DocumentFetcher retrieves raw feed documents.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	Forget(url string)
}

// Refresher runs fetch, parse, normalize and write for each feed on a bounded pool.
type Refresher struct {
	feeds     FeedSource
	articles  ArticleWriter
	fetcher   DocumentFetcher
	parser    *Parser
	publisher publisher.Publisher
	workers   int
	log       *slog.Logger
}

// RefresherConfig wires a Refresher. Optional fields take defaults.
type RefresherConfig struct {
	Feeds     FeedSource
	Articles  ArticleWriter
	Fetcher   DocumentFetcher
	Parser    *Parser
	Publisher publisher.Publisher // optional
	Workers   int
	Logger    *slog.Logger // optional
}

// NewRefresher creates a refresher over the given store and fetcher.
func NewRefresher(cfg RefresherConfig) *Refresher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultRefreshWorkers
	}
	if cfg.Publisher == nil {
		cfg.Publisher = publisher.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Parser == nil {
		cfg.Parser = NewParser(Limits{})
	}
	return &Refresher{
		feeds:     cfg.Feeds,
		articles:  cfg.Articles,
		fetcher:   cfg.Fetcher,
		parser:    cfg.Parser,
		publisher: cfg.Publisher,
		workers:   cfg.Workers,
		log:       cfg.Logger,
	}
}

// RefreshAll refreshes every feed. It fails only when the feed set cannot
// be loaded; individual feed failures are reported in the results.
func (r *Refresher) RefreshAll(ctx context.Context) ([]Result, error) {
	feeds, err := r.feeds.Feeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("load feeds: %w", err)
	}
	return r.run(ctx, feeds), nil
}

// RefreshOne refreshes a single feed. A missing feed yields model.ErrNotFound.
func (r *Refresher) RefreshOne(ctx context.Context, feedID int64) (Result, error) {
	feed, err := r.feeds.FeedByID(ctx, feedID)
	if err != nil {
		return Result{}, fmt.Errorf("load feed %d: %w", feedID, err)
	}
	return r.run(ctx, []model.Feed{feed})[0], nil
}

func (r *Refresher) run(ctx context.Context, feeds []model.Feed) []Result {
	cycleID := uuid.NewString()
	ctx = logger.Ctx(ctx, slog.String("cycle_id", cycleID))
	start := time.Now()

	r.log.InfoContext(ctx, "refreshing feeds", "feeds", len(feeds), "workers", r.workers)

	// Each task owns exactly one slot of results.
	results := make([]Result, len(feeds))
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, feed := range feeds {
		g.Go(func() error {
			res := r.refreshFeed(ctx, feed)
			results[i] = res
			r.announce(ctx, cycleID, res)
			return nil
		})
	}
	_ = g.Wait()

	var inserted, failed int
	for _, res := range results {
		inserted += res.Inserted
		if res.State == StateFailed {
			failed++
		}
	}
	r.log.InfoContext(ctx, "feeds refreshed",
		"feeds", len(feeds),
		"failed", failed,
		"inserted", inserted,
		"duration", time.Since(start),
	)
	return results
}

// refreshFeed drives one feed through its states.
func (r *Refresher) refreshFeed(ctx context.Context, feed model.Feed) Result {
	ctx = logger.Ctx(ctx, slog.Int64("feed_id", feed.ID), slog.String("feed_url", feed.FeedURL))
	res := Result{FeedID: feed.ID, FeedURL: feed.FeedURL, State: StatePending}

	fail := func(err error) Result {
		res.FailedAt, res.State, res.Err = res.State, StateFailed, err
		r.log.WarnContext(ctx, "feed refresh failed", "stage", res.FailedAt.String(), "error", err)
		return res
	}

	res.State = StateFetching
	data, err := r.fetcher.Fetch(ctx, feed.FeedURL)
	if errors.Is(err, ErrNotModified) {
		r.log.DebugContext(ctx, "feed not modified")
		res.State = StateDone
		return res
	}
	if err != nil {
		return fail(err)
	}

	res.State = StateParsing
	entries, err := r.parser.Parse(data)
	if err != nil {
		r.fetcher.Forget(feed.FeedURL)
		return fail(err)
	}
	articles := NormalizeAll(feed, entries)

	res.State = StateWriting
	n, err := r.articles.InsertArticles(ctx, feed.ID, articles)
	if err != nil {
		// The batch was rolled back; fetch the full document next cycle.
		r.fetcher.Forget(feed.FeedURL)
		return fail(err)
	}

	res.State, res.Inserted = StateDone, n
	r.log.DebugContext(ctx, "feed refreshed", "entries", len(articles), "inserted", n)
	return res
}

func (r *Refresher) announce(ctx context.Context, cycleID string, res Result) {
	ev := publisher.Event{
		CycleID:   cycleID,
		FeedID:    res.FeedID,
		FeedURL:   res.FeedURL,
		State:     res.State.String(),
		Inserted:  res.Inserted,
		Timestamp: time.Now().UTC(),
	}
	if res.State == StateFailed {
		ev.FailedAt = res.FailedAt.String()
		ev.Error = res.Err.Error()
	}
	if err := r.publisher.Publish(ctx, ev); err != nil {
		r.log.WarnContext(ctx, "failed to publish refresh event", "feed_id", res.FeedID, "error", err)
	}
}
