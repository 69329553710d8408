package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/bryan-buckman/feedbox/internal/config"
	"github.com/bryan-buckman/feedbox/internal/database"
	"github.com/bryan-buckman/feedbox/internal/feeds"
	"github.com/bryan-buckman/feedbox/internal/logger"
	"github.com/bryan-buckman/feedbox/internal/opml"
	"github.com/bryan-buckman/feedbox/internal/publisher"
	"github.com/bryan-buckman/feedbox/internal/rss"
	"github.com/bryan-buckman/feedbox/internal/server"
)

const (
	shutdownTimeout = 15 * time.Second
	cycleTimeout    = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	pub, err := newPublisher(cfg.RabbitMQ, log)
	if err != nil {
		return err
	}
	defer pub.Close()

	fetcher := rss.NewFetcher(rss.FetcherConfig{
		Timeout:   cfg.Refresh.FetchTimeout,
		UserAgent: cfg.Refresh.UserAgent,
		MaxBytes:  cfg.Refresh.MaxFeedBytes,
	})
	parser := rss.NewParser(rss.Limits{
		MaxBytes:             cfg.Refresh.MaxFeedBytes,
		MaxEntityRefs:        cfg.Refresh.MaxEntityRefs,
		MaxGeneralEntityRefs: cfg.Refresh.MaxGeneralEntityRefs,
	})

	workers := cfg.Refresh.Workers
	if !db.SupportsHighConcurrency() && workers > 4 {
		// A single sqlite writer gains nothing from a wide pool.
		workers = 4
	}
	refresher := rss.NewRefresher(rss.RefresherConfig{
		Feeds:     db,
		Articles:  db,
		Fetcher:   fetcher,
		Parser:    parser,
		Publisher: pub,
		Workers:   workers,
		Logger:    log,
	})
	feedSvc := feeds.NewService(db, rss.NewResolver(fetcher, parser), log)
	importer := opml.NewImporter(opml.ImporterConfig{
		Folders: db,
		Feeds:   feedSvc,
		Workers: cfg.Import.PoolSize(),
		Timeout: cfg.Import.Timeout,
		Logger:  log,
	})

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: server.New(server.Config{
			DB:         db,
			Refresher:  refresher,
			Feeds:      feedSvc,
			Importer:   importer,
			Validators: fetcher,
			Logger:     log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	if interval := cfg.Refresh.Interval(); interval > 0 {
		poller := rss.NewPoller(refresher, interval, cycleTimeout, log)
		g.Go(func() error {
			return poller.Run(ctx)
		})
	} else {
		log.Info("scheduled refresh disabled")
	}
	g.Go(func() error {
		log.Info("server listening", "addr", srv.Addr, "db_driver", db.Dialect())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openDB retries while the database comes up alongside the service.
func openDB(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	var db *database.DB
	b := retry.WithMaxDuration(30*time.Second, retry.NewFibonacci(time.Second))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		db, err = database.Open(ctx, database.Dialect(cfg.Driver), cfg.DSN())
		if err != nil {
			slog.WarnContext(ctx, "database not ready", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func newPublisher(cfg config.RabbitMQConfig, log *slog.Logger) (publisher.Publisher, error) {
	if cfg.URL == "" {
		return publisher.Nop{}, nil
	}
	pub, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.URL,
		Exchange:   cfg.Exchange,
		RoutingKey: cfg.RoutingKey,
		QueueName:  cfg.QueueName,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("create publisher: %w", err)
	}
	return pub, nil
}
