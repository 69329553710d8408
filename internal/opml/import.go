package opml

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"

	"github.com/bryan-buckman/feedbox/internal/logger"
	"github.com/bryan-buckman/feedbox/internal/model"
)

// DefaultImportTimeout bounds the wait for outstanding feed creations.
const DefaultImportTimeout = 60 * time.Second

// ErrMalformedDocument reports a document that is not well-formed XML.
var ErrMalformedDocument = errors.New("malformed opml document")

//go:generate mockgen -source=import.go -destination=mocks/mocks.go -package=mocks

// FolderStore creates and looks up folders.
type FolderStore interface {
	CreateFolder(ctx context.Context, name string) (int64, error)
	FolderByName(ctx context.Context, name string) (model.Folder, error)
}

// FeedCreator creates a feed, returning model.ErrDuplicate for a known feed URL.
type FeedCreator interface {
	Create(ctx context.Context, f model.Feed) (int64, error)
}

// Report summarizes one import.
type Report struct {
	ImportID       string `json:"importId"`
	FoldersCreated int    `json:"foldersCreated"`
	FoldersReused  int    `json:"foldersReused"`
	FeedsSubmitted int    `json:"feedsSubmitted"`
	FeedsCreated   int    `json:"feedsCreated"`
	FeedsDuplicate int    `json:"feedsDuplicate"`
	FeedsFailed    int    `json:"feedsFailed"`
	// FeedsCancelled counts creations that never started before the timeout.
	FeedsCancelled int    `json:"feedsCancelled"`
	Skipped        int    `json:"skipped"`
	Anomalies      int    `json:"anomalies"`
	TimedOut       bool   `json:"timedOut"`
	// OpenFrames is the context depth left at end of document; a balanced
	// document leaves only the root frame.
	OpenFrames int `json:"openFrames"`
}

type frameKind int

const (
	frameRoot frameKind = iota
	frameFolder
	frameInert
)

// frame is one level of outline nesting. folderID is the folder that
// outlines nested beneath this frame belong to.
type frame struct {
	kind     frameKind
	folderID int64
}

type frameStack []frame

func (s *frameStack) push(f frame) { *s = append(*s, f) }

func (s frameStack) top() frame { return s[len(s)-1] }

// pop removes the top frame. The root frame is never removed.
func (s *frameStack) pop() bool {
	if len(*s) <= 1 {
		return false
	}
	*s = (*s)[:len(*s)-1]
	return true
}

// Importer turns an OPML document into folder and feed rows.
type Importer struct {
	folders FolderStore
	feeds   FeedCreator
	workers int
	timeout time.Duration
	log     *slog.Logger
}

// ImporterConfig configures an Importer.
type ImporterConfig struct {
	Folders FolderStore
	Feeds   FeedCreator
	Workers int           // zero means twice the CPU count
	Timeout time.Duration // zero means DefaultImportTimeout
	Logger  *slog.Logger
}

// NewImporter creates an importer, applying defaults for zero fields.
func NewImporter(cfg ImporterConfig) *Importer {
	if cfg.Workers <= 0 {
		cfg.Workers = 2 * runtime.NumCPU()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultImportTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Importer{
		folders: cfg.Folders,
		feeds:   cfg.Feeds,
		workers: cfg.Workers,
		timeout: cfg.Timeout,
		log:     cfg.Logger,
	}
}

// Import reads r in a single pass. Folders are created as they are met.
// Feeds are queued without stalling the parse, created at most workers at
// a time, and awaited up to the import timeout counted from the end of the
// document, after which the stragglers are cancelled. Nothing already
// created is rolled back. Only a document that is not well-formed, or a
// cancelled ctx, returns an error.
func (im *Importer) Import(ctx context.Context, r io.Reader) (Report, error) {
	rep := Report{ImportID: uuid.NewString()}
	ctx = logger.Ctx(ctx, slog.String("import_id", rep.ImportID))

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Submission never blocks the parse; each task waits for a worker slot.
	var g errgroup.Group
	slots := make(chan struct{}, im.workers)
	var created, duplicate, failed, cancelled atomic.Int32

	submit := func(f model.Feed) {
		rep.FeedsSubmitted++
		g.Go(func() error {
			select {
			case slots <- struct{}{}:
			case <-taskCtx.Done():
				cancelled.Add(1)
				return nil
			}
			defer func() { <-slots }()
			if taskCtx.Err() != nil {
				cancelled.Add(1)
				return nil
			}

			switch _, err := im.feeds.Create(taskCtx, f); {
			case err == nil:
				created.Add(1)
			case errors.Is(err, model.ErrDuplicate):
				duplicate.Add(1)
				im.log.DebugContext(ctx, "feed already exists", "feed_url", f.FeedURL)
			default:
				failed.Add(1)
				im.log.WarnContext(ctx, "failed to create feed", "feed_url", f.FeedURL, "error", err)
			}
			return nil
		})
	}

	stack, parseErr := im.parse(ctx, r, &rep, submit)

	im.await(ctx, &g, cancel, &rep)
	rep.FeedsCreated = int(created.Load())
	rep.FeedsDuplicate = int(duplicate.Load())
	rep.FeedsFailed = int(failed.Load())
	rep.FeedsCancelled = int(cancelled.Load())
	rep.OpenFrames = len(stack)

	if parseErr != nil {
		im.log.ErrorContext(ctx, "opml import aborted", "error", parseErr)
		return rep, parseErr
	}

	im.log.InfoContext(ctx, "opml imported",
		"folders_created", rep.FoldersCreated,
		"folders_reused", rep.FoldersReused,
		"feeds_submitted", rep.FeedsSubmitted,
		"feeds_created", rep.FeedsCreated,
		"feeds_cancelled", rep.FeedsCancelled,
		"skipped", rep.Skipped,
		"timed_out", rep.TimedOut,
	)
	return rep, nil
}

// await waits for all feed tasks. On timeout it cancels them and still
// waits, so no task outlives Import.
func (im *Importer) await(ctx context.Context, g *errgroup.Group, cancel context.CancelFunc, rep *Report) {
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	timer := time.NewTimer(im.timeout)
	defer timer.Stop()

	select {
	case <-done:
		return
	case <-timer.C:
		im.log.WarnContext(ctx, "opml import timed out, cancelling remaining feeds", "timeout", im.timeout)
	case <-ctx.Done():
		im.log.WarnContext(ctx, "opml import cancelled", "error", ctx.Err())
	}
	rep.TimedOut = true
	cancel()
	<-done
}

func (im *Importer) parse(ctx context.Context, r io.Reader, rep *Report, submit func(model.Feed)) (frameStack, error) {
	stack := frameStack{{kind: frameRoot, folderID: model.RootFolderID}}

	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	sawRoot := false

	for {
		if err := ctx.Err(); err != nil {
			return stack, fmt.Errorf("import interrupted: %w", err)
		}

		// RawToken leaves end-tag matching to the frame stack.
		tok, err := d.RawToken()
		if err == io.EOF {
			if !sawRoot {
				return stack, fmt.Errorf("%w: no root element", ErrMalformedDocument)
			}
			return stack, nil
		}
		if err != nil {
			return stack, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawRoot = true
			if t.Name.Local == "outline" {
				stack.push(im.startOutline(ctx, t, stack.top(), rep, submit))
			}
		case xml.EndElement:
			if t.Name.Local == "outline" && !stack.pop() {
				rep.Anomalies++
				im.log.WarnContext(ctx, "unbalanced outline end tag", "line", lineOf(d))
			}
		}
	}
}

// startOutline handles one opening outline element and returns the frame to push.
func (im *Importer) startOutline(ctx context.Context, el xml.StartElement, parent frame, rep *Report, submit func(model.Feed)) frame {
	inert := frame{kind: frameInert, folderID: parent.folderID}
	typ, hasType := attr(el, "type")

	if !hasType {
		name, ok := attr(el, "text")
		if !ok {
			rep.Skipped++
			im.log.WarnContext(ctx, "skipping folder outline without text")
			return inert
		}
		id, reused, err := im.resolveFolder(ctx, name)
		if err != nil {
			rep.Skipped++
			im.log.WarnContext(ctx, "failed to create folder", "folder", name, "error", err)
			return inert
		}
		if reused {
			rep.FoldersReused++
		} else {
			rep.FoldersCreated++
		}
		return frame{kind: frameFolder, folderID: id}
	}

	if typ != FeedType {
		rep.Skipped++
		im.log.InfoContext(ctx, "skipping unsupported outline type", "type", typ)
		return inert
	}

	text, okText := attr(el, "text")
	xmlURL, okXML := attr(el, "xmlUrl")
	htmlURL, okHTML := attr(el, "htmlUrl")
	if !okText || !okXML || !okHTML {
		rep.Skipped++
		im.log.WarnContext(ctx, "skipping feed outline with missing attributes",
			"text", text, "xml_url", xmlURL, "html_url", htmlURL)
		return inert
	}

	submit(model.Feed{
		FolderID: parent.folderID,
		Name:     text,
		URL:      htmlURL,
		FeedURL:  xmlURL,
	})
	return inert
}

// resolveFolder creates the folder or, when the name is taken, returns the existing id.
func (im *Importer) resolveFolder(ctx context.Context, name string) (id int64, reused bool, err error) {
	id, err = im.folders.CreateFolder(ctx, name)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, model.ErrDuplicate) {
		return 0, false, err
	}

	f, err := im.folders.FolderByName(ctx, name)
	if err != nil {
		return 0, false, fmt.Errorf("look up existing folder: %w", err)
	}
	return f.ID, true, nil
}

func attr(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func lineOf(d *xml.Decoder) int {
	line, _ := d.InputPos()
	return line
}
