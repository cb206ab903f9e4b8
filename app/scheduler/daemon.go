package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/driftwoodapp/feedd/app/cfg"
	"github.com/driftwoodapp/feedd/app/database"
	"github.com/driftwoodapp/feedd/app/feed"
	"github.com/driftwoodapp/feedd/app/pipeline"
)

type DaemonInterface interface {
	Start()
	Stop()
	Pause()
	Resume()
}

var _ DaemonInterface = (*Daemon)(nil)

// Daemon periodically sweeps the feed table and enqueues refresh jobs
// of one kind. Two daemons run side by side: one for feed documents,
// one for page metadata, each on its own interval.
type Daemon struct {
	kind     pipeline.Kind
	feedRepo database.FeedRepository
	client   *feed.Client
	jobs     pipeline.PipelineInterface

	interval         time.Duration
	grace            time.Duration
	failureThreshold int
	force            bool

	mu           sync.Mutex
	isPaused     bool
	isProcessing bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDaemon(kind pipeline.Kind, feedRepo database.FeedRepository, client *feed.Client,
	jobs pipeline.PipelineInterface) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	interval := time.Duration(cfg.FeedRefreshInterval) * time.Second
	if kind == pipeline.KindMeta {
		interval = time.Duration(cfg.MetaRefreshInterval) * time.Second
	}

	return &Daemon{
		kind:             kind,
		feedRepo:         feedRepo,
		client:           client,
		jobs:             jobs,
		interval:         interval,
		grace:            time.Duration(cfg.GraceWindow) * time.Second,
		failureThreshold: cfg.FailureThreshold,
		force:            cfg.Force,
		ctx:              ctx,
		cancel:           cancel,
	}
}

func (d *Daemon) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		d.runPass()

		for {
			select {
			case <-d.ctx.Done():
				return
			case <-ticker.C:
				d.runPass()
			}
		}
	}()
}

func (d *Daemon) Stop() {
	d.cancel()
	d.wg.Wait()
}

// Pause stops new sweeps from starting. A sweep already in progress
// runs to completion.
func (d *Daemon) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.isPaused = true
}

func (d *Daemon) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.isPaused = false
}

func (d *Daemon) runPass() {
	d.mu.Lock()
	if d.isPaused || d.isProcessing {
		d.mu.Unlock()
		return
	}
	d.isProcessing = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.isProcessing = false
		d.mu.Unlock()
	}()

	feeds, err := d.feedRepo.FindEligibleFeeds(d.failureThreshold)
	if err != nil {
		slog.Error("Failed to load eligible feeds", "kind", string(d.kind), "error", err)
		return
	}

	enqueued := 0
	for _, f := range feeds {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		if !d.isDue(f) {
			continue
		}

		if err := d.enqueue(f); err != nil {
			slog.Warn("Failed to enqueue refresh job", "kind", string(d.kind), "feed_id", f.ID, "error", err)
			continue
		}
		enqueued++
	}

	slog.Debug("Refresh sweep completed", "kind", string(d.kind), "eligible", len(feeds), "enqueued", enqueued)
}

func (d *Daemon) isDue(f database.Feed) bool {
	if d.force {
		return true
	}

	// A conditional probe lets the remote Last-Modified header extend the
	// local staleness date for feeds that rarely change.
	headers, err := d.client.Probe(d.ctx, f.FeedURL)
	if err != nil {
		d.recordProbeFailure(f, err)
		return false
	}
	remote := feed.LastModified(headers)

	if d.kind == pipeline.KindMeta {
		return feed.IsDue(f.MetaStaleAt, d.grace, remote)
	}
	return feed.IsDue(f.FeedStaleAt, d.grace, remote)
}

func (d *Daemon) enqueue(f database.Feed) error {
	if d.kind == pipeline.KindMeta {
		return d.jobs.EnqueueMetaRefresh(f.ID, d.force)
	}
	return d.jobs.EnqueueFeedRefresh(f.ID, f.FeedURL, d.force)
}

func (d *Daemon) recordProbeFailure(f database.Feed, err error) {
	slog.Warn("Feed probe failed", "feed_id", f.ID, "url", f.FeedURL, "error", err)

	if ferr := d.feedRepo.IncrementScrapeFailure(f.ID); ferr != nil {
		slog.Error("Failed to record scrape failure", "feed_id", f.ID, "error", ferr)
	}

	var fetchErr *feed.FetchError
	if errors.As(err, &fetchErr) && fetchErr.NotFound() {
		if perr := d.feedRepo.SetPublic(f.ID, false); perr != nil {
			slog.Error("Failed to unpublish missing feed", "feed_id", f.ID, "error", perr)
		}
	}
}
