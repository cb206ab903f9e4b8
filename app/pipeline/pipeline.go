package pipeline

import (
	"context"
	"time"

	"github.com/driftwoodapp/feedd/app/cfg"
	"github.com/driftwoodapp/feedd/app/database"
	"github.com/driftwoodapp/feedd/app/feed"
)

// PipelineInterface is what the API handlers and refresh daemons see.
// Both refresh kinds share the same entry points: feed jobs fetch and
// persist the feed document, meta jobs enrich and persist page metadata.
type PipelineInterface interface {
	Start()
	Stop()
	EnqueueFeedRefresh(feedID, feedURL string, force bool) error
	EnqueueMetaRefresh(feedID string, force bool) error
}

var _ PipelineInterface = (*Pipeline)(nil)

const queueCapacity = 300

type Pipeline struct {
	feedRepo database.FeedRepository
	postRepo database.PostRepository
	fetcher  *feed.Fetcher
	enricher *feed.Enricher

	workerCount int
	metaWindow  time.Duration

	feedStart *Queue
	feedEnd   *Queue
	metaStart *Queue
	metaEnd   *Queue

	ctx    context.Context
	cancel context.CancelFunc
}

func NewPipeline(feedRepo database.FeedRepository, postRepo database.PostRepository,
	fetcher *feed.Fetcher, enricher *feed.Enricher) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Pipeline{
		feedRepo:    feedRepo,
		postRepo:    postRepo,
		fetcher:     fetcher,
		enricher:    enricher,
		workerCount: cfg.WorkerCount,
		metaWindow:  time.Duration(cfg.MetaRefreshInterval) * time.Second,
		feedStart:   NewQueue("feed_start", queueCapacity),
		feedEnd:     NewQueue("feed_end", queueCapacity),
		metaStart:   NewQueue("meta_start", queueCapacity),
		metaEnd:     NewQueue("meta_end", queueCapacity),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (p *Pipeline) Start() {
	p.feedStart.Process(p.ctx, p.workerCount, p.handleFeedStart)
	p.feedEnd.Process(p.ctx, p.workerCount, p.handleFeedEnd)
	p.metaStart.Process(p.ctx, p.workerCount, p.handleMetaStart)
	p.metaEnd.Process(p.ctx, p.workerCount, p.handleMetaEnd)
}

// Stop drains the start queues before the end queues so results already
// fetched still get persisted.
func (p *Pipeline) Stop() {
	p.feedStart.Close()
	p.metaStart.Close()
	p.feedEnd.Close()
	p.metaEnd.Close()
	p.cancel()
}

func (p *Pipeline) EnqueueFeedRefresh(feedID, feedURL string, force bool) error {
	return p.feedStart.Enqueue(NewJob(KindFeed, feedID, feedURL, force))
}

func (p *Pipeline) EnqueueMetaRefresh(feedID string, force bool) error {
	return p.metaStart.Enqueue(NewJob(KindMeta, feedID, "", force))
}
