package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/driftwoodapp/feedd/app/database"
	"github.com/driftwoodapp/feedd/app/feed"
)

func (p *Pipeline) handleFeedStart(ctx context.Context, job Job) {
	if !job.Force && !p.stillStale(job.FeedID) {
		slog.Debug("Feed refresh skipped, no longer stale", "feed_id", job.FeedID)
		return
	}

	result, err := p.fetcher.Run(ctx, job.URL)
	if err != nil {
		p.recordFetchFailure(job, err)
		return
	}

	job.Result = result
	if err := p.feedEnd.Enqueue(job); err != nil {
		slog.Warn("Failed to hand off feed result", "feed_id", job.FeedID, "error", err)
	}
}

func (p *Pipeline) handleFeedEnd(ctx context.Context, job Job) {
	if job.Result == nil {
		slog.Error("Feed job reached end phase without a result", "feed_id", job.FeedID)
		return
	}

	// The upsert may resolve to a different row when the identifier
	// matches a feed already known under another URL.
	canonicalID, err := p.feedRepo.UpsertFeedMeta(job.FeedID, job.Result.Meta)
	if err != nil {
		slog.Error("Failed to persist feed meta", "feed_id", job.FeedID, "error", err)
		return
	}

	saved := 0
	for _, post := range job.Result.Posts {
		if err := p.postRepo.UpsertPost(canonicalID, post); err != nil {
			slog.Error("Failed to persist post", "feed_id", canonicalID, "post", post.Identifier, "error", err)
			continue
		}
		saved++
	}

	if err := p.feedRepo.UpdatePostCount(canonicalID); err != nil {
		slog.Error("Failed to update post count", "feed_id", canonicalID, "error", err)
	}

	slog.Info("Feed refreshed", "feed_id", canonicalID, "url", job.URL, "posts", saved)
}

func (p *Pipeline) handleMetaStart(ctx context.Context, job Job) {
	f, err := p.feedRepo.GetFeed(job.FeedID)
	if err != nil || f == nil {
		slog.Warn("Meta job skipped, feed not found", "feed_id", job.FeedID, "error", err)
		return
	}

	if !job.Force && !feed.IsDue(f.MetaStaleAt, 0, nil) {
		slog.Debug("Meta refresh skipped, no longer stale", "feed_id", job.FeedID)
		return
	}

	target := f.SiteURL
	if target == "" {
		target = f.FeedURL
	}

	// Run returns nil for unreachable or non-HTML targets. The job still
	// moves to the end phase so the staleness window gets stamped and the
	// feed is not re-enriched on every pass.
	job.Page = p.enricher.Run(ctx, target)
	job.URL = target

	if err := p.metaEnd.Enqueue(job); err != nil {
		slog.Warn("Failed to hand off page meta", "feed_id", job.FeedID, "error", err)
	}
}

func (p *Pipeline) handleMetaEnd(ctx context.Context, job Job) {
	f, err := p.feedRepo.GetFeed(job.FeedID)
	if err != nil || f == nil {
		slog.Warn("Meta job skipped, feed not found", "feed_id", job.FeedID, "error", err)
		return
	}

	merged := feed.MergePageMeta(metaFromRecord(f), job.Page)
	staleAt := time.Now().UTC().Add(p.metaWindow)

	if err := p.feedRepo.UpdatePageMeta(f.ID, merged, staleAt); err != nil {
		slog.Error("Failed to persist page meta", "feed_id", f.ID, "error", err)
		return
	}

	slog.Info("Feed meta refreshed", "feed_id", f.ID, "url", job.URL, "enriched", job.Page != nil)
}

// stillStale re-checks the staleness date right before the network work.
// A job that sat in the queue may have been superseded by an earlier
// refresh of the same feed.
func (p *Pipeline) stillStale(feedID string) bool {
	f, err := p.feedRepo.GetFeed(feedID)
	if err != nil || f == nil {
		return true
	}
	return feed.IsDue(f.FeedStaleAt, 0, nil)
}

func (p *Pipeline) recordFetchFailure(job Job, err error) {
	slog.Error("Feed fetch failed", "feed_id", job.FeedID, "url", job.URL, "error", err)

	if ferr := p.feedRepo.IncrementScrapeFailure(job.FeedID); ferr != nil {
		slog.Error("Failed to record scrape failure", "feed_id", job.FeedID, "error", ferr)
	}

	var fetchErr *feed.FetchError
	if errors.As(err, &fetchErr) && fetchErr.NotFound() {
		if perr := p.feedRepo.SetPublic(job.FeedID, false); perr != nil {
			slog.Error("Failed to unpublish missing feed", "feed_id", job.FeedID, "error", perr)
		}
	}
}

// metaFromRecord lifts the stored enrichment fields back into the merge
// shape so a fresh page scrape only overwrites what it actually found.
func metaFromRecord(f *database.Feed) feed.Meta {
	return feed.Meta{
		Title:        f.Title,
		FeedURL:      f.FeedURL,
		SiteURL:      f.SiteURL,
		CanonicalURL: f.CanonicalURL,
		Summary:      f.Summary,
		Language:     f.Language,
		Publisher:    f.Publisher,
		ThemeColor:   f.ThemeColor,
		Identifier:   f.Identifier,
		Images: feed.FeedImages{
			Featured:  f.ImageFeatured,
			OpenGraph: f.ImageOpenGraph,
			Favicon:   f.ImageFavicon,
			Logo:      f.ImageLogo,
		},
		Interests: f.Interests,
	}
}
