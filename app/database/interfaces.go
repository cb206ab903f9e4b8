package database

import (
	"time"

	"github.com/driftwoodapp/feedd/app/feed"
)

type FeedRepository interface {
	GetFeed(feedID string) (*Feed, error)
	GetFeedByURL(feedURL string) (*Feed, error)
	GetFeedByIdentifier(identifier string) (*Feed, error)

	// CreateFeed registers a skeleton record for a discovered feed URL.
	// Re-registering an existing URL returns the existing record.
	CreateFeed(feedURL, title, siteURL, favicon string) (*Feed, error)

	// UpsertFeedMeta persists a fetch+parse result, keyed primarily by
	// the computed identifier so the same logical feed reached through a
	// different URL collapses onto one record. Resets the scrape failure
	// counter and returns the canonical feed id.
	UpsertFeedMeta(feedID string, meta feed.Meta) (string, error)

	// UpdatePageMeta persists page-enrichment fields after merge.
	UpdatePageMeta(feedID string, meta feed.Meta, metaStaleAt time.Time) error

	// FindEligibleFeeds returns public feeds below the failure threshold,
	// ordered by ascending last-scraped date.
	FindEligibleFeeds(failureThreshold int) ([]Feed, error)

	IncrementScrapeFailure(feedID string) error
	SetPublic(feedID string, isPublic bool) error
	UpdatePostCount(feedID string) error

	GetFeedCount() (int, error)
	GetPublicFeedCount() (int, error)
}

type PostRepository interface {
	GetPost(postID string) (*Post, error)
	GetPostsByFeed(feedID string, limit int) ([]Post, error)

	// UpsertPost creates or updates a post keyed by its identifier.
	UpsertPost(feedID string, post feed.Post) error

	UpdatePostContent(postID, content string, wordCount int, direction string, postStaleAt time.Time) error

	CountPostsByFeed(feedID string) (int, error)
	GetPostCount() (int, error)
}
