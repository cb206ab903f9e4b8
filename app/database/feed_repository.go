package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/driftwoodapp/feedd/app/feed"
)

var _ FeedRepository = (*FeedRepo)(nil)

// FeedRepo handles database operations for feeds.
type FeedRepo struct {
	db *DB
}

func NewFeedRepository(db *DB) *FeedRepo {
	return &FeedRepo{db: db}
}

const feedColumns = `id, feed_url, site_url, canonical_url, title, description, summary,
	feed_type, language, publisher, copyright, theme_color, identifier,
	image_featured, image_open_graph, image_favicon, image_logo, interests,
	is_public, scrape_failure_count, post_count,
	published_at, feed_updated_at, last_scraped_at, feed_stale_at, meta_stale_at,
	created_at, updated_at`

func (r *FeedRepo) GetFeed(feedID string) (*Feed, error) {
	return r.getFeedBy("id", feedID)
}

func (r *FeedRepo) GetFeedByURL(feedURL string) (*Feed, error) {
	return r.getFeedBy("feed_url", feedURL)
}

func (r *FeedRepo) GetFeedByIdentifier(identifier string) (*Feed, error) {
	if identifier == "" {
		return nil, nil
	}
	return r.getFeedBy("identifier", identifier)
}

func (r *FeedRepo) getFeedBy(column, value string) (*Feed, error) {
	row := r.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE `+column+` = ?`, value)

	f, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by %s: %w", column, err)
	}
	return f, nil
}

func (r *FeedRepo) CreateFeed(feedURL, title, siteURL, favicon string) (*Feed, error) {
	existing, err := r.GetFeedByURL(feedURL)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = r.db.Exec(`
		INSERT INTO feeds (id, feed_url, title, site_url, image_favicon, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, feedURL, title, siteURL, favicon, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed: %w", err)
	}

	return r.GetFeed(id)
}

func (r *FeedRepo) UpsertFeedMeta(feedID string, meta feed.Meta) (string, error) {
	targetID := feedID

	// The identifier, not the URL, is the primary key for the logical
	// feed: a feed reached through a second URL collapses onto the row
	// that already carries its identifier.
	if existing, err := r.GetFeedByIdentifier(meta.Identifier); err != nil {
		return "", err
	} else if existing != nil {
		targetID = existing.ID
	} else if current, err := r.GetFeed(feedID); err != nil {
		return "", err
	} else if current == nil {
		return "", fmt.Errorf("feed %s not found for meta upsert", feedID)
	}

	now := time.Now().UTC()

	_, err := r.db.Exec(`
		UPDATE feeds
		SET site_url = ?, title = ?, description = ?, feed_type = ?, language = ?,
		    copyright = ?, identifier = ?, image_featured = CASE WHEN ? != '' THEN ? ELSE image_featured END,
		    interests = ?, published_at = ?, feed_updated_at = ?,
		    last_scraped_at = ?, feed_stale_at = ?,
		    scrape_failure_count = 0, updated_at = ?
		WHERE id = ?
	`, meta.SiteURL, meta.Title, meta.Description, meta.FeedType, meta.Language,
		meta.Copyright, meta.Identifier, meta.Images.Featured, meta.Images.Featured,
		marshalStrings(meta.Interests), meta.PublishedAt, meta.UpdatedAt,
		meta.LastScrapedAt, meta.FeedStaleAt, now, targetID)
	if err != nil {
		return "", fmt.Errorf("failed to upsert feed meta: %w", err)
	}

	return targetID, nil
}

func (r *FeedRepo) UpdatePageMeta(feedID string, meta feed.Meta, metaStaleAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET summary = ?, publisher = ?, theme_color = ?, canonical_url = ?,
		    language = ?, image_featured = ?, image_open_graph = ?,
		    image_favicon = ?, image_logo = ?, meta_stale_at = ?, updated_at = ?
		WHERE id = ?
	`, meta.Summary, meta.Publisher, meta.ThemeColor, meta.CanonicalURL,
		meta.Language, meta.Images.Featured, meta.Images.OpenGraph,
		meta.Images.Favicon, meta.Images.Logo, metaStaleAt, time.Now().UTC(), feedID)
	if err != nil {
		return fmt.Errorf("failed to update page meta: %w", err)
	}
	return nil
}

func (r *FeedRepo) FindEligibleFeeds(failureThreshold int) ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT `+feedColumns+`
		FROM feeds
		WHERE is_public = 1
		  AND scrape_failure_count < ?
		ORDER BY COALESCE(last_scraped_at, '1970-01-01') ASC
	`, failureThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to find eligible feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *FeedRepo) IncrementScrapeFailure(feedID string) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET scrape_failure_count = scrape_failure_count + 1, updated_at = ?
		WHERE id = ?
	`, time.Now().UTC(), feedID)
	if err != nil {
		return fmt.Errorf("failed to increment scrape failure: %w", err)
	}
	return nil
}

func (r *FeedRepo) SetPublic(feedID string, isPublic bool) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET is_public = ?, updated_at = ?
		WHERE id = ?
	`, isPublic, time.Now().UTC(), feedID)
	if err != nil {
		return fmt.Errorf("failed to set feed public status: %w", err)
	}
	return nil
}

func (r *FeedRepo) UpdatePostCount(feedID string) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET post_count = (SELECT COUNT(*) FROM posts WHERE feed_id = ?), updated_at = ?
		WHERE id = ?
	`, feedID, time.Now().UTC(), feedID)
	if err != nil {
		return fmt.Errorf("failed to update post count: %w", err)
	}
	return nil
}

func (r *FeedRepo) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

func (r *FeedRepo) GetPublicFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds WHERE is_public = 1").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get public feed count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*Feed, error) {
	var f Feed
	var interests string

	err := row.Scan(
		&f.ID, &f.FeedURL, &f.SiteURL, &f.CanonicalURL, &f.Title, &f.Description, &f.Summary,
		&f.FeedType, &f.Language, &f.Publisher, &f.Copyright, &f.ThemeColor, &f.Identifier,
		&f.ImageFeatured, &f.ImageOpenGraph, &f.ImageFavicon, &f.ImageLogo, &interests,
		&f.IsPublic, &f.ScrapeFailureCount, &f.PostCount,
		&f.PublishedAt, &f.FeedUpdatedAt, &f.LastScrapedAt, &f.FeedStaleAt, &f.MetaStaleAt,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Interests = unmarshalStrings(interests)
	return &f, nil
}
