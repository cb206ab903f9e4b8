package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/driftwoodapp/feedd/app/feed"
)

var _ PostRepository = (*PostRepo)(nil)

// PostRepo handles database operations for posts.
type PostRepo struct {
	db *DB
}

func NewPostRepository(db *DB) *PostRepo {
	return &PostRepo{db: db}
}

const postColumns = `id, feed_id, identifier, guid, title, url, comment_url, post_type,
	summary, description, content, author, word_count, direction,
	enclosures, interests, image_featured, image_logo,
	published_at, post_stale_at, created_at, updated_at`

func (r *PostRepo) GetPost(postID string) (*Post, error) {
	row := r.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE id = ?`, postID)

	p, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return p, nil
}

func (r *PostRepo) GetPostsByFeed(feedID string, limit int) ([]Post, error) {
	rows, err := r.db.Query(`
		SELECT `+postColumns+`
		FROM posts
		WHERE feed_id = ?
		ORDER BY COALESCE(published_at, created_at) DESC
		LIMIT ?
	`, feedID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get posts by feed: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, nil
}

// UpsertPost inserts or refreshes a post keyed by its identifier.
// Replaying the same normalized post is a no-op apart from timestamps.
// Extracted article content is marked by a non-null post_stale_at and is
// never clobbered by the feed-sourced content of a replay.
func (r *PostRepo) UpsertPost(feedID string, post feed.Post) error {
	now := time.Now().UTC()

	_, err := r.db.Exec(`
		INSERT INTO posts (
			id, feed_id, identifier, guid, title, url, comment_url, post_type,
			summary, description, content, author, enclosures, interests,
			image_featured, image_logo, published_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (identifier) DO UPDATE SET
			feed_id = excluded.feed_id,
			guid = excluded.guid,
			title = excluded.title,
			url = excluded.url,
			comment_url = excluded.comment_url,
			post_type = excluded.post_type,
			summary = excluded.summary,
			description = excluded.description,
			content = CASE WHEN posts.post_stale_at IS NULL THEN excluded.content ELSE posts.content END,
			author = excluded.author,
			enclosures = excluded.enclosures,
			interests = excluded.interests,
			image_featured = excluded.image_featured,
			image_logo = excluded.image_logo,
			published_at = excluded.published_at,
			updated_at = excluded.updated_at
	`, uuid.New().String(), feedID, post.Identifier, post.GUID, post.Title,
		post.URL, post.CommentURL, post.PostType, post.Summary, post.Description,
		post.Content, post.Author, marshalEnclosures(post.Enclosures), marshalStrings(post.Interests),
		post.Images.Featured, post.Images.Logo, post.PublishedAt, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert post: %w", err)
	}
	return nil
}

func (r *PostRepo) UpdatePostContent(postID, content string, wordCount int, direction string, postStaleAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE posts
		SET content = ?, word_count = ?, direction = ?, post_stale_at = ?, updated_at = ?
		WHERE id = ?
	`, content, wordCount, direction, postStaleAt, time.Now().UTC(), postID)
	if err != nil {
		return fmt.Errorf("failed to update post content: %w", err)
	}
	return nil
}

func (r *PostRepo) CountPostsByFeed(feedID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM posts WHERE feed_id = ?", feedID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts by feed: %w", err)
	}
	return count, nil
}

func (r *PostRepo) GetPostCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM posts").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get post count: %w", err)
	}
	return count, nil
}

func scanPost(row rowScanner) (*Post, error) {
	var p Post
	var enclosures, interests string

	err := row.Scan(
		&p.ID, &p.FeedID, &p.Identifier, &p.GUID, &p.Title, &p.URL, &p.CommentURL, &p.PostType,
		&p.Summary, &p.Description, &p.Content, &p.Author, &p.WordCount, &p.Direction,
		&enclosures, &interests, &p.ImageFeatured, &p.ImageLogo,
		&p.PublishedAt, &p.PostStaleAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Enclosures = unmarshalEnclosures(enclosures)
	p.Interests = unmarshalStrings(interests)
	return &p, nil
}
