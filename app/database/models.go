package database

import (
	"time"
)

// Feed is a subscribed RSS/Atom source record.
type Feed struct {
	ID                 string
	FeedURL            string
	SiteURL            string
	CanonicalURL       string
	Title              string
	Description        string
	Summary            string
	FeedType           string
	Language           string
	Publisher          string
	Copyright          string
	ThemeColor         string
	Identifier         string
	ImageFeatured      string
	ImageOpenGraph     string
	ImageFavicon       string
	ImageLogo          string
	Interests          []string
	IsPublic           bool
	ScrapeFailureCount int
	PostCount          int
	PublishedAt        *time.Time
	FeedUpdatedAt      *time.Time
	LastScrapedAt      *time.Time
	FeedStaleAt        *time.Time
	MetaStaleAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Post is one normalized item belonging to a Feed.
type Post struct {
	ID            string
	FeedID        string
	Identifier    string
	GUID          string
	Title         string
	URL           string
	CommentURL    string
	PostType      string
	Summary       string
	Description   string
	Content       string
	Author        string
	WordCount     int
	Direction     string
	Enclosures    []Enclosure
	Interests     []string
	ImageFeatured string
	ImageLogo     string
	PublishedAt   *time.Time
	PostStaleAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Enclosure mirrors the normalized enclosure shape for JSON storage.
type Enclosure struct {
	URL         string `json:"url"`
	Type        string `json:"type,omitempty"`
	Length      string `json:"length,omitempty"`
	Width       string `json:"width,omitempty"`
	Height      string `json:"height,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Medium      string `json:"medium,omitempty"`
}

// ContentIsStale reports whether the post's cached content has aged out
// of its staleness window. Posts that were never enriched are stale.
func (p *Post) ContentIsStale() bool {
	if p.PostStaleAt == nil {
		return true
	}
	return time.Now().After(*p.PostStaleAt)
}
