package feed

import (
	"time"
)

// Feed type / post type classifications derived from enclosure MIME types.
const (
	TypeArticle = "article"
	TypeAudio   = "audio"
	TypeVideo   = "video"
)

// Enclosure medium classifications.
const (
	MediumAudio = "audio"
	MediumVideo = "video"
	MediumImage = "image"
)

// Enclosure is a media attachment declared on a feed item. Length, width
// and height keep their declared string form; sizes are compared by parsed
// value but never rewritten, since the first enclosure URL participates in
// the post identifier.
type Enclosure struct {
	URL         string
	Type        string
	Length      string
	Width       string
	Height      string
	Title       string
	Description string
	Medium      string
}

type FeedImages struct {
	Featured  string
	OpenGraph string
	Favicon   string
	Logo      string
}

type PostImages struct {
	Featured string
	Logo     string
}

// Meta holds feed-level fields collected during a fetch+parse run, merged
// with page metadata where available.
type Meta struct {
	Title        string
	FeedURL      string
	SiteURL      string
	CanonicalURL string
	Description  string
	Summary      string
	FeedType     string
	Language     string
	Publisher    string
	Copyright    string
	ThemeColor   string
	Identifier   string
	Images       FeedImages
	Interests    []string

	PublishedAt   *time.Time
	UpdatedAt     *time.Time
	LastScrapedAt time.Time
	FeedStaleAt   time.Time
}

// Post is a normalized feed item.
type Post struct {
	Identifier  string
	GUID        string
	Title       string
	URL         string
	CommentURL  string
	PostType    string
	Summary     string
	Description string
	Content     string
	Author      string
	WordCount   int
	Direction   string
	Enclosures  []Enclosure
	Interests   []string
	Images      PostImages

	PublishedAt *time.Time
	PostStaleAt *time.Time
}

// Result is the complete output of one fetch+parse+normalize run.
type Result struct {
	Meta  Meta
	Posts []Post
}

// PageMeta holds metadata scraped from an HTML page head.
type PageMeta struct {
	Title        string
	Description  string
	Image        string
	URL          string
	CanonicalURL string
	Favicon      string
	Logo         string
	Language     string
	Publisher    string
	Author       string
	ThemeColor   string
}

// DiscoveredFeed is one concrete feed URL resolved from a page.
type DiscoveredFeed struct {
	URL   string
	Title string
}

// DiscoveryResult carries the site-level fields and feed URLs resolved
// from a user-submitted URL.
type DiscoveryResult struct {
	SiteURL     string
	SiteTitle   string
	SiteFavicon string
	Feeds       []DiscoveredFeed
}
