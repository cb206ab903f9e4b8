package feed

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"
)

// Fetcher streams a feed document and turns it into feed metadata plus
// normalized posts.
type Fetcher struct {
	client       *Client
	gofeedParser *gofeed.Parser
	normalizer   *Normalizer
}

func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{
		client:       client,
		gofeedParser: gofeed.NewParser(),
		normalizer:   NewNormalizer(),
	}
}

// Run opens a streaming GET against the feed URL and parses it. Transport
// failures surface as *FetchError, malformed documents as *ParseError;
// neither is retried here — retry policy belongs to the scheduler.
func (f *Fetcher) Run(ctx context.Context, feedURL string) (*Result, error) {
	resp, err := f.client.Get(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	parsed, err := f.gofeedParser.Parse(resp.Body)
	if err != nil {
		return nil, &ParseError{URL: feedURL, Err: err}
	}

	feedType := determineFeedType(parsed.Items)

	posts := make([]Post, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		posts = append(posts, f.normalizer.Run(item, feedType))
	}

	now := time.Now().UTC()

	meta := Meta{
		Title:         parsed.Title,
		FeedURL:       feedURL,
		SiteURL:       parsed.Link,
		Description:   parsed.Description,
		FeedType:      feedType,
		Language:      parsed.Language,
		Copyright:     parsed.Copyright,
		LastScrapedAt: now,
		FeedStaleAt:   now.Add(time.Hour),
		PublishedAt:   parsed.PublishedParsed,
		UpdatedAt:     parsed.UpdatedParsed,
	}

	if parsed.Image != nil {
		meta.Images.Featured = parsed.Image.URL
	}

	if parsed.Categories != nil {
		meta.Interests = parsed.Categories
	}

	meta.Identifier = FeedIdentifier(feedURL, posts)

	return &Result{Meta: meta, Posts: posts}, nil
}

// determineFeedType classifies a feed from its item enclosures: article
// unless any enclosure MIME type mentions audio or video.
func determineFeedType(items []*gofeed.Item) string {
	feedType := TypeArticle

	for _, item := range items {
		if item == nil {
			continue
		}
		for _, enc := range item.Enclosures {
			if enc == nil || enc.Type == "" {
				continue
			}
			switch ClassifyMedium(enc.Type) {
			case MediumAudio:
				feedType = TypeAudio
			case MediumVideo:
				feedType = TypeVideo
			}
		}
	}

	return feedType
}
