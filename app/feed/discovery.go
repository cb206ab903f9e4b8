package feed

import (
	"context"
	"log/slog"
	"mime"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// feedMIMETypes are Content-Type values that identify a response as a
// feed document rather than a page referencing one.
var feedMIMETypes = map[string]bool{
	"application/rss+xml":  true,
	"application/atom+xml": true,
	"application/rdf+xml":  true,
	"application/rss":      true,
	"application/atom":     true,
}

// Discoverer resolves a user-submitted URL to concrete feed URLs. It
// combines feed-link discovery on the page with a Content-Type probe of
// the URL itself, because link discovery alone misses the common case
// where the user pastes the feed URL directly.
type Discoverer struct {
	client *Client
}

func NewDiscoverer(client *Client) *Discoverer {
	return &Discoverer{client: client}
}

func (d *Discoverer) Run(ctx context.Context, pageURL string) (*DiscoveryResult, error) {
	resp, err := d.client.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	base, err := url.Parse(resp.Request.URL.String())
	if err != nil {
		base, _ = url.Parse(pageURL)
	}

	result := &DiscoveryResult{SiteURL: pageURL}

	contentType := resp.Header.Get("Content-Type")

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err == nil {
		d.collectPageFeeds(doc, base, result)
	} else {
		slog.Debug("Discovery page not parseable as HTML", "url", pageURL, "error", err)
	}

	// A feed Content-Type wins over whatever the page declared: the
	// submitted URL is itself the feed.
	if isFeedContentType(contentType) {
		title := result.SiteTitle
		if len(result.Feeds) > 0 && result.Feeds[0].Title != "" {
			title = result.Feeds[0].Title
		}
		result.Feeds = []DiscoveredFeed{{URL: pageURL, Title: title}}
	}

	if len(result.Feeds) == 0 {
		return nil, ErrDiscoveryNotFound
	}

	return result, nil
}

func (d *Discoverer) collectPageFeeds(doc *goquery.Document, base *url.URL, result *DiscoveryResult) {
	result.SiteTitle = strings.TrimSpace(doc.Find("head title").First().Text())

	doc.Find(`head link[rel="icon"], head link[rel="shortcut icon"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if href, ok := s.Attr("href"); ok && href != "" {
			result.SiteFavicon = resolveURL(base, href)
			return false
		}
		return true
	})

	seen := make(map[string]bool)

	doc.Find(`link[rel="alternate"]`).Each(func(_ int, s *goquery.Selection) {
		linkType, _ := s.Attr("type")
		if !isFeedContentType(linkType) {
			return
		}
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		resolved := resolveURL(base, href)
		if seen[resolved] {
			return
		}
		seen[resolved] = true
		title, _ := s.Attr("title")
		result.Feeds = append(result.Feeds, DiscoveredFeed{URL: resolved, Title: title})
	})

	// Fallback heuristic for pages that link their feed as a plain anchor.
	if len(result.Feeds) == 0 {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			if !looksLikeFeedPath(href) {
				return
			}
			resolved := resolveURL(base, href)
			if seen[resolved] {
				return
			}
			seen[resolved] = true
			result.Feeds = append(result.Feeds, DiscoveredFeed{URL: resolved, Title: strings.TrimSpace(s.Text())})
		})
	}
}

func isFeedContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return feedMIMETypes[mediaType]
}

func looksLikeFeedPath(href string) bool {
	lowered := strings.ToLower(href)
	return strings.HasSuffix(lowered, ".rss") ||
		strings.HasSuffix(lowered, "/rss") ||
		strings.HasSuffix(lowered, "/feed") ||
		strings.HasSuffix(lowered, "/atom") ||
		strings.HasSuffix(lowered, "rss.xml") ||
		strings.HasSuffix(lowered, "atom.xml") ||
		strings.HasSuffix(lowered, "feed.xml")
}

func resolveURL(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
