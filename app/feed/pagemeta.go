package feed

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Enricher fetches a feed's host page and extracts page-level metadata.
// A nil result means "enrichment unavailable" and is never an error:
// not every linked resource is a page, and a dead host page must not
// fail the feed it belongs to.
type Enricher struct {
	client *Client
}

func NewEnricher(client *Client) *Enricher {
	return &Enricher{client: client}
}

func (e *Enricher) Run(ctx context.Context, pageURL string) *PageMeta {
	if pageURL == "" {
		return nil
	}

	resp, err := e.client.Get(ctx, pageURL)
	if err != nil {
		slog.Debug("Page meta fetch failed", "url", pageURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		slog.Debug("Page meta skipped, URL does not reference HTML", "url", pageURL)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		slog.Debug("Page meta parse failed", "url", pageURL, "error", err)
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	meta := &PageMeta{}

	if base != nil {
		meta.Logo = "https://logo.clearbit.com/" + base.Hostname()
	}

	doc.Find(`head meta[property]`).Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		if !strings.HasPrefix(prop, "og:") {
			return
		}
		content, _ := s.Attr("content")
		if content == "" {
			return
		}
		switch strings.TrimPrefix(prop, "og:") {
		case "title":
			meta.Title = content
		case "description":
			meta.Description = content
		case "image":
			meta.Image = content
		case "url":
			meta.URL = content
		case "site_name":
			meta.Publisher = content
		case "locale":
			meta.Language = content
		}
	})

	doc.Find(`head link[rel]`).Each(func(_ int, s *goquery.Selection) {
		rel, _ := s.Attr("rel")
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		switch rel {
		case "canonical":
			meta.CanonicalURL = href
		case "icon", "shortcut icon":
			meta.Favicon = href
		}
	})

	if content, ok := doc.Find(`head meta[name="theme-color"]`).First().Attr("content"); ok {
		meta.ThemeColor = content
	}

	if meta.Image != "" {
		meta.Image = resolveURL(base, meta.Image)
	}
	if meta.Favicon != "" {
		meta.Favicon = resolveURL(base, meta.Favicon)
	}

	return meta
}

// MergePageMeta combines feed-native metadata with page metadata. Page
// fields win for canonical URL, publisher, summary, theme color and
// images; feed-native language is kept unless empty. A nil page meta
// leaves the feed meta unmodified.
func MergePageMeta(meta Meta, page *PageMeta) Meta {
	if page == nil {
		return meta
	}

	if page.CanonicalURL != "" {
		meta.CanonicalURL = page.CanonicalURL
	}
	if page.Publisher != "" {
		meta.Publisher = page.Publisher
	}
	if page.Description != "" {
		meta.Summary = page.Description
	}
	if page.ThemeColor != "" {
		meta.ThemeColor = page.ThemeColor
	}
	if page.Image != "" {
		meta.Images.OpenGraph = page.Image
		meta.Images.Featured = page.Image
	}
	if page.Logo != "" {
		meta.Images.Logo = page.Logo
	}
	if page.Favicon != "" {
		meta.Images.Favicon = page.Favicon
	}
	if meta.Language == "" {
		meta.Language = page.Language
	}

	return meta
}
