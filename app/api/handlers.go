package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/driftwoodapp/feedd/app/cfg"
	"github.com/driftwoodapp/feedd/app/database"
	"github.com/driftwoodapp/feedd/app/feed"
	"github.com/driftwoodapp/feedd/app/pipeline"
)

const defaultPostPageSize = 50

func NewHandler(feedRepo database.FeedRepository, postRepo database.PostRepository,
	client *feed.Client, discoverer *feed.Discoverer, extractor ExtractorInterface,
	jobs pipeline.PipelineInterface) *Handler {
	cfg := cfg.Get()

	return &Handler{
		feedRepo:        feedRepo,
		postRepo:        postRepo,
		client:          client,
		discoverer:      discoverer,
		extractor:       extractor,
		jobs:            jobs,
		postStaleWindow: time.Duration(cfg.PostStaleWindow) * time.Second,
		postPageSize:    defaultPostPageSize,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		stats["feeds"] = feedCount
	}
	if publicCount, err := h.feedRepo.GetPublicFeedCount(); err == nil {
		stats["public_feeds"] = publicCount
	}
	if postCount, err := h.postRepo.GetPostCount(); err == nil {
		stats["posts"] = postCount
	}

	c.JSON(http.StatusOK, stats)
}

// SubscribeFeed discovers the feed behind a submitted URL, registers a
// skeleton record and enqueues the initial refresh jobs. Submitting the
// direct feed URL works the same way: discovery recognizes feed
// responses by their Content-Type.
func (h *Handler) SubscribeFeed(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid url"})
		return
	}

	discovery, err := h.discoverer.Run(c.Request.Context(), req.URL)
	if err != nil {
		if errors.Is(err, feed.ErrDiscoveryNotFound) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "No feeds found at URL"})
			return
		}
		slog.Error("Feed discovery failed", "url", req.URL, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to reach URL"})
		return
	}

	discovered := discovery.Feeds[0]
	title := discovered.Title
	if title == "" {
		title = discovery.SiteTitle
	}

	f, err := h.feedRepo.CreateFeed(discovered.URL, title, discovery.SiteURL, discovery.SiteFavicon)
	if err != nil {
		slog.Error("Database error", "operation", "create_feed", "url", discovered.URL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if err := h.jobs.EnqueueFeedRefresh(f.ID, f.FeedURL, true); err != nil {
		slog.Warn("Failed to enqueue feed refresh", "feed_id", f.ID, "error", err)
	}
	if err := h.jobs.EnqueueMetaRefresh(f.ID, true); err != nil {
		slog.Warn("Failed to enqueue meta refresh", "feed_id", f.ID, "error", err)
	}

	c.JSON(http.StatusCreated, feedJSON(f))
}

func (h *Handler) GetFeed(c *gin.Context) {
	f, ok := h.loadFeed(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, feedJSON(f))
}

func (h *Handler) GetFeedPosts(c *gin.Context) {
	f, ok := h.loadFeed(c)
	if !ok {
		return
	}

	limit := h.postPageSize
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	posts, err := h.postRepo.GetPostsByFeed(f.ID, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_posts", "feed_id", f.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]map[string]interface{}, 0, len(posts))
	for i := range posts {
		out = append(out, postJSON(&posts[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"posts": out,
		"total": len(out),
	})
}

// RefreshFeed enqueues immediate refresh jobs regardless of staleness.
func (h *Handler) RefreshFeed(c *gin.Context) {
	f, ok := h.loadFeed(c)
	if !ok {
		return
	}

	if err := h.jobs.EnqueueFeedRefresh(f.ID, f.FeedURL, true); err != nil {
		slog.Error("Failed to enqueue feed refresh", "feed_id", f.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue refresh"})
		return
	}
	if err := h.jobs.EnqueueMetaRefresh(f.ID, true); err != nil {
		slog.Warn("Failed to enqueue meta refresh", "feed_id", f.ID, "error", err)
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"feed":    gin.H{"id": f.ID, "url": f.FeedURL},
	})
}

// GetPost serves a post, refreshing its extracted article content first
// when the cached copy has gone stale.
func (h *Handler) GetPost(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing post id parameter"})
		return
	}

	p, err := h.postRepo.GetPost(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_post", "post_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	if p.ContentIsStale() && p.URL != "" {
		if refreshed := h.refreshPostContent(c, p); refreshed != nil {
			p = refreshed
		}
	}

	c.JSON(http.StatusOK, postJSON(p))
}

// refreshPostContent re-extracts article content in-band. Failures are
// logged and the stale copy is served as is.
func (h *Handler) refreshPostContent(c *gin.Context, p *database.Post) *database.Post {
	resp, err := h.client.Get(c.Request.Context(), p.URL)
	if err != nil {
		slog.Warn("Failed to fetch article for extraction", "post_id", p.ID, "url", p.URL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		slog.Debug("Article content is not HTML, skipping extraction", "post_id", p.ID, "content_type", contentType)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn("Failed to read article body", "post_id", p.ID, "error", err)
		return nil
	}

	extracted, err := h.extractor.Run(data)
	if err != nil {
		slog.Warn("Content extraction failed", "post_id", p.ID, "url", p.URL, "error", err)
		return nil
	}

	staleAt := time.Now().UTC().Add(h.postStaleWindow)
	if err := h.postRepo.UpdatePostContent(p.ID, extracted.Content, extracted.WordCount, extracted.Direction, staleAt); err != nil {
		slog.Error("Failed to persist extracted content", "post_id", p.ID, "error", err)
		return nil
	}

	refreshed, err := h.postRepo.GetPost(p.ID)
	if err != nil {
		return nil
	}
	return refreshed
}

func (h *Handler) loadFeed(c *gin.Context) (*database.Feed, bool) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed id parameter"})
		return nil, false
	}

	f, err := h.feedRepo.GetFeed(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	if f == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return nil, false
	}

	return f, true
}

func feedJSON(f *database.Feed) map[string]interface{} {
	return map[string]interface{}{
		"id":            f.ID,
		"feed_url":      f.FeedURL,
		"site_url":      f.SiteURL,
		"canonical_url": f.CanonicalURL,
		"title":         f.Title,
		"description":   f.Description,
		"summary":       f.Summary,
		"feed_type":     f.FeedType,
		"language":      f.Language,
		"publisher":     f.Publisher,
		"copyright":     f.Copyright,
		"theme_color":   f.ThemeColor,
		"interests":     f.Interests,
		"images": map[string]string{
			"featured":   f.ImageFeatured,
			"open_graph": f.ImageOpenGraph,
			"favicon":    f.ImageFavicon,
			"logo":       f.ImageLogo,
		},
		"is_public":       f.IsPublic,
		"post_count":      f.PostCount,
		"published_at":    f.PublishedAt,
		"updated_at":      f.FeedUpdatedAt,
		"last_scraped_at": f.LastScrapedAt,
	}
}

func postJSON(p *database.Post) map[string]interface{} {
	return map[string]interface{}{
		"id":           p.ID,
		"feed_id":      p.FeedID,
		"guid":         p.GUID,
		"title":        p.Title,
		"url":          p.URL,
		"comment_url":  p.CommentURL,
		"post_type":    p.PostType,
		"summary":      p.Summary,
		"description":  p.Description,
		"content":      p.Content,
		"author":       p.Author,
		"word_count":   p.WordCount,
		"direction":    p.Direction,
		"enclosures":   p.Enclosures,
		"interests":    p.Interests,
		"images": map[string]string{
			"featured": p.ImageFeatured,
			"logo":     p.ImageLogo,
		},
		"published_at": p.PublishedAt,
	}
}
