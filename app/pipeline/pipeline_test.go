package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwoodapp/feedd/app/database"
	"github.com/driftwoodapp/feedd/app/feed"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://blog.example.com</link>
    <description>Posts about testing</description>
    <item>
      <title>First</title>
      <link>https://blog.example.com/first</link>
      <guid>post-1</guid>
      <description>First post</description>
    </item>
    <item>
      <title>Second</title>
      <link>https://blog.example.com/second</link>
      <guid>post-2</guid>
      <description>Second post</description>
    </item>
  </channel>
</rss>`

type mockFeedRepo struct {
	mu           sync.Mutex
	feeds        map[string]*database.Feed
	identifiers  map[string]string // identifier -> feed id
	metaUpserts  int
	pageMeta     map[string]feed.Meta
	postCounted  []string
	failureCount map[string]int
	unpublished  map[string]bool
}

func newMockFeedRepo() *mockFeedRepo {
	return &mockFeedRepo{
		feeds:        make(map[string]*database.Feed),
		identifiers:  make(map[string]string),
		pageMeta:     make(map[string]feed.Meta),
		failureCount: make(map[string]int),
		unpublished:  make(map[string]bool),
	}
}

func (m *mockFeedRepo) GetFeed(feedID string) (*database.Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feeds[feedID], nil
}

func (m *mockFeedRepo) GetFeedByURL(feedURL string) (*database.Feed, error) { return nil, nil }

func (m *mockFeedRepo) GetFeedByIdentifier(identifier string) (*database.Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.identifiers[identifier]; ok {
		return m.feeds[id], nil
	}
	return nil, nil
}

func (m *mockFeedRepo) CreateFeed(feedURL, title, siteURL, favicon string) (*database.Feed, error) {
	return nil, nil
}

func (m *mockFeedRepo) UpsertFeedMeta(feedID string, meta feed.Meta) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	targetID := feedID
	if id, ok := m.identifiers[meta.Identifier]; ok {
		targetID = id
	} else {
		m.identifiers[meta.Identifier] = feedID
	}

	if m.feeds[targetID] == nil {
		m.feeds[targetID] = &database.Feed{ID: targetID}
	}
	m.feeds[targetID].Title = meta.Title
	m.feeds[targetID].Identifier = meta.Identifier
	m.failureCount[targetID] = 0
	m.metaUpserts++

	return targetID, nil
}

func (m *mockFeedRepo) UpdatePageMeta(feedID string, meta feed.Meta, metaStaleAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageMeta[feedID] = meta
	return nil
}

func (m *mockFeedRepo) FindEligibleFeeds(failureThreshold int) ([]database.Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Feed
	for _, f := range m.feeds {
		if !m.unpublished[f.ID] && m.failureCount[f.ID] < failureThreshold {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *mockFeedRepo) IncrementScrapeFailure(feedID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureCount[feedID]++
	return nil
}

func (m *mockFeedRepo) SetPublic(feedID string, isPublic bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unpublished[feedID] = !isPublic
	return nil
}

func (m *mockFeedRepo) UpdatePostCount(feedID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postCounted = append(m.postCounted, feedID)
	return nil
}

func (m *mockFeedRepo) GetFeedCount() (int, error)       { return len(m.feeds), nil }
func (m *mockFeedRepo) GetPublicFeedCount() (int, error) { return len(m.feeds), nil }

type mockPostRepo struct {
	mu    sync.Mutex
	posts map[string]feed.Post // keyed by identifier
}

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{posts: make(map[string]feed.Post)}
}

func (m *mockPostRepo) GetPost(postID string) (*database.Post, error) { return nil, nil }
func (m *mockPostRepo) GetPostsByFeed(feedID string, limit int) ([]database.Post, error) {
	return nil, nil
}

func (m *mockPostRepo) UpsertPost(feedID string, post feed.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[post.Identifier] = post
	return nil
}

func (m *mockPostRepo) UpdatePostContent(postID, content string, wordCount int, direction string, postStaleAt time.Time) error {
	return nil
}

func (m *mockPostRepo) CountPostsByFeed(feedID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts), nil
}

func (m *mockPostRepo) GetPostCount() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts), nil
}

func newTestPipeline(feedRepo *mockFeedRepo, postRepo *mockPostRepo) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	client := feed.NewClient("test-agent/1.0")

	return &Pipeline{
		feedRepo:    feedRepo,
		postRepo:    postRepo,
		fetcher:     feed.NewFetcher(client),
		enricher:    feed.NewEnricher(client),
		workerCount: 1,
		metaWindow:  time.Hour,
		feedStart:   NewQueue("feed_start", 10),
		feedEnd:     NewQueue("feed_end", 10),
		metaStart:   NewQueue("meta_start", 10),
		metaEnd:     NewQueue("meta_end", 10),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func TestPipeline_FeedRefreshRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testRSS))
	}))
	defer server.Close()

	feedRepo := newMockFeedRepo()
	postRepo := newMockPostRepo()
	p := newTestPipeline(feedRepo, postRepo)
	defer p.cancel()

	run := func() {
		job := NewJob(KindFeed, "feed-1", server.URL, false)
		p.handleFeedStart(p.ctx, job)

		handoff := <-p.feedEnd.jobs
		require.NotNil(t, handoff.Result, "start phase should attach the fetch result")
		p.handleFeedEnd(p.ctx, handoff)
	}

	run()

	assert.Len(t, postRepo.posts, 2)
	assert.Equal(t, 1, feedRepo.metaUpserts)
	assert.Equal(t, []string{"feed-1"}, feedRepo.postCounted)
	assert.Equal(t, "Test Feed", feedRepo.feeds["feed-1"].Title)

	// Replaying the same refresh is idempotent on the post set.
	run()
	assert.Len(t, postRepo.posts, 2)
}

func TestPipeline_CrossURLMerge(t *testing.T) {
	feedRepo := newMockFeedRepo()
	postRepo := newMockPostRepo()
	p := newTestPipeline(feedRepo, postRepo)
	defer p.cancel()

	posts := []feed.Post{{Identifier: feed.PostIdentifier("g1", "l1", nil)}}
	meta := feed.Meta{Title: "Shared", Identifier: "shared-identity"}

	// First fetch registers the identity under feed-A.
	p.handleFeedEnd(p.ctx, Job{Kind: KindFeed, FeedID: "feed-A", Result: &feed.Result{Meta: meta, Posts: posts}})
	// A second URL producing the same identity collapses onto feed-A.
	p.handleFeedEnd(p.ctx, Job{Kind: KindFeed, FeedID: "feed-B", Result: &feed.Result{Meta: meta, Posts: posts}})

	assert.Equal(t, []string{"feed-A", "feed-A"}, feedRepo.postCounted)
	assert.Nil(t, feedRepo.feeds["feed-B"], "no record should be created for the duplicate URL")
}

func TestPipeline_FetchFailureRecording(t *testing.T) {
	status := http.StatusInternalServerError
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	feedRepo := newMockFeedRepo()
	p := newTestPipeline(feedRepo, newMockPostRepo())
	defer p.cancel()

	p.handleFeedStart(p.ctx, NewJob(KindFeed, "feed-1", server.URL, false))
	assert.Equal(t, 1, feedRepo.failureCount["feed-1"])
	assert.False(t, feedRepo.unpublished["feed-1"], "server errors should not unpublish the feed")

	status = http.StatusNotFound
	p.handleFeedStart(p.ctx, NewJob(KindFeed, "feed-1", server.URL, false))
	assert.Equal(t, 2, feedRepo.failureCount["feed-1"])
	assert.True(t, feedRepo.unpublished["feed-1"], "a missing feed should be unpublished")

	assert.Equal(t, 0, p.feedEnd.Len(), "failed fetches should not reach the end phase")
}

func TestPipeline_FreshFeedSkippedUnlessForced(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testRSS))
	}))
	defer server.Close()

	future := time.Now().Add(time.Hour)
	feedRepo := newMockFeedRepo()
	feedRepo.feeds["feed-1"] = &database.Feed{ID: "feed-1", FeedURL: server.URL, FeedStaleAt: &future}

	p := newTestPipeline(feedRepo, newMockPostRepo())
	defer p.cancel()

	// A queued job for a feed refreshed in the meantime does no work.
	p.handleFeedStart(p.ctx, NewJob(KindFeed, "feed-1", server.URL, false))
	assert.Equal(t, int32(0), hits.Load(), "fresh feed should not be fetched")
	assert.Equal(t, 0, p.feedEnd.Len())

	// A forced job fetches regardless.
	p.handleFeedStart(p.ctx, NewJob(KindFeed, "feed-1", server.URL, true))
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, p.feedEnd.Len())
}

func TestPipeline_FreshMetaSkippedUnlessForced(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><head></head><body></body></html>"))
	}))
	defer server.Close()

	future := time.Now().Add(time.Hour)
	feedRepo := newMockFeedRepo()
	feedRepo.feeds["feed-1"] = &database.Feed{ID: "feed-1", SiteURL: server.URL, MetaStaleAt: &future}

	p := newTestPipeline(feedRepo, newMockPostRepo())
	defer p.cancel()

	p.handleMetaStart(p.ctx, NewJob(KindMeta, "feed-1", "", false))
	assert.Equal(t, int32(0), hits.Load(), "fresh meta should not be scraped")
	assert.Equal(t, 0, p.metaEnd.Len())

	p.handleMetaStart(p.ctx, NewJob(KindMeta, "feed-1", "", true))
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, p.metaEnd.Len())
}

func TestPipeline_MetaFlow(t *testing.T) {
	page := `<html><head>
<meta property="og:description" content="All about the site">
<meta property="og:site_name" content="Site Inc">
</head><body></body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer server.Close()

	feedRepo := newMockFeedRepo()
	feedRepo.feeds["feed-1"] = &database.Feed{
		ID:      "feed-1",
		FeedURL: server.URL + "/feed.xml",
		SiteURL: server.URL,
	}

	p := newTestPipeline(feedRepo, newMockPostRepo())
	defer p.cancel()

	p.handleMetaStart(p.ctx, NewJob(KindMeta, "feed-1", "", false))

	handoff := <-p.metaEnd.jobs
	require.NotNil(t, handoff.Page, "HTML host page should yield page meta")
	p.handleMetaEnd(p.ctx, handoff)

	merged, ok := feedRepo.pageMeta["feed-1"]
	require.True(t, ok, "page meta should be persisted")
	assert.Equal(t, "All about the site", merged.Summary)
	assert.Equal(t, "Site Inc", merged.Publisher)
}

func TestPipeline_MetaFlow_UnreachablePageStillStamped(t *testing.T) {
	feedRepo := newMockFeedRepo()
	feedRepo.feeds["feed-1"] = &database.Feed{
		ID:      "feed-1",
		FeedURL: "http://127.0.0.1:1/feed.xml",
		Summary: "existing summary",
	}

	p := newTestPipeline(feedRepo, newMockPostRepo())
	defer p.cancel()

	p.handleMetaStart(p.ctx, NewJob(KindMeta, "feed-1", "", false))

	handoff := <-p.metaEnd.jobs
	assert.Nil(t, handoff.Page)
	p.handleMetaEnd(p.ctx, handoff)

	merged, ok := feedRepo.pageMeta["feed-1"]
	require.True(t, ok, "staleness window must be stamped even without enrichment")
	assert.Equal(t, "existing summary", merged.Summary)
}
