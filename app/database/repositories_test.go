package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/driftwoodapp/feedd/app/feed"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func TestFeedRepo_CreateFeed(t *testing.T) {
	repo := NewFeedRepository(setupTestDB(t))

	f, err := repo.CreateFeed("https://example.com/feed.xml", "Example", "https://example.com", "https://example.com/favicon.ico")
	if err != nil {
		t.Fatalf("CreateFeed failed: %v", err)
	}
	if f.ID == "" {
		t.Error("Created feed should have an id")
	}
	if !f.IsPublic {
		t.Error("New feeds should be public by default")
	}
	if f.FeedType != "article" {
		t.Errorf("Expected default feed type 'article', got %q", f.FeedType)
	}

	// Re-registering the same URL returns the existing record.
	again, err := repo.CreateFeed("https://example.com/feed.xml", "Other Title", "", "")
	if err != nil {
		t.Fatalf("Second CreateFeed failed: %v", err)
	}
	if again.ID != f.ID {
		t.Errorf("Expected existing record, got new id %s", again.ID)
	}
	if again.Title != "Example" {
		t.Errorf("Existing record should be untouched, got title %q", again.Title)
	}
}

func TestFeedRepo_UpsertFeedMeta(t *testing.T) {
	repo := NewFeedRepository(setupTestDB(t))

	f, err := repo.CreateFeed("https://example.com/feed.xml", "", "", "")
	if err != nil {
		t.Fatalf("CreateFeed failed: %v", err)
	}

	now := time.Now().UTC()
	meta := feed.Meta{
		Title:         "Example Feed",
		SiteURL:       "https://example.com",
		Description:   "about examples",
		FeedType:      "audio",
		Language:      "en",
		Identifier:    "identity-1",
		Interests:     []string{"tech"},
		LastScrapedAt: now,
		FeedStaleAt:   now.Add(time.Hour),
	}

	id, err := repo.UpsertFeedMeta(f.ID, meta)
	if err != nil {
		t.Fatalf("UpsertFeedMeta failed: %v", err)
	}
	if id != f.ID {
		t.Errorf("Expected meta to land on the same record, got %s", id)
	}

	stored, err := repo.GetFeed(f.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetFeed failed: %v", err)
	}
	if stored.Title != "Example Feed" || stored.FeedType != "audio" || stored.Identifier != "identity-1" {
		t.Errorf("Meta fields not persisted: %+v", stored)
	}
	if len(stored.Interests) != 1 || stored.Interests[0] != "tech" {
		t.Errorf("Interests not persisted: %v", stored.Interests)
	}
	if stored.LastScrapedAt == nil {
		t.Error("LastScrapedAt should be set")
	}
}

func TestFeedRepo_UpsertFeedMeta_CollapsesByIdentifier(t *testing.T) {
	repo := NewFeedRepository(setupTestDB(t))

	a, _ := repo.CreateFeed("https://example.com/feed.xml", "", "", "")
	b, _ := repo.CreateFeed("https://mirror.example.com/feed.xml", "", "", "")

	meta := feed.Meta{Title: "Shared Feed", Identifier: "shared-identity", LastScrapedAt: time.Now().UTC()}

	idA, err := repo.UpsertFeedMeta(a.ID, meta)
	if err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	// The mirror URL resolves to the same logical feed.
	idB, err := repo.UpsertFeedMeta(b.ID, meta)
	if err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	if idA != a.ID {
		t.Errorf("First upsert should target its own record, got %s", idA)
	}
	if idB != a.ID {
		t.Errorf("Second upsert should collapse onto the first record, got %s", idB)
	}
}

func TestFeedRepo_UpsertFeedMeta_ResetsFailureCount(t *testing.T) {
	repo := NewFeedRepository(setupTestDB(t))

	f, _ := repo.CreateFeed("https://example.com/feed.xml", "", "", "")

	if err := repo.IncrementScrapeFailure(f.ID); err != nil {
		t.Fatalf("IncrementScrapeFailure failed: %v", err)
	}
	if err := repo.IncrementScrapeFailure(f.ID); err != nil {
		t.Fatalf("IncrementScrapeFailure failed: %v", err)
	}

	stored, _ := repo.GetFeed(f.ID)
	if stored.ScrapeFailureCount != 2 {
		t.Fatalf("Expected failure count 2, got %d", stored.ScrapeFailureCount)
	}

	_, err := repo.UpsertFeedMeta(f.ID, feed.Meta{Identifier: "id-1", LastScrapedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("UpsertFeedMeta failed: %v", err)
	}

	stored, _ = repo.GetFeed(f.ID)
	if stored.ScrapeFailureCount != 0 {
		t.Errorf("Successful upsert should reset the failure count, got %d", stored.ScrapeFailureCount)
	}
}

func TestFeedRepo_FindEligibleFeeds(t *testing.T) {
	repo := NewFeedRepository(setupTestDB(t))

	healthy, _ := repo.CreateFeed("https://a.example.com/feed.xml", "", "", "")
	failing, _ := repo.CreateFeed("https://b.example.com/feed.xml", "", "", "")
	private, _ := repo.CreateFeed("https://c.example.com/feed.xml", "", "", "")

	for i := 0; i < 5; i++ {
		repo.IncrementScrapeFailure(failing.ID)
	}
	repo.SetPublic(private.ID, false)

	eligible, err := repo.FindEligibleFeeds(5)
	if err != nil {
		t.Fatalf("FindEligibleFeeds failed: %v", err)
	}

	if len(eligible) != 1 {
		t.Fatalf("Expected 1 eligible feed, got %d", len(eligible))
	}
	if eligible[0].ID != healthy.ID {
		t.Errorf("Expected the healthy feed, got %s", eligible[0].ID)
	}
}

func TestPostRepo_UpsertPost(t *testing.T) {
	db := setupTestDB(t)
	feedRepo := NewFeedRepository(db)
	postRepo := NewPostRepository(db)

	f, _ := feedRepo.CreateFeed("https://example.com/feed.xml", "", "", "")

	published := time.Now().UTC().Add(-time.Hour)
	post := feed.Post{
		Identifier:  "post-identity-1",
		GUID:        "guid-1",
		Title:       "First Post",
		URL:         "https://example.com/first",
		PostType:    "article",
		Description: "a description",
		Enclosures:  []feed.Enclosure{{URL: "https://cdn.example.com/a.mp3", Type: "audio/mpeg", Medium: "audio"}},
		Interests:   []string{"go"},
		PublishedAt: &published,
	}

	if err := postRepo.UpsertPost(f.ID, post); err != nil {
		t.Fatalf("UpsertPost failed: %v", err)
	}

	// Replaying the same post must not create a second row.
	post.Title = "First Post, Edited"
	if err := postRepo.UpsertPost(f.ID, post); err != nil {
		t.Fatalf("Replayed UpsertPost failed: %v", err)
	}

	count, err := postRepo.CountPostsByFeed(f.ID)
	if err != nil {
		t.Fatalf("CountPostsByFeed failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 post after replay, got %d", count)
	}

	posts, err := postRepo.GetPostsByFeed(f.ID, 10)
	if err != nil {
		t.Fatalf("GetPostsByFeed failed: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("Expected 1 post, got %d", len(posts))
	}

	stored := posts[0]
	if stored.Title != "First Post, Edited" {
		t.Errorf("Replay should update fields, got title %q", stored.Title)
	}
	if len(stored.Enclosures) != 1 || stored.Enclosures[0].Medium != "audio" {
		t.Errorf("Enclosures not round-tripped: %+v", stored.Enclosures)
	}
	if len(stored.Interests) != 1 || stored.Interests[0] != "go" {
		t.Errorf("Interests not round-tripped: %v", stored.Interests)
	}
}

func TestPostRepo_UpsertPost_ContentHandling(t *testing.T) {
	db := setupTestDB(t)
	feedRepo := NewFeedRepository(db)
	postRepo := NewPostRepository(db)

	f, _ := feedRepo.CreateFeed("https://example.com/feed.xml", "", "", "")

	post := feed.Post{
		Identifier: "post-identity-1",
		GUID:       "guid-1",
		Title:      "First Post",
		URL:        "https://example.com/first",
		PostType:   "article",
		Content:    "<p>feed body</p>",
	}
	if err := postRepo.UpsertPost(f.ID, post); err != nil {
		t.Fatalf("UpsertPost failed: %v", err)
	}

	posts, _ := postRepo.GetPostsByFeed(f.ID, 10)
	if len(posts) != 1 || posts[0].Content != "<p>feed body</p>" {
		t.Fatalf("Feed content not stored: %+v", posts)
	}

	// Until an article has been extracted, a replay may refresh the body.
	post.Content = "<p>updated feed body</p>"
	if err := postRepo.UpsertPost(f.ID, post); err != nil {
		t.Fatalf("Replayed UpsertPost failed: %v", err)
	}
	posts, _ = postRepo.GetPostsByFeed(f.ID, 10)
	if posts[0].Content != "<p>updated feed body</p>" {
		t.Errorf("Replay should refresh feed content, got %q", posts[0].Content)
	}

	// Extracted content stamps post_stale_at and survives later replays.
	staleAt := time.Now().UTC().Add(24 * time.Hour)
	if err := postRepo.UpdatePostContent(posts[0].ID, "<article>extracted</article>", 120, "ltr", staleAt); err != nil {
		t.Fatalf("UpdatePostContent failed: %v", err)
	}
	post.Content = "<p>yet another feed body</p>"
	if err := postRepo.UpsertPost(f.ID, post); err != nil {
		t.Fatalf("Replayed UpsertPost failed: %v", err)
	}
	posts, _ = postRepo.GetPostsByFeed(f.ID, 10)
	if posts[0].Content != "<article>extracted</article>" {
		t.Errorf("Replay must not clobber extracted content, got %q", posts[0].Content)
	}
}

func TestPostRepo_UpdatePostContent(t *testing.T) {
	db := setupTestDB(t)
	feedRepo := NewFeedRepository(db)
	postRepo := NewPostRepository(db)

	f, _ := feedRepo.CreateFeed("https://example.com/feed.xml", "", "", "")
	postRepo.UpsertPost(f.ID, feed.Post{Identifier: "p-1", URL: "https://example.com/p1"})

	posts, _ := postRepo.GetPostsByFeed(f.ID, 1)
	p := posts[0]

	if !p.ContentIsStale() {
		t.Error("A post without extracted content should be stale")
	}

	staleAt := time.Now().UTC().Add(time.Hour)
	if err := postRepo.UpdatePostContent(p.ID, "<p>body</p>", 1, "ltr", staleAt); err != nil {
		t.Fatalf("UpdatePostContent failed: %v", err)
	}

	refreshed, _ := postRepo.GetPost(p.ID)
	if refreshed.Content != "<p>body</p>" || refreshed.WordCount != 1 || refreshed.Direction != "ltr" {
		t.Errorf("Content fields not persisted: %+v", refreshed)
	}
	if refreshed.ContentIsStale() {
		t.Error("Freshly extracted content should not be stale")
	}
}

func TestFeedRepo_UpdatePostCount(t *testing.T) {
	db := setupTestDB(t)
	feedRepo := NewFeedRepository(db)
	postRepo := NewPostRepository(db)

	f, _ := feedRepo.CreateFeed("https://example.com/feed.xml", "", "", "")
	postRepo.UpsertPost(f.ID, feed.Post{Identifier: "p-1"})
	postRepo.UpsertPost(f.ID, feed.Post{Identifier: "p-2"})

	if err := feedRepo.UpdatePostCount(f.ID); err != nil {
		t.Fatalf("UpdatePostCount failed: %v", err)
	}

	stored, _ := feedRepo.GetFeed(f.ID)
	if stored.PostCount != 2 {
		t.Errorf("Expected post count 2, got %d", stored.PostCount)
	}
}

func TestJSONHelpers(t *testing.T) {
	if marshalStrings(nil) != "[]" {
		t.Error("Nil slice should marshal to empty array")
	}
	if unmarshalStrings("") != nil {
		t.Error("Empty text should unmarshal to nil")
	}
	if unmarshalStrings("not json") != nil {
		t.Error("Invalid JSON should unmarshal to nil")
	}

	round := unmarshalStrings(marshalStrings([]string{"a", "b"}))
	if len(round) != 2 || round[0] != "a" {
		t.Errorf("String round-trip failed: %v", round)
	}

	encs := unmarshalEnclosures(marshalEnclosures([]feed.Enclosure{
		{URL: "https://cdn.example.com/a.mp3", Type: "audio/mpeg", Length: "10", Medium: "audio"},
	}))
	if len(encs) != 1 || encs[0].URL != "https://cdn.example.com/a.mp3" || encs[0].Medium != "audio" {
		t.Errorf("Enclosure round-trip failed: %+v", encs)
	}
}
