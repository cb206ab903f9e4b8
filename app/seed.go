package main

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/driftwoodapp/feedd/app/database"
	"github.com/driftwoodapp/feedd/app/pipeline"
)

type seedFile struct {
	Feeds []seedEntry `yaml:"feeds"`
}

type seedEntry struct {
	URL   string `yaml:"url"`
	Title string `yaml:"title"`
}

// importSeeds registers the feeds listed in a YAML file and enqueues
// their initial refresh. Already-registered URLs are left untouched, so
// the seed file is safe to re-import on every start.
func importSeeds(path string, feedRepo database.FeedRepository, jobs pipeline.PipelineInterface) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var seeds seedFile
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	registered := 0
	for _, entry := range seeds.Feeds {
		if entry.URL == "" {
			slog.Warn("Seed entry has no URL, skipping", "title", entry.Title)
			continue
		}

		f, err := feedRepo.CreateFeed(entry.URL, entry.Title, "", "")
		if err != nil {
			slog.Warn("Failed to register seed feed", "url", entry.URL, "error", err)
			continue
		}

		if err := jobs.EnqueueFeedRefresh(f.ID, f.FeedURL, false); err != nil {
			slog.Warn("Failed to enqueue seed feed refresh", "feed_id", f.ID, "error", err)
		}
		if err := jobs.EnqueueMetaRefresh(f.ID, false); err != nil {
			slog.Warn("Failed to enqueue seed meta refresh", "feed_id", f.ID, "error", err)
		}

		registered++
	}

	slog.Info("Seed feeds imported", "path", path, "registered", registered, "total", len(seeds.Feeds))
	return nil
}
