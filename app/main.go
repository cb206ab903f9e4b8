package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/driftwoodapp/feedd/app/api"
	"github.com/driftwoodapp/feedd/app/cfg"
	"github.com/driftwoodapp/feedd/app/database"
	"github.com/driftwoodapp/feedd/app/feed"
	"github.com/driftwoodapp/feedd/app/pipeline"
	"github.com/driftwoodapp/feedd/app/scheduler"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if c == nil {
		// Help was requested
		return
	}

	setupLogger(c)

	slog.Info("Starting feedd", "version", c.Version)

	db, err := database.NewConnection(c.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", c.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", c.DBPath, "schema_version", version, "dirty", dirty)

	feedRepo := database.NewFeedRepository(db)
	postRepo := database.NewPostRepository(db)

	client := feed.NewClient(c.UserAgent)
	fetcher := feed.NewFetcher(client)
	enricher := feed.NewEnricher(client)
	discoverer := feed.NewDiscoverer(client)
	extractor := feed.NewContentExtractor()

	jobs := pipeline.NewPipeline(feedRepo, postRepo, fetcher, enricher)
	jobs.Start()

	if c.SeedFile != "" {
		if err := importSeeds(c.SeedFile, feedRepo, jobs); err != nil {
			slog.Error("Failed to import seed file", "path", c.SeedFile, "error", err)
			os.Exit(1)
		}
	}

	feedDaemon := scheduler.NewDaemon(pipeline.KindFeed, feedRepo, client, jobs)
	metaDaemon := scheduler.NewDaemon(pipeline.KindMeta, feedRepo, client, jobs)
	feedDaemon.Start()
	metaDaemon.Start()

	handler := api.NewHandler(feedRepo, postRepo, client, discoverer, extractor, jobs)
	server := api.NewServer(handler)

	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", c.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Daemons stop before the pipeline so no new jobs land in closing
	// queues; the pipeline drains what is already in flight.
	feedDaemon.Stop()
	metaDaemon.Stop()
	jobs.Stop()

	slog.Info("Shutdown complete")
}

func setupLogger(c *cfg.Cfg) {
	level := slog.LevelWarn
	if c.Verbose {
		level = slog.LevelInfo
	}
	if c.Debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
