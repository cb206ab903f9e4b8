package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./feedd.db" description:"Path to the SQLite database file"`

	// Application configuration
	Port        string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	SeedFile    string `long:"seed-file" env:"SEED_FILE" description:"Optional YAML file with feed URLs to subscribe at startup"`
	WorkerCount int    `long:"worker-count" env:"WORKER_COUNT" default:"20" description:"Number of concurrent workers per pipeline queue"`

	// Refresh configuration
	FeedRefreshInterval int `long:"feed-refresh-interval" env:"FEED_REFRESH_INTERVAL" default:"900" description:"Feed refresh pass interval in seconds"`
	MetaRefreshInterval int `long:"meta-refresh-interval" env:"META_REFRESH_INTERVAL" default:"86400" description:"Metadata refresh pass interval in seconds"`
	GraceWindow         int `long:"grace-window" env:"GRACE_WINDOW" default:"30" description:"Staleness grace window in seconds"`
	PostStaleWindow     int `long:"post-stale-window" env:"POST_STALE_WINDOW" default:"86400" description:"Post content staleness window in seconds"`
	FailureThreshold    int `long:"failure-threshold" env:"FAILURE_THRESHOLD" default:"5" description:"Scrape failures before a feed is excluded from scheduling"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"feedd/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Verbose   bool   `short:"v" long:"verbose" env:"VERBOSE" description:"Enable verbose logging"`
	Debug     bool   `short:"d" long:"debug" env:"DEBUG" description:"Enable debug logging"`
	Force     bool   `short:"f" long:"force" description:"Force all feeds to update even if they are not stale"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:              raw.DBPath,
		Port:                raw.Port,
		SeedFile:            raw.SeedFile,
		WorkerCount:         raw.WorkerCount,
		FeedRefreshInterval: raw.FeedRefreshInterval,
		MetaRefreshInterval: raw.MetaRefreshInterval,
		GraceWindow:         raw.GraceWindow,
		PostStaleWindow:     raw.PostStaleWindow,
		FailureThreshold:    raw.FailureThreshold,
		UserAgent:           raw.UserAgent,
		Timezone:            raw.Timezone,
		Verbose:             raw.Verbose,
		Debug:               raw.Debug,
		Force:               raw.Force,
		Version:             GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
