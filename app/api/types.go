package api

import (
	"time"

	"github.com/driftwoodapp/feedd/app/database"
	"github.com/driftwoodapp/feedd/app/feed"
	"github.com/driftwoodapp/feedd/app/pipeline"
)

type ExtractorInterface interface {
	Run(data []byte) (*feed.ExtractedContent, error)
}

var _ ExtractorInterface = (*feed.ContentExtractor)(nil)

type Handler struct {
	feedRepo   database.FeedRepository
	postRepo   database.PostRepository
	client     *feed.Client
	discoverer *feed.Discoverer
	extractor  ExtractorInterface
	jobs       pipeline.PipelineInterface

	postStaleWindow time.Duration
	postPageSize    int
}

type subscribeRequest struct {
	URL string `json:"url" binding:"required"`
}
