package pipeline

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/driftwoodapp/feedd/app/feed"
)

type Kind string

const (
	KindFeed Kind = "feed"
	KindMeta Kind = "meta"
)

var ErrInvalidJob = errors.New("invalid job")

// Job travels through a two-phase pipeline: the start phase does the
// network work (fetch+parse or page enrichment) and hands the result to
// the end phase, which persists it. A Job with no Result or Page is a
// start-phase job.
type Job struct {
	ID     string
	Kind   Kind
	FeedID string
	URL    string
	Force  bool

	// Populated by the start phase before handing off to the end phase.
	Result *feed.Result
	Page   *feed.PageMeta
}

func NewJob(kind Kind, feedID, url string, force bool) Job {
	return Job{
		ID:     fmt.Sprintf("%d-%d", time.Now().UnixNano(), rand.Intn(10000)),
		Kind:   kind,
		FeedID: feedID,
		URL:    url,
		Force:  force,
	}
}

func (j Job) Validate() error {
	if j.Kind != KindFeed && j.Kind != KindMeta {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidJob, j.Kind)
	}
	if j.FeedID == "" {
		return fmt.Errorf("%w: missing feed id", ErrInvalidJob)
	}
	return nil
}
