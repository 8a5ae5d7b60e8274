package storage

import (
	"context"

	"github.com/fsgeek/arbiter/internal/episode"
)

// Store combines run history, scour session history, and episodic memory.
type Store interface {
	RunStore
	ScourStore
	EpisodeStore
	Close() error
}

// RunStore defines operations for persisting analysis runs.
type RunStore interface {
	// SaveRun upserts a run with its blocks and findings.
	SaveRun(ctx context.Context, run *Run) error

	// ListRuns returns run headers, newest first.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// GetRun retrieves a full run by ID.
	GetRun(ctx context.Context, id string) (*Run, error)
}

// ScourStore defines operations for persisting scour sessions.
type ScourStore interface {
	// SaveScourSession upserts a session with its ordered passes.
	SaveScourSession(ctx context.Context, sess *ScourSession) error

	// GetScourSession retrieves a session by ID, passes included.
	GetScourSession(ctx context.Context, id string) (*ScourSession, error)

	// ListScourSessions returns session headers, newest first.
	ListScourSessions(ctx context.Context, limit int) ([]*ScourSession, error)
}

// EpisodeStore defines operations for episodic memory.
type EpisodeStore interface {
	// SaveEpisode upserts one episode.
	SaveEpisode(ctx context.Context, ep episode.Episode) error

	// Episodes loads all stored episodes.
	Episodes(ctx context.Context) ([]episode.Episode, error)

	// RetrieveEpisodes returns episodes matching the query anchor.
	RetrieveEpisodes(ctx context.Context, query episode.Anchor, threshold float64) ([]episode.Episode, error)
}
