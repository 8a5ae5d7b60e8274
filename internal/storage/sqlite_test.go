package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsgeek/arbiter/internal/block"
	"github.com/fsgeek/arbiter/internal/episode"
	"github.com/fsgeek/arbiter/internal/scour"
	"github.com/fsgeek/arbiter/internal/tensor"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveRun_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	idx := tensor.NewIndex([]string{"b1", "b2"}, []string{"mandate-prohibition-conflict"})
	idx.Add(&tensor.Finding{
		SubjectA:      "b1",
		SubjectB:      "b2",
		Rule:          "mandate-prohibition-conflict",
		Category:      "direct-contradiction",
		Score:         0.9,
		Severity:      block.SeverityCritical,
		Explanation:   "opposing obligations on the same scope",
		SourceBackend: "scripted",
	})

	run := &Run{
		ID:        "run-1",
		Source:    "agent.md",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Blocks: []block.Block{
			{ID: "b1", Source: "agent.md", Tier: block.TierFoundational, Category: block.CategoryBehavioral,
				Modality: block.ModalityMandate, Text: "ALWAYS cite sources.", Scope: []string{"citation"},
				PriorityMarkers: []string{"ALWAYS"}, LineStart: 1, LineEnd: 1},
			{ID: "b2", Source: "agent.md", Tier: block.TierFoundational, Category: block.CategoryBehavioral,
				Modality: block.ModalityProhibition, Text: "NEVER cite sources.", Scope: []string{"citation"},
				PriorityMarkers: []string{"NEVER"}, LineStart: 2, LineEnd: 2},
		},
		Index:   idx,
		Score:   0.9,
		Summary: "1 finding",
	}
	require.NoError(t, store.SaveRun(ctx, run))

	loaded, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "agent.md", loaded.Source)
	require.Len(t, loaded.Blocks, 2)
	assert.Equal(t, []string{"citation"}, loaded.Blocks[0].Scope)
	assert.Equal(t, block.ModalityProhibition, loaded.Blocks[1].Modality)

	require.NotNil(t, loaded.Index)
	f, ok := loaded.Index.Lookup("b1", "b2", "mandate-prohibition-conflict")
	require.True(t, ok)
	assert.Equal(t, block.SeverityCritical, f.Severity)
	assert.InDelta(t, 0.9, f.Score, 1e-9)
}

func TestSQLiteStore_SaveRun_NilIndexPersistsBlocks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &Run{
		ID:        "run-partial",
		Source:    "agent.md",
		CreatedAt: time.Now().UTC(),
		Blocks: []block.Block{
			{ID: "b1", Source: "agent.md", Text: "You are a helpful assistant.", LineStart: 1, LineEnd: 1},
		},
	}
	require.NoError(t, store.SaveRun(ctx, run))

	loaded, err := store.GetRun(ctx, "run-partial")
	require.NoError(t, err)
	assert.Len(t, loaded.Blocks, 1)
	assert.Nil(t, loaded.Index)
}

func TestSQLiteStore_ScourSession_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state := &scour.State{}
	state.Add(scour.Report{
		Backend: "scripted-a",
		Findings: []scour.Finding{
			{Description: "duplicate citation rule", Category: "redundancy", Confidence: block.ConfidenceNotable},
		},
		ShouldContinue: true,
	})
	state.Add(scour.Report{Backend: "scripted-b", ShouldContinue: false})

	sess := &ScourSession{
		ID:        "scour-1",
		Source:    "agent.md",
		Outcome:   scour.OutcomeConverged,
		CreatedAt: time.Now().UTC(),
		State:     state,
	}
	require.NoError(t, store.SaveScourSession(ctx, sess))

	loaded, err := store.GetScourSession(ctx, "scour-1")
	require.NoError(t, err)
	assert.Equal(t, scour.OutcomeConverged, loaded.Outcome)
	require.Len(t, loaded.State.Reports, 2)
	assert.Equal(t, 1, loaded.State.Reports[0].Pass)
	assert.Equal(t, "scripted-b", loaded.State.Reports[1].Backend)
	assert.Equal(t, 1, loaded.State.FindingCount())
}

func TestSQLiteStore_Episodes_RetrieveByAnchor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	near := episode.New("session-1", "provenance tension", "conflicting source-of-truth claims",
		episode.Anchor{Dimensions: map[string]float64{"provenance": 0.9, "trust": 0.4}})
	far := episode.New("session-2", "formatting drift", "output format disagreement",
		episode.Anchor{Dimensions: map[string]float64{"formatting": 0.8}})
	require.NoError(t, store.SaveEpisode(ctx, near))
	require.NoError(t, store.SaveEpisode(ctx, far))

	query := episode.Anchor{Dimensions: map[string]float64{"provenance": 0.8}}
	matched, err := store.RetrieveEpisodes(ctx, query, 0.3)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, near.ID, matched[0].ID)
}
