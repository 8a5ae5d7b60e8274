package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsgeek/arbiter/internal/backend"
	"github.com/fsgeek/arbiter/internal/block"
	"github.com/fsgeek/arbiter/internal/evaluate"
	"github.com/fsgeek/arbiter/internal/rules"
)

func builtinAnalyzer(t *testing.T, opts ...evaluate.Option) *Analyzer {
	t.Helper()
	cs, err := rules.Builtin().Compile()
	require.NoError(t, err)
	return NewAnalyzer(cs, opts...)
}

func TestAnalyzeStructuralDetectsDuplication(t *testing.T) {
	a := builtinAnalyzer(t)
	blocks := []*block.Block{
		{ID: "b1", Text: "Run the test suite before every release."},
		{ID: "b2", Text: "Run the test suite before every release."},
		{ID: "b3", Text: "The working directory is reset between sessions."},
	}

	res := a.AnalyzeStructural(blocks)
	require.NotNil(t, res.Index)

	_, ok := res.Index.Lookup("b1", "b2", "verbatim-duplication")
	assert.True(t, ok)
	assert.Greater(t, res.Score, 0.0)
	assert.Contains(t, res.Summary, "b1 <-> b2")
}

func TestAnalyzeStructuralCleanDocument(t *testing.T) {
	a := builtinAnalyzer(t)
	blocks := []*block.Block{
		{ID: "b1", Text: "Use tabs for indentation in Makefiles."},
		{ID: "b2", Text: "Close the database handle when finished."},
	}

	res := a.AnalyzeStructural(blocks)
	assert.Zero(t, res.Index.Len())
	assert.Zero(t, res.Score)
}

func TestAnalyzeFullFlagsContradiction(t *testing.T) {
	a := builtinAnalyzer(t, evaluate.WithConcurrency(1), evaluate.WithThreshold(0.5))
	blocks := []*block.Block{
		{
			ID:       "b1",
			Text:     "You MUST commit after every completed task.",
			Modality: block.ModalityMandate,
			Scope:    []string{"git"},
		},
		{
			ID:       "b2",
			Text:     "NEVER commit without explicit user approval.",
			Modality: block.ModalityProhibition,
			Scope:    []string{"git"},
		},
	}
	// Three judged pairs survive the pre-filter for this pair of blocks:
	// the contradiction rule, scope overlap, and implicit dependency, in
	// rule declaration order.
	fake := backend.NewScripted("fake",
		backend.Respond(`{"score": 0.95, "explanation": "commit is both required and forbidden"}`),
		backend.Respond(`{"score": 0.2, "explanation": "same topic, compatible guidance"}`),
		backend.Respond(`{"score": 0.1, "explanation": "no hidden dependency"}`),
	)

	res, err := a.Analyze(context.Background(), blocks, fake)
	require.NoError(t, err)
	assert.Equal(t, 3, fake.CallCount())

	f, ok := res.Index.Lookup("b1", "b2", "mandate-prohibition-conflict")
	require.True(t, ok)
	assert.InDelta(t, 0.95, f.Score, 1e-9)

	// The sub-threshold scores never make it into the index.
	_, ok = res.Index.Lookup("b1", "b2", "scope-overlap-redundancy")
	assert.False(t, ok)

	assert.InDelta(t, 0.95, res.Score, 1e-9)
	assert.Contains(t, res.Summary, "critical")
}

func TestDecomposeWithoutBackendUsesHeuristic(t *testing.T) {
	a := builtinAnalyzer(t)
	doc := "## Git Safety\n\nNEVER force push to main.\n\n## Workflow\n\nYou MUST commit after every completed task."

	blocks, err := a.Decompose(context.Background(), nil, doc, "agent.md")
	require.NoError(t, err)
	require.NotEmpty(t, blocks)

	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	assert.Equal(t, doc, strings.Join(texts, "\n"))
}

func TestResultRun(t *testing.T) {
	a := builtinAnalyzer(t)
	blocks := []*block.Block{
		{ID: "b1", Text: "same text here please"},
		{ID: "b2", Text: "same text here please"},
	}
	res := a.AnalyzeStructural(blocks)

	run := res.Run("agent.md")
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "agent.md", run.Source)
	assert.False(t, run.CreatedAt.IsZero())
	assert.Len(t, run.Blocks, 2)
	assert.Same(t, res.Index, run.Index)
	assert.Equal(t, res.Score, run.Score)
}
