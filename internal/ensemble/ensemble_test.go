package ensemble

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsgeek/arbiter/internal/backend"
)

const (
	cleanVerdict = `{"has_conflict": false, "conflicts": [], "output": "resolved answer"}`
	otherClean   = `{"has_conflict": false, "conflicts": [], "output": "a different answer"}`
	conflictVerdict = `{
	  "has_conflict": true,
	  "conflicts": [
	    {"source": "prefer tabs", "target": "prefer spaces", "description": "indentation entries contradict", "resolution_hint": "pick one convention"}
	  ],
	  "output": null
	}`
	mirroredConflict = `{
	  "has_conflict": true,
	  "conflicts": [
	    {"source": "Prefer  spaces", "target": "PREFER TABS", "description": "same collision, opposite direction"}
	  ],
	  "output": null
	}`
)

func testRequest(t *testing.T) Request {
	t.Helper()
	req, err := NewRequest(
		SystemLayer{Name: "base", Rules: []string{"Answer only from the domain knowledge."}},
		DomainLayer{Name: "style", Entries: []string{"prefer tabs", "prefer spaces"}},
		"How should I indent?",
	)
	require.NoError(t, err)
	return req
}

func TestNewRequestRejectsInconsistentSystemLayer(t *testing.T) {
	_, err := NewRequest(
		SystemLayer{Name: "broken", Rules: []string{
			"You MUST commit after every change.",
			"NEVER commit without explicit user approval.",
		}},
		DomainLayer{},
		"q",
	)
	var fce *FoundationalConsistencyError
	require.ErrorAs(t, err, &fce)
	assert.Equal(t, "broken", fce.Layer)
	assert.Equal(t, "git", fce.Scope)
}

func TestNewRequestAllowsUnrelatedModalities(t *testing.T) {
	// Opposing modalities in unrelated scopes are not a contradiction.
	_, err := NewRequest(
		SystemLayer{Name: "ok", Rules: []string{
			"You MUST validate credentials before use.",
			"NEVER force push to shared branches.",
		}},
		DomainLayer{},
		"q",
	)
	require.NoError(t, err)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(testRequest(t))
	assert.Contains(t, prompt, "- Answer only from the domain knowledge.")
	assert.Contains(t, prompt, "- prefer tabs")
	assert.Contains(t, prompt, "How should I indent?")
	assert.Contains(t, prompt, `"has_conflict"`)

	empty, err := NewRequest(SystemLayer{}, DomainLayer{}, "q")
	require.NoError(t, err)
	assert.Contains(t, BuildPrompt(empty), "(none)")
}

func TestEvaluateUnanimousClean(t *testing.T) {
	e, err := New([]backend.Backend{
		backend.NewScripted("first", backend.Respond(cleanVerdict)),
		backend.NewScripted("second", backend.Respond(otherClean)),
	})
	require.NoError(t, err)

	res, err := e.Evaluate(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, "resolved answer", res.Output) // panel order decides
	assert.Empty(t, res.Conflicts)
	assert.Len(t, res.Verdicts, 2)
}

func TestEvaluateSingleFlaggerWins(t *testing.T) {
	e, err := New([]backend.Backend{
		backend.NewScripted("lenient", backend.Respond(cleanVerdict)),
		backend.NewScripted("strict", backend.Respond(conflictVerdict)),
	})
	require.NoError(t, err)

	res, err := e.Evaluate(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.False(t, res.Resolved)
	assert.Empty(t, res.Output)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "prefer tabs", res.Conflicts[0].Source)
}

func TestEvaluateDeduplicatesMirroredConflicts(t *testing.T) {
	e, err := New([]backend.Backend{
		backend.NewScripted("a", backend.Respond(conflictVerdict)),
		backend.NewScripted("b", backend.Respond(mirroredConflict)),
	})
	require.NoError(t, err)

	res, err := e.Evaluate(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.False(t, res.Resolved)
	assert.Len(t, res.Conflicts, 1)
}

func TestEvaluateToleratesPartialFailure(t *testing.T) {
	e, err := New([]backend.Backend{
		backend.NewScripted("down"), // exhausted script fails the call
		backend.NewScripted("up", backend.Respond(conflictVerdict)),
	})
	require.NoError(t, err)

	res, err := e.Evaluate(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.False(t, res.Resolved)
	require.Len(t, res.BackendErrors, 1)
	assert.Equal(t, "down", res.BackendErrors[0].Backend)
	assert.Len(t, res.Verdicts, 1)
}

func TestEvaluateAllBackendsFailed(t *testing.T) {
	e, err := New([]backend.Backend{
		backend.NewScripted("a"),
		backend.NewScripted("b"),
	})
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), testRequest(t))
	var eu *EnsembleUnavailableError
	require.ErrorAs(t, err, &eu)
	assert.Len(t, eu.Errors, 2)
}

func TestNewRequiresBackends(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestBackendsReportsPanelOrder(t *testing.T) {
	e, err := New([]backend.Backend{
		backend.NewScripted("first"),
		backend.NewScripted("second"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, e.Backends())
}
