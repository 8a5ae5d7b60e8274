package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(profiles []Profile) []string {
	out := make([]string, len(profiles))
	for i, p := range profiles {
		out[i] = p.Name
	}
	return out
}

func TestSelectRanksMeasuredFirst(t *testing.T) {
	r := WithDefaults()
	ranked := r.Select("instruction", SelectOptions{})

	// Disqualified models never appear without opting in. Measured models
	// sort by detection rate; unmeasured ones trail in insertion order.
	assert.Equal(t, []string{
		"anthropic/claude-haiku-4.5",
		"google/gemini-2.0-flash",
		"x-ai/grok-3-mini",
		"qwen/qwen-2.5-72b",
		"ollama/llama3.1",
	}, names(ranked))
}

func TestSelectIncludeDisqualified(t *testing.T) {
	r := WithDefaults()
	ranked := r.Select("instruction", SelectOptions{IncludeDisqualified: true})

	// gpt-4o-mini ties haiku on detection and is cheaper, so it ranks
	// first once admitted.
	require.NotEmpty(t, ranked)
	assert.Equal(t, "openai/gpt-4o-mini", ranked[0].Name)
}

func TestSelectFalsePositiveCeiling(t *testing.T) {
	r := WithDefaults()
	ranked := r.Select("instruction", SelectOptions{
		IncludeDisqualified:  true,
		MaxFalsePositiveRate: 0.5,
	})
	assert.NotContains(t, names(ranked), "openai/gpt-4o-mini")
}

func TestSelectMinDetectionRate(t *testing.T) {
	r := WithDefaults()
	ranked := r.Select("instruction", SelectOptions{MinDetectionRate: 0.8})

	got := names(ranked)
	assert.NotContains(t, got, "x-ai/grok-3-mini")
	// Unmeasured profiles pass: absence of data is not a failing score.
	assert.Contains(t, got, "ollama/llama3.1")
}

func TestSelectBudgetCeiling(t *testing.T) {
	r := WithDefaults()
	ranked := r.Select("instruction", SelectOptions{BudgetUSD: 0.001})

	got := names(ranked)
	assert.NotContains(t, got, "anthropic/claude-haiku-4.5") // ~$0.0032 per call
	assert.Contains(t, got, "google/gemini-2.0-flash")
	// Unknown cost passes the ceiling.
	assert.Contains(t, got, "ollama/llama3.1")
}

func TestEstimatedCostPerCall(t *testing.T) {
	p := Profile{CostPerMillionIn: 1.0, CostPerMillionOut: 2.0}
	cost, known := p.EstimatedCostPerCall()
	require.True(t, known)
	assert.InDelta(t, 0.0025, cost, 1e-9) // 1500 in + 500 out tokens

	_, known = Profile{}.EstimatedCostPerCall()
	assert.False(t, known)
}

func TestGetUnknownProfile(t *testing.T) {
	r := WithDefaults()
	_, err := r.Get("nonexistent/model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model profile named")
}

func TestRegisterOverwritesKeepingOrder(t *testing.T) {
	r := New()
	r.Register(Profile{Name: "a"})
	r.Register(Profile{Name: "b"})
	r.Register(Profile{Name: "a", Disqualified: true})

	profiles := r.Profiles()
	require.Len(t, profiles, 2)
	assert.Equal(t, "a", profiles[0].Name)
	assert.True(t, profiles[0].Disqualified)
}

func TestMakeBackendReadsKeyFromEnv(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "test-key")
	r := WithDefaults()

	b, err := r.MakeBackend(context.Background(), "instruction", "anthropic/claude-haiku-4.5", SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-haiku-4.5", b.Name())
}

func TestMakeBackendMissingKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	r := WithDefaults()

	_, err := r.MakeBackend(context.Background(), "instruction", "anthropic/claude-haiku-4.5", SelectOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENROUTER_API_KEY")
}

func TestMakeEnsembleTopModels(t *testing.T) {
	r := New()
	r.Register(Profile{Name: "local/a", APIModelID: "a", Provider: "ollama"})
	r.Register(Profile{Name: "local/b", APIModelID: "b", Provider: "ollama"})
	r.Register(Profile{Name: "local/c", APIModelID: "c", Provider: "ollama"})

	e, err := r.MakeEnsemble(context.Background(), "instruction", 2, SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"local/a", "local/b"}, e.Backends())
}

func TestMakeEnsembleNoQualifyingModels(t *testing.T) {
	r := New()
	r.Register(Profile{Name: "bad", Provider: "ollama", Disqualified: true})

	_, err := r.MakeEnsemble(context.Background(), "instruction", 2, SelectOptions{})
	require.Error(t, err)
}
