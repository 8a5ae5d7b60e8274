package episode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnchorSimilarity(t *testing.T) {
	a := Anchor{Dimensions: map[string]float64{"provenance": 0.9, "trust": 0.7}}

	// Identical anchors are perfectly similar.
	assert.InDelta(t, 1.0, a.Similarity(a), 1e-9)

	// Similarity is computed only over the shared dimensions; dimensions
	// one side lacks do not drag the score down.
	b := Anchor{Dimensions: map[string]float64{"provenance": 0.9, "formatting": 1.0}}
	assert.InDelta(t, 1.0, a.Similarity(b), 1e-9)

	// No shared dimensions means no similarity at all.
	c := Anchor{Dimensions: map[string]float64{"latency": 0.5}}
	assert.Zero(t, a.Similarity(c))

	// A zero-magnitude projection cannot be normalized.
	d := Anchor{Dimensions: map[string]float64{"provenance": 0}}
	assert.Zero(t, a.Similarity(d))
}

func TestSimilarityIsSymmetric(t *testing.T) {
	a := Anchor{Dimensions: map[string]float64{"provenance": 0.9, "trust": 0.2}}
	b := Anchor{Dimensions: map[string]float64{"provenance": 0.3, "trust": 0.8, "other": 1.0}}
	assert.InDelta(t, a.Similarity(b), b.Similarity(a), 1e-9)
}

func TestNewFillsIdentity(t *testing.T) {
	ep := New("session-1", "title", "narrative", Anchor{})
	assert.NotEmpty(t, ep.ID)
	assert.False(t, ep.Timestamp.IsZero())
	assert.Equal(t, "session-1", ep.Session)

	other := New("session-1", "title", "narrative", Anchor{})
	assert.NotEqual(t, ep.ID, other.ID)
}

func TestRetrieveSortsBySimilarity(t *testing.T) {
	episodes := []Episode{
		{Title: "weak", Anchor: Anchor{Dimensions: map[string]float64{"provenance": 0.2, "trust": 0.9}}},
		{Title: "strong", Anchor: Anchor{Dimensions: map[string]float64{"provenance": 0.9, "trust": 0.1}}},
		{Title: "unrelated", Anchor: Anchor{Dimensions: map[string]float64{"formatting": 1.0}}},
	}
	query := Anchor{Dimensions: map[string]float64{"provenance": 1.0, "trust": 0.1}}

	got := Retrieve(episodes, query, 0.3)
	require.Len(t, got, 2)
	assert.Equal(t, "strong", got[0].Title)
	assert.Equal(t, "weak", got[1].Title)
}

func TestRetrieveByDimension(t *testing.T) {
	episodes := []Episode{
		{Title: "mild", Anchor: Anchor{Dimensions: map[string]float64{"conflict": 0.4}}},
		{Title: "intense", Anchor: Anchor{Dimensions: map[string]float64{"conflict": 0.95}}},
		{Title: "none", Anchor: Anchor{Dimensions: map[string]float64{"trust": 1.0}}},
	}

	got := RetrieveByDimension(episodes, "conflict", 0.3)
	require.Len(t, got, 2)
	assert.Equal(t, "intense", got[0].Title)

	assert.Empty(t, RetrieveByDimension(episodes, "conflict", 0.99))
}
