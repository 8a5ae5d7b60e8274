package tensor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsgeek/arbiter/internal/block"
)

func sampleIndex() *Index {
	idx := NewIndex([]string{"b1", "b2", "b3"}, []string{"contradiction", "duplication"})
	idx.Add(&Finding{SubjectA: "b1", SubjectB: "b2", Rule: "contradiction", Score: 0.9, Severity: block.SeverityCritical})
	idx.Add(&Finding{SubjectA: "b2", SubjectB: "b3", Rule: "duplication", Score: 0.8, Severity: block.SeverityMinor, Static: true})
	return idx
}

func TestIndexLookupIsSymmetric(t *testing.T) {
	idx := sampleIndex()

	f1, ok := idx.Lookup("b1", "b2", "contradiction")
	require.True(t, ok)
	f2, ok := idx.Lookup("b2", "b1", "contradiction")
	require.True(t, ok)
	assert.Same(t, f1, f2)

	_, ok = idx.Lookup("b1", "b3", "contradiction")
	assert.False(t, ok)
}

func TestIndexAddMergesByKey(t *testing.T) {
	idx := sampleIndex()
	// Re-adding the reversed pair overwrites instead of duplicating.
	idx.Add(&Finding{SubjectA: "b2", SubjectB: "b1", Rule: "contradiction", Score: 0.4, Severity: block.SeverityMajor})

	assert.Equal(t, 2, idx.Len())
	f, ok := idx.Lookup("b1", "b2", "contradiction")
	require.True(t, ok)
	assert.InDelta(t, 0.4, f.Score, 1e-9)
}

func TestSummaryScoreIsMaxWeighted(t *testing.T) {
	idx := sampleIndex()
	// critical 0.9*1.0 beats minor 0.8*0.3
	assert.InDelta(t, 0.9, idx.SummaryScore(), 1e-9)

	empty := NewIndex(nil, nil)
	assert.Zero(t, empty.SummaryScore())
}

func TestTopNOrdersByWeightedScore(t *testing.T) {
	idx := sampleIndex()
	top := idx.TopN(1)
	require.Len(t, top, 1)
	assert.Equal(t, "contradiction", top[0].Rule)
}

func TestDensity(t *testing.T) {
	idx := sampleIndex()
	// 3 blocks, 2 rules: 3 unordered pairs * 2 rules = 6 cells, 2 filled.
	assert.InDelta(t, 2.0/6.0, idx.Density(), 1e-9)
	assert.Zero(t, NewIndex(nil, nil).Density())
}

func TestByBlockAndByRule(t *testing.T) {
	idx := sampleIndex()
	assert.Len(t, idx.ByBlock("b2"), 2)
	assert.Len(t, idx.ByBlock("b1"), 1)
	assert.Len(t, idx.ByRule()["duplication"], 1)
	assert.Len(t, idx.BySeverity()[block.SeverityCritical], 1)
}

func TestIndexJSONRoundTrip(t *testing.T) {
	idx := sampleIndex()
	data, err := json.Marshal(idx)
	require.NoError(t, err)

	var restored Index
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, idx.Len(), restored.Len())
	assert.Equal(t, idx.BlockIDs, restored.BlockIDs)

	f, ok := restored.Lookup("b1", "b2", "contradiction")
	require.True(t, ok)
	assert.Equal(t, block.SeverityCritical, f.Severity)
}

func TestSummaryReport(t *testing.T) {
	assert.Equal(t, "No interference detected.", NewIndex(nil, nil).SummaryReport())

	report := sampleIndex().SummaryReport()
	assert.Contains(t, report, "critical")
	assert.Contains(t, report, "b1 <-> b2")
}
