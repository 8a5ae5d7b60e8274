package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityRankOrdering(t *testing.T) {
	assert.Less(t, SeverityUnknown.Rank(), SeverityMinor.Rank())
	assert.Less(t, SeverityMinor.Rank(), SeverityMajor.Rank())
	assert.Less(t, SeverityMajor.Rank(), SeverityCritical.Rank())
}

func TestSeverityWeights(t *testing.T) {
	// Unknown outweighs Minor: an unparseable judgment is a louder signal
	// than a confirmed cosmetic issue.
	assert.Greater(t, SeverityUnknown.Weight(), SeverityMinor.Weight())
	assert.Equal(t, 1.0, SeverityCritical.Weight())
	assert.Equal(t, 0.5, Severity("bogus").Weight())
}

func TestConfidenceRankOrdering(t *testing.T) {
	assert.Less(t, ConfidenceCurious.Rank(), ConfidenceNotable.Rank())
	assert.Less(t, ConfidenceNotable.Rank(), ConfidenceConcerning.Rank())
	assert.Less(t, ConfidenceConcerning.Rank(), ConfidenceAlarming.Rank())
}

func TestScopesOverlap(t *testing.T) {
	a := &Block{Scope: []string{"git", "security"}}
	b := &Block{Scope: []string{"security"}}
	c := &Block{Scope: []string{"communication"}}

	assert.True(t, a.ScopesOverlap(b))
	assert.True(t, b.ScopesOverlap(a))
	assert.False(t, a.ScopesOverlap(c))
	assert.False(t, (&Block{}).ScopesOverlap(a))
}
