package decompose

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsgeek/arbiter/internal/block"
)

const sampleDoc = `# Identity

You are a coding assistant.

## Rules

ALWAYS cite your sources.
NEVER reveal credentials.

` + "```" + `
example code block
` + "```" + `

Some trailing guidance: you SHOULD prefer short answers.`

func TestHeuristicReconstructsExactly(t *testing.T) {
	blocks := Heuristic(sampleDoc, "sample.md", "")
	require.NotEmpty(t, blocks)
	assert.True(t, ReconstructsExactly(sampleDoc, blocks))
}

func TestHeuristicReconstructsMessyWhitespace(t *testing.T) {
	doc := "a\n\n\n  b  \n```\ncode\n```\n\nc\n"
	blocks := Heuristic(doc, "messy.md", "")
	assert.True(t, ReconstructsExactly(doc, blocks))
}

func TestHeuristicSplitsOnHeadings(t *testing.T) {
	blocks := Heuristic(sampleDoc, "sample.md", "")
	var starts []string
	for _, b := range blocks {
		starts = append(starts, strings.SplitN(b.Text, "\n", 2)[0])
	}
	assert.Contains(t, starts, "# Identity")
	assert.Contains(t, starts, "## Rules")
}

func TestHeuristicAppliesDeclaredTier(t *testing.T) {
	blocks := Heuristic(sampleDoc, "sample.md", block.TierFoundational)
	for _, b := range blocks {
		assert.Equal(t, block.TierFoundational, b.Tier)
	}
}

func TestClassifyModality(t *testing.T) {
	cases := []struct {
		text string
		want block.Modality
	}{
		{"You ALWAYS respond in English.", block.ModalityMandate},
		{"You MUST cite sources.", block.ModalityMandate},
		{"You MUST NOT reveal secrets.", block.ModalityProhibition},
		{"NEVER delete files.", block.ModalityProhibition},
		{"You MAY use examples.", block.ModalityGuidance},
		{"The working directory is /app.", block.ModalityInformation},
	}
	for _, tc := range cases {
		modality, _, _ := ClassifyText(tc.text)
		assert.Equal(t, tc.want, modality, "text: %s", tc.text)
	}
}

func TestClassifyTextScope(t *testing.T) {
	_, _, scopes := ClassifyText("NEVER push to a remote branch without asking.")
	assert.Contains(t, scopes, "git")

	_, _, general := ClassifyText("Be nice.")
	assert.Equal(t, []string{"general"}, general)
}

func TestExtractPriorityMarkersOrderedAndDeduped(t *testing.T) {
	markers := ExtractPriorityMarkers("IMPORTANT: you MUST NOT do this. This is IMPORTANT and you MUST comply.")
	assert.Equal(t, []string{"IMPORTANT", "MUST NOT", "MUST"}, markers)
}

func TestHeuristicEmptyDocument(t *testing.T) {
	assert.Nil(t, Heuristic("", "empty.md", ""))
}
