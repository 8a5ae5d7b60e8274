package evaluate

import (
	"strings"

	"github.com/fsgeek/arbiter/internal/block"
	"github.com/fsgeek/arbiter/internal/rules"
)

// Structural evaluators are pure predicates over a block pair: no backend
// call, no cost, fully reproducible. They run first; judgment-based rules
// only see the residual pair set.

type structuralFn func(a, b *block.Block) float64

var structuralEvaluators = map[rules.Type]structuralFn{
	rules.PriorityAmbiguity:   evalPriorityMarkerAmbiguity,
	rules.VerbatimDuplication: evalVerbatimDuplication,
}

// evalPriorityMarkerAmbiguity scores competing precedence claims: both
// blocks carrying the same priority markers suggests ambiguity about which
// instruction wins.
func evalPriorityMarkerAmbiguity(a, b *block.Block) float64 {
	if len(a.PriorityMarkers) == 0 || len(b.PriorityMarkers) == 0 {
		return 0
	}
	shared := 0
	for _, m := range a.PriorityMarkers {
		for _, o := range b.PriorityMarkers {
			if m == o {
				shared++
				break
			}
		}
	}
	if shared == 0 {
		return 0.1 // Different markers, mild ambiguity
	}
	score := 0.3 + 0.1*float64(shared)
	if score > 1 {
		return 1
	}
	return score
}

// evalVerbatimDuplication scores text similarity. Below 0.5 similarity the
// score is zero; above it, the score scales linearly to 1.0 for identical
// text.
func evalVerbatimDuplication(a, b *block.Block) float64 {
	ratio := similarity(a.Text, b.Text)
	if ratio < 0.5 {
		return 0
	}
	return (ratio - 0.5) * 2
}

// similarity is a Dice coefficient over word bigrams: cheap, symmetric, and
// close enough to sequence-matching for near-duplicate prose detection.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ba := bigrams(a)
	bb := bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}
	matches := 0
	for g, n := range ba {
		if m, ok := bb[g]; ok {
			if m < n {
				matches += m
			} else {
				matches += n
			}
		}
	}
	total := 0
	for _, n := range ba {
		total += n
	}
	for _, n := range bb {
		total += n
	}
	return 2 * float64(matches) / float64(total)
}

func bigrams(text string) map[string]int {
	words := strings.Fields(strings.ToLower(text))
	out := make(map[string]int)
	if len(words) == 1 {
		out[words[0]]++
		return out
	}
	for i := 0; i+1 < len(words); i++ {
		out[words[i]+" "+words[i+1]]++
	}
	return out
}
