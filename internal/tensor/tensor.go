// Package tensor holds the interference index: a sparse mapping over
// (blockA, blockB, rule) populated only for pairs that passed a rule's
// pre-filter. Absence of an entry is not evidence of no conflict, only that
// the pair was excluded from evaluation.
package tensor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fsgeek/arbiter/internal/block"
)

// Finding is the output of one (blockA, blockB, rule) evaluation, or of one
// exploratory pass (in which case SubjectA is "whole-document" and Rule is
// empty).
type Finding struct {
	SubjectA      string           `json:"subject_a"`
	SubjectB      string           `json:"subject_b,omitempty"`
	Rule          string           `json:"rule,omitempty"`
	Category      string           `json:"category,omitempty"` // Freeform, exploratory findings only
	Score         float64          `json:"score"`
	Severity      block.Severity   `json:"severity,omitempty"`   // Impact scale, rule findings only
	Confidence    block.Confidence `json:"confidence,omitempty"` // Epistemic scale, exploratory findings only
	Explanation   string           `json:"explanation,omitempty"`
	SourceBackend string           `json:"source_backend,omitempty"` // Empty for structural findings
	Raw           string           `json:"-"`                        // Unmodified judgment text, kept for audit
	Static        bool             `json:"static"`                   // True if no backend call was involved
	Pass          int              `json:"pass,omitempty"`           // Exploratory pass number
}

// WeightedScore is the finding's score weighted by severity, the ordering
// used for ranking rule findings. Exploratory findings are not comparable on
// this scale.
func (f *Finding) WeightedScore() float64 {
	return f.Score * f.Severity.Weight()
}

func key(a, b, rule string) string {
	// Symmetric over the block pair.
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b + "\x00" + rule
}

// Index is the sparse interference index. Entries are merged by
// (blockA, blockB, rule) key, so completion order of a concurrent evaluation
// never causes lost updates. Not safe for concurrent mutation; the evaluator
// that owns an Index merges into it from a single goroutine.
type Index struct {
	BlockIDs  []string `json:"block_ids"`
	RuleNames []string `json:"rule_names"`
	entries   map[string]*Finding
	order     []string
}

// NewIndex creates an index over the given axes.
func NewIndex(blockIDs, ruleNames []string) *Index {
	return &Index{
		BlockIDs:  blockIDs,
		RuleNames: ruleNames,
		entries:   make(map[string]*Finding),
	}
}

// Add merges a finding, keyed by its (subjectA, subjectB, rule) triple.
// The caller guarantees the pair passed the rule's pre-filter; the index
// itself never re-checks.
func (x *Index) Add(f *Finding) {
	k := key(f.SubjectA, f.SubjectB, f.Rule)
	if _, exists := x.entries[k]; !exists {
		x.order = append(x.order, k)
	}
	x.entries[k] = f
}

// Entries returns all findings in insertion order.
func (x *Index) Entries() []*Finding {
	out := make([]*Finding, 0, len(x.entries))
	for _, k := range x.order {
		out = append(out, x.entries[k])
	}
	return out
}

// Lookup returns the finding for a triple, if present. Symmetric over the
// block pair.
func (x *Index) Lookup(a, b, rule string) (*Finding, bool) {
	f, ok := x.entries[key(a, b, rule)]
	return f, ok
}

// Len reports the number of stored findings.
func (x *Index) Len() int { return len(x.entries) }

// BySeverity groups findings by severity level.
func (x *Index) BySeverity() map[block.Severity][]*Finding {
	out := make(map[block.Severity][]*Finding)
	for _, f := range x.Entries() {
		out[f.Severity] = append(out[f.Severity], f)
	}
	return out
}

// ByRule groups findings by rule name.
func (x *Index) ByRule() map[string][]*Finding {
	out := make(map[string][]*Finding)
	for _, f := range x.Entries() {
		out[f.Rule] = append(out[f.Rule], f)
	}
	return out
}

// ByBlock returns every finding involving a block.
func (x *Index) ByBlock(id string) []*Finding {
	var out []*Finding
	for _, f := range x.Entries() {
		if f.SubjectA == id || f.SubjectB == id {
			out = append(out, f)
		}
	}
	return out
}

// TopN returns the n highest findings by severity-weighted score.
func (x *Index) TopN(n int) []*Finding {
	entries := x.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].WeightedScore() > entries[j].WeightedScore()
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// SummaryScore is the maximum severity-weighted score across all findings,
// 0 when the index is empty.
func (x *Index) SummaryScore() float64 {
	max := 0.0
	for _, f := range x.entries {
		if w := f.WeightedScore(); w > max {
			max = w
		}
	}
	return max
}

// Shape is the logical (nBlocks, nBlocks, nRules) extent of the index.
func (x *Index) Shape() (int, int, int) {
	n := len(x.BlockIDs)
	return n, n, len(x.RuleNames)
}

// Density is the fraction of possible (unordered pair, rule) cells that hold
// a finding.
func (x *Index) Density() float64 {
	n := len(x.BlockIDs)
	r := len(x.RuleNames)
	possible := n * (n - 1) / 2 * r
	if possible == 0 {
		return 0
	}
	return float64(len(x.entries)) / float64(possible)
}

type indexJSON struct {
	BlockIDs  []string   `json:"block_ids"`
	RuleNames []string   `json:"rule_names"`
	Findings  []*Finding `json:"findings"`
}

// MarshalJSON serializes the index as a finding list plus its axes.
func (x *Index) MarshalJSON() ([]byte, error) {
	return json.Marshal(indexJSON{
		BlockIDs:  x.BlockIDs,
		RuleNames: x.RuleNames,
		Findings:  x.Entries(),
	})
}

// UnmarshalJSON restores an index from its serialized form.
func (x *Index) UnmarshalJSON(data []byte) error {
	var ij indexJSON
	if err := json.Unmarshal(data, &ij); err != nil {
		return err
	}
	x.BlockIDs = ij.BlockIDs
	x.RuleNames = ij.RuleNames
	x.entries = make(map[string]*Finding)
	x.order = nil
	for _, f := range ij.Findings {
		x.Add(f)
	}
	return nil
}

// SummaryReport renders a human-readable summary of the index.
func (x *Index) SummaryReport() string {
	if x.Len() == 0 {
		return "No interference detected."
	}

	var sb strings.Builder
	n, _, r := x.Shape()
	fmt.Fprintf(&sb, "Interference index: (%d, %d, %d) shape, %d entr(ies)\n", n, n, r, x.Len())
	fmt.Fprintf(&sb, "Summary score: %.2f\n", x.SummaryScore())
	fmt.Fprintf(&sb, "Density: %.1f%%\n\n", x.Density()*100)

	bySev := x.BySeverity()
	for _, sev := range []block.Severity{block.SeverityCritical, block.SeverityMajor, block.SeverityMinor, block.SeverityUnknown} {
		findings := bySev[sev]
		if len(findings) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "  %s: %d finding(s)\n", sev, len(findings))
		sort.SliceStable(findings, func(i, j int) bool { return findings[i].Score > findings[j].Score })
		for i, f := range findings {
			if i == 5 {
				break
			}
			fmt.Fprintf(&sb, "    %s <-> %s [%s]: %.2f\n", f.SubjectA, f.SubjectB, f.Rule, f.Score)
			if f.Explanation != "" {
				expl := f.Explanation
				if len(expl) > 120 {
					expl = expl[:120]
				}
				fmt.Fprintf(&sb, "      %s\n", expl)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
