// Package rules defines the interference rule language: which block pairs to
// look at, and how. A rule is either structural (a pure predicate, no backend
// cost) or judgment-based (a prompt template dispatched to a backend).
//
// Rule sets are compiled before use. A CompiledRuleSet is the static
// guarantee that the evaluator can run the rules without hitting structural
// errors.
package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fsgeek/arbiter/internal/block"
)

// Type identifies one interference class.
type Type string

const (
	DirectContradiction Type = "direct-contradiction"
	ScopeOverlap        Type = "scope-overlap"
	PriorityAmbiguity   Type = "priority-ambiguity"
	ImplicitDependency  Type = "implicit-dependency"
	VerbatimDuplication Type = "verbatim-duplication"
)

// Rule detects one interference pattern between two blocks.
type Rule struct {
	Name        string         `yaml:"name"`
	Type        Type           `yaml:"type"`
	Description string         `yaml:"description"`
	Severity    block.Severity `yaml:"severity"`

	// Pre-filter: which block pairs to check.
	RequiresScopeOverlap bool           `yaml:"requires_scope_overlap"`
	ModalityA            block.Modality `yaml:"modality_a,omitempty"` // empty = any
	ModalityB            block.Modality `yaml:"modality_b,omitempty"` // empty = any

	// RequiresBackend false means the rule is a pure structural predicate.
	RequiresBackend bool   `yaml:"requires_backend"`
	PromptTemplate  string `yaml:"prompt_template,omitempty"` // Contains %[1]s (block A text) and %[2]s (block B text)
}

// AppliesTo is the pre-filter: does this rule apply to the ordered pair
// (a, b)? Pairs that fail here never reach evaluation, which is what bounds
// cost to sub-quadratic in practice.
func (r *Rule) AppliesTo(a, b *block.Block) bool {
	if r.RequiresScopeOverlap && !a.ScopesOverlap(b) {
		return false
	}
	if r.ModalityA != "" && a.Modality != r.ModalityA {
		return false
	}
	if r.ModalityB != "" && b.Modality != r.ModalityB {
		return false
	}
	return true
}

// RenderPrompt fills the rule's prompt template with the pair's text.
// Returns "" for structural rules.
func (r *Rule) RenderPrompt(a, b *block.Block) string {
	if !r.RequiresBackend || r.PromptTemplate == "" {
		return ""
	}
	return fmt.Sprintf(r.PromptTemplate, a.Text, b.Text)
}

// CompilationError aggregates every problem found while compiling a rule
// set, not just the first.
type CompilationError struct {
	RuleSet string
	Issues  []string
}

func (e *CompilationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "rule set %q failed compilation with %d error(s):", e.RuleSet, len(e.Issues))
	for _, issue := range e.Issues {
		sb.WriteString("\n  - ")
		sb.WriteString(issue)
	}
	return sb.String()
}

// RuleSet is an unvalidated collection of rules. Must be compiled before use.
type RuleSet struct {
	Name  string  `yaml:"name"`
	Rules []*Rule `yaml:"rules"`
}

// Compile validates internal consistency and returns a CompiledRuleSet.
//
// Checks: no duplicate rule names; a structural rule must not carry a prompt
// template; a backend rule must carry one.
func (rs *RuleSet) Compile() (*CompiledRuleSet, error) {
	var issues []string

	seen := make(map[string]bool)
	for _, r := range rs.Rules {
		if seen[r.Name] {
			issues = append(issues, fmt.Sprintf("duplicate rule name: %q", r.Name))
		}
		seen[r.Name] = true

		if !r.RequiresBackend && r.PromptTemplate != "" {
			issues = append(issues, fmt.Sprintf("rule %q: structural rule must not have a prompt template", r.Name))
		}
		if r.RequiresBackend && r.PromptTemplate == "" {
			issues = append(issues, fmt.Sprintf("rule %q: backend rule must have a prompt template", r.Name))
		}
	}

	if len(issues) > 0 {
		return nil, &CompilationError{RuleSet: rs.Name, Issues: issues}
	}
	return &CompiledRuleSet{Name: rs.Name, Rules: append([]*Rule(nil), rs.Rules...)}, nil
}

// CompiledRuleSet is a validated, ready-to-execute rule set. Created only
// via RuleSet.Compile.
type CompiledRuleSet struct {
	Name  string
	Rules []*Rule
}

// StructuralRules returns the rules evaluable without a backend.
func (cs *CompiledRuleSet) StructuralRules() []*Rule {
	var out []*Rule
	for _, r := range cs.Rules {
		if !r.RequiresBackend {
			out = append(out, r)
		}
	}
	return out
}

// BackendRules returns the rules requiring backend judgment.
func (cs *CompiledRuleSet) BackendRules() []*Rule {
	var out []*Rule
	for _, r := range cs.Rules {
		if r.RequiresBackend {
			out = append(out, r)
		}
	}
	return out
}

// Pair is one (blockA, blockB, rule) triple that passed pre-filtering.
type Pair struct {
	A    *block.Block
	B    *block.Block
	Rule *Rule
}

// ApplicablePairs returns every triple that passes pre-filtering, over
// unordered pairs (no self-pairs, no duplicates). Asymmetric modality
// filters are tried in both orderings.
func (cs *CompiledRuleSet) ApplicablePairs(blocks []*block.Block) []Pair {
	var pairs []Pair
	for i, a := range blocks {
		for _, b := range blocks[i+1:] {
			for _, r := range cs.Rules {
				switch {
				case r.AppliesTo(a, b):
					pairs = append(pairs, Pair{A: a, B: b, Rule: r})
				case r.ModalityA != r.ModalityB && r.AppliesTo(b, a):
					pairs = append(pairs, Pair{A: b, B: a, Rule: r})
				}
			}
		}
	}
	return pairs
}

// Guidance summarizes the rule set's interests for the decomposer prompt.
func (cs *CompiledRuleSet) Guidance() string {
	if len(cs.Rules) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("The evaluation rules care about these interference patterns. Pay attention to blocks that could trigger them:\n")
	for _, r := range cs.Rules {
		fmt.Fprintf(&sb, "- %s: %s\n", r.Name, r.Description)
	}
	return sb.String()
}

// Load reads a rule set from a YAML file.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rule set %s: %w", path, err)
	}
	return &rs, nil
}

// Save writes a rule set to a YAML file.
func (rs *RuleSet) Save(path string) error {
	data, err := yaml.Marshal(rs)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
