package rules

import "github.com/fsgeek/arbiter/internal/block"

const mandateProhibitionPrompt = `You are analyzing two blocks from a system prompt for interference.

## Block A
%[1]s

## Block B
%[2]s

## Task
Does Block A mandate (require) something that Block B prohibits (forbids), or vice versa? This is a direct contradiction if the same action is both required and forbidden, even if they apply in different contexts.

Respond with JSON only:
{
  "score": <float 0.0 to 1.0, where 1.0 = certain contradiction>,
  "explanation": "<why this is or isn't a mandate/prohibition conflict>"
}`

const scopeOverlapPrompt = `You are analyzing two blocks from a system prompt for interference.

## Block A
%[1]s

## Block B
%[2]s

## Task
Do these blocks regulate the same behavior with overlapping or redundant instructions? Score higher if the overlap creates ambiguity about which instruction takes precedence, or if they give subtly different guidance on the same topic.

Respond with JSON only:
{
  "score": <float 0.0 to 1.0, where 1.0 = highly ambiguous overlap>,
  "explanation": "<what overlaps and whether it creates ambiguity>"
}`

const implicitDependencyPrompt = `You are analyzing two blocks from a system prompt for interference.

## Block A
%[1]s

## Block B
%[2]s

## Task
Does Block A implicitly depend on or override Block B (or vice versa) without explicitly declaring the relationship? An implicit dependency exists when one block's instructions only make sense in the context of another block, or when one block silently narrows/broadens another's scope.

Respond with JSON only:
{
  "score": <float 0.0 to 1.0, where 1.0 = strong undeclared dependency>,
  "explanation": "<what the implicit relationship is>"
}`

// Builtin returns the default rule set: one rule per interference class.
func Builtin() *RuleSet {
	return &RuleSet{
		Name: "arbiter-builtin",
		Rules: []*Rule{
			{
				Name:                 "mandate-prohibition-conflict",
				Type:                 DirectContradiction,
				Description:          "Detects when one block mandates an action that another block prohibits. The core contradiction pattern (e.g., 'always use X' vs 'never use X').",
				Severity:             block.SeverityCritical,
				RequiresScopeOverlap: true,
				ModalityA:            block.ModalityMandate,
				ModalityB:            block.ModalityProhibition,
				RequiresBackend:      true,
				PromptTemplate:       mandateProhibitionPrompt,
			},
			{
				Name:                 "scope-overlap-redundancy",
				Type:                 ScopeOverlap,
				Description:          "Detects when two blocks regulate the same behavior with overlapping or redundant instructions, potentially creating ambiguity.",
				Severity:             block.SeverityMajor,
				RequiresScopeOverlap: true,
				RequiresBackend:      true,
				PromptTemplate:       scopeOverlapPrompt,
			},
			{
				Name:        "priority-marker-ambiguity",
				Type:        PriorityAmbiguity,
				Description: "Detects when multiple blocks use priority markers (IMPORTANT, CRITICAL, MUST, NEVER) on potentially conflicting instructions without declaring which takes precedence.",
				Severity:    block.SeverityMinor,
			},
			{
				Name:                 "implicit-dependency-unresolved",
				Type:                 ImplicitDependency,
				Description:          "Detects when one block implicitly depends on or overrides another without declaring the relationship.",
				Severity:             block.SeverityMajor,
				RequiresScopeOverlap: true,
				RequiresBackend:      true,
				PromptTemplate:       implicitDependencyPrompt,
			},
			{
				Name:        "verbatim-duplication",
				Type:        VerbatimDuplication,
				Description: "Detects when two blocks contain substantially identical text. Verbatim repetition may be intentional reinforcement or accidental, and raises questions about whether position affects priority.",
				Severity:    block.SeverityMinor,
			},
		},
	}
}
