package block

// Block represents a contiguous, classified unit of a source document.
// Blocks are produced once per decomposition run and are immutable;
// re-decomposing a changed document invalidates all prior block IDs.
type Block struct {
	ID              string   `json:"id"`                         // Stable identifier, never re-used (e.g. "claude-code/git-safety")
	Source          string   `json:"source"`                     // Corpus identifier + version (e.g. "claude-code/v2.1.50")
	Tier            Tier     `json:"tier"`                       // Trust/mutability class of the block
	Category        string   `json:"category"`                   // Open tag: "tool-usage", "identity", "policy", ...
	Text            string   `json:"text"`                       // Immutable snapshot of the block text
	Modality        Modality `json:"modality"`                   // Deontic modality of the block's directives
	Scope           []string `json:"scope"`                      // Topic/tool identifiers the block governs
	Exports         []string `json:"exports,omitempty"`          // Behavioral contracts this block establishes
	Imports         []string `json:"imports,omitempty"`          // Contracts this block depends on from other blocks
	PriorityMarkers []string `json:"priority_markers,omitempty"` // Explicit precedence annotations, in order of appearance
	LineStart       int      `json:"line_start,omitempty"`       // 1-indexed start line in the source document
	LineEnd         int      `json:"line_end,omitempty"`         // 1-indexed end line in the source document
}

// ScopesOverlap reports whether this block shares any scope entry with other.
func (b *Block) ScopesOverlap(other *Block) bool {
	for _, s := range b.Scope {
		for _, o := range other.Scope {
			if s == o {
				return true
			}
		}
	}
	return false
}

// Tier is a block's trust/mutability class.
type Tier string

const (
	TierFoundational Tier = "foundational" // Invariant rules, the constitution
	TierContextual   Tier = "contextual"   // Domain knowledge, conflicts expected
	TierCandidate    Tier = "candidate"    // Per-query input, untrusted
)

// Modality is the deontic modality of a block's directives.
type Modality string

const (
	ModalityMandate     Modality = "mandate"     // "always", "must", "required"
	ModalityProhibition Modality = "prohibition" // "never", "do not", "must not"
	ModalityGuidance    Modality = "guidance"    // "may", "can", "prefer", "should"
	ModalityInformation Modality = "information" // Declarative, no directive force
)

// Common category tags. The category space is open; these are the tags the
// built-in classifiers emit.
const (
	CategoryIdentity   = "identity"
	CategoryBehavioral = "behavioral-constraint"
	CategoryTool       = "tool-definition"
	CategoryWorkflow   = "workflow"
	CategoryPolicy     = "policy"
	CategoryContext    = "context"
	CategoryMeta       = "meta"
)
