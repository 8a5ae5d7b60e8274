package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fsgeek/arbiter/internal/backend"
	"github.com/fsgeek/arbiter/internal/block"
)

// Completer is the slice of backend capability the decomposer needs: a raw
// completion whose response shape the decomposer defines itself.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req backend.Request) (string, error)
}

const decomposePrompt = `You are a system prompt analyst. Your task is to decompose a system prompt into contiguous blocks and classify each one.

## Classification Schema

### Tier (which layer of the system this block belongs to)
- foundational: Core identity and invariant rules. The constitution.
- contextual: Domain knowledge, domain-specific guidance. May conflict.
- candidate: Per-query or per-session context. Untrusted input.

### Category (what kind of block this is)
- identity: Who/what the agent is
- behavioral-constraint: Rules governing behavior
- tool-definition: Tool descriptions and usage instructions
- workflow: Multi-step processes and procedures
- policy: Security, safety, content policies
- context: Environmental info, user preferences, session state
- meta: Instructions about instructions (formatting, framing)

### Modality (deontic modality of directives)
- prohibition: "never", "do not", "must not"
- mandate: "always", "must", "required"
- guidance: "may", "can", "should", "prefer"
- information: Declarative, no directive force

## Interference Patterns of Interest

%s

## Task

Break the following system prompt into contiguous, non-overlapping blocks. Each block should be a coherent unit that establishes one or more behavioral contracts. Classify each block using the schema above.

For each block, identify:
- scope: What aspects of behavior this block constrains (list of strings)
- exports: Behavioral contracts this block establishes (list of strings)
- imports: Contracts this block depends on from other blocks (list of strings)

## System Prompt to Decompose

%s

## Output Format

Respond with a JSON array only. No explanation outside the JSON.

[
  {
    "id": "<source>/<short-descriptive-name>",
    "tier": "<foundational|contextual|candidate>",
    "category": "<category>",
    "text": "<the exact text of this block>",
    "modality": "<modality>",
    "scope": ["<scope1>", "<scope2>"],
    "exports": ["<export1>"],
    "imports": ["<import1>"],
    "line_start": <int or null>,
    "line_end": <int or null>
  }
]`

const blockSchemaJSON = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["tier", "category", "text", "modality"],
    "properties": {
      "id": {"type": "string"},
      "tier": {"enum": ["foundational", "contextual", "candidate"]},
      "category": {"type": "string"},
      "text": {"type": "string"},
      "modality": {"enum": ["prohibition", "mandate", "guidance", "information"]},
      "scope": {"type": "array", "items": {"type": "string"}},
      "exports": {"type": "array", "items": {"type": "string"}},
      "imports": {"type": "array", "items": {"type": "string"}},
      "line_start": {"type": ["integer", "null"]},
      "line_end": {"type": ["integer", "null"]}
    }
  }
}`

var blockSchema = jsonschema.MustCompileString("blocks.json", blockSchemaJSON)

type rawBlock struct {
	ID        string   `json:"id"`
	Tier      string   `json:"tier"`
	Category  string   `json:"category"`
	Text      string   `json:"text"`
	Modality  string   `json:"modality"`
	Scope     []string `json:"scope"`
	Exports   []string `json:"exports"`
	Imports   []string `json:"imports"`
	LineStart int      `json:"line_start"`
	LineEnd   int      `json:"line_end"`
}

// Decomposer is the judgment-assisted path: a backend proposes block
// boundaries and classifications, and the result is validated against the
// source document before being accepted.
type Decomposer struct {
	guidance string
}

// NewDecomposer builds a decomposer. The guidance text (typically derived
// from the active rule set) focuses the backend on the interference
// dimensions that matter downstream.
func NewDecomposer(guidance string) *Decomposer {
	if strings.TrimSpace(guidance) == "" {
		guidance = "No specific guidance - classify all dimensions."
	}
	return &Decomposer{guidance: guidance}
}

// BuildPrompt renders the decomposition prompt. Exposed for testing.
func (d *Decomposer) BuildPrompt(text string) string {
	return fmt.Sprintf(decomposePrompt, d.guidance, text)
}

// ParseResponse parses a backend decomposition response into blocks. The
// response is schema-validated; any divergence fails loudly rather than
// yielding a partially-decoded block set.
func (d *Decomposer) ParseResponse(raw, source string) ([]*block.Block, error) {
	extracted := backend.ExtractJSON(raw)

	var generic any
	if err := json.Unmarshal([]byte(extracted), &generic); err != nil {
		return nil, &DecompositionIntegrityError{
			Source: source,
			Reason: fmt.Sprintf("unparseable decomposition response: %v (raw: %.200s)", err, raw),
		}
	}
	if err := blockSchema.Validate(generic); err != nil {
		return nil, &DecompositionIntegrityError{
			Source: source,
			Reason: fmt.Sprintf("decomposition response failed schema validation: %v", err),
		}
	}

	var items []rawBlock
	if err := json.Unmarshal([]byte(extracted), &items); err != nil {
		return nil, &DecompositionIntegrityError{Source: source, Reason: err.Error()}
	}

	blocks := make([]*block.Block, 0, len(items))
	for i, item := range items {
		id := item.ID
		if id == "" {
			id = fmt.Sprintf("%s/block-%d", source, i)
		}
		blocks = append(blocks, &block.Block{
			ID:              id,
			Source:          source,
			Tier:            block.Tier(item.Tier),
			Category:        item.Category,
			Text:            item.Text,
			Modality:        block.Modality(item.Modality),
			Scope:           item.Scope,
			Exports:         item.Exports,
			Imports:         item.Imports,
			PriorityMarkers: ExtractPriorityMarkers(item.Text),
			LineStart:       item.LineStart,
			LineEnd:         item.LineEnd,
		})
	}
	return blocks, nil
}

// Decompose runs the full judgment-assisted path: build prompt, call the
// backend, parse, and verify the blocks reconstruct the document.
func (d *Decomposer) Decompose(ctx context.Context, c Completer, text, source string) ([]*block.Block, error) {
	raw, err := c.Complete(ctx, backend.Request{
		Prompt:    d.BuildPrompt(text),
		MaxTokens: 8192,
		Metadata:  map[string]string{"operation": "decompose", "source": source},
	})
	if err != nil {
		return nil, err
	}
	blocks, err := d.ParseResponse(raw, source)
	if err != nil {
		return nil, err
	}
	if err := ValidateCoverage(text, source, blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// FromSegments accepts already-tagged block boundaries, the bypass path for
// pre-segmented input and for testing. Segments are classified but never
// re-split; coverage is still enforced.
func FromSegments(document, source string, segments []*block.Block) ([]*block.Block, error) {
	for i, s := range segments {
		if s.ID == "" {
			s.ID = fmt.Sprintf("%s/segment-%d", source, i)
		}
		if s.Source == "" {
			s.Source = source
		}
		if s.Modality == "" {
			s.Modality = classifyModality(s.Text)
		}
		if s.Category == "" {
			s.Category = classifyCategory(s.Text)
		}
		if len(s.Scope) == 0 {
			s.Scope = extractScope(s.Text)
		}
		if s.PriorityMarkers == nil {
			s.PriorityMarkers = ExtractPriorityMarkers(s.Text)
		}
	}
	if err := ValidateCoverage(document, source, segments); err != nil {
		return nil, err
	}
	return segments, nil
}
