package decompose

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fsgeek/arbiter/internal/block"
)

// Heuristic splitting rules, ordered by priority:
//  1. Markdown headings (# ## ###) start new blocks.
//  2. Code fences are kept as single units.
//  3. Blank-line-delimited paragraphs (blank runs attach to the preceding
//     block so the split covers the document exactly).
//
// This is the free/instant path for offline use and CI. The judgment-assisted
// Decomposer is the real decomposer; this one is intentionally rough.

var (
	prohibitionRe = regexp.MustCompile(`\b(NEVER|MUST NOT|DO NOT|REFUSE|FORBIDDEN)\b`)
	mandateRe     = regexp.MustCompile(`\b(MUST(\s+NOT)?|ALWAYS|REQUIRED|SHALL)\b`)
	guidanceRe    = regexp.MustCompile(`\b(MAY|CAN|ALLOWED|OPTIONAL|SHOULD|PREFER)\b`)
	headingRe     = regexp.MustCompile(`^#{1,3}\s+`)
	markerRe      = regexp.MustCompile(`\b(IMPORTANT|CRITICAL|MUST NOT|MUST|NEVER|ALWAYS|REQUIRED)\b`)
)

var scopePatterns = []struct {
	scope string
	re    *regexp.Regexp
}{
	{"security", regexp.MustCompile(`(?i)\b(security|safety|auth|credential|vulnerability)\b`)},
	{"git", regexp.MustCompile(`(?i)\b(git|commit|branch|push|pull|merge|rebase)\b`)},
	{"tool-usage", regexp.MustCompile(`(?i)\b(tool|function|bash|glob|grep|read|write|edit)\b`)},
	{"file-operations", regexp.MustCompile(`(?i)\b(file|directory|path|create|delete)\b`)},
	{"communication", regexp.MustCompile(`(?i)\b(output|respond|display|message|user|communicate)\b`)},
	{"task-management", regexp.MustCompile(`(?i)\b(todo|task|plan|progress|tracking)\b`)},
	{"code-quality", regexp.MustCompile(`(?i)\b(over.?engineer|refactor|abstract|helper|utility)\b`)},
	{"content-policy", regexp.MustCompile(`(?i)\b(url|emoji|praise|validation|superlative)\b`)},
}

var categoryPatterns = []struct {
	category string
	re       *regexp.Regexp
}{
	{block.CategoryIdentity, regexp.MustCompile(`(?i)\b(identity|who you are|you are a)\b`)},
	{block.CategoryPolicy, regexp.MustCompile(`(?i)\b(security|policy|safety|content.?policy)\b`)},
	{block.CategoryTool, regexp.MustCompile(`(?i)\b(tool|function|command|bash|glob|grep)\b`)},
	{block.CategoryWorkflow, regexp.MustCompile(`(?i)\b(workflow|step|process|procedure)\b`)},
	{block.CategoryContext, regexp.MustCompile(`(?i)\b(context|environment|platform|directory|working dir)\b`)},
	{block.CategoryMeta, regexp.MustCompile(`(?i)\b(meta|formatting|output format|markdown|rendering)\b`)},
}

func classifyModality(text string) block.Modality {
	upper := strings.ToUpper(text)
	hasProhibition := prohibitionRe.MatchString(upper)
	hasMandate := false
	for _, m := range mandateRe.FindAllStringSubmatch(upper, -1) {
		if m[2] == "" { // MUST NOT counts as prohibition, not mandate
			hasMandate = true
		}
	}
	switch {
	case hasProhibition:
		return block.ModalityProhibition
	case hasMandate:
		return block.ModalityMandate
	case guidanceRe.MatchString(upper):
		return block.ModalityGuidance
	default:
		return block.ModalityInformation
	}
}

func classifyCategory(text string) string {
	for _, p := range categoryPatterns {
		if p.re.MatchString(text) {
			return p.category
		}
	}
	return block.CategoryBehavioral
}

func classifyTier(text string) block.Tier {
	upper := strings.ToUpper(text)
	if regexp.MustCompile(`\b(IMPORTANT|CRITICAL|NEVER|INVARIANT|CONSTITUTION)\b`).MatchString(upper) {
		return block.TierFoundational
	}
	if regexp.MustCompile(`\b(CONTEXT|ENVIRONMENT|PLATFORM|WORKING DIR|SESSION)\b`).MatchString(upper) {
		return block.TierCandidate
	}
	return block.TierContextual
}

func extractScope(text string) []string {
	var scopes []string
	for _, p := range scopePatterns {
		if p.re.MatchString(text) {
			scopes = append(scopes, p.scope)
		}
	}
	if len(scopes) == 0 {
		return []string{"general"}
	}
	return scopes
}

// ClassifyText exposes the heuristic classifiers for a single text fragment:
// best-effort modality, category tag, and governed scope. Used by callers
// that need classification without decomposition (e.g. consistency checks
// over rule lists).
func ClassifyText(text string) (block.Modality, string, []string) {
	stripped := strings.TrimSpace(text)
	return classifyModality(stripped), classifyCategory(stripped), extractScope(stripped)
}

// ExtractPriorityMarkers returns the explicit precedence annotations in a
// text, in order of first appearance.
func ExtractPriorityMarkers(text string) []string {
	seen := make(map[string]bool)
	var markers []string
	for _, m := range markerRe.FindAllString(strings.ToUpper(text), -1) {
		if !seen[m] {
			seen[m] = true
			markers = append(markers, m)
		}
	}
	return markers
}

// boundaries returns the 0-based line indices where new blocks start.
// Index 0 is always a boundary.
func boundaries(lines []string) []int {
	bounds := []int{0}
	inFence := false
	afterBlank := false
	sawContent := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		isFence := strings.HasPrefix(trimmed, "```")

		if inFence {
			if isFence {
				inFence = false
				afterBlank = false
				// Next line starts a new block
				if i+1 < len(lines) {
					bounds = append(bounds, i+1)
				}
			}
			continue
		}

		newBlock := false
		switch {
		case isFence:
			inFence = true
			newBlock = sawContent
		case headingRe.MatchString(line):
			newBlock = sawContent
		case trimmed == "":
			afterBlank = sawContent
			continue
		default:
			newBlock = afterBlank
		}

		if newBlock && i > 0 && bounds[len(bounds)-1] != i {
			bounds = append(bounds, i)
		}
		if trimmed != "" {
			sawContent = true
		}
		afterBlank = false
	}
	return bounds
}

// Heuristic splits document text into classified blocks without any backend
// call. The split covers the document exactly: joining the block texts with
// newlines reproduces the source (see ReconstructsExactly).
//
// If tier is non-empty it is applied document-wide; otherwise each block gets
// a best-effort tier classification.
func Heuristic(text, source string, tier block.Tier) []*block.Block {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	bounds := boundaries(lines)

	var blocks []*block.Block
	for i, start := range bounds {
		end := len(lines)
		if i+1 < len(bounds) {
			end = bounds[i+1]
		}
		chunk := strings.Join(lines[start:end], "\n")
		stripped := strings.TrimSpace(chunk)

		b := &block.Block{
			ID:              fmt.Sprintf("%s:block_%03d", source, i),
			Source:          source,
			Text:            chunk,
			Modality:        classifyModality(stripped),
			Category:        classifyCategory(stripped),
			Scope:           extractScope(stripped),
			PriorityMarkers: ExtractPriorityMarkers(stripped),
			LineStart:       start + 1,
			LineEnd:         end,
		}
		if tier != "" {
			b.Tier = tier
		} else {
			b.Tier = classifyTier(stripped)
		}
		blocks = append(blocks, b)
	}
	return blocks
}
