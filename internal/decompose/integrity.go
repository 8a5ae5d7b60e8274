package decompose

import (
	"fmt"
	"strings"

	"github.com/fsgeek/arbiter/internal/block"
)

// DecompositionIntegrityError reports that a set of blocks does not
// reconstruct its source document. Fatal: the decomposition is rejected
// rather than silently accepted as a partial or garbled split.
type DecompositionIntegrityError struct {
	Source string // Corpus identifier of the document
	Block  string // ID of the offending block, if known
	Reason string
}

func (e *DecompositionIntegrityError) Error() string {
	if e.Block != "" {
		return fmt.Sprintf("decomposition of %q lost integrity at block %s: %s", e.Source, e.Block, e.Reason)
	}
	return fmt.Sprintf("decomposition of %q lost integrity: %s", e.Source, e.Reason)
}

// ReconstructsExactly reports whether joining the block texts with newlines
// reproduces the document byte-for-byte. The heuristic splitter always
// satisfies this; judgment-assisted splits are checked with ValidateCoverage
// instead, which tolerates whitespace drift.
func ReconstructsExactly(document string, blocks []*block.Block) bool {
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	return strings.Join(texts, "\n") == document
}

func normalizeWS(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ValidateCoverage checks that blocks cover the document in order with no
// gaps and no overlaps, after whitespace normalization. A backend proposing
// block boundaries may reflow whitespace but must not drop, duplicate, or
// invent content.
func ValidateCoverage(document, source string, blocks []*block.Block) error {
	if len(blocks) == 0 {
		return &DecompositionIntegrityError{Source: source, Reason: "no blocks produced"}
	}
	doc := normalizeWS(document)
	pos := 0
	for _, b := range blocks {
		text := normalizeWS(b.Text)
		if text == "" {
			continue
		}
		idx := strings.Index(doc[pos:], text)
		if idx != 0 {
			// Allow a single joining space consumed by normalization.
			if idx == 1 && doc[pos] == ' ' {
				idx = 0
				pos++
			} else {
				return &DecompositionIntegrityError{
					Source: source,
					Block:  b.ID,
					Reason: fmt.Sprintf("block text not found at document offset %d (gap, overlap, or altered content)", pos),
				}
			}
		}
		pos += len(text)
	}
	if strings.TrimSpace(doc[pos:]) != "" {
		return &DecompositionIntegrityError{
			Source: source,
			Reason: fmt.Sprintf("document tail uncovered from offset %d: %.60q", pos, doc[pos:]),
		}
	}
	return nil
}
