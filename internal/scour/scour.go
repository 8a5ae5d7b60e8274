// Package scour implements undirected exploration of prompt documents.
// Instead of checking directed rules against block pairs, a scour pass asks
// a model to wander through the document and report what it finds
// interesting. Each pass leaves a map for the next one, and the session
// stops when passes stop finding anything new.
package scour

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fsgeek/arbiter/internal/backend"
	"github.com/fsgeek/arbiter/internal/block"
)

// Finding is something a pass found interesting. Confidence is the
// explorer's epistemic weight, not an impact assessment; the two scales
// never convert into each other.
type Finding struct {
	Description string           `json:"description"`
	Location    string           `json:"location"`
	Category    string           `json:"category"`
	Confidence  block.Confidence `json:"confidence"`
}

// Unexplored is territory a pass noticed but did not dig into. The next
// pass treats these as its starting map.
type Unexplored struct {
	Description    string `json:"description"`
	WhyInteresting string `json:"why_interesting"`
}

// Report is the output of a single pass.
type Report struct {
	Pass           int          `json:"pass"`
	Backend        string       `json:"backend,omitempty"`
	Findings       []Finding    `json:"findings"`
	Unexplored     []Unexplored `json:"unexplored"`
	ShouldContinue bool         `json:"should_continue"`
	Rationale      string       `json:"rationale,omitempty"`
}

// State is the append-only exploration record across passes.
type State struct {
	Reports []Report `json:"reports"`
}

// Add appends a report, assigning its pass number from stack position.
// The model's own claim about which pass it is gets ignored.
func (s *State) Add(r Report) {
	r.Pass = len(s.Reports) + 1
	s.Reports = append(s.Reports, r)
}

// AllFindings returns every finding across all passes in order.
func (s *State) AllFindings() []Finding {
	var findings []Finding
	for _, r := range s.Reports {
		findings = append(findings, r.Findings...)
	}
	return findings
}

// LatestUnexplored returns the unexplored territory from the latest pass
// only. Earlier passes' unexplored areas were presumably covered by the
// passes that followed them.
func (s *State) LatestUnexplored() []Unexplored {
	if len(s.Reports) == 0 {
		return nil
	}
	return s.Reports[len(s.Reports)-1].Unexplored
}

// FindingCount returns the total number of findings across all passes.
func (s *State) FindingCount() int {
	n := 0
	for _, r := range s.Reports {
		n += len(r.Findings)
	}
	return n
}

// BackendsUsed lists the backend behind each pass, for provenance.
func (s *State) BackendsUsed() []string {
	names := make([]string, len(s.Reports))
	for i, r := range s.Reports {
		if r.Backend == "" {
			names[i] = "unknown"
			continue
		}
		names[i] = r.Backend
	}
	return names
}

const reportSchemaJSON = `{
  "type": "object",
  "required": ["findings", "unexplored", "should_send_another"],
  "properties": {
    "pass_number": {"type": "integer"},
    "findings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["description"],
        "properties": {
          "description": {"type": "string"},
          "location": {"type": "string"},
          "category": {"type": "string"},
          "severity_guess": {"type": "string"}
        }
      }
    },
    "unexplored": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["description"],
        "properties": {
          "description": {"type": "string"},
          "why_interesting": {"type": "string"}
        }
      }
    },
    "should_send_another": {"type": "boolean"},
    "rationale_for_continuation": {"type": ["string", "null"]}
  }
}`

var reportSchema = jsonschema.MustCompileString("report.json", reportSchemaJSON)

type rawFinding struct {
	Description   string `json:"description"`
	Location      string `json:"location"`
	Category      string `json:"category"`
	SeverityGuess string `json:"severity_guess"`
}

type rawUnexplored struct {
	Description    string `json:"description"`
	WhyInteresting string `json:"why_interesting"`
}

type rawReport struct {
	Findings          []rawFinding    `json:"findings"`
	Unexplored        []rawUnexplored `json:"unexplored"`
	ShouldSendAnother bool            `json:"should_send_another"`
	Rationale         string          `json:"rationale_for_continuation"`
}

// ParseReport parses a raw model response into a Report. The pass number
// is left zero; State.Add assigns it from stack position.
func ParseReport(backendName, raw string) (Report, error) {
	extracted := backend.ExtractJSON(raw)

	var generic any
	if err := json.Unmarshal([]byte(extracted), &generic); err != nil {
		return Report{}, fmt.Errorf("scour pass from %s returned unparseable response: %w", backendName, err)
	}
	if err := reportSchema.Validate(generic); err != nil {
		return Report{}, fmt.Errorf("scour pass from %s returned invalid report: %w", backendName, err)
	}

	var rr rawReport
	if err := json.Unmarshal([]byte(extracted), &rr); err != nil {
		return Report{}, fmt.Errorf("scour pass from %s: %w", backendName, err)
	}

	rep := Report{
		Backend:        backendName,
		ShouldContinue: rr.ShouldSendAnother,
		Rationale:      rr.Rationale,
	}
	for _, f := range rr.Findings {
		category := f.Category
		if category == "" {
			category = "uncategorized"
		}
		rep.Findings = append(rep.Findings, Finding{
			Description: f.Description,
			Location:    f.Location,
			Category:    category,
			Confidence:  normalizeConfidence(f.SeverityGuess),
		})
	}
	for _, u := range rr.Unexplored {
		rep.Unexplored = append(rep.Unexplored, Unexplored{
			Description:    u.Description,
			WhyInteresting: u.WhyInteresting,
		})
	}
	return rep, nil
}

func normalizeConfidence(s string) block.Confidence {
	c := block.Confidence(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case block.ConfidenceCurious, block.ConfidenceNotable, block.ConfidenceConcerning, block.ConfidenceAlarming:
		return c
	}
	return block.ConfidenceCurious
}
