package backend

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)\n?```")

// ExtractJSON strips a markdown code fence from a model response, if present.
// Models routinely wrap JSON output in ```json fences despite instructions.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

const verdictSchemaJSON = `{
  "type": "object",
  "required": ["has_conflict"],
  "properties": {
    "has_conflict": {"type": "boolean"},
    "conflicts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["source", "target", "description"],
        "properties": {
          "source": {"type": "string"},
          "target": {"type": "string"},
          "description": {"type": "string"},
          "resolution_hint": {"type": ["string", "null"]}
        }
      }
    },
    "output": {"type": ["string", "null"]},
    "rationale": {"type": ["string", "null"]}
  }
}`

var verdictSchema = jsonschema.MustCompileString("verdict.json", verdictSchemaJSON)

type rawVerdict struct {
	HasConflict bool       `json:"has_conflict"`
	Conflicts   []Conflict `json:"conflicts"`
	Output      string     `json:"output"`
	Rationale   string     `json:"rationale"`
}

// ParseVerdict turns a raw model response into a Verdict. The response is
// schema-validated before decoding so a malformed judgment surfaces as a
// parse error instead of a zero-valued "no conflict".
func ParseVerdict(name, raw string) (Verdict, error) {
	extracted := ExtractJSON(raw)

	var generic any
	if err := json.Unmarshal([]byte(extracted), &generic); err != nil {
		return Verdict{}, &Error{Backend: name, Attempts: 1,
			Err: fmt.Errorf("unparseable judgment response: %w (raw: %.200s)", err, raw)}
	}
	if err := verdictSchema.Validate(generic); err != nil {
		return Verdict{}, &Error{Backend: name, Attempts: 1,
			Err: fmt.Errorf("judgment response failed schema validation: %w", err)}
	}

	var rv rawVerdict
	if err := json.Unmarshal([]byte(extracted), &rv); err != nil {
		return Verdict{}, &Error{Backend: name, Attempts: 1, Err: err}
	}
	return Verdict{
		Resolved:  !rv.HasConflict,
		Output:    rv.Output,
		Conflicts: rv.Conflicts,
		Rationale: rv.Rationale,
		Raw:       raw,
	}, nil
}
