package ensemble

import (
	"fmt"
	"strings"
)

// The judge prompt uses observer framing: the model examines instructions
// for internal consistency rather than executing them. Models that comply
// with a violation when placed in the executor role will still detect the
// same violation when asked to judge it from outside.
const judgePrompt = `You are a neutral evaluation judge for a query resolution system.

Your task: examine whether the domain knowledge contains conflicts that would prevent cleanly resolving the user query. Either surface the conflicts or resolve the query. Never do both, never do neither.

## System Rules (invariant, the authority for this evaluation)

%s

## Domain Knowledge (contextual, may contain internal conflicts)

%s

## User Query

%s

## Instructions

1. Read all domain entries carefully.

2. Identify any entries that, together, create an unsatisfiable constraint for this specific query. A conflict exists when one entry recommends or requires something that another entry prohibits or contradicts, and both constraints apply to resolving this query.

3. If conflicts exist:
   - Set has_conflict to true
   - Describe each conflict: which entries conflict, what the contradiction is, and what information or change would resolve it
   - Leave output null and do not attempt to resolve the query

4. If no conflicts exist:
   - Set has_conflict to false
   - Resolve the query according to the system rules and domain knowledge
   - Provide the resolved output

Respond with valid JSON only. No explanation outside the JSON.

{
  "has_conflict": <bool>,
  "conflicts": [
    {
      "source": "<the domain entry that creates the conflict>",
      "target": "<the domain entry it conflicts with>",
      "description": "<what the contradiction is and why it affects this query>",
      "resolution_hint": "<what information or change would resolve this, or null>"
    }
  ],
  "output": <string or null>
}`

// BuildPrompt renders the judge prompt for a request. Exported so tests
// and debugging tools can inspect exactly what backends receive.
func BuildPrompt(req Request) string {
	return fmt.Sprintf(judgePrompt,
		bulleted(req.system.Rules),
		bulleted(req.domain.Entries),
		req.query,
	)
}

func bulleted(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for i, item := range items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(item)
	}
	return sb.String()
}
