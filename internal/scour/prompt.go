package scour

import (
	"fmt"
	"strings"
)

// Vagueness is a feature here. The first-pass prompt avoids telling the
// model what to look for; it asks what is there, what is interesting, and
// what the model did not explore. The unexplored list is what makes passes
// composable.
const firstPassPrompt = `You are exploring a system prompt. Not auditing it, not checking it against rules. Just reading it carefully and noting what you find interesting.

"Interesting" is deliberately vague. Trust your judgment. You might notice:
- Instructions that seem to contradict each other
- Rules that are stated multiple times in different places
- Implicit assumptions that aren't declared
- Surprising structural choices
- Scope ambiguities (when does a rule apply?)
- Things that would confuse a model trying to follow all instructions simultaneously
- Interactions between distant parts of the prompt
- Anything else that catches your attention

Be thorough but honest. If something is boring and straightforward, don't manufacture interest. If something is genuinely surprising, say why.

IMPORTANT: After documenting what you found, document what you DIDN'T explore. What areas did you skim? What questions occurred to you that you didn't pursue? What would you look at if you had more time? This is as valuable as your findings.

Finally: should we send another explorer after you? Would another pass, armed with your map, find things you missed? Be honest. If you think you covered it, say so.

## System Prompt to Explore

%s

## Output Format

Respond with JSON only. The severity_guess values must be lowercase.

{
  "pass_number": 1,
  "findings": [
    {
      "description": "<what's interesting>",
      "location": "<where in the prompt, quoting key phrases>",
      "category": "<your own label for what kind of thing this is>",
      "severity_guess": "<curious|notable|concerning|alarming>"
    }
  ],
  "unexplored": [
    {
      "description": "<what you didn't dig into>",
      "why_interesting": "<why it might be worth exploring>"
    }
  ],
  "should_send_another": <true|false>,
  "rationale_for_continuation": "<why or why not>"
}`

const subsequentPassPrompt = `You are exploring a system prompt. Previous explorers have already been through it and left you their map. Your job is to go where they didn't.

DO NOT repeat their findings. They found what they found. You are looking for what they missed, what they flagged as unexplored, and anything their framing caused them to overlook.

Previous explorers noted these areas as unexplored:

%[1]s

Their cumulative findings (%[2]d total across %[3]d passes):

%[4]s

Go where they didn't. Look at what they skimmed. Question their categorizations if they seem wrong. Find the things that their framing made invisible.

## When to Stop

Be honest about diminishing returns. Set should_send_another to FALSE if:
- Most of your findings are refinements or restatements of existing ones
- The unexplored territory is mostly about runtime behavior that can't be determined from the text alone
- You found fewer than 3 genuinely new findings (not sharpened versions of existing ones)
- The prior passes have already covered the major structural, security, operational, and semantic categories

It is better to say "enough" than to pad findings. Saying "stop" is a finding in itself. It means the exploration was thorough.

## System Prompt to Explore

%[5]s

## Output Format

Respond with JSON only. The severity_guess values must be lowercase.

{
  "pass_number": %[6]d,
  "findings": [
    {
      "description": "<what's interesting>",
      "location": "<where in the prompt, quoting key phrases>",
      "category": "<your own label for what kind of thing this is>",
      "severity_guess": "<curious|notable|concerning|alarming>"
    }
  ],
  "unexplored": [
    {
      "description": "<what you didn't dig into>",
      "why_interesting": "<why it might be worth exploring>"
    }
  ],
  "should_send_another": <true|false>,
  "rationale_for_continuation": "<why or why not>"
}`

// BuildPrompt renders the prompt for the next pass given the accumulated
// state. Pass one gets the open-ended exploration prompt; later passes get
// the map from everything before them.
func BuildPrompt(state *State, document string) string {
	if state == nil || len(state.Reports) == 0 {
		return fmt.Sprintf(firstPassPrompt, document)
	}

	var findingLines []string
	for _, r := range state.Reports {
		tag := ""
		if r.Backend != "" {
			tag = " (" + r.Backend + ")"
		}
		for _, f := range r.Findings {
			findingLines = append(findingLines,
				fmt.Sprintf("- [%s]%s %s", f.Category, tag, f.Description))
		}
	}

	var unexploredLines []string
	for _, r := range state.Reports {
		for _, u := range r.Unexplored {
			unexploredLines = append(unexploredLines,
				fmt.Sprintf("- %s: %s", u.Description, u.WhyInteresting))
		}
	}

	return fmt.Sprintf(subsequentPassPrompt,
		orNone(unexploredLines),
		state.FindingCount(),
		len(state.Reports),
		orNone(findingLines),
		document,
		len(state.Reports)+1,
	)
}

func orNone(lines []string) string {
	if len(lines) == 0 {
		return "(none recorded)"
	}
	return strings.Join(lines, "\n")
}
