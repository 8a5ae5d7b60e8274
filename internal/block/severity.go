package block

// Severity is the impact scale used by rule findings: how badly would the
// executing model misbehave if this interference is real.
//
// Severity and Confidence are deliberately separate scales with no conversion
// between them. Rule findings carry a Severity; exploratory findings carry a
// Confidence. They answer different questions and are only orderable within
// their own scale.
type Severity string

const (
	SeverityUnknown  Severity = "unknown"  // Judgment response could not be parsed
	SeverityMinor    Severity = "minor"    // Maintenance risk only
	SeverityMajor    Severity = "major"    // Misbehavior under identifiable conditions
	SeverityCritical Severity = "critical" // Structurally guaranteed misbehavior
)

// Rank orders severities for comparison. Unknown ranks lowest: it is an
// evaluation failure, not an impact claim.
func (s Severity) Rank() int {
	switch s {
	case SeverityMinor:
		return 1
	case SeverityMajor:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// Weight is the scoring weight used when aggregating findings.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 1.0
	case SeverityMajor:
		return 0.6
	case SeverityMinor:
		return 0.3
	default:
		return 0.5
	}
}

// Confidence is the epistemic scale used by exploratory findings: how worried
// the exploring judge is, independent of any impact assessment.
type Confidence string

const (
	ConfidenceCurious    Confidence = "curious"
	ConfidenceNotable    Confidence = "notable"
	ConfidenceConcerning Confidence = "concerning"
	ConfidenceAlarming   Confidence = "alarming"
)

// Rank orders confidence levels within their own scale.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceCurious:
		return 1
	case ConfidenceNotable:
		return 2
	case ConfidenceConcerning:
		return 3
	case ConfidenceAlarming:
		return 4
	default:
		return 0
	}
}
