package registry

// Built-in profiles. The numbers are empirical, from human-audited
// characterization runs over three domains: instruction-conflict detection
// in system prompts, semantic database contradictions, and adversarially
// buried conflicts.
var defaultProfiles = []Profile{
	{
		Name:       "anthropic/claude-haiku-4.5",
		APIModelID: "anthropic/claude-haiku-4.5",
		Provider:   "openrouter",
		APIKeyEnv:  "OPENROUTER_API_KEY",
		DomainScores: map[string]DomainScore{
			"instruction": {DetectionRate: 1.0, FalsePositiveRate: 0.0, Trials: 25},
			"semantic_db": {DetectionRate: 0.56, FalsePositiveRate: 0.0, Trials: 25},
			"adversarial": {DetectionRate: 0.33, FalsePositiveRate: 0.0, Trials: 15},
		},
		FormatSensitivity: 1.0,
		KnownIssues: []string{
			"Extreme format sensitivity: 0% to 100% depending on prompt format.",
			"Adversarial: only catches the meta-cognitive cue tier.",
		},
		CostPerMillionIn:  0.80,
		CostPerMillionOut: 4.00,
	},
	{
		Name:       "google/gemini-2.0-flash",
		APIModelID: "gemini-2.0-flash",
		Provider:   "gemini",
		APIKeyEnv:  "GEMINI_API_KEY",
		DomainScores: map[string]DomainScore{
			"instruction": {DetectionRate: 0.85, FalsePositiveRate: 0.0, Trials: 25},
			"semantic_db": {DetectionRate: 1.0, FalsePositiveRate: 0.0, Trials: 20},
			"adversarial": {DetectionRate: 1.0, FalsePositiveRate: 0.0, Trials: 15},
		},
		KnownIssues: []string{
			"Content filters may reject some prompts.",
			"Rationalizes nuanced instruction conflicts (85%, not 100%).",
		},
		CostPerMillionIn:  0.10,
		CostPerMillionOut: 0.40,
	},
	{
		Name:       "x-ai/grok-3-mini",
		APIModelID: "x-ai/grok-3-mini-beta",
		Provider:   "openrouter",
		APIKeyEnv:  "OPENROUTER_API_KEY",
		DomainScores: map[string]DomainScore{
			"instruction": {DetectionRate: 0.75, FalsePositiveRate: 0.0, Trials: 25},
			"semantic_db": {DetectionRate: 1.0, FalsePositiveRate: 0.0, Trials: 20},
			"adversarial": {DetectionRate: 1.0, FalsePositiveRate: 0.0, Trials: 15},
		},
		KnownIssues: []string{
			"Rationalizes nuanced conflicts as complementary conditions.",
			"Instruction domain: misses task-search and proactive-vs-scope.",
		},
		CostPerMillionIn:  0.30,
		CostPerMillionOut: 0.50,
	},
	{
		Name:       "openai/gpt-4o-mini",
		APIModelID: "gpt-4o-mini",
		Provider:   "openai",
		APIKeyEnv:  "OPENAI_API_KEY",
		DomainScores: map[string]DomainScore{
			"instruction": {DetectionRate: 1.0, FalsePositiveRate: 1.0, Trials: 25},
			"semantic_db": {DetectionRate: 1.0, FalsePositiveRate: 0.0, Trials: 20},
			"adversarial": {DetectionRate: 0.60, FalsePositiveRate: 0.0, Trials: 15},
		},
		Disqualified: true,
		KnownIssues: []string{
			"DISQUALIFIED: 100% false positive rate on instruction domain.",
			"Fabricates plausible conflict narratives for non-conflicts.",
		},
		CostPerMillionIn:  0.15,
		CostPerMillionOut: 0.60,
	},
	{
		Name:       "qwen/qwen-2.5-72b",
		APIModelID: "qwen/qwen-2.5-72b-instruct",
		Provider:   "openrouter",
		APIKeyEnv:  "OPENROUTER_API_KEY",
		DomainScores: map[string]DomainScore{
			"semantic_db": {DetectionRate: 0.60, FalsePositiveRate: 0.0, Trials: 20},
			"adversarial": {DetectionRate: 0.40, FalsePositiveRate: 0.0, Trials: 15},
		},
		FormatSensitivity: 1.0,
		KnownIssues: []string{
			"Extreme format sensitivity, inverse of Haiku (colon labels kill it).",
			"Not tested on instruction domain.",
		},
		CostPerMillionIn:  0.90,
		CostPerMillionOut: 0.90,
	},
	{
		Name:       "ollama/llama3.1",
		APIModelID: "llama3.1",
		Provider:   "ollama",
		KnownIssues: []string{
			"Uncharacterized. Local fallback for offline work.",
		},
	},
}
