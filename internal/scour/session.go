package scour

import (
	"context"
	"fmt"

	"github.com/fsgeek/arbiter/internal/backend"
)

const (
	defaultMaxPasses        = 10
	defaultDeclineThreshold = 3
	passMaxTokens           = 4096
)

// Completer produces a raw completion for a prompt. Concrete backends in
// the backend package satisfy this alongside their judge capability.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req backend.Request) (string, error)
}

// Outcome says how a session ended.
type Outcome string

const (
	// OutcomeConverged means enough consecutive passes declined to
	// continue. The exploration exhausted itself.
	OutcomeConverged Outcome = "converged"

	// OutcomeBudgetExhausted means the pass budget ran out while passes
	// were still voting to continue. The exploration was cut short.
	OutcomeBudgetExhausted Outcome = "budget-exhausted"
)

// SessionResult is the terminal state of a scour session. The two outcomes
// are surfaced distinctly because they mean different things: a converged
// session was thorough, an exhausted one was truncated.
type SessionResult struct {
	State   *State  `json:"state"`
	Outcome Outcome `json:"outcome"`
	Passes  int     `json:"passes"`
}

// Session drives repeated scour passes over a document until the passes
// converge or the budget runs out.
type Session struct {
	backends         []Completer
	maxPasses        int
	declineThreshold int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithMaxPasses caps the number of passes.
func WithMaxPasses(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.maxPasses = n
		}
	}
}

// WithDeclineThreshold sets how many consecutive passes must decline to
// continue before the session is considered converged.
func WithDeclineThreshold(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.declineThreshold = n
		}
	}
}

// NewSession builds a session over the given completers. Passes rotate
// through the backends so no backend runs twice in a row unless it is
// the only one.
func NewSession(backends []Completer, opts ...SessionOption) (*Session, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("scour session requires at least one backend")
	}
	s := &Session{
		backends:         backends,
		maxPasses:        defaultMaxPasses,
		declineThreshold: defaultDeclineThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run explores the document until convergence or budget exhaustion. On a
// backend or parse failure the accumulated state is returned alongside the
// error so completed passes are not lost.
//
// A declining pass counts toward convergence even when it still reports
// findings: the vote to stop is about marginal value, not about whether
// the pass itself found anything.
func (s *Session) Run(ctx context.Context, document string) (*SessionResult, error) {
	state := &State{}
	declines := 0

	for pass := 1; pass <= s.maxPasses; pass++ {
		if err := ctx.Err(); err != nil {
			return &SessionResult{State: state, Passes: len(state.Reports)}, err
		}

		c := s.backends[(pass-1)%len(s.backends)]
		prompt := BuildPrompt(state, document)

		raw, err := c.Complete(ctx, backend.Request{Prompt: prompt, MaxTokens: passMaxTokens})
		if err != nil {
			return &SessionResult{State: state, Passes: len(state.Reports)},
				fmt.Errorf("scour pass %d: %w", pass, err)
		}

		report, err := ParseReport(c.Name(), raw)
		if err != nil {
			return &SessionResult{State: state, Passes: len(state.Reports)}, err
		}
		state.Add(report)

		if report.ShouldContinue {
			declines = 0
			continue
		}
		declines++
		if declines >= s.declineThreshold {
			return &SessionResult{
				State:   state,
				Outcome: OutcomeConverged,
				Passes:  len(state.Reports),
			}, nil
		}
	}

	return &SessionResult{
		State:   state,
		Outcome: OutcomeBudgetExhausted,
		Passes:  len(state.Reports),
	}, nil
}
