package backend

import (
	"context"
	"fmt"
	"sync"
)

// Scripted is a deterministic fake backend for tests. It replays a queue of
// canned responses (or errors) in order, recording every prompt it receives.
// Judgment-based outcomes are non-deterministic in production; tests inject
// Scripted backends so behavior around them can be tested exactly.
type Scripted struct {
	mu        sync.Mutex
	name      string
	responses []ScriptStep
	next      int
	Prompts   []string
}

// ScriptStep is one canned exchange: either a raw response or an error.
type ScriptStep struct {
	Response string
	Err      error
}

func NewScripted(name string, steps ...ScriptStep) *Scripted {
	return &Scripted{name: name, responses: steps}
}

// Respond is shorthand for a successful step.
func Respond(raw string) ScriptStep { return ScriptStep{Response: raw} }

// Fail is shorthand for an error step.
func Fail(err error) ScriptStep { return ScriptStep{Err: err} }

func (s *Scripted) Name() string { return s.name }

func (s *Scripted) Judge(ctx context.Context, req Request) (Verdict, error) {
	raw, err := s.Complete(ctx, req)
	if err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(s.name, raw)
}

func (s *Scripted) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Backend: s.name, Attempts: 1, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompts = append(s.Prompts, req.Prompt)
	if s.next >= len(s.responses) {
		return "", &Error{Backend: s.name, Attempts: 1,
			Err: fmt.Errorf("scripted backend exhausted after %d responses", len(s.responses))}
	}
	step := s.responses[s.next]
	s.next++
	if step.Err != nil {
		return "", &Error{Backend: s.name, Attempts: 1, Err: step.Err}
	}
	return step.Response, nil
}

// CallCount reports how many requests the backend has served.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
