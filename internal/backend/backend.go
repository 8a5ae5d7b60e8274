// Package backend defines the single capability every judgment consumer in
// arbiter depends on: send a rendered judgment prompt, get back a structured
// verdict or an error. Concrete backends differ only in how they transport
// the request and parse the provider response; callers hold Backend values
// and never a provider-specific type.
package backend

import (
	"context"
	"fmt"
	"time"
)

// Request is a backend-agnostic judgment request: a fully rendered prompt
// plus structured metadata for provenance.
type Request struct {
	Prompt    string            // The rendered judgment prompt
	MaxTokens int               // 0 means the backend default
	Metadata  map[string]string // Caller provenance (rule name, pass number, ...)
}

// Conflict describes one detected conflict inside a verdict: what conflicts,
// where it arose, and what would resolve it.
type Conflict struct {
	Source         string `json:"source"`
	Target         string `json:"target"`
	Description    string `json:"description"`
	ResolutionHint string `json:"resolution_hint,omitempty"`
}

// Verdict is a structured, backend-independent judgment result. Raw keeps the
// unmodified provider response so non-determinism is auditable, not hidden.
type Verdict struct {
	Resolved  bool       `json:"resolved"`
	Output    string     `json:"output,omitempty"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
	Rationale string     `json:"rationale,omitempty"`
	Raw       string     `json:"-"`
}

// Backend is the capability interface consumed by every arbiter component.
// Implementations must be safe for concurrent use by multiple simultaneous
// evaluations.
type Backend interface {
	// Name identifies the backend configuration for provenance.
	Name() string
	// Judge sends a judgment request and returns a structured verdict.
	// A transport, timeout, or parse failure returns a *Error.
	Judge(ctx context.Context, req Request) (Verdict, error)
}

// Client is the full capability set of a concrete backend: the judge API
// plus raw completions, which the decomposer, rule evaluator, and scourer
// consume with their own prompt and response shapes.
type Client interface {
	Backend
	// Complete sends a prompt and returns the raw model response.
	Complete(ctx context.Context, req Request) (string, error)
}

// Error reports a single backend failure: transport, timeout, or an
// unparseable provider response. Recorded, not fatal, unless it is the last
// backend standing.
type Error struct {
	Backend  string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend %s failed after %d attempt(s): %v", e.Backend, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const (
	defaultTimeout  = 90 * time.Second
	defaultRetries  = 2
	retryBackoff    = 500 * time.Millisecond
	defaultMaxToken = 1024
)

// retry runs fn up to defaultRetries+1 times with linear backoff, stopping
// early on context cancellation. Parse failures are not retried; only the
// transport layer is.
func retry(ctx context.Context, name string, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= defaultRetries+1; attempt++ {
		raw, err := fn()
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", &Error{Backend: name, Attempts: attempt, Err: ctx.Err()}
		}
		select {
		case <-time.After(time.Duration(attempt) * retryBackoff):
		case <-ctx.Done():
			return "", &Error{Backend: name, Attempts: attempt, Err: ctx.Err()}
		}
	}
	return "", &Error{Backend: name, Attempts: defaultRetries + 1, Err: lastErr}
}
