package ensemble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsgeek/arbiter/internal/backend"
)

const defaultBackendTimeout = 120 * time.Second

// Result is the merged outcome of an ensemble evaluation. Resolved and
// Conflicts are mutually exclusive: a result either carries a cleanly
// resolved output or the set of conflicts that prevented resolution.
type Result struct {
	Resolved  bool               `json:"resolved"`
	Output    string             `json:"output,omitempty"`
	Conflicts []backend.Conflict `json:"conflicts,omitempty"`

	// Verdicts holds each responsive backend's individual verdict,
	// keyed by backend name, for audit and disagreement analysis.
	Verdicts map[string]backend.Verdict `json:"verdicts,omitempty"`

	// BackendErrors records backends that failed to produce a verdict.
	// Partial failure does not abort evaluation; the remaining backends
	// still vote.
	BackendErrors []*backend.Error `json:"backend_errors,omitempty"`
}

// EnsembleUnavailableError means every backend in the panel failed, so no
// verdict exists at all. This is fatal to the evaluation: an absent verdict
// must never be read as a clean one.
type EnsembleUnavailableError struct {
	Errors []*backend.Error
}

func (e *EnsembleUnavailableError) Error() string {
	names := make([]string, len(e.Errors))
	for i, be := range e.Errors {
		names[i] = be.Backend
	}
	return fmt.Sprintf("ensemble unavailable: all %d backends failed (%s)",
		len(e.Errors), strings.Join(names, ", "))
}

// Ensemble runs a panel of judge backends over a request and merges their
// verdicts. Detection is OR-gated: one flagging backend is enough to mark
// the request conflicted. A clean resolution requires unanimity among the
// backends that responded.
type Ensemble struct {
	backends []backend.Backend
	timeout  time.Duration
}

// Option configures an Ensemble.
type Option func(*Ensemble)

// WithTimeout sets the per-backend deadline. Each backend gets its own
// independent timeout so one slow judge cannot starve the others.
func WithTimeout(d time.Duration) Option {
	return func(e *Ensemble) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// New builds an ensemble over the given backends. At least one backend
// is required.
func New(backends []backend.Backend, opts ...Option) (*Ensemble, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("ensemble requires at least one backend")
	}
	e := &Ensemble{backends: backends, timeout: defaultBackendTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Backends returns the names of the panel members in order.
func (e *Ensemble) Backends() []string {
	names := make([]string, len(e.backends))
	for i, b := range e.backends {
		names[i] = b.Name()
	}
	return names
}

// Evaluate runs every backend concurrently and merges the verdicts.
//
// Merge rules:
//   - Any backend flagging conflicts makes the result unresolved, with
//     conflicts from all flagging backends collected and deduplicated.
//   - If all responsive backends agree clean, the result is resolved with
//     the first clean output (all agreed, so the choice is arbitrary but
//     deterministic by panel order).
//   - Backend failures are recorded in BackendErrors and tolerated, unless
//     every backend fails, which returns EnsembleUnavailableError.
func (e *Ensemble) Evaluate(ctx context.Context, req Request) (Result, error) {
	prompt := BuildPrompt(req)

	type outcome struct {
		name    string
		verdict backend.Verdict
		err     error
	}

	outcomes := make([]outcome, len(e.backends))
	var wg sync.WaitGroup
	for i, b := range e.backends {
		wg.Add(1)
		go func(i int, b backend.Backend) {
			defer wg.Done()
			bctx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()
			v, err := b.Judge(bctx, backend.Request{Prompt: prompt})
			outcomes[i] = outcome{name: b.Name(), verdict: v, err: err}
		}(i, b)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{Verdicts: make(map[string]backend.Verdict)}
	var (
		conflicts  []backend.Conflict
		flagged    bool
		haveOutput bool
	)
	for _, o := range outcomes {
		if o.err != nil {
			var be *backend.Error
			if !errors.As(o.err, &be) {
				be = &backend.Error{Backend: o.name, Attempts: 1, Err: o.err}
			}
			res.BackendErrors = append(res.BackendErrors, be)
			continue
		}
		res.Verdicts[o.name] = o.verdict
		if !o.verdict.Resolved {
			flagged = true
			conflicts = append(conflicts, o.verdict.Conflicts...)
		} else if !haveOutput {
			res.Output = o.verdict.Output
			haveOutput = true
		}
	}

	if len(res.Verdicts) == 0 {
		return Result{}, &EnsembleUnavailableError{Errors: res.BackendErrors}
	}

	if flagged {
		res.Resolved = false
		res.Output = ""
		res.Conflicts = dedupConflicts(conflicts)
		return res, nil
	}

	res.Resolved = true
	return res, nil
}

// dedupConflicts collapses conflicts reporting the same pair of entries.
// The pair is compared unordered and case-insensitively so two backends
// describing the same collision in opposite directions merge into one.
func dedupConflicts(conflicts []backend.Conflict) []backend.Conflict {
	seen := make(map[string]struct{}, len(conflicts))
	unique := make([]backend.Conflict, 0, len(conflicts))
	for _, c := range conflicts {
		a := normalizeEntry(c.Source)
		b := normalizeEntry(c.Target)
		if b < a {
			a, b = b, a
		}
		key := a + "\x00" + b
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, c)
	}
	return unique
}

func normalizeEntry(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
