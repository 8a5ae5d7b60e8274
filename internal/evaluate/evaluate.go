// Package evaluate runs compiled rule sets over decomposed blocks, producing
// a sparse interference index. Structural rules are pure and free; judgment
// rules cost a backend call each and run on a bounded worker pool.
package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fsgeek/arbiter/internal/backend"
	"github.com/fsgeek/arbiter/internal/block"
	"github.com/fsgeek/arbiter/internal/rules"
	"github.com/fsgeek/arbiter/internal/tensor"
)

// Completer is the slice of backend capability the evaluator needs.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req backend.Request) (string, error)
}

// RuleEvaluationError reports a judgment response that could not be parsed
// into a verdict. It is recorded as an Unknown-severity finding, never
// returned to the caller: a failed judgment is not evidence of no conflict.
type RuleEvaluationError struct {
	Rule    string
	BlockA  string
	BlockB  string
	Backend string
	Err     error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s on (%s, %s) via %s: %v", e.Rule, e.BlockA, e.BlockB, e.Backend, e.Err)
}

func (e *RuleEvaluationError) Unwrap() error { return e.Err }

// Engine evaluates block pairs against rules.
type Engine struct {
	concurrency int
	threshold   float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency bounds the backend worker pool, to respect provider rate
// limits. Default 5.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithThreshold drops findings at or below the given score. Default 0:
// keep any positive score.
func WithThreshold(t float64) Option {
	return func(e *Engine) { e.threshold = t }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{concurrency: 5}
	for _, o := range opts {
		o(e)
	}
	return e
}

func newIndex(blocks []*block.Block, cs *rules.CompiledRuleSet) *tensor.Index {
	ids := make([]string, len(blocks))
	for i, b := range blocks {
		ids[i] = b.ID
	}
	names := make([]string, len(cs.Rules))
	for i, r := range cs.Rules {
		names[i] = r.Name
	}
	return tensor.NewIndex(ids, names)
}

// EvaluateStructural runs only the structural rules. No backend calls, fully
// reproducible for a given (blocks, rules) input. This is the cheap first
// pass, suitable for CI.
func (e *Engine) EvaluateStructural(blocks []*block.Block, cs *rules.CompiledRuleSet) *tensor.Index {
	idx := newIndex(blocks, cs)
	for _, p := range cs.ApplicablePairs(blocks) {
		if p.Rule.RequiresBackend {
			continue
		}
		if f := e.evaluateStructuralPair(p); f != nil {
			idx.Add(f)
		}
	}
	return idx
}

func (e *Engine) evaluateStructuralPair(p rules.Pair) *tensor.Finding {
	fn, ok := structuralEvaluators[p.Rule.Type]
	if ok {
		score := fn(p.A, p.B)
		if score <= e.threshold || score <= 0 {
			return nil
		}
		return &tensor.Finding{
			SubjectA:    p.A.ID,
			SubjectB:    p.B.ID,
			Rule:        p.Rule.Name,
			Score:       score,
			Severity:    p.Rule.Severity,
			Explanation: fmt.Sprintf("Structural check: %s", p.Rule.Name),
			Static:      true,
		}
	}
	// Compiled rule set guarantees every structural rule has an evaluator
	// type; an unknown type is a configuration defect worth surfacing.
	return &tensor.Finding{
		SubjectA:    p.A.ID,
		SubjectB:    p.B.ID,
		Rule:        p.Rule.Name,
		Severity:    block.SeverityUnknown,
		Explanation: fmt.Sprintf("no structural evaluator for rule type %q", p.Rule.Type),
		Static:      true,
	}
}

type scorePayload struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// ParseScore turns a raw judgment response into a finding for one pair. A
// malformed response becomes an Unknown-severity finding carrying the error,
// not a dropped result.
func ParseScore(raw, backendName string, p rules.Pair) *tensor.Finding {
	extracted := backend.ExtractJSON(raw)
	var payload scorePayload
	if err := json.Unmarshal([]byte(extracted), &payload); err != nil {
		evalErr := &RuleEvaluationError{
			Rule: p.Rule.Name, BlockA: p.A.ID, BlockB: p.B.ID, Backend: backendName,
			Err: fmt.Errorf("unparseable judgment response: %w (raw: %.200s)", err, raw),
		}
		return &tensor.Finding{
			SubjectA:      p.A.ID,
			SubjectB:      p.B.ID,
			Rule:          p.Rule.Name,
			Severity:      block.SeverityUnknown,
			Explanation:   evalErr.Error(),
			SourceBackend: backendName,
			Raw:           raw,
		}
	}
	score := payload.Score
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return &tensor.Finding{
		SubjectA:      p.A.ID,
		SubjectB:      p.B.ID,
		Rule:          p.Rule.Name,
		Score:         score,
		Severity:      p.Rule.Severity,
		Explanation:   payload.Explanation,
		SourceBackend: backendName,
		Raw:           raw,
	}
}

// Evaluate runs the full rule set: structural rules first, then judgment
// rules on the residual pre-filtered pairs through the backend, bounded by
// the engine's concurrency limit.
//
// Cancellation returns ctx.Err() and no index; a cancelled evaluation yields
// no partial result. Individual backend failures do not abort the batch:
// each becomes an Unknown-severity finding with the error as explanation.
func (e *Engine) Evaluate(ctx context.Context, blocks []*block.Block, cs *rules.CompiledRuleSet, c Completer) (*tensor.Index, error) {
	idx := e.EvaluateStructural(blocks, cs)

	var pending []rules.Pair
	for _, p := range cs.ApplicablePairs(blocks) {
		if p.Rule.RequiresBackend {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return idx, nil
	}

	jobs := make(chan rules.Pair)
	results := make(chan *tensor.Finding)

	var wg sync.WaitGroup
	for range e.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				results <- e.evaluateBackendPair(ctx, p, c)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range pending {
			select {
			case jobs <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for f := range results {
		if f == nil {
			continue
		}
		if f.Severity == block.SeverityUnknown || f.Score > e.threshold {
			idx.Add(f)
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return idx, nil
}

func (e *Engine) evaluateBackendPair(ctx context.Context, p rules.Pair, c Completer) *tensor.Finding {
	prompt := p.Rule.RenderPrompt(p.A, p.B)
	raw, err := c.Complete(ctx, backend.Request{
		Prompt: prompt,
		Metadata: map[string]string{
			"operation": "rule-evaluation",
			"rule":      p.Rule.Name,
			"block_a":   p.A.ID,
			"block_b":   p.B.ID,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return &tensor.Finding{
			SubjectA:      p.A.ID,
			SubjectB:      p.B.ID,
			Rule:          p.Rule.Name,
			Severity:      block.SeverityUnknown,
			Explanation:   fmt.Sprintf("backend call failed: %v", err),
			SourceBackend: c.Name(),
		}
	}
	return ParseScore(raw, c.Name(), p)
}
