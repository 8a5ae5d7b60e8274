// Package pipeline orchestrates end-to-end interference analysis:
// decompose, evaluate, assemble, summarize.
//
// Two modes. Structural-only runs in milliseconds with no API calls and
// catches verbatim duplication and priority marker ambiguity; good for CI
// or first-pass screening. Full analysis adds backend-judged rules for
// semantic interference and costs money.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fsgeek/arbiter/internal/block"
	"github.com/fsgeek/arbiter/internal/decompose"
	"github.com/fsgeek/arbiter/internal/evaluate"
	"github.com/fsgeek/arbiter/internal/rules"
	"github.com/fsgeek/arbiter/internal/storage"
	"github.com/fsgeek/arbiter/internal/tensor"
)

// Result is the full pipeline output for one document.
type Result struct {
	Blocks  []*block.Block `json:"blocks"`
	Index   *tensor.Index  `json:"index"`
	Score   float64        `json:"score"`
	Summary string         `json:"summary"`
}

// Analyzer runs a compiled rule set over decomposed blocks.
type Analyzer struct {
	ruleset *rules.CompiledRuleSet
	engine  *evaluate.Engine
}

// NewAnalyzer builds an analyzer over a compiled rule set. Engine options
// (concurrency, score threshold) pass through to the evaluator.
func NewAnalyzer(cs *rules.CompiledRuleSet, opts ...evaluate.Option) *Analyzer {
	return &Analyzer{
		ruleset: cs,
		engine:  evaluate.NewEngine(opts...),
	}
}

// RuleSet returns the compiled rule set this analyzer evaluates.
func (a *Analyzer) RuleSet() *rules.CompiledRuleSet { return a.ruleset }

// Decompose splits a document into blocks. With a nil completer the
// heuristic splitter runs; otherwise the backend decomposer does, guided
// by the rule set's category vocabulary.
func (a *Analyzer) Decompose(ctx context.Context, c decompose.Completer, text, source string) ([]*block.Block, error) {
	if c == nil {
		return decompose.Heuristic(text, source, ""), nil
	}
	d := decompose.NewDecomposer(a.ruleset.Guidance())
	return d.Decompose(ctx, c, text, source)
}

// AnalyzeStructural evaluates structural rules only. No API calls.
func (a *Analyzer) AnalyzeStructural(blocks []*block.Block) *Result {
	idx := a.engine.EvaluateStructural(blocks, a.ruleset)
	return resultFrom(blocks, idx)
}

// Analyze evaluates the full rule set: structural rules plus the
// backend-judged pairs that survive the pre-filter. Returns no result on
// context cancellation.
func (a *Analyzer) Analyze(ctx context.Context, blocks []*block.Block, c evaluate.Completer) (*Result, error) {
	idx, err := a.engine.Evaluate(ctx, blocks, a.ruleset, c)
	if err != nil {
		return nil, err
	}
	return resultFrom(blocks, idx), nil
}

func resultFrom(blocks []*block.Block, idx *tensor.Index) *Result {
	return &Result{
		Blocks:  blocks,
		Index:   idx,
		Score:   idx.SummaryScore(),
		Summary: idx.SummaryReport(),
	}
}

// Run converts a result into a storage record for the history database.
func (r *Result) Run(source string) *storage.Run {
	blocks := make([]block.Block, len(r.Blocks))
	for i, b := range r.Blocks {
		blocks[i] = *b
	}
	return &storage.Run{
		ID:        uuid.NewString(),
		Source:    source,
		CreatedAt: time.Now().UTC(),
		Blocks:    blocks,
		Index:     r.Index,
		Score:     r.Score,
		Summary:   r.Summary,
	}
}
