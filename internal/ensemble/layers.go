// Package ensemble evaluates three-layer requests against a panel of
// judge backends. The system layer is the constitution for the evaluation,
// the domain layer carries the knowledge under scrutiny, and the query is
// what the caller wants resolved. Detection is OR-gated: any backend that
// flags a conflict makes the whole ensemble flag it, and a clean verdict
// requires every responsive backend to agree.
package ensemble

import (
	"fmt"
	"strings"

	"github.com/fsgeek/arbiter/internal/block"
	"github.com/fsgeek/arbiter/internal/decompose"
)

// SystemLayer is the invariant rule set governing how judges evaluate.
// It must be internally consistent; NewRequest validates this before
// any backend sees the request.
type SystemLayer struct {
	Name  string   `json:"name" yaml:"name"`
	Rules []string `json:"rules" yaml:"rules"`
}

// DomainLayer holds the contextual knowledge entries under evaluation.
// Conflicts within this layer are expected and are what the ensemble
// exists to surface.
type DomainLayer struct {
	Name    string   `json:"name" yaml:"name"`
	Entries []string `json:"entries" yaml:"entries"`
}

// Request is an immutable three-layer evaluation request. Construct it
// with NewRequest so the foundational consistency check always runs.
type Request struct {
	system SystemLayer
	domain DomainLayer
	query  string
}

// System returns the request's system layer.
func (r Request) System() SystemLayer { return r.system }

// Domain returns the request's domain layer.
func (r Request) Domain() DomainLayer { return r.domain }

// Query returns the request's user query.
func (r Request) Query() string { return r.query }

// FoundationalConsistencyError reports that a system layer contradicts
// itself. A request built on an inconsistent constitution cannot produce
// a trustworthy verdict, so construction fails instead.
type FoundationalConsistencyError struct {
	Layer string
	RuleA string
	RuleB string
	Scope string
}

func (e *FoundationalConsistencyError) Error() string {
	return fmt.Sprintf(
		"system layer %q is internally inconsistent: %q and %q impose opposing constraints on scope %q",
		e.Layer, e.RuleA, e.RuleB, e.Scope,
	)
}

// NewRequest builds an evaluation request after checking the system layer
// for internal contradictions. Two rules contradict when one mandates and
// the other prohibits behavior in the same named scope.
func NewRequest(system SystemLayer, domain DomainLayer, query string) (Request, error) {
	if err := checkFoundational(system); err != nil {
		return Request{}, err
	}
	return Request{system: system, domain: domain, query: query}, nil
}

func checkFoundational(system SystemLayer) error {
	type classified struct {
		rule     string
		modality block.Modality
		scopes   []string
	}
	rs := make([]classified, 0, len(system.Rules))
	for _, rule := range system.Rules {
		modality, _, scopes := decompose.ClassifyText(rule)
		rs = append(rs, classified{rule: rule, modality: modality, scopes: scopes})
	}
	for i := 0; i < len(rs); i++ {
		for j := i + 1; j < len(rs); j++ {
			a, b := rs[i], rs[j]
			if !opposingModalities(a.modality, b.modality) {
				continue
			}
			if scope := sharedNamedScope(a.scopes, b.scopes); scope != "" {
				return &FoundationalConsistencyError{
					Layer: system.Name,
					RuleA: a.rule,
					RuleB: b.rule,
					Scope: scope,
				}
			}
		}
	}
	return nil
}

func opposingModalities(a, b block.Modality) bool {
	return (a == block.ModalityMandate && b == block.ModalityProhibition) ||
		(a == block.ModalityProhibition && b == block.ModalityMandate)
}

// sharedNamedScope returns the first scope both rules name, ignoring the
// catch-all "general" scope so unrelated rules are not flagged merely for
// lacking a recognizable topic.
func sharedNamedScope(as, bs []string) string {
	for _, a := range as {
		if strings.EqualFold(a, "general") {
			continue
		}
		for _, b := range bs {
			if strings.EqualFold(a, b) {
				return a
			}
		}
	}
	return ""
}
