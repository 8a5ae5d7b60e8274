// Package registry maps empirical model characterization data to backend
// construction. It answers "which model should judge this domain?" and
// builds the backend, or an ensemble of the top performers, automatically.
package registry

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/fsgeek/arbiter/internal/backend"
	"github.com/fsgeek/arbiter/internal/ensemble"
)

// Default token counts for cost estimation, typical for a judge prompt
// and its response.
const (
	avgInputTokens  = 1500
	avgOutputTokens = 500
)

// DomainScore is measured performance on one evaluation domain.
type DomainScore struct {
	DetectionRate     float64 `json:"detection_rate" yaml:"detection_rate"`
	FalsePositiveRate float64 `json:"false_positive_rate" yaml:"false_positive_rate"`
	Trials            int     `json:"n_trials" yaml:"n_trials"`
}

// Profile is everything the registry knows about one model: identity,
// measured domain performance, known failure modes, and cost.
type Profile struct {
	Name       string `json:"name" yaml:"name"`
	APIModelID string `json:"api_model_id" yaml:"api_model_id"`
	Provider   string `json:"provider" yaml:"provider"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKeyEnv  string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`

	DomainScores      map[string]DomainScore `json:"domain_scores,omitempty" yaml:"domain_scores,omitempty"`
	FormatSensitivity float64                `json:"format_sensitivity,omitempty" yaml:"format_sensitivity,omitempty"`
	KnownIssues       []string               `json:"known_issues,omitempty" yaml:"known_issues,omitempty"`
	Disqualified      bool                   `json:"disqualified,omitempty" yaml:"disqualified,omitempty"`

	// Cost per million tokens. Zero means pricing unknown (or free for
	// local models); unknown cost passes budget filters.
	CostPerMillionIn  float64 `json:"cost_per_million_input,omitempty" yaml:"cost_per_million_input,omitempty"`
	CostPerMillionOut float64 `json:"cost_per_million_output,omitempty" yaml:"cost_per_million_output,omitempty"`
}

// EstimatedCostPerCall estimates the cost of one judge call in USD.
// Returns false when pricing is unknown.
func (p Profile) EstimatedCostPerCall() (float64, bool) {
	if p.CostPerMillionIn == 0 && p.CostPerMillionOut == 0 {
		return 0, false
	}
	cost := p.CostPerMillionIn*avgInputTokens/1e6 + p.CostPerMillionOut*avgOutputTokens/1e6
	return cost, true
}

// Registry holds model profiles with domain-aware selection.
type Registry struct {
	profiles map[string]Profile
	order    []string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{profiles: make(map[string]Profile)}
}

// WithDefaults returns a registry pre-loaded with the built-in profiles.
func WithDefaults() *Registry {
	r := New()
	for _, p := range defaultProfiles {
		r.Register(p)
	}
	return r
}

// Register adds or overwrites a profile.
func (r *Registry) Register(p Profile) {
	if _, ok := r.profiles[p.Name]; !ok {
		r.order = append(r.order, p.Name)
	}
	r.profiles[p.Name] = p
}

// Get retrieves a profile by name.
func (r *Registry) Get(name string) (Profile, error) {
	p, ok := r.profiles[name]
	if !ok {
		known := append([]string(nil), r.order...)
		sort.Strings(known)
		return Profile{}, fmt.Errorf("no model profile named %q (registered: %v)", name, known)
	}
	return p, nil
}

// Profiles returns all registered profiles in insertion order.
func (r *Registry) Profiles() []Profile {
	out := make([]Profile, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.profiles[name])
	}
	return out
}

// SelectOptions filter and bound profile selection.
type SelectOptions struct {
	// BudgetUSD is a per-call cost ceiling. Zero means no ceiling.
	// Profiles with unknown cost always pass.
	BudgetUSD float64

	// MinDetectionRate and MaxFalsePositiveRate filter measured domain
	// scores. Unmeasured profiles pass; lack of data is not penalized.
	MinDetectionRate     float64
	MaxFalsePositiveRate float64

	// IncludeDisqualified admits profiles marked disqualified.
	IncludeDisqualified bool
}

// Select ranks models for a domain, best first. Measured profiles sort
// before unmeasured ones, then by detection rate descending, then by cost
// ascending. Unmeasured profiles keep insertion order at the end.
func (r *Registry) Select(domain string, opts SelectOptions) []Profile {
	if opts.MaxFalsePositiveRate == 0 {
		opts.MaxFalsePositiveRate = 1.0
	}

	var candidates []Profile
	for _, name := range r.order {
		p := r.profiles[name]
		if p.Disqualified && !opts.IncludeDisqualified {
			continue
		}
		if opts.BudgetUSD > 0 {
			if cost, known := p.EstimatedCostPerCall(); known && cost > opts.BudgetUSD {
				continue
			}
		}
		if score, measured := p.DomainScores[domain]; measured {
			if score.DetectionRate < opts.MinDetectionRate {
				continue
			}
			if score.FalsePositiveRate > opts.MaxFalsePositiveRate {
				continue
			}
		}
		candidates = append(candidates, p)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		si, mi := candidates[i].DomainScores[domain]
		sj, mj := candidates[j].DomainScores[domain]
		if mi != mj {
			return mi
		}
		if !mi {
			return false
		}
		if si.DetectionRate != sj.DetectionRate {
			return si.DetectionRate > sj.DetectionRate
		}
		ci, _ := candidates[i].EstimatedCostPerCall()
		cj, _ := candidates[j].EstimatedCostPerCall()
		return ci < cj
	})
	return candidates
}

// MakeBackend builds a backend for the best model on a domain, or for the
// named profile when name is non-empty. The API key is read from the
// environment at construction time.
func (r *Registry) MakeBackend(ctx context.Context, domain, name string, opts SelectOptions) (backend.Backend, error) {
	var profile Profile
	if name != "" {
		p, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		profile = p
	} else {
		ranked := r.Select(domain, opts)
		if len(ranked) == 0 {
			return nil, fmt.Errorf("no models qualify for domain %q", domain)
		}
		profile = ranked[0]
	}
	return r.build(ctx, profile)
}

// MakeEnsemble builds an ensemble over the top maxModels profiles for a
// domain. maxModels defaults to 2 when zero.
func (r *Registry) MakeEnsemble(ctx context.Context, domain string, maxModels int, opts SelectOptions) (*ensemble.Ensemble, error) {
	if maxModels <= 0 {
		maxModels = 2
	}
	ranked := r.Select(domain, opts)
	if len(ranked) == 0 {
		return nil, fmt.Errorf("no models qualify for domain %q", domain)
	}
	if len(ranked) > maxModels {
		ranked = ranked[:maxModels]
	}

	backends := make([]backend.Backend, 0, len(ranked))
	for _, p := range ranked {
		b, err := r.build(ctx, p)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	return ensemble.New(backends)
}

func (r *Registry) build(ctx context.Context, p Profile) (backend.Backend, error) {
	var apiKey string
	if p.APIKeyEnv != "" {
		apiKey = os.Getenv(p.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found: set %s in environment (required for model %q)",
				p.APIKeyEnv, p.Name)
		}
	}
	c, err := backend.New(ctx, backend.Options{
		Provider: p.Provider,
		Name:     p.Name,
		APIKey:   apiKey,
		Model:    p.APIModelID,
		BaseURL:  p.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
