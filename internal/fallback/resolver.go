// Package fallback resolves skills for a normalized title from the reference
// table when the classifier yields nothing. Tiers are tried in order: direct
// lookup, high-confidence fuzzy match, moderate-confidence fuzzy match, none.
// Resolution never fails; exhausting the tiers returns an empty result.
package fallback

import (
	"context"

	"skill-recommender/internal/reference"
	"skill-recommender/internal/shared/metrics"
	"skill-recommender/internal/shared/telemetry"
)

const (
	DefaultHighConfidence = 90.0
	DefaultLowConfidence  = 80.0
)

type Tier int

const (
	TierNone Tier = iota
	TierDirect
	TierFuzzyHigh
	TierFuzzyModerate
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierFuzzyHigh:
		return "fuzzy_high"
	case TierFuzzyModerate:
		return "fuzzy_moderate"
	default:
		return "none"
	}
}

// Result is the outcome of a resolution. MatchedTitle and Score are set for
// fuzzy tiers, and for TierNone when a below-threshold candidate existed.
type Result struct {
	Skills       []string
	Tier         Tier
	MatchedTitle string
	Score        float64
}

// TableSource supplies the reference table.
type TableSource interface {
	Load(ctx context.Context) (*reference.Table, error)
}

type Resolver struct {
	source  TableSource
	matcher Matcher
	high    float64
	low     float64
}

type Option func(*Resolver)

// WithThresholds overrides the fuzzy confidence bands.
func WithThresholds(high, low float64) Option {
	return func(r *Resolver) {
		r.high, r.low = high, low
	}
}

// NewResolver builds a Resolver. A nil matcher disables the fuzzy tiers.
func NewResolver(source TableSource, matcher Matcher, opts ...Option) *Resolver {
	r := &Resolver{
		source:  source,
		matcher: matcher,
		high:    DefaultHighConfidence,
		low:     DefaultLowConfidence,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns up to topN skills for normalizedTitle.
func (r *Resolver) Resolve(ctx context.Context, normalizedTitle string, topN int) Result {
	res := r.resolve(ctx, normalizedTitle)
	if topN >= 0 && len(res.Skills) > topN {
		res.Skills = res.Skills[:topN]
	}
	metrics.IncFallbackTier(res.Tier.String())
	return res
}

func (r *Resolver) resolve(ctx context.Context, title string) Result {
	table, err := r.source.Load(ctx)
	if err != nil {
		telemetry.Error("fallback.reference_unavailable", map[string]any{"title": title, "error": err})
		return Result{Tier: TierNone}
	}

	if skills, ok := table.Lookup(title); ok {
		return Result{Skills: skills, Tier: TierDirect, MatchedTitle: title, Score: 100}
	}

	if r.matcher == nil {
		return Result{Tier: TierNone}
	}
	match, score, ok := r.matcher.Best(title, table.Titles())
	if !ok {
		return Result{Tier: TierNone}
	}

	switch {
	case score >= r.high:
		skills, _ := table.Lookup(match)
		telemetry.Info("fallback.fuzzy_high", map[string]any{"title": title, "match": match, "score": score})
		return Result{Skills: skills, Tier: TierFuzzyHigh, MatchedTitle: match, Score: score}
	case score >= r.low:
		skills, _ := table.Lookup(match)
		telemetry.Warn("fallback.fuzzy_moderate", map[string]any{"title": title, "match": match, "score": score})
		return Result{Skills: skills, Tier: TierFuzzyModerate, MatchedTitle: match, Score: score}
	default:
		telemetry.Info("fallback.no_match", map[string]any{"title": title, "best": match, "score": score})
		return Result{Tier: TierNone, MatchedTitle: match, Score: score}
	}
}
