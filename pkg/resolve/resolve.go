// Package resolve drives one resolution run: enrich, discover, acquire, score, select.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codeGROOVE-dev/personamatch/pkg/acquire"
	"github.com/codeGROOVE-dev/personamatch/pkg/metrics"
	"github.com/codeGROOVE-dev/personamatch/pkg/persona"
)

// DefaultMaxResults bounds the structured search per run.
const DefaultMaxResults = 12

// Enricher produces the enriched record and its augmented narrative.
type Enricher interface {
	Enrich(ctx context.Context, seed persona.SeedRecord) (persona.EnrichedRecord, error)
	AugmentNarrative(ctx context.Context, rec persona.EnrichedRecord) persona.EnrichedRecord
}

// Discoverer returns the unioned candidate URL set.
type Discoverer interface {
	Discover(ctx context.Context, rec persona.EnrichedRecord, maxResults int) []string
}

// Acquirer turns URLs into candidate records, skipping failures.
type Acquirer interface {
	Acquire(ctx context.Context, urls []string) []persona.CandidateRecord
}

// Scorer scores one (seed, candidate) pair.
type Scorer interface {
	Score(ctx context.Context, seed persona.EnrichedRecord, cand persona.CandidateRecord) persona.ScoreComponents
}

// Resolver resolves seeds to their best-matching profile. Per-run state (the
// acquisition session and the scorer with its image cache) is created fresh for
// every Resolve call, so one Resolver may serve concurrent runs.
type Resolver struct {
	enricher   Enricher
	discoverer Discoverer
	newSession func() Acquirer
	newScorer  func() Scorer
	logger     *slog.Logger
	savePath   string
	maxResults int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithMaxResults sets the structured-search result bound.
func WithMaxResults(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxResults = n
		}
	}
}

// WithSessionFactory sets how each run's acquisition session is built.
func WithSessionFactory(fn func() Acquirer) Option {
	return func(r *Resolver) { r.newSession = fn }
}

// WithScorerFactory sets how each run's scorer is built.
func WithScorerFactory(fn func() Scorer) Option {
	return func(r *Resolver) { r.newScorer = fn }
}

// WithSaveCandidates writes every acquired candidate to path as JSON.
func WithSaveCandidates(path string) Option {
	return func(r *Resolver) { r.savePath = path }
}

// New creates a Resolver.
func New(enricher Enricher, discoverer Discoverer, opts ...Option) *Resolver {
	r := &Resolver{
		enricher:   enricher,
		discoverer: discoverer,
		logger:     slog.Default(),
		maxResults: DefaultMaxResults,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.newSession == nil {
		logger := r.logger
		r.newSession = func() Acquirer { return acquire.NewSession(acquire.WithLogger(logger)) }
	}
	return r
}

// Resolve runs the pipeline for one seed. Finding no candidate is a valid
// outcome reported as persona.NoMatch, not an error. Enrichment failures
// (*persona.ExtractionError) and configuration errors are returned.
func (r *Resolver) Resolve(ctx context.Context, seed persona.SeedRecord) (persona.MatchResult, error) {
	if r.enricher == nil || r.discoverer == nil || r.newScorer == nil {
		return persona.MatchResult{}, fmt.Errorf("%w: resolver is missing a component", persona.ErrConfiguration)
	}

	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)
	start := time.Now()
	metrics.ResolutionsInFlight.Inc()
	defer func() {
		metrics.ResolutionsInFlight.Dec()
		metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
	}()

	logger.InfoContext(ctx, "resolution started", "name", seed.Name)
	result, err := r.run(ctx, logger, seed)
	switch {
	case err != nil:
		metrics.ResolutionsTotal.WithLabelValues("error").Inc()
		logger.ErrorContext(ctx, "resolution failed", "error", err, "elapsed", time.Since(start).Round(time.Millisecond))
		return persona.MatchResult{}, err
	case result.Found():
		metrics.ResolutionsTotal.WithLabelValues("match").Inc()
		metrics.Confidence.Observe(result.Confidence)
	default:
		metrics.ResolutionsTotal.WithLabelValues("no_match").Inc()
	}
	logger.InfoContext(ctx, "resolution finished",
		"matched_url", result.MatchedURL,
		"confidence", result.Confidence,
		"candidates", len(result.AllScores),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return result, nil
}

func (r *Resolver) run(ctx context.Context, logger *slog.Logger, seed persona.SeedRecord) (persona.MatchResult, error) {
	rec, err := r.enricher.Enrich(ctx, seed)
	if err != nil {
		return persona.MatchResult{}, err
	}
	rec = r.enricher.AugmentNarrative(ctx, rec)
	logger.DebugContext(ctx, "enriched seed", "name", rec.Name(), "companies", rec.CompanyNames, "links", len(rec.ExtraLinks))

	urls := r.discoverer.Discover(ctx, rec, r.maxResults)
	if len(urls) == 0 {
		logger.InfoContext(ctx, "no candidate URLs discovered")
		return persona.NoMatch(), ctxErr(ctx)
	}

	candidates := r.newSession().Acquire(ctx, urls)
	if r.savePath != "" {
		if err := acquire.SaveJSON(r.savePath, candidates); err != nil {
			logger.WarnContext(ctx, "saving candidates failed", "path", r.savePath, "error", err)
		} else {
			logger.InfoContext(ctx, "saved candidates", "path", r.savePath, "count", len(candidates))
		}
	}
	candidates = usable(ctx, logger, candidates)
	if len(candidates) == 0 {
		logger.InfoContext(ctx, "no usable candidates", "urls", len(urls))
		return persona.NoMatch(), ctxErr(ctx)
	}

	return Select(ctx, r.newScorer(), rec, candidates), ctxErr(ctx)
}

// usable drops candidates that cannot be compared by identity.
func usable(ctx context.Context, logger *slog.Logger, candidates []persona.CandidateRecord) []persona.CandidateRecord {
	out := candidates[:0:0]
	for _, c := range candidates {
		if err := c.Validate(); err != nil {
			logger.DebugContext(ctx, "discarding candidate", "error", err)
			continue
		}
		out = append(out, c)
	}
	return out
}

// Select scores every candidate and returns the first one with the highest
// confidence. An empty candidate list yields persona.NoMatch.
func Select(ctx context.Context, s Scorer, seed persona.EnrichedRecord, candidates []persona.CandidateRecord) persona.MatchResult {
	if len(candidates) == 0 {
		return persona.NoMatch()
	}
	result := persona.MatchResult{AllScores: make([]persona.ScoreComponents, 0, len(candidates))}
	best := -1
	for i, c := range candidates {
		sc := s.Score(ctx, seed, c)
		result.AllScores = append(result.AllScores, sc)
		if best < 0 || sc.OverallConfidence > result.Confidence {
			best = i
			result.Confidence = sc.OverallConfidence
		}
	}
	result.MatchedURL = candidates[best].URL
	return result
}

// ctxErr reports a run cut short by cancellation; its partial result is discarded.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("resolution interrupted: %w", err)
	}
	return nil
}
