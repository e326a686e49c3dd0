// Package score fuses image, text and judge signals into a confidence that a
// candidate profile belongs to the seed identity.
package score

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeGROOVE-dev/personamatch/pkg/avatar"
	"github.com/codeGROOVE-dev/personamatch/pkg/embed"
	"github.com/codeGROOVE-dev/personamatch/pkg/metrics"
	"github.com/codeGROOVE-dev/personamatch/pkg/persona"
)

// ImageScorer compares two image URLs. *avatar.Comparer implements it.
type ImageScorer interface {
	Score(ctx context.Context, url1, url2 string) (float64, error)
}

// Scorer computes ScoreComponents for (seed, candidate) pairs. Every port is
// optional; a missing port yields 0 for its sub-score. Scoring never fails.
type Scorer struct {
	image  ImageScorer
	text   embed.Embedder
	judge  Judge
	policy FusionPolicy
	logger *slog.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithImageScorer sets the image signal.
func WithImageScorer(s ImageScorer) Option {
	return func(sc *Scorer) { sc.image = s }
}

// WithEmbedder sets the text signal's embedder.
func WithEmbedder(e embed.Embedder) Option {
	return func(sc *Scorer) { sc.text = e }
}

// WithJudge sets the judge. The default is HeuristicJudge.
func WithJudge(j Judge) Option {
	return func(sc *Scorer) { sc.judge = j }
}

// WithPolicy sets the fusion policy. The default is EpsilonPolicy.
func WithPolicy(p FusionPolicy) Option {
	return func(sc *Scorer) { sc.policy = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(sc *Scorer) { sc.logger = logger }
}

// New creates a Scorer.
func New(opts ...Option) *Scorer {
	s := &Scorer{judge: HeuristicJudge{}, policy: NewEpsilonPolicy(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Policy returns the fusion policy in use.
func (s *Scorer) Policy() FusionPolicy { return s.policy }

// Score computes the three sub-scores independently and fuses them.
func (s *Scorer) Score(ctx context.Context, seed persona.EnrichedRecord, cand persona.CandidateRecord) persona.ScoreComponents {
	sub := Subscores{
		Image: s.imageScore(ctx, seed, cand),
		Text:  s.textScore(ctx, seed, cand),
	}
	var rationale string
	sub.Judge, rationale = s.judgeScore(ctx, seed, cand)

	f := s.policy.Fuse(sub)
	sc := persona.ScoreComponents{
		URL:               cand.URL,
		ImageScore:        sub.Image,
		TextScore:         sub.Text,
		JudgeScore:        sub.Judge,
		JudgeRationale:    rationale,
		OverallConfidence: f.Confidence,
		WeightsUsed:       f.Weights,
		TotalWeight:       f.Total,
		Summary:           f.Summary,
	}
	if len(f.Excluded) > 0 {
		sc.Excluded = f.Excluded
	}
	s.logger.DebugContext(ctx, "scored candidate", "url", cand.URL, "policy", s.policy.Name(),
		"image", sub.Image, "text", sub.Text, "judge", sub.Judge, "confidence", f.Confidence)
	return sc
}

func (s *Scorer) failed(ctx context.Context, sig persona.Signal, url string, err error) {
	metrics.ScoringFailures.WithLabelValues(string(sig)).Inc()
	s.logger.WarnContext(ctx, "sub-score failed", "signal", sig, "url", url, "error", fmt.Errorf("%w: %w", persona.ErrScoring, err))
}

func (s *Scorer) imageScore(ctx context.Context, seed persona.EnrichedRecord, cand persona.CandidateRecord) float64 {
	if s.image == nil {
		return 0
	}
	v, err := s.image.Score(ctx, seed.Original.Image, cand.Image)
	if errors.Is(err, avatar.ErrNoImage) {
		return 0
	}
	if err != nil {
		s.failed(ctx, persona.SignalImage, cand.URL, err)
		return 0
	}
	return embed.Clamp01(v)
}

// TextScore is the cosine similarity of the seed narrative and the candidate's about
// text. Empty text on either side, or a degenerate embedding, scores 0.
func TextScore(ctx context.Context, e embed.Embedder, seedText, candText string) (float64, error) {
	seedText, candText = strings.TrimSpace(seedText), strings.TrimSpace(candText)
	if e == nil || seedText == "" || candText == "" {
		return 0, nil
	}
	a, err := e.Embed(ctx, seedText)
	if err != nil {
		return 0, fmt.Errorf("embed seed text: %w", err)
	}
	b, err := e.Embed(ctx, candText)
	if err != nil {
		return 0, fmt.Errorf("embed candidate text: %w", err)
	}
	return embed.Clamp01(embed.Cosine(a, b)), nil
}

func (s *Scorer) textScore(ctx context.Context, seed persona.EnrichedRecord, cand persona.CandidateRecord) float64 {
	v, err := TextScore(ctx, s.text, seed.Intro, cand.About)
	if err != nil {
		s.failed(ctx, persona.SignalText, cand.URL, err)
		return 0
	}
	return v
}

func (s *Scorer) judgeScore(ctx context.Context, seed persona.EnrichedRecord, cand persona.CandidateRecord) (float64, string) {
	if s.judge == nil {
		return 0, ""
	}
	v, err := s.judge.Judge(ctx, seed, cand)
	switch {
	case errors.Is(err, ErrInvalidVerdict):
		s.failed(ctx, persona.SignalJudge, cand.URL, err)
		return 0, ValidationError
	case err != nil:
		s.failed(ctx, persona.SignalJudge, cand.URL, err)
		return 0, ServiceError
	}
	return embed.Clamp01(v.Score), v.Reason
}
