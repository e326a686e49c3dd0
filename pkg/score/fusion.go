package score

import (
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/personamatch/pkg/embed"
	"github.com/codeGROOVE-dev/personamatch/pkg/persona"
)

// DefaultThreshold is the minimum sub-score ThresholdPolicy includes.
const DefaultThreshold = 0.1

var signals = []persona.Signal{persona.SignalImage, persona.SignalText, persona.SignalJudge}

// BaseWeights apply when every signal is usable.
func BaseWeights() map[persona.Signal]float64 {
	return map[persona.Signal]float64{
		persona.SignalImage: 0.60,
		persona.SignalText:  0.25,
		persona.SignalJudge: 0.15,
	}
}

// NoImageWeights apply when the image signal is unusable.
func NoImageWeights() map[persona.Signal]float64 {
	return map[persona.Signal]float64{
		persona.SignalImage: 0,
		persona.SignalText:  0.75,
		persona.SignalJudge: 0.25,
	}
}

// Subscores holds the three independent signals, each in [0, 1].
type Subscores struct {
	Image float64
	Text  float64
	Judge float64
}

func (s Subscores) get(sig persona.Signal) float64 {
	switch sig {
	case persona.SignalImage:
		return s.Image
	case persona.SignalText:
		return s.Text
	default:
		return s.Judge
	}
}

// Fusion is the outcome of combining sub-scores.
type Fusion struct {
	Weights    map[persona.Signal]float64
	Excluded   map[persona.Signal]string
	Summary    string
	Confidence float64
	Total      float64
}

// FusionPolicy combines sub-scores into one confidence in [0, 1].
type FusionPolicy interface {
	Name() string
	Fuse(s Subscores) Fusion
}

// EpsilonPolicy uses BaseWeights, switching to NoImageWeights when the image
// score is below Epsilon.
type EpsilonPolicy struct {
	Epsilon float64
}

// NewEpsilonPolicy returns the default policy.
func NewEpsilonPolicy() EpsilonPolicy { return EpsilonPolicy{Epsilon: embed.Epsilon} }

// Name implements FusionPolicy.
func (EpsilonPolicy) Name() string { return "epsilon" }

// Fuse implements FusionPolicy.
func (p EpsilonPolicy) Fuse(s Subscores) Fusion {
	weights := BaseWeights()
	note := ""
	if s.Image < p.Epsilon {
		weights = NoImageWeights()
		note = " (no usable image, weights redistributed)"
	}
	conf, total := weighted(s, weights)
	return Fusion{
		Weights:    weights,
		Confidence: conf,
		Total:      total,
		Summary:    fmt.Sprintf("%.2f from %s%s", conf, describe(s, weights), note),
	}
}

// ThresholdPolicy excludes any sub-score below Threshold from both numerator and
// denominator and reports the weight fraction actually used.
type ThresholdPolicy struct {
	Threshold float64
}

// NewThresholdPolicy returns a ThresholdPolicy; a non-positive t selects DefaultThreshold.
func NewThresholdPolicy(t float64) ThresholdPolicy {
	if t <= 0 {
		t = DefaultThreshold
	}
	return ThresholdPolicy{Threshold: t}
}

// Name implements FusionPolicy.
func (ThresholdPolicy) Name() string { return "threshold" }

// Fuse implements FusionPolicy.
func (p ThresholdPolicy) Fuse(s Subscores) Fusion {
	weights := BaseWeights()
	excluded := map[persona.Signal]string{}
	for _, sig := range signals {
		if s.get(sig) < p.Threshold {
			weights[sig] = 0
			excluded[sig] = fmt.Sprintf("not defined (score < %g)", p.Threshold)
		}
	}
	conf, total := weighted(s, weights)
	return Fusion{
		Weights:    weights,
		Excluded:   excluded,
		Confidence: conf,
		Total:      total,
		Summary:    fmt.Sprintf("%.2f (using %.2f/1.0 weight)", conf, total),
	}
}

// weighted returns Σ(score×weight)/Σweight, or 0 when no weight applies.
func weighted(s Subscores, weights map[persona.Signal]float64) (conf, total float64) {
	var sum float64
	for _, sig := range signals {
		w := weights[sig]
		sum += embed.Clamp01(s.get(sig)) * w
		total += w
	}
	if total <= 0 {
		return 0, 0
	}
	return embed.Clamp01(sum / total), total
}

func describe(s Subscores, weights map[persona.Signal]float64) string {
	parts := make([]string, 0, len(signals))
	for _, sig := range signals {
		parts = append(parts, fmt.Sprintf("%s=%.2f×%.2f", sig, s.get(sig), weights[sig]))
	}
	return strings.Join(parts, " ")
}

// PolicyByName returns the named policy. threshold is used only by "threshold".
func PolicyByName(name string, threshold float64) (FusionPolicy, error) {
	switch name {
	case "", "epsilon":
		return NewEpsilonPolicy(), nil
	case "threshold":
		return NewThresholdPolicy(threshold), nil
	default:
		return nil, fmt.Errorf("%w: unknown fusion policy %q", persona.ErrConfiguration, name)
	}
}
