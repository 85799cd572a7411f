// Package aggregate combines per-evaluator outcomes into overall, confidence,
// and category scores, and derives human-readable findings. Every function is
// pure: aggregating the same outcome set twice yields identical results.
package aggregate

import (
	"fmt"
	"math"
	"sort"

	"rescore/internal/domain"
)

// Default thresholds for findings derivation.
const (
	// DefaultStrengthScore marks outcomes contributing a strength line.
	DefaultStrengthScore = 0.8
	// DefaultWeaknessScore marks outcomes contributing a weakness line.
	DefaultWeaknessScore = 0.6
	// DefaultCategoryFloor triggers a recommendation for weak categories.
	DefaultCategoryFloor = 0.7
	// DefaultConfidenceThreshold triggers the low-confidence recommendation.
	DefaultConfidenceThreshold = 0.5
)

// Inputs carries everything Combine needs: the outcomes plus the weight and
// category lookup tables resolved at configuration time. Missing entries
// default to weight 1.0 and category "general".
type Inputs struct {
	Outcomes   map[string]domain.EvaluatorOutcome
	Weights    map[string]float64 // evaluator name -> weight
	Categories map[string]string  // evaluator name -> category
}

// Scores is the aggregated result of one outcome set.
type Scores struct {
	// Overall is the weighted mean of outcome scores: a convex combination,
	// so it always lies within [min(score), max(score)].
	Overall float64 `json:"overall"`

	// Confidence is the agreement measure max(0, 1 - coefficientOfVariation),
	// clamped to [0, 1]. With fewer than two outcomes there is no possible
	// disagreement and confidence is 1.0.
	Confidence float64 `json:"confidence"`

	// ByCategory averages the outcomes belonging to each category.
	ByCategory map[string]float64 `json:"by_category"`
}

func (in Inputs) weightOf(name string) float64 {
	if w, ok := in.Weights[name]; ok && w > 0 {
		return w
	}
	return 1.0
}

func (in Inputs) categoryOf(name string) string {
	if c, ok := in.Categories[name]; ok && c != "" {
		return c
	}
	return "general"
}

// Combine aggregates the outcome set. With zero outcomes it returns all-zero
// scores; the caller decides whether that is a warning or an error.
func Combine(in Inputs) Scores {
	out := Scores{ByCategory: make(map[string]float64)}
	if len(in.Outcomes) == 0 {
		return out
	}

	var weightedSum, weightTotal float64
	catSums := make(map[string]float64)
	catCounts := make(map[string]int)
	scores := make([]float64, 0, len(in.Outcomes))

	for name, o := range in.Outcomes {
		w := in.weightOf(name)
		weightedSum += o.Score * w
		weightTotal += w
		scores = append(scores, o.Score)

		cat := in.categoryOf(name)
		catSums[cat] += o.Score
		catCounts[cat]++
	}

	if weightTotal > 0 {
		out.Overall = weightedSum / weightTotal
	}
	for cat, sum := range catSums {
		out.ByCategory[cat] = sum / float64(catCounts[cat])
	}
	out.Confidence = confidence(scores)
	return out
}

// confidence computes max(0, 1 - stdev/mean) over the scores, clamped to
// [0, 1]. Population standard deviation; a zero mean implies identical
// all-zero scores, i.e. no disagreement.
func confidence(scores []float64) float64 {
	if len(scores) < 2 {
		return 1.0
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))
	if mean == 0 {
		return 1.0
	}

	var variance float64
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))

	cv := math.Sqrt(variance) / mean
	return clamp01(1 - cv)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Thresholds controls findings derivation. Zero values fall back to the
// package defaults.
type Thresholds struct {
	StrengthScore float64
	WeaknessScore float64
	CategoryFloor float64
	Confidence    float64
}

func (t Thresholds) withDefaults() Thresholds {
	if t.StrengthScore == 0 {
		t.StrengthScore = DefaultStrengthScore
	}
	if t.WeaknessScore == 0 {
		t.WeaknessScore = DefaultWeaknessScore
	}
	if t.CategoryFloor == 0 {
		t.CategoryFloor = DefaultCategoryFloor
	}
	if t.Confidence == 0 {
		t.Confidence = DefaultConfidenceThreshold
	}
	return t
}

// DeriveFindings extracts strengths, weaknesses, and recommendations from an
// aggregated outcome set. Output ordering is deterministic (sorted by
// evaluator or category name).
func DeriveFindings(
	outcomes map[string]domain.EvaluatorOutcome,
	failed map[string]string,
	scores Scores,
	t Thresholds,
) domain.Analysis {
	t = t.withDefaults()
	analysis := domain.Analysis{
		Strengths:       []string{},
		Weaknesses:      []string{},
		Recommendations: []string{},
	}

	for _, name := range sortedKeys(outcomes) {
		o := outcomes[name]
		switch {
		case o.Score >= t.StrengthScore:
			line := fmt.Sprintf("%s scored %.2f", name, o.Score)
			if o.Notes != "" {
				line += ": " + o.Notes
			}
			analysis.Strengths = append(analysis.Strengths, line)
		case o.Score < t.WeaknessScore:
			line := fmt.Sprintf("%s scored %.2f", name, o.Score)
			if o.Notes != "" {
				line += ": " + o.Notes
			}
			analysis.Weaknesses = append(analysis.Weaknesses, line)
		}
	}

	for _, name := range sortedKeys(failed) {
		analysis.Weaknesses = append(analysis.Weaknesses,
			fmt.Sprintf("%s did not complete: %s", name, failed[name]))
	}

	for _, cat := range sortedKeys(scores.ByCategory) {
		if s := scores.ByCategory[cat]; s < t.CategoryFloor {
			analysis.Recommendations = append(analysis.Recommendations,
				fmt.Sprintf("improve %s: category score %.2f is below %.2f", cat, s, t.CategoryFloor))
		}
	}

	if len(outcomes) > 0 && scores.Confidence < t.Confidence {
		analysis.Recommendations = append(analysis.Recommendations,
			fmt.Sprintf("evaluators disagree (confidence %.2f); review individual outcomes", scores.Confidence))
	}

	return analysis
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
