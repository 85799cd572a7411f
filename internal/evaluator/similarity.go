package evaluator

import (
	"context"
	"fmt"

	"rescore/internal/domain"
)

// NameContentSimilarity is the registry key for the content similarity
// evaluator.
const NameContentSimilarity = "content_similarity"

// Similarity band: rewrites should stay recognizably close to the original
// without degenerating into a verbatim copy.
const (
	similarityFloor   = 0.35
	similarityCeiling = 0.95
)

// ContentSimilarity scores how much of the original resume's content survives
// the rewrite, using token-set similarity. Accuracy-class evaluator: it
// penalizes rewrites that invent or drop substance.
type ContentSimilarity struct{}

// NewContentSimilarity creates a content similarity evaluator.
func NewContentSimilarity() *ContentSimilarity { return &ContentSimilarity{} }

// Describe returns the evaluator description.
func (e *ContentSimilarity) Describe() string {
	return "Scores preservation of the original resume's content in the rewrite via token-set similarity."
}

// Capabilities returns the capability descriptor.
func (e *ContentSimilarity) Capabilities() Capabilities {
	return Capabilities{
		Name:          NameContentSimilarity,
		Category:      CategoryAccuracy,
		SupportsBatch: true,
		Config: map[string]any{
			"similarity_floor":   similarityFloor,
			"similarity_ceiling": similarityCeiling,
		},
	}
}

// Validate checks that the case carries the original resume and the actual
// output carries text.
func (e *ContentSimilarity) Validate(c domain.Case, actual any) error {
	if _, err := requireInput(c, InputResumeContent); err != nil {
		return validationError(NameContentSimilarity, err)
	}
	if _, err := actualText(actual); err != nil {
		return validationError(NameContentSimilarity, err)
	}
	return nil
}

// Evaluate scores content preservation.
func (e *ContentSimilarity) Evaluate(ctx context.Context, c domain.Case, actual any) (domain.EvaluatorOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.EvaluatorOutcome{}, err
	}
	if err := e.Validate(c, actual); err != nil {
		return domain.EvaluatorOutcome{}, err
	}

	original := c.InputString(InputResumeContent)
	text, _ := actualText(actual)

	sim := jaccard(tokenSet(original), tokenSet(text))

	// Inside the band the similarity itself is the score; a near-verbatim
	// copy is capped, and heavy divergence decays toward zero.
	score := sim
	notes := fmt.Sprintf("token similarity %.2f", sim)
	switch {
	case sim > similarityCeiling:
		score = similarityCeiling
		notes += " (rewrite is close to a verbatim copy)"
	case sim < similarityFloor:
		score = sim * sim / similarityFloor
		notes += " (rewrite diverges heavily from the original)"
	}

	return domain.EvaluatorOutcome{
		Evaluator: NameContentSimilarity,
		Score:     clampScore(score),
		SubScores: map[string]float64{"jaccard": sim},
		Passed:    sim >= similarityFloor && sim <= similarityCeiling,
		Notes:     notes,
	}, nil
}

func clampScore(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
