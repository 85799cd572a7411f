package evaluator

import (
	"context"
	"fmt"

	"rescore/internal/domain"
)

// NameKeywordCoverage is the registry key for the keyword coverage evaluator.
const NameKeywordCoverage = "keyword_coverage"

// passThresholdKeyword is the coverage fraction required to pass.
const passThresholdKeyword = 0.5

// KeywordCoverage scores how many of the job description's keywords appear in
// the rewritten resume. Relevance-class evaluator.
type KeywordCoverage struct{}

// NewKeywordCoverage creates a keyword coverage evaluator.
func NewKeywordCoverage() *KeywordCoverage { return &KeywordCoverage{} }

// Describe returns the evaluator description.
func (e *KeywordCoverage) Describe() string {
	return "Measures the fraction of job-description keywords present in the rewritten resume."
}

// Capabilities returns the capability descriptor.
func (e *KeywordCoverage) Capabilities() Capabilities {
	return Capabilities{
		Name:          NameKeywordCoverage,
		Category:      CategoryRelevance,
		SupportsBatch: true,
		Config:        map[string]any{"pass_threshold": passThresholdKeyword},
	}
}

// Validate checks that the case carries a job description and the actual
// output carries text.
func (e *KeywordCoverage) Validate(c domain.Case, actual any) error {
	if _, err := requireInput(c, InputJobDescription); err != nil {
		return validationError(NameKeywordCoverage, err)
	}
	if _, err := actualText(actual); err != nil {
		return validationError(NameKeywordCoverage, err)
	}
	return nil
}

// Evaluate scores keyword coverage.
func (e *KeywordCoverage) Evaluate(ctx context.Context, c domain.Case, actual any) (domain.EvaluatorOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.EvaluatorOutcome{}, err
	}
	if err := e.Validate(c, actual); err != nil {
		return domain.EvaluatorOutcome{}, err
	}

	job := c.InputString(InputJobDescription)
	text, _ := actualText(actual)

	want := keywords(job)
	got := tokenSet(text)

	matched := 0
	for kw := range want {
		if _, ok := got[kw]; ok {
			matched++
		}
	}

	coverage := 1.0
	if len(want) > 0 {
		coverage = float64(matched) / float64(len(want))
	}

	return domain.EvaluatorOutcome{
		Evaluator: NameKeywordCoverage,
		Score:     coverage,
		SubScores: map[string]float64{"coverage": coverage},
		Passed:    coverage >= passThresholdKeyword,
		Notes:     fmt.Sprintf("matched %d of %d job keywords", matched, len(want)),
	}, nil
}
