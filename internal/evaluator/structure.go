package evaluator

import (
	"context"
	"fmt"
	"strings"

	"rescore/internal/domain"
)

// NameStructure is the registry key for the structure evaluator.
const NameStructure = "structure"

// expectedSections are the resume sections the rewrite should retain.
var expectedSections = []string{"experience", "education", "skills"}

// passThresholdStructure is the score required to pass.
const passThresholdStructure = 0.6

// Structure checks that the rewritten resume keeps its expected sections and
// uses bullet formatting. Quality-class evaluator.
type Structure struct{}

// NewStructure creates a structure evaluator.
func NewStructure() *Structure { return &Structure{} }

// Describe returns the evaluator description.
func (e *Structure) Describe() string {
	return "Checks section headings and bullet formatting of the rewritten resume."
}

// Capabilities returns the capability descriptor.
func (e *Structure) Capabilities() Capabilities {
	return Capabilities{
		Name:          NameStructure,
		Category:      CategoryQuality,
		SupportsBatch: true,
		Config:        map[string]any{"expected_sections": expectedSections},
	}
}

// Validate checks that the actual output carries text.
func (e *Structure) Validate(_ domain.Case, actual any) error {
	if _, err := actualText(actual); err != nil {
		return validationError(NameStructure, err)
	}
	return nil
}

// Evaluate scores structural completeness.
func (e *Structure) Evaluate(ctx context.Context, c domain.Case, actual any) (domain.EvaluatorOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.EvaluatorOutcome{}, err
	}
	if err := e.Validate(c, actual); err != nil {
		return domain.EvaluatorOutcome{}, err
	}

	text, _ := actualText(actual)
	lower := strings.ToLower(text)

	found := 0
	var missing []string
	for _, section := range expectedSections {
		if strings.Contains(lower, section) {
			found++
		} else {
			missing = append(missing, section)
		}
	}
	sectionScore := float64(found) / float64(len(expectedSections))

	bulletLines := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "•") {
			bulletLines++
		}
	}
	bulletScore := 0.0
	if bulletLines >= 3 {
		bulletScore = 1.0
	} else {
		bulletScore = float64(bulletLines) / 3.0
	}

	score := 0.7*sectionScore + 0.3*bulletScore
	notes := fmt.Sprintf("%d of %d sections, %d bullet lines", found, len(expectedSections), bulletLines)
	if len(missing) > 0 {
		notes += "; missing: " + strings.Join(missing, ", ")
	}

	return domain.EvaluatorOutcome{
		Evaluator: NameStructure,
		Score:     clampScore(score),
		SubScores: map[string]float64{
			"sections": sectionScore,
			"bullets":  bulletScore,
		},
		Passed: score >= passThresholdStructure,
		Notes:  notes,
	}, nil
}
