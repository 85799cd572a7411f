package evaluator

import (
	"context"
	"fmt"

	"rescore/internal/domain"
)

// NameReadability is the registry key for the readability evaluator.
const NameReadability = "readability"

// Readability targets: resume prose reads best in short sentences built from
// short words.
const (
	idealSentenceLen  = 14.0 // words per sentence
	maxSentenceLen    = 40.0
	idealWordLen      = 5.0 // characters per word
	maxWordLen        = 12.0
	passThresholdRead = 0.6
)

// Readability scores sentence and word length of the rewritten resume.
// Quality-class evaluator; needs no case inputs beyond the actual output.
type Readability struct{}

// NewReadability creates a readability evaluator.
func NewReadability() *Readability { return &Readability{} }

// Describe returns the evaluator description.
func (e *Readability) Describe() string {
	return "Scores sentence and word length of the rewrite against resume-prose targets."
}

// Capabilities returns the capability descriptor.
func (e *Readability) Capabilities() Capabilities {
	return Capabilities{
		Name:          NameReadability,
		Category:      CategoryQuality,
		SupportsBatch: true,
		Config: map[string]any{
			"ideal_sentence_words": idealSentenceLen,
			"ideal_word_chars":     idealWordLen,
		},
	}
}

// Validate checks that the actual output carries text.
func (e *Readability) Validate(_ domain.Case, actual any) error {
	if _, err := actualText(actual); err != nil {
		return validationError(NameReadability, err)
	}
	return nil
}

// Evaluate scores readability.
func (e *Readability) Evaluate(ctx context.Context, c domain.Case, actual any) (domain.EvaluatorOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.EvaluatorOutcome{}, err
	}
	if err := e.Validate(c, actual); err != nil {
		return domain.EvaluatorOutcome{}, err
	}

	text, _ := actualText(actual)
	sents := sentences(text)
	words := tokenize(text)
	if len(sents) == 0 || len(words) == 0 {
		return domain.EvaluatorOutcome{}, domain.NewEvaluationError(
			domain.ErrorTypeValidation, NameReadability,
			"output contains no sentences", ErrInvalidActualOutput)
	}

	avgSentence := float64(len(words)) / float64(len(sents))
	var chars int
	for _, w := range words {
		chars += len(w)
	}
	avgWord := float64(chars) / float64(len(words))

	sentenceScore := proximityScore(avgSentence, idealSentenceLen, maxSentenceLen)
	wordScore := proximityScore(avgWord, idealWordLen, maxWordLen)
	score := 0.6*sentenceScore + 0.4*wordScore

	return domain.EvaluatorOutcome{
		Evaluator: NameReadability,
		Score:     clampScore(score),
		SubScores: map[string]float64{
			"sentence_length": sentenceScore,
			"word_length":     wordScore,
		},
		Passed: score >= passThresholdRead,
		Notes:  fmt.Sprintf("avg %.1f words/sentence, %.1f chars/word", avgSentence, avgWord),
	}, nil
}

// proximityScore maps a measurement to [0, 1]: 1.0 at or below the ideal,
// decaying linearly to 0 at the maximum.
func proximityScore(value, ideal, max float64) float64 {
	if value <= ideal {
		return 1.0
	}
	if value >= max {
		return 0.0
	}
	return 1.0 - (value-ideal)/(max-ideal)
}
