package evaluator

import (
	"context"
	"sync"
	"time"

	"rescore/internal/domain"
)

// BatchItem is one (case, actual output) pair for batch evaluation.
type BatchItem struct {
	Case   domain.Case
	Actual any
}

// EvaluateBatch runs one evaluator over every item concurrently, bounded by
// maxConcurrent (values < 1 mean one slot per item), and returns outcomes in
// input order. A single item's failure never fails the batch silently: the
// error is embedded in that item's outcome Error field with a zero score.
func EvaluateBatch(ctx context.Context, e Evaluator, items []BatchItem, maxConcurrent int) []domain.EvaluatorOutcome {
	outcomes := make([]domain.EvaluatorOutcome, len(items))
	if len(items) == 0 {
		return outcomes
	}

	if maxConcurrent < 1 {
		maxConcurrent = len(items)
	}
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	wg.Add(len(items))

	name := e.Capabilities().Name
	for i := range items {
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			outcome, err := e.Evaluate(ctx, items[i].Case, items[i].Actual)
			if err != nil {
				outcomes[i] = domain.EvaluatorOutcome{
					Evaluator: name,
					Error:     err.Error(),
					Duration:  time.Since(start),
				}
				return
			}
			if outcome.Duration == 0 {
				outcome.Duration = time.Since(start)
			}
			outcomes[i] = outcome
		}()
	}

	wg.Wait()
	return outcomes
}
