package evaluator_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rescore/internal/domain"
	"rescore/internal/evaluator"
)

func sampleCase() domain.Case {
	return domain.Case{
		ID: "case-1",
		Input: map[string]any{
			evaluator.InputResumeContent: "Software engineer with experience in Go, Kubernetes, " +
				"and distributed systems. Led a team building payment infrastructure.",
			evaluator.InputJobDescription: "Seeking a backend engineer with Golang and Kubernetes " +
				"experience to build distributed payment systems.",
		},
	}
}

const sampleRewrite = `Summary
Backend engineer specializing in Go and Kubernetes.

Experience
- Built distributed payment systems in Go
- Led a platform team of five engineers
- Operated Kubernetes clusters in production

Education
- BS Computer Science

Skills
- Go, Kubernetes, distributed systems
`

func TestRegistry_ResolvePreservesOrder(t *testing.T) {
	reg := evaluator.DefaultRegistry()

	evals, err := reg.Resolve([]string{evaluator.NameStructure, evaluator.NameKeywordCoverage})
	require.NoError(t, err)
	require.Len(t, evals, 2)
	assert.Equal(t, evaluator.NameStructure, evals[0].Capabilities().Name)
	assert.Equal(t, evaluator.NameKeywordCoverage, evals[1].Capabilities().Name)
}

func TestRegistry_ResolveUnknownNameFails(t *testing.T) {
	reg := evaluator.DefaultRegistry()

	_, err := reg.Resolve([]string{"no_such_evaluator"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownEvaluator)
}

func TestRegistry_RejectsDuplicateRegistration(t *testing.T) {
	reg := evaluator.NewRegistry()
	require.NoError(t, reg.Register("x", func() evaluator.Evaluator { return evaluator.NewStructure() }))
	assert.Error(t, reg.Register("x", func() evaluator.Evaluator { return evaluator.NewStructure() }))
}

func TestBuiltins_ScoreSampleRewrite(t *testing.T) {
	ctx := context.Background()
	c := sampleCase()

	for _, name := range evaluator.DefaultRegistry().Names() {
		t.Run(name, func(t *testing.T) {
			evals, err := evaluator.DefaultRegistry().Resolve([]string{name})
			require.NoError(t, err)
			e := evals[0]

			require.NoError(t, e.Validate(c, sampleRewrite))
			outcome, err := e.Evaluate(ctx, c, sampleRewrite)
			require.NoError(t, err)

			assert.Equal(t, name, outcome.Evaluator)
			assert.GreaterOrEqual(t, outcome.Score, 0.0)
			assert.LessOrEqual(t, outcome.Score, 1.0)
			assert.NotEmpty(t, outcome.Notes)
			assert.NotEmpty(t, e.Describe())
		})
	}
}

func TestBuiltins_RejectUnexpectedShapesWithoutPanic(t *testing.T) {
	ctx := context.Background()
	c := sampleCase()
	badOutputs := []any{nil, 42, []int{1, 2}, "", map[string]any{"other": 1}}

	for _, name := range evaluator.DefaultRegistry().Names() {
		evals, err := evaluator.DefaultRegistry().Resolve([]string{name})
		require.NoError(t, err)
		e := evals[0]

		for _, bad := range badOutputs {
			_, err := e.Evaluate(ctx, c, bad)
			require.Error(t, err, "%s accepted %T", name, bad)

			var evalErr *domain.EvaluationError
			require.True(t, errors.As(err, &evalErr))
			assert.Equal(t, domain.ErrorTypeValidation, evalErr.Type)
			assert.False(t, evalErr.IsRetryable())
		}
	}
}

func TestKeywordCoverage_FullAndZeroCoverage(t *testing.T) {
	ctx := context.Background()
	e := evaluator.NewKeywordCoverage()

	c := domain.Case{
		ID: "kw",
		Input: map[string]any{
			evaluator.InputJobDescription: "golang kubernetes postgres",
		},
	}

	full, err := e.Evaluate(ctx, c, "Expert in golang, kubernetes and postgres.")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, full.Score, 1e-9)
	assert.True(t, full.Passed)

	none, err := e.Evaluate(ctx, c, "Pastry chef and chocolatier.")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, none.Score, 1e-9)
	assert.False(t, none.Passed)
}

func TestContentSimilarity_VerbatimCopyIsCapped(t *testing.T) {
	ctx := context.Background()
	e := evaluator.NewContentSimilarity()
	c := sampleCase()

	verbatim := c.InputString(evaluator.InputResumeContent)
	outcome, err := e.Evaluate(ctx, c, verbatim)
	require.NoError(t, err)
	assert.LessOrEqual(t, outcome.Score, 0.95)
	assert.False(t, outcome.Passed)
}

func TestContentSimilarity_AcceptsMapOutput(t *testing.T) {
	ctx := context.Background()
	e := evaluator.NewContentSimilarity()
	c := sampleCase()

	outcome, err := e.Evaluate(ctx, c, map[string]any{"optimized_resume": sampleRewrite})
	require.NoError(t, err)
	assert.Greater(t, outcome.Score, 0.0)
}

func TestStructure_DetectsMissingSections(t *testing.T) {
	ctx := context.Background()
	e := evaluator.NewStructure()

	outcome, err := e.Evaluate(ctx, sampleCase(), "Just one paragraph about myself with no headings at all but long enough.")
	require.NoError(t, err)
	assert.Less(t, outcome.Score, 0.5)
	assert.Contains(t, outcome.Notes, "missing")
}

func TestEvaluateBatch_ReturnsOutcomesInInputOrder(t *testing.T) {
	ctx := context.Background()
	e := evaluator.NewKeywordCoverage()

	items := make([]evaluator.BatchItem, 0, 6)
	for i := range 6 {
		items = append(items, evaluator.BatchItem{
			Case: domain.Case{
				ID:    fmt.Sprintf("case-%d", i),
				Input: map[string]any{evaluator.InputJobDescription: "golang kubernetes"},
			},
			Actual: fmt.Sprintf("candidate %d knows golang", i),
		})
	}
	// Make item 3 fail validation.
	items[3].Actual = 12345

	outcomes := evaluator.EvaluateBatch(ctx, e, items, 2)
	require.Len(t, outcomes, 6)

	for i, o := range outcomes {
		assert.Equal(t, evaluator.NameKeywordCoverage, o.Evaluator)
		if i == 3 {
			// Failure embedded per item, not thrown.
			assert.NotEmpty(t, o.Error)
			assert.Zero(t, o.Score)
			continue
		}
		assert.Empty(t, o.Error)
		assert.InDelta(t, 0.5, o.Score, 1e-9)
	}
}

func TestEvaluateBatch_EmptyItems(t *testing.T) {
	outcomes := evaluator.EvaluateBatch(context.Background(), evaluator.NewReadability(), nil, 4)
	assert.Empty(t, outcomes)
}
