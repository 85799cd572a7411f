package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerdictFailedAndPartial(t *testing.T) {
	v := PipelineVerdict{
		Outcomes:         map[string]EvaluatorOutcome{},
		FailedEvaluators: map[string]string{"a": "boom"},
	}
	assert.True(t, v.Failed())

	v.Outcomes["b"] = EvaluatorOutcome{Evaluator: "b", Score: 0.5}
	assert.False(t, v.Failed())
	assert.True(t, v.Partial())

	delete(v.FailedEvaluators, "a")
	assert.False(t, v.Partial())
}

// Duration fields marshal as nanoseconds, so their keys must not claim a
// different unit.
func TestDurationKeysCarryNoUnitSuffix(t *testing.T) {
	keys := func(v any) map[string]any {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	}

	v := keys(PipelineVerdict{Duration: time.Second, Usage: VerdictUsage{TotalExecutionTime: time.Second}})
	assert.Contains(t, v, "duration")
	assert.NotContains(t, v, "duration_ms")
	usage, ok := v["usage"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, usage, "total_execution_time")

	p := keys(ProgressInfo{ETA: time.Second, Elapsed: time.Second})
	assert.Contains(t, p, "eta")
	assert.Contains(t, p, "elapsed")

	a := keys(EvaluatorAggregate{AvgDuration: time.Second})
	assert.Contains(t, a, "avg_duration")

	o := keys(EvaluatorOutcome{Evaluator: "x", Duration: time.Second})
	assert.Contains(t, o, "duration")
}
