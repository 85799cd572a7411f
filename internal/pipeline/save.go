package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rescore/internal/domain"
)

// verdictDocument is the persisted JSON shape: one document per run.
type verdictDocument struct {
	RunID           string                    `json:"run_id"`
	CaseID          string                    `json:"case_id"`
	Mode            string                    `json:"mode"`
	StartedAt       string                    `json:"started_at"`
	CompletedAt     string                    `json:"completed_at"`
	DurationSeconds float64                   `json:"duration_seconds"`
	Evaluators      map[string]evaluatorEntry `json:"evaluators"`
	Failed          map[string]string         `json:"failed_evaluators"`
	Scores          scoresEntry               `json:"scores"`
	Analysis        domain.Analysis           `json:"analysis"`
	ResourceUsage   resourceEntry             `json:"resource_usage"`
}

type evaluatorEntry struct {
	Score            float64            `json:"score"`
	SubScores        map[string]float64 `json:"sub_scores,omitempty"`
	Passed           bool               `json:"passed"`
	ExecutionSeconds float64            `json:"execution_time_seconds"`
	Notes            string             `json:"notes,omitempty"`
}

type scoresEntry struct {
	Overall    float64            `json:"overall"`
	Confidence float64            `json:"confidence"`
	ByCategory map[string]float64 `json:"by_category"`
}

type resourceEntry struct {
	TotalTokens        int64   `json:"total_tokens"`
	TotalExternalCalls int64   `json:"total_external_calls"`
	TotalExecutionTime float64 `json:"total_execution_time_seconds"`
}

// fileSaver writes one JSON verdict document per run into dir, named
// pipeline_result_<runID>_<YYYYMMDD_HHMMSS>.json.
type fileSaver struct {
	dir string
}

// Save persists the verdict document.
func (s *fileSaver) Save(_ context.Context, v *domain.PipelineVerdict) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	doc := verdictDocument{
		RunID:           v.RunID,
		CaseID:          v.CaseID,
		Mode:            v.Mode,
		StartedAt:       v.StartedAt.UTC().Format(time.RFC3339),
		CompletedAt:     v.CompletedAt.UTC().Format(time.RFC3339),
		DurationSeconds: v.Duration.Seconds(),
		Evaluators:      make(map[string]evaluatorEntry, len(v.Outcomes)),
		Failed:          v.FailedEvaluators,
		Scores: scoresEntry{
			Overall:    v.OverallScore,
			Confidence: v.Confidence,
			ByCategory: v.CategoryScores,
		},
		Analysis: v.Analysis,
		ResourceUsage: resourceEntry{
			TotalTokens:        v.Usage.TotalTokens,
			TotalExternalCalls: v.Usage.TotalExternalCalls,
			TotalExecutionTime: v.Usage.TotalExecutionTime.Seconds(),
		},
	}
	for name, o := range v.Outcomes {
		doc.Evaluators[name] = evaluatorEntry{
			Score:            o.Score,
			SubScores:        o.SubScores,
			Passed:           o.Passed,
			ExecutionSeconds: o.Duration.Seconds(),
			Notes:            o.Notes,
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding verdict: %w", err)
	}

	name := fmt.Sprintf("pipeline_result_%s_%s.json",
		v.RunID, v.CompletedAt.UTC().Format("20060102_150405"))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing verdict file: %w", err)
	}
	return nil
}
