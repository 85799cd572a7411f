package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rescore/internal/circuitbreaker"
	"rescore/internal/dataset"
	"rescore/internal/domain"
	"rescore/internal/evaluator"
	"rescore/internal/pipeline"
)

var (
	flagDataset    string
	flagCase       string
	flagMode       string
	flagEvaluators []string
	flagParallel   bool
	flagFailFast   bool
	flagOut        string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate a single case from a dataset",
		RunE:  runCase,
	}
	cmd.Flags().StringVar(&flagDataset, "dataset", "", "dataset file (.yaml or .json)")
	cmd.Flags().StringVar(&flagCase, "case", "", "case ID to evaluate")
	cmd.Flags().StringVar(&flagMode, "mode", pipeline.ModeFull, "evaluation mode: quick, full, or custom")
	cmd.Flags().StringSliceVar(&flagEvaluators, "evaluators", nil, "evaluator names for custom mode")
	cmd.Flags().BoolVar(&flagParallel, "parallel", true, "run evaluators concurrently")
	cmd.Flags().BoolVar(&flagFailFast, "fail-fast", false, "abort the run on the first evaluator failure")
	cmd.Flags().StringVar(&flagOut, "out", "", "directory for persisted verdict documents")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

func pipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Mode = flagMode
	cfg.CustomEvaluators = flagEvaluators
	cfg.ParallelExecution = flagParallel
	cfg.FailFast = flagFailFast
	cfg.OutputDir = flagOut
	return cfg
}

func runCase(cmd *cobra.Command, args []string) error {
	ds, err := dataset.Load(flagDataset)
	if err != nil {
		return err
	}
	c, ok := ds.Case(flagCase)
	if !ok {
		return fmt.Errorf("case %q not found in dataset %q", flagCase, ds.Name)
	}

	cfg := pipelineConfig()
	breakers := circuitbreaker.NewRegistry(cfg.CircuitBreaker, nil)
	p, err := pipeline.New(cfg, evaluator.DefaultRegistry(), breakers)
	if err != nil {
		return err
	}

	verdict, err := p.Run(cmd.Context(), c, c.Input)
	if err != nil {
		return err
	}
	printVerdict(cmd, verdict)
	return nil
}

// timePrecision rounds durations in human-facing output.
const timePrecision = time.Millisecond

func printVerdict(cmd *cobra.Command, v *domain.PipelineVerdict) {
	cmd.Printf("Case %s: overall %.3f (confidence %.2f) in %s\n",
		v.CaseID, v.OverallScore, v.Confidence, v.Duration.Round(timePrecision))
	for name, score := range v.CategoryScores {
		cmd.Printf("  %-12s %.3f\n", name, score)
	}
	for name, o := range v.Outcomes {
		status := "pass"
		if !o.Passed {
			status = "fail"
		}
		cmd.Printf("  %-20s %.3f  %s\n", name, o.Score, status)
	}
	for name, reason := range v.FailedEvaluators {
		cmd.Printf("  %-20s ERROR  %s\n", name, reason)
	}
	if len(v.Analysis.Recommendations) > 0 {
		cmd.Println("Recommendations:")
		for _, rec := range v.Analysis.Recommendations {
			cmd.Printf("  - %s\n", rec)
		}
	}
}
