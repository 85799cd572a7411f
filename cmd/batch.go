package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"rescore/internal/batch"
	"rescore/internal/circuitbreaker"
	"rescore/internal/dataset"
	"rescore/internal/evaluator"
	"rescore/internal/pipeline"
)

var (
	flagStrategy      string
	flagMaxConcurrent int
	flagBatchTimeout  time.Duration
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Evaluate every case in a dataset",
		RunE:  runBatch,
	}
	cmd.Flags().StringVar(&flagDataset, "dataset", "", "dataset file (.yaml or .json)")
	cmd.Flags().StringVar(&flagMode, "mode", pipeline.ModeFull, "evaluation mode: quick, full, or custom")
	cmd.Flags().StringSliceVar(&flagEvaluators, "evaluators", nil, "evaluator names for custom mode")
	cmd.Flags().StringVar(&flagStrategy, "strategy", string(batch.StrategyBounded), "case scheduling: none, bounded, or adaptive")
	cmd.Flags().IntVar(&flagMaxConcurrent, "max-concurrent", batch.DefaultMaxConcurrentCases, "max cases in flight")
	cmd.Flags().DurationVar(&flagBatchTimeout, "timeout", 0, "deadline for the whole batch (0 = none)")
	cmd.Flags().BoolVar(&flagParallel, "parallel", true, "run evaluators concurrently within each case")
	cmd.Flags().StringVar(&flagOut, "out", "", "directory for persisted verdict documents")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	ds, err := dataset.Load(flagDataset)
	if err != nil {
		return err
	}

	cfg := pipelineConfig()
	breakers := circuitbreaker.NewRegistry(cfg.CircuitBreaker, nil)
	p, err := pipeline.New(cfg, evaluator.DefaultRegistry(), breakers)
	if err != nil {
		return err
	}

	bcfg := batch.Config{
		Strategy:           batch.Strategy(flagStrategy),
		MaxConcurrentCases: flagMaxConcurrent,
		BatchTimeout:       flagBatchTimeout,
	}
	r, err := batch.New(bcfg, p)
	if err != nil {
		return err
	}

	items := make([]batch.Item, len(ds.Cases))
	for i, c := range ds.Cases {
		items[i] = batch.Item{Case: c, Actual: c.Input}
	}

	report, err := r.Run(cmd.Context(), ds.Name, items)
	if err != nil {
		return err
	}

	cmd.Printf("Dataset %s: %d/%d cases succeeded in %s\n",
		report.DatasetID, report.SuccessCases(), len(ds.Cases),
		report.Duration().Round(timePrecision))
	for id, reason := range report.FailedCases {
		cmd.Printf("  FAILED %-16s %s\n", id, reason)
	}
	cmd.Println("Evaluator metrics:")
	for name, m := range report.EvaluatorMetrics {
		cmd.Printf("  %-20s avg %.3f  success %.0f%%  runs %d  avg time %s\n",
			name, m.AvgScore, m.SuccessRate*100, m.Runs, m.AvgDuration.Round(timePrecision))
	}
	return nil
}
