package cmd

import (
	"github.com/spf13/cobra"

	"rescore/internal/evaluator"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered evaluators",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := evaluator.DefaultRegistry()
			evals, err := reg.Resolve(reg.Names())
			if err != nil {
				return err
			}
			for _, e := range evals {
				caps := e.Capabilities()
				cmd.Printf("%-20s %-10s %s\n", caps.Name, caps.Category, e.Describe())
			}
			return nil
		},
	}
}
