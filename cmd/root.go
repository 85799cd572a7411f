package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var flagVerbose bool

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rescore",
		Short: "Evaluation pipeline for AI-generated resume rewrites",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if flagVerbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(newRunCmd())
	root.AddCommand(newBatchCmd())
	root.AddCommand(newListCmd())
	return root
}
