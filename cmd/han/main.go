// Package main implements the han CLI: train, evaluate and run a
// hierarchical attention document classifier.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "v0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	modelPath  string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "han",
		Short: "Hierarchical attention network document classifier",
		Long: `han trains and runs a binary document classifier built from a
hierarchical attention network: words are encoded into sentence vectors and
sentences into a document vector, each level pooled by learned attention.

Configuration comes from an optional YAML file (--config) overridden by
HAN_* environment variables, e.g. HAN_TRAIN_EPOCHS=5.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&flags.modelPath, "model", "model.born", "model file")

	root.AddCommand(
		newTrainCmd(flags),
		newEvaluateCmd(flags),
		newPredictCmd(flags),
		newSummaryCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "han %s\n", version)
			},
		},
	)
	return root
}
