package main

import (
	"github.com/spf13/cobra"
)

var configPath string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "opsight-engine",
		Short:         "Anomaly detection and root-cause analysis engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")

	root.AddCommand(newServeCommand())
	root.AddCommand(newGenerateCommand())
	root.AddCommand(newAnalyzeCommand())
	return root
}
