package main

import (
	"github.com/spf13/cobra"
)

var (
	flagConfigPath string
	flagOutput     string
)

var rootCmd = &cobra.Command{
	Use:   "tuitbot",
	Short: "Autonomous X (Twitter) growth assistant",
	Long: `tuitbot runs the discovery, engagement, content-posting, and
watchtower loops described by its configuration, gated by a single mutation
gateway that enforces policy, safety limits, and (in composer mode) human
approval.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&flagOutput, "output", "text", "output format: text or json")

	rootCmd.AddCommand(
		runCmd,
		tickCmd,
		approveCmd,
		backupCmd,
		restoreCmd,
		authCmd,
		testCmd,
	)
}
