package cli

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitoring service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context())
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single monitoring pass and print statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Check(cmd.Context())
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Send the daily report now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Report(cmd.Context())
	},
}

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run retention cleanup and snapshot backup now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Maintain(cmd.Context())
	},
}
