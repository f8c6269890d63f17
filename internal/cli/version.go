package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mack1234552152/cs2-item-monitor/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}
