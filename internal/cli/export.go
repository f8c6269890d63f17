package cli

import (
	"github.com/spf13/cobra"

	"github.com/Mack1234552152/cs2-item-monitor/internal/app"
)

var (
	exportItemID    int64
	exportPlatform  string
	exportDays      int
	exportPNGPath   string
	exportCSVPath   string
	exportAlertsCSV string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export price history as CSV and/or PNG chart, or alerts as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			ItemID:    exportItemID,
			Platform:  exportPlatform,
			Days:      exportDays,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			AlertsCSV: exportAlertsCSV,
			MaxPoints: exportMaxPoints,
		}

		return getApp().Export(opts)
	},
}

func init() {
	exportCmd.Flags().Int64Var(&exportItemID, "item", 0, "Item id to export")
	exportCmd.Flags().StringVar(&exportPlatform, "platform", "", "Platform of the series (steam, buff, youyoupin)")
	exportCmd.Flags().IntVar(&exportDays, "days", 0, "How many days of history to export (defaults to the retention window)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportAlertsCSV, "alerts-csv", "", "Path to write alert history CSV")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
