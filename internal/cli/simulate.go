package cli

import (
	"github.com/spf13/cobra"

	"github.com/Mack1234552152/cs2-item-monitor/internal/app"
)

var (
	simulateItemID   int64
	simulateItemName string
	simulatePlatform string
	simulateSeed     float64
	simulatePrice    float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive the detection and notification path with synthetic prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SimulateOptions{
			ItemID:    simulateItemID,
			ItemName:  simulateItemName,
			Platform:  simulatePlatform,
			SeedPrice: simulateSeed,
			Price:     simulatePrice,
		}
		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simulateItemID, "item", 1, "Synthetic item id")
	simulateCmd.Flags().StringVar(&simulateItemName, "name", "Simulated Item", "Synthetic item name")
	simulateCmd.Flags().StringVar(&simulatePlatform, "platform", "steam", "Platform identifier")
	simulateCmd.Flags().Float64Var(&simulateSeed, "seed", 100, "Seed price establishing the historical low")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 90, "Current price to evaluate")
}
