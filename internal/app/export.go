package app

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/Mack1234552152/cs2-item-monitor/internal/history"
	"github.com/Mack1234552152/cs2-item-monitor/internal/storage"
)

// Export renders one item-platform price history as CSV and/or PNG, and
// optionally the full alert history as CSV.
func (a *App) Export(opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" && opts.AlertsCSV == "" {
		return errors.New("at least one of --csv, --png or --alerts-csv must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)
	store := a.newStore()

	if opts.AlertsCSV != "" {
		snapshot, err := store.Load()
		if err != nil {
			return err
		}
		if err := writeAlertsCSV(opts.AlertsCSV, snapshot.Alerts); err != nil {
			return err
		}
		a.Logger.Info().Int("alerts", len(snapshot.Alerts)).Str("path", opts.AlertsCSV).Msg("alert history exported")
	}

	if opts.CSVPath == "" && opts.PNGPath == "" {
		return nil
	}
	if opts.ItemID <= 0 || opts.Platform == "" {
		return errors.New("--item and --platform are required for price-history export")
	}

	days := opts.Days
	if days <= 0 {
		days = a.Config.Storage.MaxHistoryDays
	}

	tracker := history.NewTracker(store, a.Config.Storage.MaxHistoryDays, a.Logger)
	samples, err := tracker.PriceHistory(opts.ItemID, opts.Platform, days)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Msg("no samples found for export window")
		return nil
	}

	downsampled := downsample(samples, opts.MaxPoints)
	a.Logger.Info().Int("total", len(samples)).Int("exported", len(downsampled)).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, opts.ItemID, opts.Platform, downsampled); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, opts.ItemID, opts.Platform, downsampled); err != nil {
			return err
		}
	}
	return nil
}

func downsample(samples []storage.PriceSample, max int) []storage.PriceSample {
	if max <= 0 || len(samples) <= max {
		return samples
	}
	// The stride below divides by max-1; a single-point export keeps the
	// latest sample.
	if max == 1 {
		return samples[len(samples)-1:]
	}

	result := make([]storage.PriceSample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, itemID int64, platform string, samples []storage.PriceSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "item_id", "platform", "price", "volume", "listings", "source"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		record := []string{
			sample.Timestamp.Format(time.RFC3339),
			fmt.Sprintf("%d", itemID),
			platform,
			sample.Price.String(),
			fmt.Sprintf("%d", sample.Volume),
			fmt.Sprintf("%d", sample.Listings),
			sample.Source,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeAlertsCSV(path string, alerts []*storage.Alert) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "item_id", "item_name", "platform", "current_price", "historical_low", "discount_pct", "notified"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, alert := range alerts {
		record := []string{
			alert.Timestamp.Format(time.RFC3339),
			fmt.Sprintf("%d", alert.ItemID),
			alert.ItemName,
			alert.Platform,
			alert.CurrentPrice.String(),
			alert.HistoricalLow.String(),
			alert.Discount.Mul(decimal.NewFromInt(100)).StringFixed(2),
			fmt.Sprintf("%t", alert.Notified),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSamplesPNG(path string, itemID int64, platform string, samples []storage.PriceSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(samples))
	prices := make([]float64, len(samples))
	volumes := make([]float64, len(samples))

	for i, sample := range samples {
		x[i] = sample.Timestamp
		prices[i] = sample.Price.InexactFloat64()
		volumes[i] = float64(sample.Volume)
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  fmt.Sprintf("item %d (%s)", itemID, platform),
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (CNY)",
			ValueFormatter: priceFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name: "Volume",
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Price",
				XValues: x,
				YValues: prices,
			},
			chart.TimeSeries{
				Name:    "Volume",
				XValues: x,
				YValues: volumes,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
