package app

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show prints recent alerts and a per-series summary.
func (a *App) Show(opts ShowOptions) error {
	store := a.newStore()
	snapshot, err := store.Load()
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(writer, "Series\tSamples\tLow\tHigh\tLast Update")
	keys := make([]string, 0, len(snapshot.Items))
	for key := range snapshot.Items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		series := snapshot.Items[key]
		fmt.Fprintf(
			writer,
			"%s\t%d\t%s\t%s\t%s\n",
			key,
			len(series.PriceHistory),
			formatNullable(series.HistoricalLow),
			formatNullable(series.HistoricalHigh),
			series.LastUpdate.UTC().Format(time.RFC3339),
		)
	}
	writer.Flush()

	alerts := snapshot.Alerts
	if len(alerts) > opts.Limit {
		alerts = alerts[len(alerts)-opts.Limit:]
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "\nno alerts recorded")
		return nil
	}

	fmt.Fprintln(os.Stdout)
	writer = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tItem\tPlatform\tPrice\tLow\tDiscount%\tNotified")
	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			alert.Timestamp.UTC().Format(time.RFC3339),
			sanitizeInline(alert.ItemName),
			alert.Platform,
			alert.CurrentPrice.StringFixed(2),
			alert.HistoricalLow.StringFixed(2),
			alert.Discount.Mul(decimal.NewFromInt(100)).StringFixed(1),
			alert.Notified,
		)
	}
	writer.Flush()
	return nil
}

// printStats writes the derived statistics report to stdout.
func (a *App) printStats() error {
	store := a.newStore()
	snapshot, err := store.Load()
	if err != nil {
		return err
	}

	report := snapshot.Stats(time.Now().UTC())
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "monitored series\t%d\n", report.MonitoredItems)
	fmt.Fprintf(writer, "alerts today\t%d\n", report.TodayAlerts)
	fmt.Fprintf(writer, "alerts total\t%d\n", report.TotalAlerts)
	fmt.Fprintf(writer, "avg price change\t%s%%\n", report.AvgPriceChangePct.StringFixed(2))
	if report.LastUpdate != nil {
		fmt.Fprintf(writer, "last update\t%s\n", report.LastUpdate.UTC().Format(time.RFC3339))
	}
	if size, err := store.Size(); err == nil {
		fmt.Fprintf(writer, "data size\t%d bytes\n", size)
	}
	return writer.Flush()
}

func formatNullable(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(2)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
