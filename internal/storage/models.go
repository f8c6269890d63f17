package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SchemaVersion is written into snapshot metadata.
const SchemaVersion = "1.0.0"

// PriceSample is a single observed price point for an item on a platform.
type PriceSample struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
	Volume    int64           `json:"volume"`
	Listings  int64           `json:"listings"`
	Source    string          `json:"source"`
}

// ItemSeries holds the price history and cached extrema for one item on one
// marketplace. The cached low/high are updated at write time and are not
// recomputed when retention trimming evicts the sample that set them.
type ItemSeries struct {
	ItemID         int64            `json:"id"`
	Platform       string           `json:"platform"`
	PriceHistory   []PriceSample    `json:"priceHistory"`
	LastUpdate     time.Time        `json:"lastUpdate"`
	HistoricalLow  *decimal.Decimal `json:"historicalLow,omitempty"`
	HistoricalHigh *decimal.Decimal `json:"historicalHigh,omitempty"`
}

// Trim drops samples strictly older than cutoff and reports whether any
// sample was removed.
func (s *ItemSeries) Trim(cutoff time.Time) bool {
	kept := s.PriceHistory[:0]
	for _, sample := range s.PriceHistory {
		if !sample.Timestamp.Before(cutoff) {
			kept = append(kept, sample)
		}
	}
	removed := len(kept) < len(s.PriceHistory)
	s.PriceHistory = kept
	return removed
}

// Alert records a sample that met the discount threshold.
type Alert struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	ItemID        int64           `json:"itemId"`
	ItemName      string          `json:"itemName"`
	Platform      string          `json:"platform"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	HistoricalLow decimal.Decimal `json:"historicalLow"`
	Discount      decimal.Decimal `json:"discount"`
	Notified      bool            `json:"notified"`
	NotifiedAt    *time.Time      `json:"notifiedAt,omitempty"`
}

// Statistics carries the running counters persisted with the snapshot.
type Statistics struct {
	TotalAlerts      int64      `json:"totalAlerts"`
	LastUpdate       *time.Time `json:"lastUpdate,omitempty"`
	MonitorStartTime time.Time  `json:"monitorStartTime"`
}

// Metadata describes the snapshot document itself.
type Metadata struct {
	Version     string    `json:"version"`
	LastCleanup time.Time `json:"lastCleanup"`
}

// Snapshot is the full persisted document. Every mutation path is a
// read-modify-write of the whole snapshot.
type Snapshot struct {
	Items      map[string]*ItemSeries `json:"items"`
	Alerts     []*Alert               `json:"alerts"`
	Statistics Statistics             `json:"statistics"`
	Metadata   Metadata               `json:"metadata"`
}

// NewSnapshot returns an initialised empty snapshot.
func NewSnapshot(now time.Time) *Snapshot {
	return &Snapshot{
		Items:  make(map[string]*ItemSeries),
		Alerts: make([]*Alert, 0),
		Statistics: Statistics{
			MonitorStartTime: now,
		},
		Metadata: Metadata{
			Version:     SchemaVersion,
			LastCleanup: now,
		},
	}
}

// SeriesKey builds the map key for an (itemId, platform) pair.
func SeriesKey(itemID int64, platform string) string {
	return fmt.Sprintf("%d_%s", itemID, platform)
}

// Series returns the series for the pair, or nil if never seen.
func (s *Snapshot) Series(itemID int64, platform string) *ItemSeries {
	return s.Items[SeriesKey(itemID, platform)]
}

// EnsureSeries returns the series for the pair, creating it on first use.
func (s *Snapshot) EnsureSeries(itemID int64, platform string) *ItemSeries {
	key := SeriesKey(itemID, platform)
	series, ok := s.Items[key]
	if !ok {
		series = &ItemSeries{
			ItemID:       itemID,
			Platform:     platform,
			PriceHistory: make([]PriceSample, 0),
		}
		s.Items[key] = series
	}
	return series
}

// AppendAlert queues a new alert and bumps the running counter.
func (s *Snapshot) AppendAlert(alert *Alert) {
	s.Alerts = append(s.Alerts, alert)
	s.Statistics.TotalAlerts++
	now := alert.Timestamp
	s.Statistics.LastUpdate = &now
}

// UnnotifiedAlerts returns the backlog oldest first.
func (s *Snapshot) UnnotifiedAlerts() []*Alert {
	backlog := make([]*Alert, 0)
	for _, alert := range s.Alerts {
		if !alert.Notified {
			backlog = append(backlog, alert)
		}
	}
	sort.SliceStable(backlog, func(i, j int) bool {
		return backlog[i].Timestamp.Before(backlog[j].Timestamp)
	})
	return backlog
}

// MarkNotified flips the notified flag for the given alert id.
func (s *Snapshot) MarkNotified(id string, at time.Time) bool {
	for _, alert := range s.Alerts {
		if alert.ID == id {
			alert.Notified = true
			alert.NotifiedAt = &at
			return true
		}
	}
	return false
}

// Cleanup trims samples beyond the history window and alerts older than the
// alert retention window. Series themselves are never deleted. Reports
// whether anything was removed.
func (s *Snapshot) Cleanup(now time.Time, maxHistoryDays, alertRetentionDays int) bool {
	cleaned := false

	sampleCutoff := now.AddDate(0, 0, -maxHistoryDays)
	for _, series := range s.Items {
		if series.Trim(sampleCutoff) {
			cleaned = true
		}
	}

	alertCutoff := now.AddDate(0, 0, -alertRetentionDays)
	keptAlerts := s.Alerts[:0]
	for _, alert := range s.Alerts {
		if !alert.Timestamp.Before(alertCutoff) {
			keptAlerts = append(keptAlerts, alert)
		}
	}
	if len(keptAlerts) < len(s.Alerts) {
		cleaned = true
	}
	s.Alerts = keptAlerts

	if cleaned {
		s.Metadata.LastCleanup = now
	}
	return cleaned
}

// Report aggregates derived statistics recomputed from the snapshot.
type Report struct {
	TotalAlerts       int64
	TodayAlerts       int
	MonitoredItems    int
	AvgPriceChangePct decimal.Decimal
	LastUpdate        *time.Time
	MonitorStartTime  time.Time
}

// Stats recomputes derived statistics on demand.
func (s *Snapshot) Stats(now time.Time) Report {
	report := Report{
		TotalAlerts:      s.Statistics.TotalAlerts,
		MonitoredItems:   len(s.Items),
		LastUpdate:       s.Statistics.LastUpdate,
		MonitorStartTime: s.Statistics.MonitorStartTime,
	}

	year, month, day := now.Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	for _, alert := range s.Alerts {
		local := alert.Timestamp.In(now.Location())
		if !local.Before(dayStart) && local.Before(dayStart.AddDate(0, 0, 1)) {
			report.TodayAlerts++
		}
	}

	changes := decimal.Zero
	counted := 0
	for _, series := range s.Items {
		n := len(series.PriceHistory)
		if n < 2 {
			continue
		}
		latest := series.PriceHistory[n-1].Price
		previous := series.PriceHistory[n-2].Price
		if previous.IsZero() {
			continue
		}
		changes = changes.Add(latest.Sub(previous).Div(previous))
		counted++
	}
	if counted > 0 {
		report.AvgPriceChangePct = changes.
			Div(decimal.NewFromInt(int64(counted))).
			Mul(decimal.NewFromInt(100))
	}

	return report
}
