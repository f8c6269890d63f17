package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Mack1234552152/cs2-item-monitor/internal/storage"
)

// DefaultMaxHistoryDays is the retention window applied when none is
// configured.
const DefaultMaxHistoryDays = 180

// ErrInvalidPrice rejects samples whose price is not a positive number.
var ErrInvalidPrice = errors.New("history: sample price must be positive")

// Store is the snapshot persistence contract the tracker depends on.
type Store interface {
	Load() (*storage.Snapshot, error)
	Save(*storage.Snapshot) error
}

// Tracker appends price samples to item series, maintains the cached
// extrema, and enforces the retention window.
type Tracker struct {
	store          Store
	maxHistoryDays int
	logger         zerolog.Logger
	now            func() time.Time
}

// NewTracker constructs a Tracker over the given store.
func NewTracker(store Store, maxHistoryDays int, logger zerolog.Logger) *Tracker {
	if maxHistoryDays <= 0 {
		maxHistoryDays = DefaultMaxHistoryDays
	}
	return &Tracker{
		store:          store,
		maxHistoryDays: maxHistoryDays,
		logger:         logger.With().Str("component", "history").Logger(),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// RecordResult reports the series state around a recorded sample.
type RecordResult struct {
	// PriorLow is the cached historical low as it stood before this sample.
	// Nil when this was the first sample ever seen for the pair.
	PriorLow *decimal.Decimal
	// Low is the cached historical low after this sample was applied.
	Low decimal.Decimal
	// Samples is the retained series length after trimming.
	Samples int
}

// RecordSample appends a sample to the (itemID, platform) series, updates
// the cached low/high, trims samples beyond the retention window, and
// persists the snapshot.
func (t *Tracker) RecordSample(itemID int64, platform string, sample storage.PriceSample) (RecordResult, error) {
	if sample.Price.Sign() <= 0 {
		return RecordResult{}, fmt.Errorf("%w: got %s", ErrInvalidPrice, sample.Price)
	}

	snapshot, err := t.store.Load()
	if err != nil {
		return RecordResult{}, fmt.Errorf("record sample: %w", err)
	}

	now := t.now()
	series := snapshot.EnsureSeries(itemID, platform)

	var priorLow *decimal.Decimal
	if series.HistoricalLow != nil {
		low := *series.HistoricalLow
		priorLow = &low
	}

	sample.Timestamp = now
	if sample.Source == "" {
		sample.Source = "api"
	}
	series.PriceHistory = append(series.PriceHistory, sample)
	series.LastUpdate = now

	if series.HistoricalLow == nil || sample.Price.LessThan(*series.HistoricalLow) {
		price := sample.Price
		series.HistoricalLow = &price
	}
	if series.HistoricalHigh == nil || sample.Price.GreaterThan(*series.HistoricalHigh) {
		price := sample.Price
		series.HistoricalHigh = &price
	}

	series.Trim(now.AddDate(0, 0, -t.maxHistoryDays))
	snapshot.Statistics.LastUpdate = &now

	if err := t.store.Save(snapshot); err != nil {
		return RecordResult{}, fmt.Errorf("record sample: %w", err)
	}

	result := RecordResult{
		PriorLow: priorLow,
		Low:      *series.HistoricalLow,
		Samples:  len(series.PriceHistory),
	}
	t.logger.Debug().
		Int64("item_id", itemID).
		Str("platform", platform).
		Str("price", sample.Price.String()).
		Str("low", result.Low.String()).
		Int("samples", result.Samples).
		Msg("sample recorded")
	return result, nil
}

// HistoricalLow returns the cached all-time low for the pair, or nil when
// the pair has never been seen. The cached value keeps its pre-trim
// semantics: it may reference a price no longer present in the series.
func (t *Tracker) HistoricalLow(itemID int64, platform string) (*decimal.Decimal, error) {
	snapshot, err := t.store.Load()
	if err != nil {
		return nil, fmt.Errorf("historical low: %w", err)
	}
	series := snapshot.Series(itemID, platform)
	if series == nil || series.HistoricalLow == nil {
		return nil, nil
	}
	low := *series.HistoricalLow
	return &low, nil
}

// HistoricalLowWithin recomputes the minimum strictly from samples inside
// the last windowDays. Returns nil when no sample falls in the window.
func (t *Tracker) HistoricalLowWithin(itemID int64, platform string, windowDays int) (*decimal.Decimal, error) {
	snapshot, err := t.store.Load()
	if err != nil {
		return nil, fmt.Errorf("historical low: %w", err)
	}
	series := snapshot.Series(itemID, platform)
	if series == nil {
		return nil, nil
	}

	cutoff := t.now().AddDate(0, 0, -windowDays)
	var low *decimal.Decimal
	for _, sample := range series.PriceHistory {
		if sample.Timestamp.Before(cutoff) {
			continue
		}
		if low == nil || sample.Price.LessThan(*low) {
			price := sample.Price
			low = &price
		}
	}
	return low, nil
}

// PriceHistory returns the samples recorded within the last days.
func (t *Tracker) PriceHistory(itemID int64, platform string, days int) ([]storage.PriceSample, error) {
	snapshot, err := t.store.Load()
	if err != nil {
		return nil, fmt.Errorf("price history: %w", err)
	}
	series := snapshot.Series(itemID, platform)
	if series == nil {
		return nil, nil
	}

	cutoff := t.now().AddDate(0, 0, -days)
	recent := make([]storage.PriceSample, 0, len(series.PriceHistory))
	for _, sample := range series.PriceHistory {
		if !sample.Timestamp.Before(cutoff) {
			recent = append(recent, sample)
		}
	}
	return recent, nil
}
