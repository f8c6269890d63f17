package detector

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Mack1234552152/cs2-item-monitor/internal/storage"
)

// Input carries everything the decision needs; the detector performs no I/O.
type Input struct {
	ItemID        int64
	ItemName      string
	Platform      string
	CurrentPrice  decimal.Decimal
	HistoricalLow decimal.Decimal
	Threshold     decimal.Decimal
}

// Evaluate decides whether a sample is alert-worthy. A ratio of current
// price to historical low at or below the threshold triggers; equality
// counts as a trigger. Returns nil when no alert is due.
//
// Callers must only invoke Evaluate once a historical low exists: the very
// first sample of a series has nothing to compare against.
func Evaluate(in Input) *storage.Alert {
	if in.HistoricalLow.Sign() <= 0 {
		return nil
	}

	ratio := in.CurrentPrice.Div(in.HistoricalLow)
	if ratio.GreaterThan(in.Threshold) {
		return nil
	}

	return &storage.Alert{
		ID:            newAlertID(),
		Timestamp:     time.Now().UTC(),
		ItemID:        in.ItemID,
		ItemName:      in.ItemName,
		Platform:      in.Platform,
		CurrentPrice:  in.CurrentPrice,
		HistoricalLow: in.HistoricalLow,
		Discount:      decimal.NewFromInt(1).Sub(ratio),
	}
}

// newAlertID returns an opaque, time-ordered identifier. UUIDv7 sorts by
// creation time, which keeps the backlog naturally ordered.
func newAlertID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source is broken; fall back to v4
		// rather than panic inside the detection path.
		return uuid.NewString()
	}
	return id.String()
}
