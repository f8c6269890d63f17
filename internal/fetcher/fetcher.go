package fetcher

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// ItemData is the per-platform price observation returned by the upstream
// data source.
type ItemData struct {
	Price    decimal.Decimal
	Volume   int64
	Listings int64
}

// ItemDataFetcher retrieves current marketplace data for a single item.
type ItemDataFetcher interface {
	GetItemData(ctx context.Context, itemID int64, platform string) (ItemData, error)
}

// FetchError surfaces upstream failures (network error, non-2xx status,
// malformed body) as a single error kind.
type FetchError struct {
	ItemID   int64
	Platform string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch item %d (%s): status %d: %v", e.ItemID, e.Platform, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch item %d (%s): %v", e.ItemID, e.Platform, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
