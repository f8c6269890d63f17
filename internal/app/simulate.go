package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/Mack1234552152/cs2-item-monitor/internal/config"
	"github.com/Mack1234552152/cs2-item-monitor/internal/dispatch"
	"github.com/Mack1234552152/cs2-item-monitor/internal/fetcher"
	"github.com/Mack1234552152/cs2-item-monitor/internal/history"
	"github.com/Mack1234552152/cs2-item-monitor/internal/monitor"
	"github.com/Mack1234552152/cs2-item-monitor/internal/storage"
)

// Simulate 以给定的种子价与当前价走一遍完整的检测与推送链路，
// 使用临时快照文件，不触碰真实数据。
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Notification.Enabled {
		return errors.New("notification 未启用")
	}
	notifier := a.routeNotifier(a.newNotifier())
	if notifier == nil {
		return errors.New("未配置任何通知通道")
	}
	if opts.SeedPrice <= 0 || opts.Price <= 0 {
		return errors.New("--seed and --price must be positive")
	}

	tmpDir, err := os.MkdirTemp("", "cs2-monitor-simulate-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	store := storage.NewFileStore(filepath.Join(tmpDir, "snapshot.json"), a.Logger)
	tracker := history.NewTracker(store, a.Config.Storage.MaxHistoryDays, a.Logger)

	// Seed the series so the simulated sample has a low to compare against.
	seed := storage.PriceSample{Price: decimal.NewFromFloat(opts.SeedPrice), Source: "simulated"}
	if _, err := tracker.RecordSample(opts.ItemID, opts.Platform, seed); err != nil {
		return err
	}

	item := config.Item{
		ID:        opts.ItemID,
		Name:      opts.ItemName,
		Platforms: []string{opts.Platform},
		Enabled:   true,
	}

	dispatcher := dispatch.New(store, notifier, 0, a.Logger)
	mon := monitor.New(
		a.Config.Monitor,
		[]config.Item{item},
		&staticFetcher{price: decimal.NewFromFloat(opts.Price)},
		tracker,
		store,
		dispatcher,
		notifier,
		nil,
		a.Logger,
	)

	result, err := mon.RunPass(ctx)
	if err != nil {
		return err
	}

	if result.Alerts == 0 {
		fmt.Fprintf(os.Stdout, "no alert: %.2f / %.2f is above the threshold\n", opts.Price, opts.SeedPrice)
		return nil
	}
	fmt.Fprintf(os.Stdout, "alert triggered and dispatched (sent=%d failed=%d)\n", result.Dispatch.Sent, result.Dispatch.Failed)
	return nil
}

type staticFetcher struct {
	price decimal.Decimal
}

func (s *staticFetcher) GetItemData(ctx context.Context, itemID int64, platform string) (fetcher.ItemData, error) {
	return fetcher.ItemData{Price: s.price, Volume: 1, Listings: 1}, nil
}

var _ fetcher.ItemDataFetcher = (*staticFetcher)(nil)
