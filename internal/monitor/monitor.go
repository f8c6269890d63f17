package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mack1234552152/cs2-item-monitor/internal/alerting"
	"github.com/Mack1234552152/cs2-item-monitor/internal/archive"
	"github.com/Mack1234552152/cs2-item-monitor/internal/config"
	"github.com/Mack1234552152/cs2-item-monitor/internal/detector"
	"github.com/Mack1234552152/cs2-item-monitor/internal/dispatch"
	"github.com/Mack1234552152/cs2-item-monitor/internal/fetcher"
	"github.com/Mack1234552152/cs2-item-monitor/internal/history"
	"github.com/Mack1234552152/cs2-item-monitor/internal/storage"
)

// ErrPassInFlight is returned when a pass is requested while one is running.
// Passes must never overlap: the snapshot read-modify-write cycle has no
// isolation between writers.
var ErrPassInFlight = errors.New("monitor: pass already in flight")

// Store is the snapshot persistence contract the orchestrator depends on.
type Store interface {
	Load() (*storage.Snapshot, error)
	Save(*storage.Snapshot) error
	Backup() (string, error)
}

// Monitor iterates the configured items, records samples, detects deals,
// and drains the notification backlog once per pass.
type Monitor struct {
	cfg        config.MonitorConfig
	items      []config.Item
	source     fetcher.ItemDataFetcher
	tracker    *history.Tracker
	store      Store
	dispatcher *dispatch.Dispatcher
	notifier   alerting.Notifier
	recorder   archive.Recorder
	logger     zerolog.Logger
	now        func() time.Time

	mu         sync.Mutex
	running    bool
	retryCount map[int64]int
}

// New constructs the orchestrator. notifier may be nil when notifications
// are disabled; recorder defaults to the noop archive.
func New(
	cfg config.MonitorConfig,
	items []config.Item,
	source fetcher.ItemDataFetcher,
	tracker *history.Tracker,
	store Store,
	dispatcher *dispatch.Dispatcher,
	notifier alerting.Notifier,
	recorder archive.Recorder,
	logger zerolog.Logger,
) *Monitor {
	if recorder == nil {
		recorder = archive.NewNoop()
	}
	return &Monitor{
		cfg:        cfg,
		items:      config.EnabledItems(items),
		source:     source,
		tracker:    tracker,
		store:      store,
		dispatcher: dispatcher,
		notifier:   notifier,
		recorder:   recorder,
		logger:     logger.With().Str("component", "monitor").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
		retryCount: make(map[int64]int),
	}
}

// PassResult summarises one monitoring pass.
type PassResult struct {
	Items     int
	Succeeded int
	Alerts    int
	Dispatch  dispatch.Result
}

// RunPass executes one complete pass: every enabled item on every configured
// platform, sequentially and in configuration order, then the notification
// backlog. A second concurrent pass is refused with ErrPassInFlight.
func (m *Monitor) RunPass(ctx context.Context) (PassResult, error) {
	if !m.begin() {
		return PassResult{}, ErrPassInFlight
	}
	defer m.end()

	result := PassResult{Items: len(m.items)}
	m.logger.Info().Int("items", len(m.items)).Msg("monitoring pass started")

	for _, item := range m.items {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		alerts, err := m.checkItem(ctx, item)
		if err != nil {
			m.logger.Error().Err(err).Str("item", item.Name).Msg("item check failed")
			m.handleFailure(ctx, item)
		} else {
			result.Succeeded++
			result.Alerts += alerts
			m.clearRetry(item.ID)
		}
	}

	dispatched, err := m.dispatcher.Drain(ctx)
	result.Dispatch = dispatched
	if err != nil {
		m.logger.Error().Err(err).Msg("backlog drain failed")
	}

	m.logger.Info().
		Int("succeeded", result.Succeeded).
		Int("items", result.Items).
		Int("alerts", result.Alerts).
		Int("sent", result.Dispatch.Sent).
		Int("failed", result.Dispatch.Failed).
		Msg("monitoring pass finished")
	return result, nil
}

// checkItem walks the item's platforms. A platform failure fails the item;
// earlier platforms keep whatever they already persisted.
func (m *Monitor) checkItem(ctx context.Context, item config.Item) (int, error) {
	alerts := 0
	for _, platform := range item.Platforms {
		alerted, err := m.checkPlatform(ctx, item, platform)
		if err != nil {
			return alerts, err
		}
		if alerted {
			alerts++
		}

		if m.cfg.RequestInterval > 0 {
			if err := sleep(ctx, m.cfg.RequestInterval); err != nil {
				return alerts, err
			}
		}
	}
	return alerts, nil
}

func (m *Monitor) checkPlatform(ctx context.Context, item config.Item, platform string) (bool, error) {
	data, err := m.source.GetItemData(ctx, item.ID, platform)
	if err != nil {
		return false, err
	}

	sample := storage.PriceSample{
		Price:    data.Price,
		Volume:   data.Volume,
		Listings: data.Listings,
		Source:   "csqaq_api",
	}
	recorded, err := m.tracker.RecordSample(item.ID, platform, sample)
	if err != nil {
		return false, err
	}

	if archiveErr := m.recorder.RecordSample(ctx, item.ID, platform, sample); archiveErr != nil {
		m.logger.Warn().Err(archiveErr).Str("item", item.Name).Msg("archive sample failed")
	}

	if recorded.PriorLow == nil {
		m.logger.Info().
			Str("item", item.Name).
			Str("platform", platform).
			Str("price", data.Price.String()).
			Msg("first sample for series; nothing to compare against")
		return false, nil
	}

	alert := detector.Evaluate(detector.Input{
		ItemID:        item.ID,
		ItemName:      item.Name,
		Platform:      platform,
		CurrentPrice:  data.Price,
		HistoricalLow: *recorded.PriorLow,
		Threshold:     item.Threshold(m.cfg.PriceThreshold),
	})
	if alert == nil {
		m.logger.Debug().
			Str("item", item.Name).
			Str("platform", platform).
			Str("price", data.Price.String()).
			Str("low", recorded.Low.String()).
			Msg("price within normal range")
		return false, nil
	}

	queued, err := m.queueAlert(alert)
	if err != nil {
		return false, err
	}
	if !queued {
		return false, nil
	}

	if archiveErr := m.recorder.RecordAlert(ctx, alert); archiveErr != nil {
		m.logger.Warn().Err(archiveErr).Str("alert_id", alert.ID).Msg("archive alert failed")
	}

	m.logger.Info().
		Str("item", item.Name).
		Str("platform", platform).
		Str("price", alert.CurrentPrice.String()).
		Str("low", alert.HistoricalLow.String()).
		Str("discount", alert.Discount.String()).
		Msg("price alert triggered")
	return true, nil
}

// queueAlert persists the alert into the unnotified backlog, honouring the
// optional per-(item, platform) cooldown.
func (m *Monitor) queueAlert(alert *storage.Alert) (bool, error) {
	snapshot, err := m.store.Load()
	if err != nil {
		return false, fmt.Errorf("queue alert: %w", err)
	}

	if m.cfg.AlertCooldown > 0 {
		cutoff := alert.Timestamp.Add(-m.cfg.AlertCooldown)
		for _, previous := range snapshot.Alerts {
			if previous.ItemID == alert.ItemID &&
				previous.Platform == alert.Platform &&
				previous.Timestamp.After(cutoff) {
				m.logger.Debug().
					Str("item", alert.ItemName).
					Str("platform", alert.Platform).
					Msg("alert suppressed by cooldown")
				return false, nil
			}
		}
	}

	snapshot.AppendAlert(alert)
	if err := m.store.Save(snapshot); err != nil {
		return false, fmt.Errorf("queue alert: %w", err)
	}
	return true, nil
}

// handleFailure bumps the per-item failure counter and escalates once the
// retry budget is exhausted. Items are never permanently dropped: the
// counter resets and the item is retried on the next pass.
func (m *Monitor) handleFailure(ctx context.Context, item config.Item) {
	m.mu.Lock()
	m.retryCount[item.ID]++
	count := m.retryCount[item.ID]
	budget := m.cfg.RetryAttempts
	if count >= budget {
		delete(m.retryCount, item.ID)
	}
	m.mu.Unlock()

	if count < budget {
		m.logger.Warn().
			Str("item", item.Name).
			Int("failures", count).
			Int("budget", budget).
			Msg("item check will be retried on next pass")
		return
	}

	m.logger.Error().Str("item", item.Name).Int("failures", count).Msg("item failed past retry budget")

	if m.notifier == nil {
		return
	}
	warning := alerting.RenderSystemNotification(
		fmt.Sprintf("饰品 %s 连续 %d 次监控失败，本轮暂时跳过", item.Name, count),
		"warning",
	)
	// Failure to warn is swallowed: escalating an escalation failure would
	// loop forever.
	if err := m.notifier.Send(ctx, warning); err != nil {
		m.logger.Error().Err(err).Str("item", item.Name).Msg("failed to send escalation warning")
	}
}

func (m *Monitor) clearRetry(itemID int64) {
	m.mu.Lock()
	delete(m.retryCount, itemID)
	m.mu.Unlock()
}

func (m *Monitor) begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return false
	}
	m.running = true
	return true
}

func (m *Monitor) end() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// Status reports orchestrator state for introspection.
type Status struct {
	Running        bool
	MonitoredItems int
	RetryingItems  int
}

// GetStatus returns a point-in-time view of the orchestrator.
func (m *Monitor) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Running:        m.running,
		MonitoredItems: len(m.items),
		RetryingItems:  len(m.retryCount),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// topDealsToday returns today's alerts ordered by discount, best first.
func topDealsToday(snapshot *storage.Snapshot, now time.Time, limit int) []*storage.Alert {
	year, month, day := now.Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	deals := make([]*storage.Alert, 0)
	for _, alert := range snapshot.Alerts {
		local := alert.Timestamp.In(now.Location())
		if !local.Before(dayStart) && local.Before(dayStart.AddDate(0, 0, 1)) {
			deals = append(deals, alert)
		}
	}
	sort.SliceStable(deals, func(i, j int) bool {
		return deals[i].Discount.GreaterThan(deals[j].Discount)
	})
	if len(deals) > limit {
		deals = deals[:limit]
	}
	return deals
}
