package monitor

import (
	"context"
	"fmt"

	"github.com/Mack1234552152/cs2-item-monitor/internal/alerting"
)

// MaintenanceConfig bounds the retention windows applied during cleanup.
type MaintenanceConfig struct {
	MaxHistoryDays     int
	AlertRetentionDays int
}

// Maintain trims retained history, backs up the snapshot, and resets the
// in-memory retry counters. It takes the same guard as RunPass: the snapshot
// read-modify-write cycle has no isolation between writers, so a maintenance
// Save racing a pass could erase an alert the pass just queued.
func (m *Monitor) Maintain(ctx context.Context, cfg MaintenanceConfig) error {
	if !m.begin() {
		return ErrPassInFlight
	}
	defer m.end()

	m.logger.Info().Msg("running maintenance")

	snapshot, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("maintenance: %w", err)
	}

	if snapshot.Cleanup(m.now(), cfg.MaxHistoryDays, cfg.AlertRetentionDays) {
		if err := m.store.Save(snapshot); err != nil {
			return fmt.Errorf("maintenance: %w", err)
		}
		m.logger.Info().Msg("retention cleanup applied")
	}

	backupPath, err := m.store.Backup()
	if err != nil {
		return fmt.Errorf("maintenance: %w", err)
	}
	m.logger.Info().Str("path", backupPath).Msg("snapshot backed up")

	m.mu.Lock()
	m.retryCount = make(map[int64]int)
	m.mu.Unlock()

	if m.notifier != nil {
		note := alerting.RenderSystemNotification("系统维护完成", "info")
		if err := m.notifier.Send(ctx, note); err != nil {
			m.logger.Error().Err(err).Msg("failed to send maintenance notification")
		}
	}
	return nil
}

// SendDailyReport composes and pushes the daily summary.
func (m *Monitor) SendDailyReport(ctx context.Context) error {
	if m.notifier == nil {
		return fmt.Errorf("daily report: no notification channel configured")
	}

	snapshot, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("daily report: %w", err)
	}

	now := m.now()
	report := snapshot.Stats(now)
	deals := topDealsToday(snapshot, now, 5)

	if err := m.notifier.Send(ctx, alerting.RenderDailyReport(report, deals)); err != nil {
		return fmt.Errorf("daily report: %w", err)
	}

	m.logger.Info().
		Int("today_alerts", report.TodayAlerts).
		Int("top_deals", len(deals)).
		Msg("daily report sent")
	return nil
}
