package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mack1234552152/cs2-item-monitor/internal/alerting"
	"github.com/Mack1234552152/cs2-item-monitor/internal/storage"
)

// Store is the snapshot persistence contract the dispatcher depends on.
type Store interface {
	Load() (*storage.Snapshot, error)
	Save(*storage.Snapshot) error
}

// Dispatcher delivers the backlog of unnotified alerts. Marking an alert as
// notified happens after the channel call succeeds, so a crash in between
// can re-deliver that one alert on the next pass; it is never recorded as
// sent without a successful call.
type Dispatcher struct {
	store    Store
	notifier alerting.Notifier
	// interval spaces out sends to respect the channel's own rate limits.
	interval time.Duration
	logger   zerolog.Logger
}

// New constructs a Dispatcher.
func New(store Store, notifier alerting.Notifier, interval time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		notifier: notifier,
		interval: interval,
		logger:   logger.With().Str("component", "dispatch").Logger(),
	}
}

// Result summarises one drain of the backlog.
type Result struct {
	Backlog int
	Sent    int
	Failed  int
}

// Drain re-reads the current backlog oldest first and dispatches each alert.
// A failed send leaves that alert queued for the next pass; the rest of the
// backlog is still attempted.
func (d *Dispatcher) Drain(ctx context.Context) (Result, error) {
	snapshot, err := d.store.Load()
	if err != nil {
		return Result{}, fmt.Errorf("drain backlog: %w", err)
	}

	backlog := snapshot.UnnotifiedAlerts()
	result := Result{Backlog: len(backlog)}
	if len(backlog) == 0 {
		return result, nil
	}
	if d.notifier == nil {
		d.logger.Warn().Int("backlog", len(backlog)).Msg("no notification channel configured; backlog retained")
		return result, nil
	}

	d.logger.Info().Int("backlog", len(backlog)).Msg("dispatching unnotified alerts")

	for i, alert := range backlog {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := d.dispatch(ctx, alert); err != nil {
			result.Failed++
			d.logger.Error().Err(err).
				Str("alert_id", alert.ID).
				Str("item", alert.ItemName).
				Str("platform", alert.Platform).
				Msg("alert dispatch failed; will retry next pass")
		} else {
			result.Sent++
		}

		if d.interval > 0 && i < len(backlog)-1 {
			if err := sleep(ctx, d.interval); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

// dispatch sends one alert and records the delivery.
func (d *Dispatcher) dispatch(ctx context.Context, alert *storage.Alert) error {
	if err := d.notifier.Send(ctx, alerting.RenderPriceAlert(alert)); err != nil {
		return err
	}

	// Re-read before flipping the flag so a marking failure never loses
	// samples recorded since the backlog was listed.
	snapshot, err := d.store.Load()
	if err != nil {
		return fmt.Errorf("mark alert notified: %w", err)
	}
	if !snapshot.MarkNotified(alert.ID, time.Now().UTC()) {
		d.logger.Warn().Str("alert_id", alert.ID).Msg("dispatched alert no longer present in snapshot")
		return nil
	}
	if err := d.store.Save(snapshot); err != nil {
		return fmt.Errorf("mark alert notified: %w", err)
	}

	d.logger.Info().
		Str("alert_id", alert.ID).
		Str("item", alert.ItemName).
		Str("platform", alert.Platform).
		Msg("alert notification sent")
	return nil
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
