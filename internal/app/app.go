package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mack1234552152/cs2-item-monitor/internal/alerting"
	"github.com/Mack1234552152/cs2-item-monitor/internal/archive"
	"github.com/Mack1234552152/cs2-item-monitor/internal/config"
	"github.com/Mack1234552152/cs2-item-monitor/internal/dispatch"
	"github.com/Mack1234552152/cs2-item-monitor/internal/fetcher"
	"github.com/Mack1234552152/cs2-item-monitor/internal/history"
	"github.com/Mack1234552152/cs2-item-monitor/internal/monitor"
	"github.com/Mack1234552152/cs2-item-monitor/internal/scheduler"
	"github.com/Mack1234552152/cs2-item-monitor/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newStore() *storage.FileStore {
	return storage.NewFileStore(a.Config.Storage.DataPath, a.Logger)
}

func (a *App) newFetcher() fetcher.ItemDataFetcher {
	return fetcher.NewCSQAQ(fetcher.CSQAQOptions{
		BaseURL:            a.Config.API.BaseURL,
		Token:              a.Config.API.Token,
		Endpoint:           a.Config.API.Endpoint,
		Timeout:            a.Config.API.RequestTimeout,
		MinRequestInterval: a.Config.API.MinRequestInterval,
		UserAgent:          a.Config.API.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Notification.Enabled {
		return nil
	}
	cfg := a.Config.Notification.WXPusher
	return alerting.NewWXPusherNotifier(cfg.AppToken, cfg.BaseURL, cfg.RequestTimeout, a.Logger)
}

// routedNotifier pins the configured recipient set onto every message.
type routedNotifier struct {
	inner    alerting.Notifier
	uids     []string
	topicIDs []int64
}

func (r *routedNotifier) Send(ctx context.Context, msg alerting.Message) error {
	if len(msg.UIDs) == 0 {
		msg.UIDs = r.uids
	}
	if len(msg.TopicIDs) == 0 {
		msg.TopicIDs = r.topicIDs
	}
	return r.inner.Send(ctx, msg)
}

func (a *App) routeNotifier(n alerting.Notifier) alerting.Notifier {
	if n == nil {
		return nil
	}
	cfg := a.Config.Notification.WXPusher
	if len(cfg.UIDs) == 0 && len(cfg.TopicIDs) == 0 {
		return n
	}
	return &routedNotifier{inner: n, uids: cfg.UIDs, topicIDs: cfg.TopicIDs}
}

func (a *App) openArchive(ctx context.Context) (archive.Recorder, func()) {
	if a.Config.Database.DSN == "" {
		return archive.NewNoop(), func() {}
	}
	rec, err := archive.NewPostgres(ctx, a.Config.Database, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("archive database unavailable; continuing without it")
		return archive.NewNoop(), func() {}
	}
	return rec, rec.Close
}

// newMonitor assembles the orchestrator and its collaborators.
func (a *App) newMonitor(ctx context.Context, items []config.Item, src fetcher.ItemDataFetcher, notifier alerting.Notifier) (*monitor.Monitor, func()) {
	store := a.newStore()
	tracker := history.NewTracker(store, a.Config.Storage.MaxHistoryDays, a.Logger)
	dispatcher := dispatch.New(store, notifier, a.Config.Monitor.DispatchInterval, a.Logger)
	recorder, closeArchive := a.openArchive(ctx)

	mon := monitor.New(
		a.Config.Monitor,
		items,
		src,
		tracker,
		store,
		dispatcher,
		notifier,
		recorder,
		a.Logger,
	)
	return mon, closeArchive
}

func (a *App) loadItems() ([]config.Item, error) {
	return config.LoadItems(a.Config.Items.Path)
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	items, err := a.loadItems()
	if err != nil {
		return err
	}

	notifier := a.routeNotifier(a.newNotifier())
	mon, closeArchive := a.newMonitor(ctx, items, a.newFetcher(), notifier)
	defer closeArchive()

	if notifier != nil {
		note := alerting.RenderSystemNotification("监控系统启动", "info")
		if err := notifier.Send(ctx, note); err != nil {
			a.Logger.Error().Err(err).Msg("failed to send startup notification")
		}
	}

	sched := scheduler.New(a.Logger)
	err = sched.Register(scheduler.Options{
		MonitorCron:     a.Config.Scheduler.MonitorCron,
		ReportCron:      a.Config.Scheduler.ReportCron,
		MaintenanceCron: a.Config.Scheduler.MaintenanceCron,
	}, scheduler.Jobs{
		MonitorPass: func() {
			_, err := mon.RunPass(ctx)
			switch {
			case err == nil, errors.Is(err, context.Canceled):
			case errors.Is(err, monitor.ErrPassInFlight):
				a.Logger.Warn().Msg("previous pass still running; tick skipped")
			default:
				a.Logger.Error().Err(err).Msg("scheduled pass failed")
			}
		},
		DailyReport: func() {
			if err := mon.SendDailyReport(ctx); err != nil {
				a.Logger.Error().Err(err).Msg("scheduled report failed")
			}
		},
		Maintenance: func() {
			cfg := monitor.MaintenanceConfig{
				MaxHistoryDays:     a.Config.Storage.MaxHistoryDays,
				AlertRetentionDays: a.Config.Storage.AlertRetentionDays,
			}
			err := mon.Maintain(ctx, cfg)
			switch {
			case err == nil:
			case errors.Is(err, monitor.ErrPassInFlight):
				a.Logger.Warn().Msg("pass in flight; maintenance deferred to next cadence")
			default:
				a.Logger.Error().Err(err).Msg("scheduled maintenance failed")
			}
		},
	})
	if err != nil {
		return err
	}

	if a.Config.Scheduler.RunOnStart {
		if _, err := mon.RunPass(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("initial pass failed")
		}
	}

	a.Logger.Info().Msg("starting monitoring service")
	err = sched.Run(ctx)

	if notifier != nil {
		// The run context is already cancelled; give the farewell a short
		// independent deadline.
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		note := alerting.RenderSystemNotification("监控系统停止", "info")
		if sendErr := notifier.Send(stopCtx, note); sendErr != nil {
			a.Logger.Error().Err(sendErr).Msg("failed to send shutdown notification")
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}
	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// Check runs exactly one monitoring pass and prints the statistics, for
// single-shot environments (CI crons, manual checks).
func (a *App) Check(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	items, err := a.loadItems()
	if err != nil {
		return err
	}

	notifier := a.routeNotifier(a.newNotifier())
	mon, closeArchive := a.newMonitor(ctx, items, a.newFetcher(), notifier)
	defer closeArchive()

	result, err := mon.RunPass(ctx)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Int("items", result.Items).
		Int("succeeded", result.Succeeded).
		Int("alerts", result.Alerts).
		Int("dispatched", result.Dispatch.Sent).
		Msg("single check complete")
	return a.printStats()
}

// Report sends the daily report immediately.
func (a *App) Report(ctx context.Context) error {
	items, err := a.loadItems()
	if err != nil {
		return err
	}

	notifier := a.routeNotifier(a.newNotifier())
	mon, closeArchive := a.newMonitor(ctx, items, a.newFetcher(), notifier)
	defer closeArchive()

	return mon.SendDailyReport(ctx)
}

// Maintain runs retention cleanup and backup immediately.
func (a *App) Maintain(ctx context.Context) error {
	items, err := a.loadItems()
	if err != nil {
		return err
	}

	notifier := a.routeNotifier(a.newNotifier())
	mon, closeArchive := a.newMonitor(ctx, items, a.newFetcher(), notifier)
	defer closeArchive()

	return mon.Maintain(ctx, monitor.MaintenanceConfig{
		MaxHistoryDays:     a.Config.Storage.MaxHistoryDays,
		AlertRetentionDays: a.Config.Storage.AlertRetentionDays,
	})
}

// ExportOptions hold parameters for exporting a price-history series.
type ExportOptions struct {
	ItemID    int64
	Platform  string
	Days      int
	PNGPath   string
	CSVPath   string
	AlertsCSV string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SimulateOptions configure the simulate command.
type SimulateOptions struct {
	ItemID    int64
	ItemName  string
	Platform  string
	SeedPrice float64
	Price     float64
}
