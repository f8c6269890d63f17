package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Mack1234552152/cs2-item-monitor/internal/config"
	"github.com/Mack1234552152/cs2-item-monitor/internal/storage"
)

const (
	createSamplesTableSQL = `CREATE TABLE IF NOT EXISTS price_samples (
        id          BIGSERIAL PRIMARY KEY,
        item_id     BIGINT      NOT NULL,
        platform    TEXT        NOT NULL,
        observed_at TIMESTAMPTZ NOT NULL,
        price       NUMERIC     NOT NULL,
        volume      BIGINT      NOT NULL DEFAULT 0,
        listings    BIGINT      NOT NULL DEFAULT 0,
        source      TEXT        NOT NULL DEFAULT ''
    );`

	createSamplesIndexSQL = `CREATE INDEX IF NOT EXISTS idx_price_samples_item
        ON price_samples (item_id, platform, observed_at);`

	createAlertsTableSQL = `CREATE TABLE IF NOT EXISTS alert_log (
        alert_id       TEXT PRIMARY KEY,
        triggered_at   TIMESTAMPTZ NOT NULL,
        item_id        BIGINT      NOT NULL,
        item_name      TEXT        NOT NULL,
        platform       TEXT        NOT NULL,
        current_price  NUMERIC     NOT NULL,
        historical_low NUMERIC     NOT NULL,
        discount       NUMERIC     NOT NULL
    );`

	insertSampleSQL = `INSERT INTO price_samples (
        item_id, platform, observed_at, price, volume, listings, source
    ) VALUES ($1,$2,$3,$4,$5,$6,$7);`

	insertAlertSQL = `INSERT INTO alert_log (
        alert_id, triggered_at, item_id, item_name, platform,
        current_price, historical_low, discount
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    ON CONFLICT (alert_id) DO NOTHING;`
)

// Postgres is a pgx-backed Recorder.
type Postgres struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgres connects a pool from runtime settings and ensures the archive
// tables exist.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	p := &Postgres{
		pool:   pool,
		logger: logger.With().Str("component", "archive").Logger(),
	}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	for _, stmt := range []string{createSamplesTableSQL, createSamplesIndexSQL, createAlertsTableSQL} {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate archive schema: %w", err)
		}
	}
	return nil
}

// RecordSample appends one observation to the archive.
func (p *Postgres) RecordSample(ctx context.Context, itemID int64, platform string, sample storage.PriceSample) error {
	_, err := p.pool.Exec(ctx, insertSampleSQL,
		itemID,
		platform,
		sample.Timestamp,
		sample.Price.String(),
		sample.Volume,
		sample.Listings,
		sample.Source,
	)
	if err != nil {
		return fmt.Errorf("archive sample: %w", err)
	}
	return nil
}

// RecordAlert appends one alert to the archive log.
func (p *Postgres) RecordAlert(ctx context.Context, alert *storage.Alert) error {
	_, err := p.pool.Exec(ctx, insertAlertSQL,
		alert.ID,
		alert.Timestamp,
		alert.ItemID,
		alert.ItemName,
		alert.Platform,
		alert.CurrentPrice.String(),
		alert.HistoricalLow.String(),
		alert.Discount.String(),
	)
	if err != nil {
		return fmt.Errorf("archive alert: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (p *Postgres) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}

var _ Recorder = (*Postgres)(nil)
