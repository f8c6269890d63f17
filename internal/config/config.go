package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/Mack1234552152/cs2-item-monitor/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Logging      logging.Config     `mapstructure:"logging"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Monitor      MonitorConfig      `mapstructure:"monitor"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	API          APIConfig          `mapstructure:"api"`
	Notification NotificationConfig `mapstructure:"notification"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Export       ExportConfig       `mapstructure:"export"`
	Items        ItemsConfig        `mapstructure:"items"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StorageConfig locates the snapshot document and bounds retention.
type StorageConfig struct {
	DataPath           string `mapstructure:"data_path"`
	MaxHistoryDays     int    `mapstructure:"max_history_days"`
	AlertRetentionDays int    `mapstructure:"alert_retention_days"`
}

// MonitorConfig governs detection and per-item failure handling.
type MonitorConfig struct {
	// PriceThreshold is the global current/low ratio at or below which an
	// alert fires; per-item overrides take precedence.
	PriceThreshold   float64       `mapstructure:"price_threshold"`
	RetryAttempts    int           `mapstructure:"retry_attempts"`
	RequestInterval  time.Duration `mapstructure:"request_interval"`
	DispatchInterval time.Duration `mapstructure:"dispatch_interval"`
	// AlertCooldown suppresses repeat alerts for the same item and platform
	// within the window; zero keeps the re-trigger-every-pass behaviour.
	AlertCooldown time.Duration `mapstructure:"alert_cooldown"`
}

// SchedulerConfig holds the cron expressions driving the engine.
type SchedulerConfig struct {
	MonitorCron     string `mapstructure:"monitor_cron"`
	ReportCron      string `mapstructure:"report_cron"`
	MaintenanceCron string `mapstructure:"maintenance_cron"`
	RunOnStart      bool   `mapstructure:"run_on_start"`
}

// APIConfig covers the upstream price-data source.
type APIConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	Token              string        `mapstructure:"token"`
	Endpoint           string        `mapstructure:"endpoint"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	MinRequestInterval time.Duration `mapstructure:"min_request_interval"`
	UserAgent          string        `mapstructure:"user_agent"`
}

// NotificationConfig defines alert routing.
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	WXPusher WXPusherConfig `mapstructure:"wxpusher"`
}

// WXPusherConfig 描述 WxPusher 推送参数。
type WXPusherConfig struct {
	AppToken       string        `mapstructure:"app_token"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UIDs           []string      `mapstructure:"uids"`
	TopicIDs       []int64       `mapstructure:"topic_ids"`
}

// DatabaseConfig encapsulates the optional Postgres archive.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// ItemsConfig locates the monitored item list.
type ItemsConfig struct {
	Path string `mapstructure:"path"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CS2MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cs2-item-monitor")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("storage.data_path", "data/price_data.json")
	v.SetDefault("storage.max_history_days", 180)
	v.SetDefault("storage.alert_retention_days", 30)

	v.SetDefault("monitor.price_threshold", 1.0)
	v.SetDefault("monitor.retry_attempts", 3)
	v.SetDefault("monitor.request_interval", "1s")
	v.SetDefault("monitor.dispatch_interval", "2s")
	v.SetDefault("monitor.alert_cooldown", "0s")

	v.SetDefault("scheduler.monitor_cron", "*/5 * * * *")
	v.SetDefault("scheduler.report_cron", "0 9 * * *")
	v.SetDefault("scheduler.maintenance_cron", "0 2 * * 0")
	v.SetDefault("scheduler.run_on_start", true)

	v.SetDefault("api.base_url", "https://api.csqaq.com")
	v.SetDefault("api.endpoint", "/api/v1/goods/get_all_goods_info")
	v.SetDefault("api.request_timeout", "30s")
	v.SetDefault("api.min_request_interval", "1s")
	v.SetDefault("api.user_agent", "cs2-item-monitor/1.0")

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.wxpusher.base_url", "https://wxpusher.zjiecode.com")
	v.SetDefault("notification.wxpusher.request_timeout", "10s")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("items.path", "config/items.yaml")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Storage.DataPath == "" {
		return fmt.Errorf("storage.data_path is required")
	}
	if c.Storage.MaxHistoryDays <= 0 {
		return fmt.Errorf("storage.max_history_days must be greater than zero")
	}
	if c.Storage.AlertRetentionDays <= 0 {
		return fmt.Errorf("storage.alert_retention_days must be greater than zero")
	}
	if c.Monitor.PriceThreshold <= 0 {
		return fmt.Errorf("monitor.price_threshold must be greater than zero")
	}
	if c.Monitor.RetryAttempts <= 0 {
		return fmt.Errorf("monitor.retry_attempts must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Notification.Enabled && c.Notification.WXPusher.AppToken == "" {
		return fmt.Errorf("notification.wxpusher.app_token 必须配置")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
