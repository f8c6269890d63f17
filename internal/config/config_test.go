package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}

	if cfg.App.Name != "test" {
		t.Fatalf("文件值应覆盖默认值: %q", cfg.App.Name)
	}
	if cfg.Storage.DataPath != "data/price_data.json" {
		t.Fatalf("默认数据路径不正确: %q", cfg.Storage.DataPath)
	}
	if cfg.Storage.MaxHistoryDays != 180 {
		t.Fatalf("默认历史窗口应为 180 天: %d", cfg.Storage.MaxHistoryDays)
	}
	if cfg.Monitor.PriceThreshold != 1.0 {
		t.Fatalf("默认阈值应为 1.0: %v", cfg.Monitor.PriceThreshold)
	}
	if cfg.Monitor.RetryAttempts != 3 {
		t.Fatalf("默认重试预算应为 3: %d", cfg.Monitor.RetryAttempts)
	}
	if cfg.Scheduler.MonitorCron != "*/5 * * * *" {
		t.Fatalf("默认监控周期不正确: %q", cfg.Scheduler.MonitorCron)
	}
	if cfg.Notification.Enabled {
		t.Fatal("通知默认应关闭")
	}
}

func TestLoadDurationsAndOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
monitor:
  price_threshold: 0.95
  request_interval: 500ms
  alert_cooldown: 2h
api:
  request_timeout: 15s
storage:
  max_history_days: 90
`))
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}

	if cfg.Monitor.PriceThreshold != 0.95 {
		t.Fatalf("阈值覆盖失败: %v", cfg.Monitor.PriceThreshold)
	}
	if cfg.Monitor.RequestInterval != 500*time.Millisecond {
		t.Fatalf("时长字符串应被解析: %v", cfg.Monitor.RequestInterval)
	}
	if cfg.Monitor.AlertCooldown != 2*time.Hour {
		t.Fatalf("冷却窗口解析失败: %v", cfg.Monitor.AlertCooldown)
	}
	if cfg.API.RequestTimeout != 15*time.Second {
		t.Fatalf("API 超时解析失败: %v", cfg.API.RequestTimeout)
	}
	if cfg.Storage.MaxHistoryDays != 90 {
		t.Fatalf("历史窗口覆盖失败: %d", cfg.Storage.MaxHistoryDays)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"阈值为零", func(c *Config) { c.Monitor.PriceThreshold = 0 }, "price_threshold"},
		{"无数据路径", func(c *Config) { c.Storage.DataPath = "" }, "data_path"},
		{"历史窗口为负", func(c *Config) { c.Storage.MaxHistoryDays = -1 }, "max_history_days"},
		{"重试预算为零", func(c *Config) { c.Monitor.RetryAttempts = 0 }, "retry_attempts"},
		{"开启通知但无 token", func(c *Config) {
			c.Notification.Enabled = true
			c.Notification.WXPusher.AppToken = ""
		}, "app_token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
			if err != nil {
				t.Fatal(err)
			}
			tc.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("应返回校验错误")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("错误应提及 %q: %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("缺省配置文件不应报错: %v", err)
	}
	if cfg.Storage.DataPath == "" {
		t.Fatal("默认值仍应生效")
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 1000}}
	if got := cfg.ResolveMaxPoints(0); got != 1000 {
		t.Fatalf("无覆盖时应使用配置值: %d", got)
	}
	if got := cfg.ResolveMaxPoints(50); got != 50 {
		t.Fatalf("命令行覆盖应优先: %d", got)
	}
}
