package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func writeItems(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "items.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadItems(t *testing.T) {
	path := writeItems(t, `
items:
  - id: 12345
    name: "AK-47 | 红线 (久经沙场)"
    platforms: [buff, steam]
    enabled: true
  - id: 67890
    name: "蝴蝶刀 | 渐变之色 (崭新出厂)"
    platforms: [youyoupin]
    enabled: false
    notify_threshold: 0.9
`)

	items, err := LoadItems(path)
	if err != nil {
		t.Fatalf("LoadItems 失败: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("应解析 2 个饰品: %d", len(items))
	}
	if items[0].ID != 12345 || len(items[0].Platforms) != 2 {
		t.Fatalf("首个饰品解析不正确: %#v", items[0])
	}
	if items[1].NotifyThreshold == nil || *items[1].NotifyThreshold != 0.9 {
		t.Fatalf("单品阈值解析不正确: %#v", items[1].NotifyThreshold)
	}
}

func TestLoadItemsValidation(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"缺少 id", "items:\n  - name: x\n    platforms: [buff]\n", "id"},
		{"缺少名称", "items:\n  - id: 1\n    platforms: [buff]\n", "name"},
		{"缺少平台", "items:\n  - id: 1\n    name: x\n", "platform"},
		{"阈值为负", "items:\n  - id: 1\n    name: x\n    platforms: [buff]\n    notify_threshold: -0.5\n", "notify_threshold"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadItems(writeItems(t, tc.yaml))
			if err == nil {
				t.Fatal("应返回校验错误")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("错误应提及 %q: %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadItemsMissingFile(t *testing.T) {
	if _, err := LoadItems(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("文件缺失应报错")
	}
}

func TestEnabledItems(t *testing.T) {
	items := []Item{
		{ID: 1, Name: "a", Enabled: true},
		{ID: 2, Name: "b", Enabled: false},
		{ID: 3, Name: "c", Enabled: true},
	}
	enabled := EnabledItems(items)
	if len(enabled) != 2 || enabled[0].ID != 1 || enabled[1].ID != 3 {
		t.Fatalf("应只保留启用饰品且保序: %#v", enabled)
	}
}

func TestItemThreshold(t *testing.T) {
	item := Item{ID: 1, Name: "x"}
	if !item.Threshold(0.95).Equal(decimal.NewFromFloat(0.95)) {
		t.Fatal("无单品阈值时应使用全局阈值")
	}

	override := 0.85
	item.NotifyThreshold = &override
	if !item.Threshold(0.95).Equal(decimal.NewFromFloat(0.85)) {
		t.Fatal("单品阈值应覆盖全局阈值")
	}
}
