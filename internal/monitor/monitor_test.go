package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Mack1234552152/cs2-item-monitor/internal/alerting"
	"github.com/Mack1234552152/cs2-item-monitor/internal/config"
	"github.com/Mack1234552152/cs2-item-monitor/internal/dispatch"
	"github.com/Mack1234552152/cs2-item-monitor/internal/fetcher"
	"github.com/Mack1234552152/cs2-item-monitor/internal/history"
	"github.com/Mack1234552152/cs2-item-monitor/internal/storage"
)

type memStore struct {
	snapshot *storage.Snapshot
	backups  int
}

func newMemStore() *memStore {
	return &memStore{snapshot: storage.NewSnapshot(time.Now().UTC())}
}

func (m *memStore) Load() (*storage.Snapshot, error) { return m.snapshot, nil }
func (m *memStore) Save(s *storage.Snapshot) error   { m.snapshot = s; return nil }
func (m *memStore) Backup() (string, error)          { m.backups++; return "backup.json", nil }

// scriptedFetcher returns each queued price in turn; an entry of zero means
// the call fails.
type scriptedFetcher struct {
	prices map[int64][]float64
	calls  int
}

func (f *scriptedFetcher) GetItemData(_ context.Context, itemID int64, platform string) (fetcher.ItemData, error) {
	f.calls++
	queue := f.prices[itemID]
	if len(queue) == 0 {
		return fetcher.ItemData{}, &fetcher.FetchError{ItemID: itemID, Platform: platform, Err: errors.New("no data")}
	}
	next := queue[0]
	f.prices[itemID] = queue[1:]
	if next <= 0 {
		return fetcher.ItemData{}, &fetcher.FetchError{ItemID: itemID, Platform: platform, Status: 500, Err: errors.New("upstream error")}
	}
	return fetcher.ItemData{Price: decimal.NewFromFloat(next), Volume: 3}, nil
}

type fakeNotifier struct {
	sent []alerting.Message
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, msg alerting.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func testConfig() config.MonitorConfig {
	return config.MonitorConfig{
		PriceThreshold: 1.0,
		RetryAttempts:  3,
	}
}

func testItems() []config.Item {
	return []config.Item{
		{ID: 1, Name: "测试饰品", Platforms: []string{"buff"}, Enabled: true},
	}
}

func newTestMonitor(cfg config.MonitorConfig, items []config.Item, source fetcher.ItemDataFetcher, store *memStore, notifier alerting.Notifier) *Monitor {
	tracker := history.NewTracker(store, 180, zerolog.Nop())
	dispatcher := dispatch.New(store, notifier, 0, zerolog.Nop())
	return New(cfg, items, source, tracker, store, dispatcher, notifier, nil, zerolog.Nop())
}

func TestRunPassFirstSampleNeverAlerts(t *testing.T) {
	store := newMemStore()
	source := &scriptedFetcher{prices: map[int64][]float64{1: {100}}}
	notifier := &fakeNotifier{}
	m := newTestMonitor(testConfig(), testItems(), source, store, notifier)

	result, err := m.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass 失败: %v", err)
	}
	if result.Succeeded != 1 || result.Alerts != 0 {
		t.Fatalf("首个样本不应触发预警: %#v", result)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("不应有任何通知: %d", len(notifier.sent))
	}

	series := store.snapshot.Series(1, "buff")
	if series == nil || len(series.PriceHistory) != 1 {
		t.Fatal("样本仍应被记录")
	}
}

func TestRunPassAlertsOnNewLow(t *testing.T) {
	store := newMemStore()
	source := &scriptedFetcher{prices: map[int64][]float64{1: {100, 80}}}
	notifier := &fakeNotifier{}
	m := newTestMonitor(testConfig(), testItems(), source, store, notifier)

	if _, err := m.RunPass(context.Background()); err != nil {
		t.Fatal(err)
	}
	result, err := m.RunPass(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if result.Alerts != 1 {
		t.Fatalf("新低应触发 1 条预警: %#v", result)
	}
	if result.Dispatch.Sent != 1 {
		t.Fatalf("预警应在同一轮内发送: %#v", result.Dispatch)
	}
	if len(notifier.sent) != 1 || !strings.Contains(notifier.sent[0].Content, "测试饰品") {
		t.Fatalf("通知内容应包含饰品名称: %#v", notifier.sent)
	}

	if store.snapshot.Statistics.TotalAlerts != 1 {
		t.Fatalf("累计预警计数应为 1: %d", store.snapshot.Statistics.TotalAlerts)
	}
	if len(store.snapshot.UnnotifiedAlerts()) != 0 {
		t.Fatal("发送成功后积压应为空")
	}
}

func TestRunPassNoAlertAboveThreshold(t *testing.T) {
	store := newMemStore()
	// 阈值 0.95: 第二个样本 100/100 = 1.0 不触发
	cfg := testConfig()
	cfg.PriceThreshold = 0.95
	source := &scriptedFetcher{prices: map[int64][]float64{1: {100, 100}}}
	notifier := &fakeNotifier{}
	m := newTestMonitor(cfg, testItems(), source, store, notifier)

	if _, err := m.RunPass(context.Background()); err != nil {
		t.Fatal(err)
	}
	result, err := m.RunPass(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Alerts != 0 || len(notifier.sent) != 0 {
		t.Fatalf("高于阈值不应触发: %#v", result)
	}
}

func TestRunPassPerItemThresholdOverride(t *testing.T) {
	store := newMemStore()
	override := 0.9
	items := []config.Item{
		{ID: 1, Name: "宽松饰品", Platforms: []string{"buff"}, Enabled: true, NotifyThreshold: &override},
	}
	// 92/100 = 0.92 > 0.9: 单品阈值覆盖全局 1.0
	source := &scriptedFetcher{prices: map[int64][]float64{1: {100, 92}}}
	notifier := &fakeNotifier{}
	m := newTestMonitor(testConfig(), items, source, store, notifier)

	if _, err := m.RunPass(context.Background()); err != nil {
		t.Fatal(err)
	}
	result, err := m.RunPass(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Alerts != 0 {
		t.Fatalf("单品阈值应覆盖全局阈值: %#v", result)
	}
}

func TestRunPassFailureIsolation(t *testing.T) {
	store := newMemStore()
	items := []config.Item{
		{ID: 1, Name: "坏饰品", Platforms: []string{"buff"}, Enabled: true},
		{ID: 2, Name: "好饰品", Platforms: []string{"buff"}, Enabled: true},
	}
	source := &scriptedFetcher{prices: map[int64][]float64{
		1: {0},
		2: {100},
	}}
	notifier := &fakeNotifier{}
	m := newTestMonitor(testConfig(), items, source, store, notifier)

	result, err := m.RunPass(context.Background())
	if err != nil {
		t.Fatalf("单个饰品失败不应中断整轮: %v", err)
	}
	if result.Succeeded != 1 {
		t.Fatalf("另一个饰品应成功: %#v", result)
	}
	if store.snapshot.Series(2, "buff") == nil {
		t.Fatal("成功饰品的样本应被记录")
	}
	if store.snapshot.Series(1, "buff") != nil {
		t.Fatal("失败饰品不应有样本")
	}
}

func TestRetryBudgetEscalation(t *testing.T) {
	store := newMemStore()
	source := &scriptedFetcher{prices: map[int64][]float64{}}
	notifier := &fakeNotifier{}
	m := newTestMonitor(testConfig(), testItems(), source, store, notifier)

	// 预算为 3: 前两轮只告警日志, 第三轮升级推送
	for i := 0; i < 2; i++ {
		if _, err := m.RunPass(context.Background()); err != nil {
			t.Fatal(err)
		}
		if len(notifier.sent) != 0 {
			t.Fatalf("第 %d 轮不应升级: %d", i+1, len(notifier.sent))
		}
	}

	if _, err := m.RunPass(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("第三轮应发送升级通知: %d", len(notifier.sent))
	}
	if !strings.Contains(notifier.sent[0].Content, "测试饰品") {
		t.Fatalf("升级通知应点名饰品: %q", notifier.sent[0].Content)
	}

	// 升级后计数器重置, 下一轮重新累计
	if _, err := m.RunPass(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(notifier.sent) != 1 {
		t.Fatal("重置后的首轮失败不应再次升级")
	}
}

func TestRetryCounterResetsOnSuccess(t *testing.T) {
	store := newMemStore()
	source := &scriptedFetcher{prices: map[int64][]float64{1: {0, 0, 100, 0, 0, 0}}}
	notifier := &fakeNotifier{}
	m := newTestMonitor(testConfig(), testItems(), source, store, notifier)

	// 两次失败, 一次成功, 再三次失败: 成功应清零计数
	for i := 0; i < 5; i++ {
		if _, err := m.RunPass(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("成功后计数应清零, 第 5 轮不应升级: %d", len(notifier.sent))
	}

	if _, err := m.RunPass(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(notifier.sent) != 1 {
		t.Fatal("连续第三次失败应升级")
	}
}

func TestRunPassRefusedWhileInFlight(t *testing.T) {
	m := newTestMonitor(testConfig(), testItems(), &scriptedFetcher{prices: map[int64][]float64{}}, newMemStore(), &fakeNotifier{})

	if !m.begin() {
		t.Fatal("首次 begin 应成功")
	}
	if _, err := m.RunPass(context.Background()); !errors.Is(err, ErrPassInFlight) {
		t.Fatalf("并发轮次应被拒绝: %v", err)
	}
	m.end()

	if _, err := m.RunPass(context.Background()); err != nil {
		t.Fatalf("结束后应可再次运行: %v", err)
	}
}

func TestAlertCooldownSuppressesRepeat(t *testing.T) {
	store := newMemStore()
	cfg := testConfig()
	cfg.AlertCooldown = time.Hour
	source := &scriptedFetcher{prices: map[int64][]float64{1: {100, 80, 80}}}
	notifier := &fakeNotifier{}
	m := newTestMonitor(cfg, testItems(), source, store, notifier)

	for i := 0; i < 3; i++ {
		if _, err := m.RunPass(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if store.snapshot.Statistics.TotalAlerts != 1 {
		t.Fatalf("冷却窗口内重复触达应被抑制: %d", store.snapshot.Statistics.TotalAlerts)
	}
}

func TestGetStatus(t *testing.T) {
	m := newTestMonitor(testConfig(), testItems(), &scriptedFetcher{prices: map[int64][]float64{}}, newMemStore(), &fakeNotifier{})

	status := m.GetStatus()
	if status.Running {
		t.Fatal("未运行时 Running 应为 false")
	}
	if status.MonitoredItems != 1 {
		t.Fatalf("监控数量应为 1: %d", status.MonitoredItems)
	}

	if _, err := m.RunPass(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.GetStatus().RetryingItems != 1 {
		t.Fatal("失败后应有 1 个饰品处于重试状态")
	}
}
