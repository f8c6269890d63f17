package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Mack1234552152/cs2-item-monitor/internal/storage"
)

func sampleSeries(n int) []storage.PriceSample {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]storage.PriceSample, n)
	for i := range samples {
		samples[i] = storage.PriceSample{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Price:     decimal.NewFromInt(int64(100 + i)),
		}
	}
	return samples
}

func TestDownsampleKeepsEndpoints(t *testing.T) {
	samples := sampleSeries(100)
	out := downsample(samples, 10)
	if len(out) != 10 {
		t.Fatalf("应降采样到 10 个点, 实际 %d", len(out))
	}
	if !out[0].Price.Equal(samples[0].Price) {
		t.Fatalf("首个样本应保留: %s", out[0].Price)
	}
	if !out[len(out)-1].Price.Equal(samples[len(samples)-1].Price) {
		t.Fatalf("末个样本应保留: %s", out[len(out)-1].Price)
	}
}

func TestDownsampleBelowLimitUnchanged(t *testing.T) {
	samples := sampleSeries(5)
	if out := downsample(samples, 10); len(out) != 5 {
		t.Fatalf("低于上限不应降采样: %d", len(out))
	}
	if out := downsample(samples, 0); len(out) != 5 {
		t.Fatalf("上限为 0 视为不限制: %d", len(out))
	}
}

func TestDownsampleSinglePoint(t *testing.T) {
	samples := sampleSeries(50)
	out := downsample(samples, 1)
	if len(out) != 1 {
		t.Fatalf("上限 1 应只保留 1 个点: %d", len(out))
	}
	if !out[0].Price.Equal(samples[len(samples)-1].Price) {
		t.Fatalf("单点导出应保留最新样本: %s", out[0].Price)
	}

	// 两个样本的最小用例同样不应越界
	out = downsample(sampleSeries(2), 1)
	if len(out) != 1 {
		t.Fatalf("两样本降采样到 1 失败: %d", len(out))
	}
}
