package detector

import (
	"testing"

	"github.com/shopspring/decimal"
)

func input(current, low, threshold float64) Input {
	return Input{
		ItemID:        12345,
		ItemName:      "AK-47 | 红线 (久经沙场)",
		Platform:      "buff",
		CurrentPrice:  decimal.NewFromFloat(current),
		HistoricalLow: decimal.NewFromFloat(low),
		Threshold:     decimal.NewFromFloat(threshold),
	}
}

func TestEvaluateTriggersAtOrBelowThreshold(t *testing.T) {
	// 当前价等于最低价, 阈值 1.0: 比值恰好等于阈值也应触发
	alert := Evaluate(input(8.0, 8.0, 1.0))
	if alert == nil {
		t.Fatal("比值等于阈值时应触发预警")
	}
	if !alert.Discount.IsZero() {
		t.Fatalf("价格与最低价相同时折扣应为 0, 实际 %s", alert.Discount)
	}
	if alert.ID == "" {
		t.Fatal("预警应分配标识")
	}
	if alert.ItemID != 12345 || alert.Platform != "buff" {
		t.Fatalf("预警应携带来源信息: %#v", alert)
	}
}

func TestEvaluateNoAlertAboveThreshold(t *testing.T) {
	// 8.5/8.0 = 1.0625 > 0.95
	if alert := Evaluate(input(8.5, 8.0, 0.95)); alert != nil {
		t.Fatalf("比值高于阈值不应触发: %#v", alert)
	}
}

func TestEvaluateDiscountBelowLow(t *testing.T) {
	// 7.2/8.0 = 0.9, 折扣 10%
	alert := Evaluate(input(7.2, 8.0, 0.95))
	if alert == nil {
		t.Fatal("低于阈值应触发预警")
	}
	if !alert.Discount.Equal(decimal.NewFromFloat(0.1)) {
		t.Fatalf("折扣应为 0.1, 实际 %s", alert.Discount)
	}
	if !alert.CurrentPrice.Equal(decimal.NewFromFloat(7.2)) {
		t.Fatalf("预警应记录当前价: %s", alert.CurrentPrice)
	}
	if !alert.HistoricalLow.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("预警应记录比较基准: %s", alert.HistoricalLow)
	}
}

func TestEvaluateRejectsNonPositiveLow(t *testing.T) {
	if alert := Evaluate(input(5, 0, 1.0)); alert != nil {
		t.Fatalf("无历史最低时不应触发: %#v", alert)
	}
}

func TestEvaluateIDsAreUnique(t *testing.T) {
	first := Evaluate(input(7.0, 8.0, 1.0))
	second := Evaluate(input(7.0, 8.0, 1.0))
	if first == nil || second == nil {
		t.Fatal("两次评估均应触发")
	}
	if first.ID == second.ID {
		t.Fatalf("预警标识应唯一: %s", first.ID)
	}
}
