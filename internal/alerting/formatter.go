package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Mack1234552152/cs2-item-monitor/internal/storage"
)

var platformDisplayNames = map[string]string{
	"steam":     "Steam 市场",
	"buff":      "BUFF 饰品",
	"youyoupin": "悠悠有品",
}

var platformItemURLs = map[string]string{
	"steam":     "https://steamcommunity.com/market/listings/730/",
	"buff":      "https://buff.163.com/goods/",
	"youyoupin": "https://www.youyoupin.com/goods/",
}

// PlatformDisplayName 返回平台的展示名称。
func PlatformDisplayName(platform string) string {
	if name, ok := platformDisplayNames[platform]; ok {
		return name
	}
	return platform
}

// ItemURL 生成饰品的市场链接；未知平台返回空串。
func ItemURL(itemID int64, platform string) string {
	base, ok := platformItemURLs[platform]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s%d", base, itemID)
}

// RenderPriceAlert formats a deal alert for the notification channel.
func RenderPriceAlert(alert *storage.Alert) Message {
	discountPct := alert.Discount.Mul(decimal.NewFromInt(100))

	builder := strings.Builder{}
	builder.WriteString("CS2 饰品价格预警\n\n")
	builder.WriteString(fmt.Sprintf("饰品名称: %s\n", alert.ItemName))
	builder.WriteString(fmt.Sprintf("交易平台: %s\n", PlatformDisplayName(alert.Platform)))
	builder.WriteString(fmt.Sprintf("当前价格: ¥%s\n", alert.CurrentPrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("历史最低: ¥%s\n", alert.HistoricalLow.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("折扣幅度: %s%%\n", discountPct.StringFixed(1)))
	builder.WriteString(fmt.Sprintf("发现时间: %s\n", alert.Timestamp.UTC().Format(time.RFC3339)))
	if url := ItemURL(alert.ItemID, alert.Platform); url != "" {
		builder.WriteString(fmt.Sprintf("\n查看链接: %s\n", url))
	}

	return Message{
		Content: builder.String(),
		Summary: fmt.Sprintf("%s 价格预警 - %s%%", alert.ItemName, discountPct.StringFixed(1)),
	}
}

// RenderSystemNotification formats an operational status message.
// Level is one of "info", "warning", "error".
func RenderSystemNotification(status, level string) Message {
	summary := "监控系统状态更新"
	if level == "error" {
		summary = "监控系统异常"
	}

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("CS2 饰品监控系统 [%s]\n\n", strings.ToUpper(level)))
	builder.WriteString(fmt.Sprintf("状态: %s\n", status))
	builder.WriteString(fmt.Sprintf("时间: %s\n", time.Now().UTC().Format(time.RFC3339)))

	return Message{
		Content: builder.String(),
		Summary: summary,
	}
}

// RenderDailyReport formats the daily summary with the best deals on top.
func RenderDailyReport(report storage.Report, topDeals []*storage.Alert) Message {
	builder := strings.Builder{}
	builder.WriteString("CS2 饰品监控日报\n\n")
	builder.WriteString(fmt.Sprintf("监控饰品: %d 个\n", report.MonitoredItems))
	builder.WriteString(fmt.Sprintf("今日预警: %d 次\n", report.TodayAlerts))
	builder.WriteString(fmt.Sprintf("累计预警: %d 次\n", report.TotalAlerts))
	builder.WriteString(fmt.Sprintf("平均价格变化: %s%%\n", report.AvgPriceChangePct.StringFixed(2)))

	if len(topDeals) > 0 {
		builder.WriteString("\n今日最佳交易:\n")
		for i, deal := range topDeals {
			if i >= 5 {
				break
			}
			builder.WriteString(fmt.Sprintf(
				"%d. %s - %s%% (¥%s)\n",
				i+1,
				deal.ItemName,
				deal.Discount.Mul(decimal.NewFromInt(100)).StringFixed(1),
				deal.CurrentPrice.StringFixed(2),
			))
		}
	}

	return Message{
		Content: builder.String(),
		Summary: "饰品监控日报",
	}
}
