package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const wxpusherSuccessCode = 1000

// Message 封装一次推送的内容与接收者。
type Message struct {
	Content string
	Summary string
	// UIDs 指定接收用户；为空时自动下发给全部关注用户。
	UIDs []string
	// TopicIDs 指定主题群发。
	TopicIDs []int64
}

// Notifier 定义通知通道接口。
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// DispatchError marks a channel failure; the caller retries on a later pass.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch notification: %v", e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// WXPusherNotifier 通过 WxPusher 开放接口推送文本消息。
type WXPusherNotifier struct {
	appToken string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewWXPusherNotifier 构造 WxPusher 通知器。
func NewWXPusherNotifier(appToken, baseURL string, timeout time.Duration, logger zerolog.Logger) *WXPusherNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://wxpusher.zjiecode.com"
	}

	return &WXPusherNotifier{
		appToken: appToken,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_wxpusher").Logger(),
	}
}

type sendRequest struct {
	AppToken    string   `json:"appToken"`
	Content     string   `json:"content"`
	Summary     string   `json:"summary,omitempty"`
	ContentType int      `json:"contentType"`
	UIDs        []string `json:"uids"`
	TopicIDs    []int64  `json:"topicIds"`
}

type sendResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Send 调用 send/message 接口；非 1000 返回码视为失败。
func (n *WXPusherNotifier) Send(ctx context.Context, msg Message) error {
	uids := msg.UIDs
	if len(uids) == 0 && len(msg.TopicIDs) == 0 {
		resolved, err := n.followerUIDs(ctx)
		if err != nil {
			return &DispatchError{Err: err}
		}
		uids = resolved
	}

	payload := sendRequest{
		AppToken:    n.appToken,
		Content:     msg.Content,
		Summary:     msg.Summary,
		ContentType: 1,
		UIDs:        uids,
		TopicIDs:    msg.TopicIDs,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return &DispatchError{Err: fmt.Errorf("marshal wxpusher payload: %w", err)}
	}

	endpoint := n.baseURL + "/api/send/message"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &DispatchError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return &DispatchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DispatchError{Err: fmt.Errorf("wxpusher 响应码异常: %d", resp.StatusCode)}
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return &DispatchError{Err: fmt.Errorf("decode wxpusher response: %w", err)}
	}
	if result.Code != wxpusherSuccessCode {
		return &DispatchError{Err: fmt.Errorf("wxpusher 返回 code=%d: %s", result.Code, result.Msg)}
	}

	n.logger.Info().
		Str("summary", msg.Summary).
		Int("uids", len(uids)).
		Msg("通知已发送 (WxPusher)")
	return nil
}

type followersResponse struct {
	Code int `json:"code"`
	Data struct {
		Records []struct {
			UID string `json:"uid"`
		} `json:"records"`
	} `json:"data"`
}

// followerUIDs 拉取全部关注用户的 UID。
func (n *WXPusherNotifier) followerUIDs(ctx context.Context) ([]string, error) {
	query := url.Values{}
	query.Set("appToken", n.appToken)
	query.Set("page", "1")
	query.Set("pageSize", strconv.Itoa(100))

	endpoint := n.baseURL + "/api/fun/wxuser?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list wxpusher followers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list wxpusher followers: status %d", resp.StatusCode)
	}

	var result followersResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode followers response: %w", err)
	}
	if result.Code != wxpusherSuccessCode {
		return nil, fmt.Errorf("list wxpusher followers: code=%d", result.Code)
	}

	uids := make([]string, 0, len(result.Data.Records))
	for _, record := range result.Data.Records {
		uids = append(uids, record.UID)
	}
	return uids, nil
}

var _ Notifier = (*WXPusherNotifier)(nil)
