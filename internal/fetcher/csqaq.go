package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultGoodsEndpoint = "/api/v1/goods/get_all_goods_info"

// Platform identifiers recognised by the price extractor.
const (
	PlatformSteam     = "steam"
	PlatformBuff      = "buff"
	PlatformYouyoupin = "youyoupin"
)

// CSQAQOptions parameterise the CSQAQ client.
type CSQAQOptions struct {
	BaseURL string
	Token   string
	// Endpoint overrides the goods-info path; the default matches the
	// public API.
	Endpoint string
	Timeout  time.Duration
	// MinRequestInterval throttles calls; the upstream enforces 1 req/s
	// across all callers of a token.
	MinRequestInterval time.Duration
	UserAgent          string
}

// CSQAQ fetches item data from the CSQAQ goods API.
type CSQAQ struct {
	opts    CSQAQOptions
	client  *http.Client
	baseURL string
	logger  zerolog.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// NewCSQAQ constructs a CSQAQ client.
func NewCSQAQ(opts CSQAQOptions, logger zerolog.Logger) *CSQAQ {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if opts.MinRequestInterval <= 0 {
		opts.MinRequestInterval = time.Second
	}
	if opts.Endpoint == "" {
		opts.Endpoint = defaultGoodsEndpoint
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.csqaq.com"
	}

	return &CSQAQ{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		logger:  logger.With().Str("component", "csqaq").Logger(),
	}
}

// GetItemData retrieves the current price data for one item on one platform.
func (c *CSQAQ) GetItemData(ctx context.Context, itemID int64, platform string) (ItemData, error) {
	if err := c.throttle(ctx); err != nil {
		return ItemData{}, &FetchError{ItemID: itemID, Platform: platform, Err: err}
	}

	reqPayload := goodsRequest{
		ItemIDs: []int64{itemID},
		Limit:   1,
		Page:    1,
	}
	body, err := json.Marshal(reqPayload)
	if err != nil {
		return ItemData{}, &FetchError{ItemID: itemID, Platform: platform, Err: err}
	}

	endpoint := c.baseURL + c.opts.Endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ItemData{}, &FetchError{ItemID: itemID, Platform: platform, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ApiToken", c.opts.Token)
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	req.Header.Set("Referer", "https://csqaq.com/")

	resp, err := c.client.Do(req)
	if err != nil {
		return ItemData{}, &FetchError{ItemID: itemID, Platform: platform, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return ItemData{}, &FetchError{ItemID: itemID, Platform: platform, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return ItemData{}, &FetchError{
			ItemID:   itemID,
			Platform: platform,
			Status:   resp.StatusCode,
			Err:      parseAPIError(payload),
		}
	}

	var goodsRes goodsResponse
	if err := json.Unmarshal(payload, &goodsRes); err != nil {
		return ItemData{}, &FetchError{ItemID: itemID, Platform: platform, Err: fmt.Errorf("malformed body: %w", err)}
	}

	info := goodsRes.find(itemID)
	if info == nil {
		return ItemData{}, &FetchError{ItemID: itemID, Platform: platform, Err: errors.New("item missing from response")}
	}

	price := extractPrice(platform, info)
	if price == nil {
		return ItemData{}, &FetchError{ItemID: itemID, Platform: platform, Err: fmt.Errorf("no usable price for platform %q", platform)}
	}

	return ItemData{
		Price:    *price,
		Volume:   info.Volume,
		Listings: info.Listings,
	}, nil
}

// throttle enforces the minimum inter-request interval shared across items.
func (c *CSQAQ) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := c.opts.MinRequestInterval - time.Since(c.lastRequest)
	if wait > 0 {
		c.mu.Unlock()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		c.mu.Lock()
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()
	return nil
}

type goodsRequest struct {
	ItemIDs []int64 `json:"item_ids"`
	Limit   int     `json:"limit"`
	Page    int     `json:"page"`
}

// goodInfo mirrors the union of price fields the goods API returns; which
// ones are populated depends on the platform.
type goodInfo struct {
	ID             int64    `json:"id"`
	Price          *float64 `json:"price"`
	CurrentPrice   *float64 `json:"current_price"`
	LowestPrice    *float64 `json:"lowest_price"`
	SteamPrice     *float64 `json:"steam_price"`
	BuffPrice      *float64 `json:"buff_price"`
	SellMinPrice   *float64 `json:"sell_min_price"`
	YouyoupinPrice *float64 `json:"youyoupin_price"`
	MinPrice       *float64 `json:"min_price"`
	Volume         int64    `json:"volume"`
	Listings       int64    `json:"listings"`
}

type goodsResponse struct {
	Code int        `json:"code"`
	Msg  string     `json:"msg"`
	Data []goodInfo `json:"data"`
}

func (r *goodsResponse) find(itemID int64) *goodInfo {
	for i := range r.Data {
		if r.Data[i].ID == itemID {
			return &r.Data[i]
		}
	}
	if len(r.Data) > 0 {
		return &r.Data[0]
	}
	return nil
}

// extractPrice picks the platform-specific price field, falling back through
// the generic ones.
func extractPrice(platform string, info *goodInfo) *decimal.Decimal {
	var candidates []*float64
	switch platform {
	case PlatformSteam:
		candidates = []*float64{info.SteamPrice, info.LowestPrice, info.Price}
	case PlatformBuff:
		candidates = []*float64{info.BuffPrice, info.SellMinPrice, info.Price}
	case PlatformYouyoupin:
		candidates = []*float64{info.YouyoupinPrice, info.MinPrice, info.Price}
	default:
		candidates = []*float64{info.Price, info.CurrentPrice, info.LowestPrice}
	}

	for _, candidate := range candidates {
		if candidate != nil && *candidate > 0 {
			price := decimal.NewFromFloat(*candidate)
			return &price
		}
	}
	return nil
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func parseAPIError(payload []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Msg != "" {
		return fmt.Errorf("csqaq api error: %s", apiErr.Msg)
	}
	if len(payload) > 0 {
		return fmt.Errorf("csqaq api error: %s", strings.TrimSpace(string(payload)))
	}
	return errors.New("csqaq api error")
}

var _ ItemDataFetcher = (*CSQAQ)(nil)
