package clients

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const infoTimeout = 20 * time.Second

// HyperliquidInfoClient reads public and per-account data from the Hyperliquid /info endpoint.
type HyperliquidInfoClient struct {
	http *resty.Client
}

// NewHyperliquidInfoClient creates a client for baseURL (e.g. https://api.hyperliquid.xyz).
func NewHyperliquidInfoClient(baseURL string) *HyperliquidInfoClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(infoTimeout).
		SetHeader("Content-Type", "application/json")
	return &HyperliquidInfoClient{http: client}
}

// Candle is one entry of a candleSnapshot response. Prices are decimal strings.
type Candle struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Coin      string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	Trades    int64  `json:"n"`
}

// ClearinghouseState is the perp account summary of a user.
type ClearinghouseState struct {
	MarginSummary  MarginSummary   `json:"marginSummary"`
	Withdrawable   string          `json:"withdrawable"`
	AssetPositions []AssetPosition `json:"assetPositions"`
}

type MarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

type AssetPosition struct {
	Position PerpPosition `json:"position"`
}

type PerpPosition struct {
	Coin          string        `json:"coin"`
	Szi           string        `json:"szi"`
	EntryPx       *string       `json:"entryPx"`
	UnrealizedPnl string        `json:"unrealizedPnl"`
	Leverage      LeverageValue `json:"leverage"`
}

type LeverageValue struct {
	Type  string `json:"type"`
	Value int    `json:"value"`
}

type universeMeta struct {
	Universe []struct {
		Name string `json:"name"`
	} `json:"universe"`
}

type assetCtx struct {
	Funding string `json:"funding"`
}

// AllMids returns mid prices keyed by coin.
func (c *HyperliquidInfoClient) AllMids(ctx context.Context) (map[string]string, error) {
	var mids map[string]string
	if err := c.post(ctx, map[string]any{"type": "allMids"}, &mids); err != nil {
		return nil, errors.Wrap(err, "allMids")
	}
	return mids, nil
}

// CandleSnapshot returns candles of coin between startMs and endMs, oldest first.
func (c *HyperliquidInfoClient) CandleSnapshot(ctx context.Context, coin, interval string, startMs, endMs int64) ([]Candle, error) {
	req := map[string]any{
		"type": "candleSnapshot",
		"req": map[string]any{
			"coin":      coin,
			"interval":  interval,
			"startTime": startMs,
			"endTime":   endMs,
		},
	}
	var candles []Candle
	if err := c.post(ctx, req, &candles); err != nil {
		return nil, errors.Wrapf(err, "candleSnapshot %s %s", coin, interval)
	}
	return candles, nil
}

// ClearinghouseState returns the perp account state of user.
func (c *HyperliquidInfoClient) ClearinghouseState(ctx context.Context, user string) (ClearinghouseState, error) {
	var state ClearinghouseState
	if err := c.post(ctx, map[string]any{"type": "clearinghouseState", "user": user}, &state); err != nil {
		return ClearinghouseState{}, errors.Wrap(err, "clearinghouseState")
	}
	return state, nil
}

// FundingRates returns the current funding rate of every listed perp, keyed by coin.
// The metaAndAssetCtxs response is a pair: universe metadata, then contexts in the same order.
func (c *HyperliquidInfoClient) FundingRates(ctx context.Context) (map[string]string, error) {
	var raw []json.RawMessage
	if err := c.post(ctx, map[string]any{"type": "metaAndAssetCtxs"}, &raw); err != nil {
		return nil, errors.Wrap(err, "metaAndAssetCtxs")
	}
	if len(raw) < 2 {
		return nil, errors.New("metaAndAssetCtxs: unexpected response shape")
	}

	var meta universeMeta
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return nil, errors.Wrap(err, "metaAndAssetCtxs: decode meta")
	}
	var ctxs []assetCtx
	if err := json.Unmarshal(raw[1], &ctxs); err != nil {
		return nil, errors.Wrap(err, "metaAndAssetCtxs: decode asset contexts")
	}

	rates := make(map[string]string, len(meta.Universe))
	for i, asset := range meta.Universe {
		if i >= len(ctxs) {
			break
		}
		rates[asset.Name] = ctxs[i].Funding
	}
	return rates, nil
}

func (c *HyperliquidInfoClient) post(ctx context.Context, body any, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/info")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return errors.Errorf("status %d: %s", resp.StatusCode(), resp.String())
	}
	return errors.Wrap(json.Unmarshal(resp.Body(), out), "decode response")
}
