// Package sentiment reads the crypto Fear & Greed index.
package sentiment

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hlpilot/internal/domain"
)

const requestTimeout = 10 * time.Second

// FearGreedClient fetches the latest index value from alternative.me.
type FearGreedClient struct {
	http   *resty.Client
	url    string
	logger *zap.Logger
}

func NewFearGreedClient(url string, logger *zap.Logger) *FearGreedClient {
	return &FearGreedClient{
		http:   resty.New().SetTimeout(requestTimeout),
		url:    url,
		logger: logger,
	}
}

// FearGreed returns the normalised reading. Failures never propagate: the
// reading falls back to UNKNOWN / NEUTRAL with the error recorded.
func (c *FearGreedClient) FearGreed(ctx context.Context) domain.FearGreed {
	fg, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("fear & greed unavailable", zap.Error(err))
		return domain.FearGreed{
			Classification: "UNKNOWN",
			Signal:         domain.SentimentNeutral,
			Bias:           domain.BiasNone,
			Error:          err.Error(),
		}
	}
	return fg
}

// Summary returns the compact sentiment block of the market context.
func (c *FearGreedClient) Summary(ctx context.Context) domain.SentimentSummary {
	fg := c.FearGreed(ctx)
	return domain.SentimentSummary{
		FearGreed:      fg,
		OverallSignal:  fg.Signal,
		OverallBias:    fg.Bias,
		SentimentScore: fg.Score,
	}
}

func (c *FearGreedClient) fetch(ctx context.Context) (domain.FearGreed, error) {
	resp, err := c.http.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return domain.FearGreed{}, errors.Wrap(err, "get fear & greed")
	}
	if resp.IsError() {
		return domain.FearGreed{}, errors.Errorf("fear & greed status %d", resp.StatusCode())
	}

	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return domain.FearGreed{}, errors.New("fear & greed: invalid JSON")
	}
	entry := gjson.GetBytes(body, "data.0")
	if !entry.Exists() {
		return domain.FearGreed{}, errors.New("fear & greed: empty data")
	}
	value, err := strconv.Atoi(entry.Get("value").String())
	if err != nil {
		return domain.FearGreed{}, errors.Wrap(err, "fear & greed: parse value")
	}

	return Normalize(value, entry.Get("value_classification").String(), entry.Get("timestamp").Int()), nil
}

// Normalize maps an index value onto signal, score and contrarian bias.
// Values outside 0-100 are clamped first, so the score stays within [-1, 1].
func Normalize(value int, classification string, timestamp int64) domain.FearGreed {
	v := min(max(value, 0), 100)
	return domain.FearGreed{
		Value:          &v,
		Classification: classification,
		Signal:         Signal(v),
		Score:          math.Round(float64(v-50)/50*100) / 100,
		Bias:           Bias(v),
		Timestamp:      timestamp,
	}
}

// Signal buckets an index value: <=25 extreme fear, <=45 fear, <=55 neutral,
// <=75 greed, above that extreme greed.
func Signal(value int) domain.SentimentSignal {
	switch {
	case value <= 25:
		return domain.SentimentExtremeFear
	case value <= 45:
		return domain.SentimentFear
	case value <= 55:
		return domain.SentimentNeutral
	case value <= 75:
		return domain.SentimentGreed
	default:
		return domain.SentimentExtremeGreed
	}
}

// Bias is contrarian: extreme fear leans long, extreme greed leans short.
func Bias(value int) domain.Bias {
	switch {
	case value <= 25:
		return domain.BiasLong
	case value >= 75:
		return domain.BiasShort
	default:
		return domain.BiasNone
	}
}
