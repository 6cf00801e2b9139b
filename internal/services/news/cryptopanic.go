// Package news reads recent crypto headlines from CryptoPanic.
package news

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hlpilot/internal/domain"
)

const (
	requestTimeout = 10 * time.Second
	defaultLimit   = 10
	maxHeadlines   = 5
	// voteMargin is how far one side's votes must lead to call a direction.
	voteMargin = 2
)

// CryptoPanicClient fetches posts from the CryptoPanic developer API.
type CryptoPanicClient struct {
	http   *resty.Client
	apiKey string
	limit  int
	filter string
	logger *zap.Logger
}

func NewCryptoPanicClient(baseURL, apiKey string, limit int, filter string, logger *zap.Logger) *CryptoPanicClient {
	if limit <= 0 {
		limit = defaultLimit
	}
	return &CryptoPanicClient{
		http:   resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")).SetTimeout(requestTimeout),
		apiKey: apiKey,
		limit:  limit,
		filter: filter,
		logger: logger,
	}
}

// News returns up to limit recent posts about currencies.
func (c *CryptoPanicClient) News(ctx context.Context, currencies []string) ([]domain.NewsItem, error) {
	if c.apiKey == "" {
		return nil, errors.New("no CryptoPanic API key configured")
	}

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("auth_token", c.apiKey)
	if len(currencies) > 0 {
		req.SetQueryParam("currencies", strings.Join(currencies, ","))
	}
	if c.filter != "" {
		req.SetQueryParam("filter", c.filter)
	}

	resp, err := req.Get("/posts/")
	if err != nil {
		return nil, errors.Wrap(err, "get posts")
	}
	if resp.IsError() {
		return nil, errors.Errorf("posts status %d", resp.StatusCode())
	}
	if !gjson.ValidBytes(resp.Body()) {
		return nil, errors.New("posts: invalid JSON")
	}

	var items []domain.NewsItem
	gjson.GetBytes(resp.Body(), "results").ForEach(func(_, post gjson.Result) bool {
		if len(items) >= c.limit {
			return false
		}
		items = append(items, toItem(post))
		return true
	})
	return items, nil
}

// Summary aggregates recent posts. Missing key or fetch errors yield an empty, NEUTRAL summary.
func (c *CryptoPanicClient) Summary(ctx context.Context, currencies []string) domain.NewsSummary {
	items, err := c.News(ctx, currencies)
	if err != nil {
		c.logger.Warn("news unavailable", zap.Error(err))
	}
	return Summarize(items)
}

// Summarize counts directional posts and formats up to five headlines.
func Summarize(items []domain.NewsItem) domain.NewsSummary {
	summary := domain.NewsSummary{
		TotalNews:        len(items),
		SentimentSummary: domain.SignalNeutral,
		Headlines:        []string{},
	}
	if len(items) == 0 {
		return summary
	}

	for _, item := range items {
		switch item.Sentiment {
		case domain.SignalBullish:
			summary.BullishCount++
		case domain.SignalBearish:
			summary.BearishCount++
		}
	}
	summary.SentimentSummary = voteSignal(summary.BullishCount, summary.BearishCount)

	for i, item := range items {
		if i == maxHeadlines {
			break
		}
		summary.Headlines = append(summary.Headlines, headlineTime(item.PublishedAt)+" | "+item.Title)
	}
	return summary
}

func toItem(post gjson.Result) domain.NewsItem {
	votes := post.Get("votes")
	pos := int(votes.Get("positive").Int())
	neg := int(votes.Get("negative").Int())

	source := post.Get("source.title").String()
	if source == "" {
		source = "Unknown"
	}

	var currencies []string
	post.Get("currencies").ForEach(func(_, cur gjson.Result) bool {
		currencies = append(currencies, cur.Get("code").String())
		return true
	})

	return domain.NewsItem{
		Title:         post.Get("title").String(),
		Source:        source,
		URL:           post.Get("url").String(),
		PublishedAt:   post.Get("published_at").String(),
		Sentiment:     voteSignal(pos, neg),
		Currencies:    currencies,
		VotesPositive: pos,
		VotesNegative: neg,
	}
}

func voteSignal(pos, neg int) domain.Signal {
	switch {
	case pos > neg+voteMargin:
		return domain.SignalBullish
	case neg > pos+voteMargin:
		return domain.SignalBearish
	default:
		return domain.SignalNeutral
	}
}

// headlineTime turns "2024-05-01T12:34:56Z" into "2024-05-01 12:34".
func headlineTime(published string) string {
	if len(published) > 16 {
		published = published[:16]
	}
	return strings.Replace(published, "T", " ", 1)
}
