package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInfoServer(t *testing.T, handler func(req map[string]any) (int, string)) *HyperliquidInfoClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/info", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewHyperliquidInfoClient(srv.URL)
}

func TestInfoClient_AllMids(t *testing.T) {
	c := newInfoServer(t, func(req map[string]any) (int, string) {
		assert.Equal(t, "allMids", req["type"])
		return http.StatusOK, `{"BTC":"97000.5","ETH":"3400.1"}`
	})

	mids, err := c.AllMids(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "97000.5", mids["BTC"])
	assert.Len(t, mids, 2)
}

func TestInfoClient_CandleSnapshot(t *testing.T) {
	c := newInfoServer(t, func(req map[string]any) (int, string) {
		assert.Equal(t, "candleSnapshot", req["type"])
		inner, ok := req["req"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "BTC", inner["coin"])
		assert.Equal(t, "1h", inner["interval"])
		assert.EqualValues(t, 1000, inner["startTime"])
		assert.EqualValues(t, 2000, inner["endTime"])
		return http.StatusOK, `[{"t":1000,"T":1999,"s":"BTC","i":"1h","o":"1","c":"2","h":"3","l":"0.5","v":"10","n":4}]`
	})

	candles, err := c.CandleSnapshot(context.Background(), "BTC", "1h", 1000, 2000)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, int64(1000), candles[0].OpenTime)
	assert.Equal(t, "2", candles[0].Close)
	assert.Equal(t, "0.5", candles[0].Low)
}

func TestInfoClient_ClearinghouseState(t *testing.T) {
	c := newInfoServer(t, func(req map[string]any) (int, string) {
		assert.Equal(t, "clearinghouseState", req["type"])
		assert.Equal(t, "0xabc", req["user"])
		return http.StatusOK, `{
			"marginSummary":{"accountValue":"1000.5","totalNtlPos":"200","totalMarginUsed":"50"},
			"withdrawable":"800.25",
			"assetPositions":[{"type":"oneWay","position":{"coin":"ETH","szi":"-0.5","entryPx":"3000","unrealizedPnl":"-12.5","leverage":{"type":"isolated","value":4}}}]
		}`
	})

	state, err := c.ClearinghouseState(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "1000.5", state.MarginSummary.AccountValue)
	assert.Equal(t, "800.25", state.Withdrawable)
	require.Len(t, state.AssetPositions, 1)
	p := state.AssetPositions[0].Position
	assert.Equal(t, "ETH", p.Coin)
	assert.Equal(t, "-0.5", p.Szi)
	require.NotNil(t, p.EntryPx)
	assert.Equal(t, "3000", *p.EntryPx)
	assert.Equal(t, 4, p.Leverage.Value)
}

func TestInfoClient_FundingRates(t *testing.T) {
	c := newInfoServer(t, func(req map[string]any) (int, string) {
		assert.Equal(t, "metaAndAssetCtxs", req["type"])
		return http.StatusOK, `[
			{"universe":[{"name":"BTC","szDecimals":5},{"name":"ETH","szDecimals":4}]},
			[{"funding":"0.0000125","markPx":"97000"},{"funding":"-0.00002","markPx":"3400"}]
		]`
	})

	rates, err := c.FundingRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.0000125", rates["BTC"])
	assert.Equal(t, "-0.00002", rates["ETH"])
}

func TestInfoClient_Errors(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		c := newInfoServer(t, func(map[string]any) (int, string) {
			return http.StatusTooManyRequests, `{"error":"rate limited"}`
		})
		_, err := c.AllMids(context.Background())
		assert.Error(t, err)
	})

	t.Run("unexpected funding shape", func(t *testing.T) {
		c := newInfoServer(t, func(map[string]any) (int, string) {
			return http.StatusOK, `[{"universe":[]}]`
		})
		_, err := c.FundingRates(context.Background())
		assert.Error(t, err)
	})
}
