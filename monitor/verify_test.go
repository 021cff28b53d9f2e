package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pricemesh/pricemesh/feed/types"
)

type stubFeed struct {
	report *types.PriceReport
}

func (s stubFeed) Asset() string                 { return "BTC" }
func (s stubFeed) GetReport() *types.PriceReport { return s.report }

func freshReport(price float64) *types.PriceReport {
	return &types.PriceReport{
		Asset:         "BTC",
		Price:         price,
		GeneratedAtMs: time.Now().UnixMilli(),
	}
}

func TestVerifyReport(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		errs := VerifyReport(stubFeed{freshReport(97000)}, map[string]float64{"BTC": 97010}, 2000)
		require.Len(t, errs, 1)
		require.Equal(t, ErrorType(PRICE_MATCH), errs[0].ErrorType)
		require.False(t, errs[0].IsCritical())
	})

	t.Run("missing_report", func(t *testing.T) {
		errs := VerifyReport(stubFeed{nil}, map[string]float64{"BTC": 97010}, 2000)
		require.Len(t, errs, 1)
		require.Equal(t, ErrorType(FEED_MISSING_PRICE), errs[0].ErrorType)
		require.True(t, errs[0].IsCritical())
	})

	t.Run("stale_report", func(t *testing.T) {
		report := freshReport(97000)
		report.GeneratedAtMs -= 3000
		errs := VerifyReport(stubFeed{report}, map[string]float64{"BTC": 97010}, 2000)
		require.Equal(t, ErrorType(FEED_STALE_REPORT), errs[0].ErrorType)
	})

	t.Run("deviated_price", func(t *testing.T) {
		errs := VerifyReport(stubFeed{freshReport(97000)}, map[string]float64{"BTC": 110000}, 2000)
		require.Len(t, errs, 1)
		require.Equal(t, ErrorType(FEED_DEVIATED_PRICE), errs[0].ErrorType)
	})

	t.Run("api_missing_symbol", func(t *testing.T) {
		errs := VerifyReport(stubFeed{freshReport(97000)}, map[string]float64{}, 2000)
		require.Len(t, errs, 1)
		require.Equal(t, ErrorType(API_MISSING_PRICE), errs[0].ErrorType)
	})
}

func TestCoinMarketCapQuotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("X-CMC_PRO_API_KEY"))
		require.Equal(t, "BTC", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"data":{"BTC":{"quote":{"USD":{"price":97123.45}}}}}`))
	}))
	defer server.Close()

	client := NewCoinMarketCapClient("test-key", server.URL)
	prices, err := client.Quotes(context.Background(), []string{"BTC"})
	require.NoError(t, err)
	require.Equal(t, 97123.45, prices["BTC"])
}

func TestCoinMarketCapQuotesNoKey(t *testing.T) {
	client := NewCoinMarketCapClient("", "")
	_, err := client.Quotes(context.Background(), []string{"BTC"})
	require.Error(t, err)
}
