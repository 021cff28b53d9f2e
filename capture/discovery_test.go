package capture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBuildSlug(t *testing.T) {
	testCases := []struct {
		name      string
		asset     string
		timeframe string
		timestamp int64
		expected  string
	}{
		{
			name:      "fifteen_minute",
			asset:     "btc",
			timeframe: "15m",
			timestamp: 1769521500,
			expected:  "btc-updown-15m-1769521500",
		},
		{
			name:      "five_minute_uppercase_asset",
			asset:     "ETH",
			timeframe: "5m",
			timestamp: 1769521500,
			expected:  "eth-updown-5m-1769521500",
		},
		{
			name:      "hourly_morning",
			asset:     "btc",
			timeframe: "1hr",
			timestamp: 1769518800, // 2026-01-27 13:00 UTC -> 8am ET
			expected:  "bitcoin-up-or-down-january-27-8am-et",
		},
		{
			name:      "hourly_late_morning",
			asset:     "btc",
			timeframe: "1hr",
			timestamp: 1787760000, // 2026-08-26 16:00 UTC -> 11am ET
			expected:  "bitcoin-up-or-down-august-26-11am-et",
		},
		{
			name:      "hourly_midnight",
			asset:     "eth",
			timeframe: "1hr",
			timestamp: 1787720400, // 2026-08-26 05:00 UTC -> 12am ET
			expected:  "ethereum-up-or-down-august-26-12am-et",
		},
		{
			name:      "hourly_noon",
			asset:     "xrp",
			timeframe: "1hr",
			timestamp: 1787763600, // 2026-08-26 17:00 UTC -> 12pm ET
			expected:  "xrp-up-or-down-august-26-12pm-et",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, BuildSlug(tc.asset, tc.timeframe, tc.timestamp))
		})
	}
}

func TestWindowStart(t *testing.T) {
	require.Equal(t, int64(1769521500), WindowStart("15m", 1769521500))
	require.Equal(t, int64(1769521500), WindowStart("15m", 1769521500+899))
	require.Equal(t, int64(1769522400), WindowStart("15m", 1769521500+900))
	require.Equal(t, int64(1769518800), WindowStart("1hr", 1769518800+3599))
}

const gammaListResponse = `[{"markets":[{
	"clobTokenIds": ["111","222"],
	"outcomes": ["Up","Down"],
	"outcomePrices": ["0.55","0.46"],
	"volume": 12345.5,
	"liquidity": 678.9
}]}]`

const gammaStringEncodedResponse = `[{"markets":[{
	"clobTokenIds": "[\"111\",\"222\"]",
	"outcomes": "[\"Up\",\"Down\"]",
	"outcomePrices": "[\"0.55\",\"0.46\"]",
	"volume": "12345.5",
	"liquidity": "678.9"
}]}]`

func TestDiscoveryFetchMarket(t *testing.T) {
	responses := map[string]string{
		"plain_arrays":         gammaListResponse,
		"json_encoded_strings": gammaStringEncodedResponse,
	}

	for name, body := range responses {
		t.Run(name, func(t *testing.T) {
			var gotSlug string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotSlug = r.URL.Query().Get("slug")
				w.Write([]byte(body))
			}))
			defer server.Close()

			d := NewDiscovery(zerolog.Nop(), server.URL)
			market, err := d.fetchMarket(context.Background(), "btc-updown-15m-1769521500")
			require.NoError(t, err)

			require.Equal(t, "btc-updown-15m-1769521500", gotSlug)
			require.Equal(t, "111", market.UpToken)
			require.Equal(t, "222", market.DownToken)
			require.Equal(t, 0.55, market.UpPrice)
			require.Equal(t, 0.46, market.DownPrice)
			require.Equal(t, 12345.5, market.Volume)
			require.Equal(t, 678.9, market.Liquidity)
		})
	}
}

func TestDiscoveryFetchMarketErrors(t *testing.T) {
	testCases := []struct {
		name string
		body string
		code int
	}{
		{name: "empty_event_list", body: `[]`, code: http.StatusOK},
		{name: "no_markets", body: `[{"markets":[]}]`, code: http.StatusOK},
		{name: "missing_tokens", body: `[{"markets":[{"outcomes":["Up","Down"]}]}]`, code: http.StatusOK},
		{name: "server_error", body: ``, code: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.code)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			d := NewDiscovery(zerolog.Nop(), server.URL)
			_, err := d.fetchMarket(context.Background(), "btc-updown-15m-1769521500")
			require.Error(t, err)
		})
	}
}

func TestDiscoveryCachesMarkets(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(gammaListResponse))
	}))
	defer server.Close()

	d := NewDiscovery(zerolog.Nop(), server.URL)

	first, err := d.Market(context.Background(), "btc", "15m")
	require.NoError(t, err)
	second, err := d.Market(context.Background(), "btc", "15m")
	require.NoError(t, err)

	require.Equal(t, 1, calls)
	require.Same(t, first, second)
}
