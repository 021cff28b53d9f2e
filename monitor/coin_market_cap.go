package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const defaultCMCBaseURL = "https://pro-api.coinmarketcap.com"

type (
	// CoinMarketCapClient queries CMC's quotes endpoint for the reference
	// prices the monitor verifies the feed against.
	CoinMarketCapClient struct {
		baseURL string
		apiKey  string
		client  *http.Client
	}

	cmcQuoteResponse struct {
		Data map[string]struct {
			Quote map[string]struct {
				Price float64 `json:"price"`
			} `json:"quote"`
		} `json:"data"`
	}
)

// NewCoinMarketCapClient returns a client using apiKey. baseURL overrides the
// production API for tests; pass "" otherwise.
func NewCoinMarketCapClient(apiKey, baseURL string) *CoinMarketCapClient {
	if baseURL == "" {
		baseURL = defaultCMCBaseURL
	}
	return &CoinMarketCapClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Quotes fetches the latest USD quote for each symbol. Symbols absent from
// the response are simply missing from the returned map.
func (c *CoinMarketCapClient) Quotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("coinmarketcap_api_key config var not set")
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.baseURL+"/v1/cryptocurrency/quotes/latest", nil,
	)
	if err != nil {
		return nil, err
	}

	symbolsUpper := make([]string, len(symbols))
	for i, symbol := range symbols {
		symbolsUpper[i] = strings.ToUpper(symbol)
	}

	q := url.Values{}
	q.Add("symbol", strings.Join(symbolsUpper, ","))

	req.Header.Set("Accepts", "application/json")
	req.Header.Add("X-CMC_PRO_API_KEY", c.apiKey)
	req.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coinmarketcap returned status %d", resp.StatusCode)
	}

	var target cmcQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&target); err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		tokenData, ok := target.Data[strings.ToUpper(symbol)]
		if !ok {
			continue
		}
		usdQuote, ok := tokenData.Quote["USD"]
		if !ok {
			continue
		}
		prices[symbol] = usdQuote.Price
	}

	return prices, nil
}
