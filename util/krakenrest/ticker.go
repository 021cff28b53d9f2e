package krakenrest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

const (
	defaultRestHost = "https://api.kraken.com"
	tickerPath      = "/0/public/Ticker"

	defaultTimeout = 10 * time.Second
)

type (
	// Client queries Kraken's public spot REST API. It is used as the oracle
	// fallback source when no Data Streams credentials are configured.
	Client struct {
		baseURL string
		client  *http.Client
	}

	// tickerResponse is Kraken's REST envelope. The result map is keyed by
	// Kraken's internal pair alias, ex.: "XXBTZUSD" for an "XBTUSD" request.
	tickerResponse struct {
		Error  []string              `json:"error"`
		Result map[string]tickerInfo `json:"result"`
	}

	// tickerInfo holds the ticker fields we consume.
	// C is the last trade, ex.: ["97000.10000","0.02000000"].
	tickerInfo struct {
		C []string `json:"c"`
	}
)

// NewClient returns a Client against baseURL, or the public Kraken API when
// baseURL is empty.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultRestHost
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// LastPrice fetches the last trade price for pair, ex. "XBTUSD". Kraken may
// answer under an aliased result key, so the exact pair key is preferred and
// any remaining single entry accepted.
func (c *Client) LastPrice(ctx context.Context, pair string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tickerPath+"?pair="+pair, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("kraken rest returned status %d", resp.StatusCode)
	}

	var tr tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return 0, err
	}
	if len(tr.Error) > 0 {
		return 0, fmt.Errorf("kraken rest error: %v", tr.Error)
	}

	info, ok := tr.Result[pair]
	if !ok {
		for _, v := range tr.Result {
			info = v
			ok = true
			break
		}
	}
	if !ok || len(info.C) == 0 {
		return 0, fmt.Errorf("kraken rest response missing ticker for %s", pair)
	}

	price, err := strconv.ParseFloat(info.C[0], 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse kraken last price %q: %w", info.C[0], err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("kraken rest returned non-positive price %f", price)
	}
	return price, nil
}
