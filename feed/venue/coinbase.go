package venue

import (
	"context"
	"net/url"

	json "github.com/goccy/go-json"

	"github.com/pricemesh/pricemesh/feed/types"
)

const (
	coinbaseWSHost = "ws-feed.exchange.coinbase.com"
)

var _ Adapter = (*CoinbaseAdapter)(nil)

type (
	// CoinbaseAdapter subscribes to the Coinbase Exchange public ticker
	// channel for one product.
	//
	// REF: https://docs.cdp.coinbase.com/exchange/docs/websocket-channels
	CoinbaseAdapter struct {
		endpoints Endpoint
		pair      types.CurrencyPair
	}

	// CoinbaseSubscriptionMsg subscribes to the ticker channel.
	CoinbaseSubscriptionMsg struct {
		Type     string                        `json:"type"`     // ex.: "subscribe"
		Channels []CoinbaseSubscriptionChannel `json:"channels"` // channels to subscribe to
	}

	CoinbaseSubscriptionChannel struct {
		Name       string   `json:"name"`        // ex.: "ticker"
		ProductIDs []string `json:"product_ids"` // streams to subscribe ex.: ["BTC-USD"]
	}

	// CoinbaseTicker is the ticker channel payload. The type field also
	// identifies subscription acks, heartbeats and error frames, which carry
	// no price.
	CoinbaseTicker struct {
		Type      string `json:"type"`       // "ticker", "subscriptions", "heartbeat" or "error"
		ProductID string `json:"product_id"` // ex.: BTC-USD
		Price     string `json:"price"`      // ex.: 97000.10
		BestBid   string `json:"best_bid"`   // ex.: 97000.00
		BestAsk   string `json:"best_ask"`   // ex.: 97000.20
	}
)

// NewCoinbaseAdapter creates a new CoinbaseAdapter for asset quoted in USD.
func NewCoinbaseAdapter(endpoints Endpoint, asset string) *CoinbaseAdapter {
	if endpoints.Name != VenueCoinbase {
		endpoints = Endpoint{
			Name:      VenueCoinbase,
			Websocket: coinbaseWSHost,
		}
	}
	return &CoinbaseAdapter{
		endpoints: endpoints,
		pair:      types.CurrencyPair{Base: asset, Quote: "USD"},
	}
}

func (a *CoinbaseAdapter) Name() types.VenueName {
	return VenueCoinbase
}

func (a *CoinbaseAdapter) QuoteUnit() types.QuoteUnit {
	return types.QuoteUSD
}

func (a *CoinbaseAdapter) ConnectURL(_ context.Context) (url.URL, *Preflight, error) {
	return url.URL{
		Scheme: "wss",
		Host:   a.endpoints.Websocket,
	}, nil, nil
}

func (a *CoinbaseAdapter) SubscriptionMsgs() []interface{} {
	return []interface{}{
		CoinbaseSubscriptionMsg{
			Type: "subscribe",
			Channels: []CoinbaseSubscriptionChannel{
				{
					Name:       "ticker",
					ProductIDs: []string{currencyPairToCoinbasePair(a.pair)},
				},
			},
		},
	}
}

// ParseMessage decodes one frame. Only type "ticker" frames carry a price;
// subscription acks, heartbeats and error frames are ignored.
func (a *CoinbaseAdapter) ParseMessage(bz []byte) (types.Snapshot, bool, error) {
	var ticker CoinbaseTicker
	if err := json.Unmarshal(bz, &ticker); err != nil {
		return types.Snapshot{}, false, types.ErrTickerParse(VenueCoinbase, err)
	}
	if ticker.Type != "ticker" || ticker.Price == "" {
		return types.Snapshot{}, false, nil
	}

	snapshot, err := types.NewSnapshot(
		VenueCoinbase, a.pair.Base, types.QuoteUSD,
		ticker.Price, ticker.BestBid, ticker.BestAsk,
	)
	if err != nil {
		return types.Snapshot{}, false, types.ErrTickerParse(VenueCoinbase, err)
	}
	return snapshot, true, nil
}

func (a *CoinbaseAdapter) PingMessage() (interface{}, bool) {
	return nil, false
}

// currencyPairToCoinbasePair returns the dash-separated product id,
// ex.: "BTC-USD".
func currencyPairToCoinbasePair(cp types.CurrencyPair) string {
	return cp.Base + "-" + cp.Quote
}
