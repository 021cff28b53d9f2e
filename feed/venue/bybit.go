package venue

import (
	"context"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/pricemesh/pricemesh/feed/types"
)

const (
	bybitWSHost = "stream.bybit.com"
	bybitWSPath = "/v5/public/spot"
)

var _ Adapter = (*BybitAdapter)(nil)

type (
	// BybitAdapter subscribes to the Bybit v5 spot tickers topic for one
	// symbol. Bybit pushes at 50ms cadence, the fastest of the eight venues,
	// and sends deltas that may omit unchanged fields.
	//
	// REF: https://bybit-exchange.github.io/docs/v5/websocket/public/ticker
	BybitAdapter struct {
		endpoints Endpoint
		pair      types.CurrencyPair
	}

	// BybitSubscriptionMsg subscribes to the tickers topic.
	BybitSubscriptionMsg struct {
		Op   string   `json:"op"`   // ex.: "subscribe"
		Args []string `json:"args"` // topics to subscribe ex.: ["tickers.BTCUSDT"]
	}

	// BybitTickerResponse is the tickers topic envelope. Subscription acks
	// carry an empty topic.
	BybitTickerResponse struct {
		Topic string      `json:"topic"` // ex.: tickers.BTCUSDT
		Data  BybitTicker `json:"data"`
	}

	BybitTicker struct {
		Symbol    string `json:"symbol"`    // ex.: BTCUSDT
		LastPrice string `json:"lastPrice"` // ex.: 97164.90
		Bid1Price string `json:"bid1Price"` // Best bid price ex.: 97164.80
		Ask1Price string `json:"ask1Price"` // Best ask price ex.: 97165.00
	}
)

// NewBybitAdapter creates a new BybitAdapter for asset quoted in USDT.
func NewBybitAdapter(endpoints Endpoint, asset string) *BybitAdapter {
	if endpoints.Name != VenueBybit {
		endpoints = Endpoint{
			Name:      VenueBybit,
			Websocket: bybitWSHost,
		}
	}
	return &BybitAdapter{
		endpoints: endpoints,
		pair:      types.CurrencyPair{Base: asset, Quote: "USDT"},
	}
}

func (a *BybitAdapter) Name() types.VenueName {
	return VenueBybit
}

func (a *BybitAdapter) QuoteUnit() types.QuoteUnit {
	return types.QuoteUSDT
}

func (a *BybitAdapter) ConnectURL(_ context.Context) (url.URL, *Preflight, error) {
	return url.URL{
		Scheme: "wss",
		Host:   a.endpoints.Websocket,
		Path:   bybitWSPath,
	}, nil, nil
}

func (a *BybitAdapter) SubscriptionMsgs() []interface{} {
	return []interface{}{
		BybitSubscriptionMsg{
			Op:   "subscribe",
			Args: []string{"tickers." + currencyPairToBybitPair(a.pair)},
		},
	}
}

// ParseMessage decodes one frame. Acks lack a tickers topic and delta frames
// without a last price are ignored.
func (a *BybitAdapter) ParseMessage(bz []byte) (types.Snapshot, bool, error) {
	var resp BybitTickerResponse
	if err := json.Unmarshal(bz, &resp); err != nil {
		return types.Snapshot{}, false, types.ErrTickerParse(VenueBybit, err)
	}
	if !strings.HasPrefix(resp.Topic, "tickers.") || resp.Data.LastPrice == "" {
		return types.Snapshot{}, false, nil
	}

	snapshot, err := types.NewSnapshot(
		VenueBybit, a.pair.Base, types.QuoteUSDT,
		resp.Data.LastPrice, resp.Data.Bid1Price, resp.Data.Ask1Price,
	)
	if err != nil {
		return types.Snapshot{}, false, types.ErrTickerParse(VenueBybit, err)
	}
	return snapshot, true, nil
}

func (a *BybitAdapter) PingMessage() (interface{}, bool) {
	return nil, false
}

// currencyPairToBybitPair returns the concatenated symbol, ex.: "BTCUSDT".
func currencyPairToBybitPair(cp types.CurrencyPair) string {
	return cp.String()
}
