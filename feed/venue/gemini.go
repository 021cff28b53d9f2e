package venue

import (
	"context"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/pricemesh/pricemesh/feed/types"
)

const (
	geminiWSHost = "api.gemini.com"
	geminiWSPath = "/v1/marketdata/"
)

var _ Adapter = (*GeminiAdapter)(nil)

type (
	// GeminiAdapter streams the Gemini v1 marketdata feed for one symbol.
	// The symbol is embedded in the stream URL. Each frame carries an events
	// array mixing trades and order book changes; only trade events carry a
	// price, while change events update the best bid and ask.
	//
	// REF: https://docs.gemini.com/websocket-api/#market-data
	GeminiAdapter struct {
		endpoints Endpoint
		pair      types.CurrencyPair
	}

	// GeminiMarketData is the marketdata frame envelope.
	GeminiMarketData struct {
		Type   string        `json:"type"` // ex.: "update"
		Events []GeminiEvent `json:"events"`
	}

	// GeminiEvent is one entry of the events array.
	GeminiEvent struct {
		Type  string `json:"type"`  // "trade" or "change"
		Side  string `json:"side"`  // change events only: "bid" or "ask"
		Price string `json:"price"` // ex.: 97000.10
	}
)

// NewGeminiAdapter creates a new GeminiAdapter for asset quoted in USD.
// Gemini lists BTC, ETH and SOL but not XRP.
func NewGeminiAdapter(endpoints Endpoint, asset string) *GeminiAdapter {
	if endpoints.Name != VenueGemini {
		endpoints = Endpoint{
			Name:      VenueGemini,
			Websocket: geminiWSHost,
		}
	}
	return &GeminiAdapter{
		endpoints: endpoints,
		pair:      types.CurrencyPair{Base: asset, Quote: "USD"},
	}
}

func (a *GeminiAdapter) Name() types.VenueName {
	return VenueGemini
}

func (a *GeminiAdapter) QuoteUnit() types.QuoteUnit {
	return types.QuoteUSD
}

// ConnectURL embeds the lower-cased symbol in the URL,
// ex.: wss://api.gemini.com/v1/marketdata/btcusd.
func (a *GeminiAdapter) ConnectURL(_ context.Context) (url.URL, *Preflight, error) {
	return url.URL{
		Scheme: "wss",
		Host:   a.endpoints.Websocket,
		Path:   geminiWSPath + currencyPairToGeminiPair(a.pair),
	}, nil, nil
}

// SubscriptionMsgs returns nil; the stream starts on connect.
func (a *GeminiAdapter) SubscriptionMsgs() []interface{} {
	return nil
}

// ParseMessage scans the events array for the last trade event. Frames with
// only change events or an empty events array (heartbeats, auction events)
// are ignored.
func (a *GeminiAdapter) ParseMessage(bz []byte) (types.Snapshot, bool, error) {
	var frame GeminiMarketData
	if err := json.Unmarshal(bz, &frame); err != nil {
		return types.Snapshot{}, false, types.ErrTickerParse(VenueGemini, err)
	}

	var last, bid, ask string
	for _, event := range frame.Events {
		switch event.Type {
		case "trade":
			last = event.Price
		case "change":
			switch event.Side {
			case "bid":
				bid = event.Price
			case "ask":
				ask = event.Price
			}
		}
	}
	if last == "" {
		return types.Snapshot{}, false, nil
	}

	snapshot, err := types.NewSnapshot(
		VenueGemini, a.pair.Base, types.QuoteUSD,
		last, bid, ask,
	)
	if err != nil {
		return types.Snapshot{}, false, types.ErrTickerParse(VenueGemini, err)
	}
	return snapshot, true, nil
}

func (a *GeminiAdapter) PingMessage() (interface{}, bool) {
	return nil, false
}

// currencyPairToGeminiPair returns the lower-cased symbol, ex.: "btcusd".
func currencyPairToGeminiPair(cp types.CurrencyPair) string {
	return strings.ToLower(cp.String())
}
