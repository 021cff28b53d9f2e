package venue

import (
	"context"
	"net/url"

	json "github.com/goccy/go-json"

	"github.com/pricemesh/pricemesh/feed/types"
)

const (
	krakenWSHost = "ws.kraken.com"
	krakenWSPath = "/v2"
)

var _ Adapter = (*KrakenAdapter)(nil)

type (
	// KrakenAdapter subscribes to the Kraken websocket API v2 ticker channel.
	// Unlike v1, v2 uses standard symbols (BTC, not XBT) and sends prices as
	// JSON numbers.
	//
	// REF: https://docs.kraken.com/api/docs/websocket-v2/ticker
	KrakenAdapter struct {
		endpoints Endpoint
		pair      types.CurrencyPair
	}

	// KrakenSubscriptionMsg subscribes to the ticker channel.
	KrakenSubscriptionMsg struct {
		Method string                   `json:"method"` // ex.: "subscribe"
		Params KrakenSubscriptionParams `json:"params"`
	}

	KrakenSubscriptionParams struct {
		Channel string   `json:"channel"` // ex.: "ticker"
		Symbol  []string `json:"symbol"`  // ex.: ["BTC/USD"]
	}

	// KrakenTickerResponse is the ticker channel envelope. Both "snapshot"
	// and "update" type frames carry the same data layout.
	KrakenTickerResponse struct {
		Channel string         `json:"channel"` // "ticker", "status" or "heartbeat"
		Data    []KrakenTicker `json:"data"`
	}

	KrakenTicker struct {
		Symbol string  `json:"symbol"` // ex.: BTC/USD
		Last   float64 `json:"last"`   // Last trade price ex.: 97000.1
		Bid    float64 `json:"bid"`    // Best bid price ex.: 97000.0
		Ask    float64 `json:"ask"`    // Best ask price ex.: 97000.2
	}
)

// NewKrakenAdapter creates a new KrakenAdapter for asset quoted in USD.
func NewKrakenAdapter(endpoints Endpoint, asset string) *KrakenAdapter {
	if endpoints.Name != VenueKraken {
		endpoints = Endpoint{
			Name:      VenueKraken,
			Websocket: krakenWSHost,
		}
	}
	return &KrakenAdapter{
		endpoints: endpoints,
		pair:      types.CurrencyPair{Base: asset, Quote: "USD"},
	}
}

func (a *KrakenAdapter) Name() types.VenueName {
	return VenueKraken
}

func (a *KrakenAdapter) QuoteUnit() types.QuoteUnit {
	return types.QuoteUSD
}

func (a *KrakenAdapter) ConnectURL(_ context.Context) (url.URL, *Preflight, error) {
	return url.URL{
		Scheme: "wss",
		Host:   a.endpoints.Websocket,
		Path:   krakenWSPath,
	}, nil, nil
}

func (a *KrakenAdapter) SubscriptionMsgs() []interface{} {
	return []interface{}{
		KrakenSubscriptionMsg{
			Method: "subscribe",
			Params: KrakenSubscriptionParams{
				Channel: "ticker",
				Symbol:  []string{currencyPairToKrakenPair(a.pair)},
			},
		},
	}
}

// ParseMessage decodes one frame. Status, heartbeat and method-ack frames
// carry no ticker data and are ignored.
func (a *KrakenAdapter) ParseMessage(bz []byte) (types.Snapshot, bool, error) {
	var resp KrakenTickerResponse
	if err := json.Unmarshal(bz, &resp); err != nil {
		return types.Snapshot{}, false, types.ErrTickerParse(VenueKraken, err)
	}
	if resp.Channel != "ticker" || len(resp.Data) == 0 {
		return types.Snapshot{}, false, nil
	}

	ticker := resp.Data[0]
	snapshot, err := types.NewSnapshotFromFloats(
		VenueKraken, a.pair.Base, types.QuoteUSD,
		ticker.Last, ticker.Bid, ticker.Ask,
	)
	if err != nil {
		return types.Snapshot{}, false, types.ErrTickerParse(VenueKraken, err)
	}
	return snapshot, true, nil
}

func (a *KrakenAdapter) PingMessage() (interface{}, bool) {
	return nil, false
}

// currencyPairToKrakenPair returns the slash-separated v2 symbol,
// ex.: "BTC/USD".
func currencyPairToKrakenPair(cp types.CurrencyPair) string {
	return cp.Base + "/" + cp.Quote
}
