package venue

import (
	"context"
	"net/url"
	"time"

	json "github.com/goccy/go-json"

	"github.com/pricemesh/pricemesh/feed/types"
)

const (
	gateWSHost    = "api.gateio.ws"
	gateWSPath    = "/ws/v4/"
	gateWSChannel = "spot.tickers"
)

var _ Adapter = (*GateAdapter)(nil)

type (
	// GateAdapter subscribes to the Gate.io v4 spot tickers channel for one
	// pair.
	//
	// REF: https://www.gate.io/docs/developers/apiv4/ws/en/#tickers-channel
	GateAdapter struct {
		endpoints Endpoint
		pair      types.CurrencyPair
	}

	// GateSubscriptionMsg subscribes to the spot.tickers channel.
	GateSubscriptionMsg struct {
		Time    int64    `json:"time"`    // unix seconds ex.: 1234567890
		Channel string   `json:"channel"` // ex.: "spot.tickers"
		Event   string   `json:"event"`   // ex.: "subscribe"
		Payload []string `json:"payload"` // pairs to subscribe ex.: ["BTC_USDT"]
	}

	// GateTickerResponse is the tickers channel envelope. Subscribe acks
	// share the channel but carry event "subscribe" and no result.
	GateTickerResponse struct {
		Channel string     `json:"channel"` // ex.: spot.tickers
		Event   string     `json:"event"`   // "update" or "subscribe"
		Result  GateTicker `json:"result"`
	}

	GateTicker struct {
		CurrencyPair string `json:"currency_pair"` // ex.: BTC_USDT
		Last         string `json:"last"`          // Last traded price ex.: 97164.9
		HighestBid   string `json:"highest_bid"`   // Best bid price ex.: 97164.8
		LowestAsk    string `json:"lowest_ask"`    // Best ask price ex.: 97165.0
	}
)

// NewGateAdapter creates a new GateAdapter for asset quoted in USDT.
func NewGateAdapter(endpoints Endpoint, asset string) *GateAdapter {
	if endpoints.Name != VenueGate {
		endpoints = Endpoint{
			Name:      VenueGate,
			Websocket: gateWSHost,
		}
	}
	return &GateAdapter{
		endpoints: endpoints,
		pair:      types.CurrencyPair{Base: asset, Quote: "USDT"},
	}
}

func (a *GateAdapter) Name() types.VenueName {
	return VenueGate
}

func (a *GateAdapter) QuoteUnit() types.QuoteUnit {
	return types.QuoteUSDT
}

func (a *GateAdapter) ConnectURL(_ context.Context) (url.URL, *Preflight, error) {
	return url.URL{
		Scheme: "wss",
		Host:   a.endpoints.Websocket,
		Path:   gateWSPath,
	}, nil, nil
}

func (a *GateAdapter) SubscriptionMsgs() []interface{} {
	return []interface{}{
		GateSubscriptionMsg{
			Time:    time.Now().Unix(),
			Channel: gateWSChannel,
			Event:   "subscribe",
			Payload: []string{currencyPairToGatePair(a.pair)},
		},
	}
}

// ParseMessage decodes one frame. Subscribe acks and frames from other
// channels are ignored.
func (a *GateAdapter) ParseMessage(bz []byte) (types.Snapshot, bool, error) {
	var resp GateTickerResponse
	if err := json.Unmarshal(bz, &resp); err != nil {
		return types.Snapshot{}, false, types.ErrTickerParse(VenueGate, err)
	}
	if resp.Channel != gateWSChannel || resp.Event != "update" || resp.Result.Last == "" {
		return types.Snapshot{}, false, nil
	}

	snapshot, err := types.NewSnapshot(
		VenueGate, a.pair.Base, types.QuoteUSDT,
		resp.Result.Last, resp.Result.HighestBid, resp.Result.LowestAsk,
	)
	if err != nil {
		return types.Snapshot{}, false, types.ErrTickerParse(VenueGate, err)
	}
	return snapshot, true, nil
}

func (a *GateAdapter) PingMessage() (interface{}, bool) {
	return nil, false
}

// currencyPairToGatePair returns the underscore-separated pair,
// ex.: "BTC_USDT".
func currencyPairToGatePair(cp types.CurrencyPair) string {
	return cp.Base + "_" + cp.Quote
}
