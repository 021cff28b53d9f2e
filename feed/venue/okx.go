package venue

import (
	"context"
	"net/url"

	json "github.com/goccy/go-json"

	"github.com/pricemesh/pricemesh/feed/types"
)

const (
	okxWSHost = "ws.okx.com:8443"
	okxWSPath = "/ws/v5/public"
)

var _ Adapter = (*OkxAdapter)(nil)

type (
	// OkxAdapter subscribes to the OKX v5 public tickers channel for one
	// instrument.
	//
	// REF: https://www.okx.com/docs-v5/en/#public-data-websocket-tickers-channel
	OkxAdapter struct {
		endpoints Endpoint
		pair      types.CurrencyPair
	}

	// OkxSubscriptionMsg subscribes to the tickers channel.
	OkxSubscriptionMsg struct {
		Op   string               `json:"op"`   // ex.: "subscribe"
		Args []OkxSubscriptionArg `json:"args"` // channel and instrument
	}

	OkxSubscriptionArg struct {
		Channel string `json:"channel"` // ex.: "tickers"
		InstID  string `json:"instId"`  // ex.: BTC-USDT
	}

	// OkxTickerResponse is the tickers channel envelope. Subscription acks
	// and error events omit the data array.
	OkxTickerResponse struct {
		Data []OkxTicker `json:"data"`
	}

	OkxTicker struct {
		InstID string `json:"instId"` // ex.: BTC-USDT
		Last   string `json:"last"`   // Last traded price ex.: 97164.9
		BidPx  string `json:"bidPx"`  // Best bid price ex.: 97164.8
		AskPx  string `json:"askPx"`  // Best ask price ex.: 97165.0
	}
)

// NewOkxAdapter creates a new OkxAdapter for asset quoted in USDT.
func NewOkxAdapter(endpoints Endpoint, asset string) *OkxAdapter {
	if endpoints.Name != VenueOkx {
		endpoints = Endpoint{
			Name:      VenueOkx,
			Websocket: okxWSHost,
		}
	}
	return &OkxAdapter{
		endpoints: endpoints,
		pair:      types.CurrencyPair{Base: asset, Quote: "USDT"},
	}
}

func (a *OkxAdapter) Name() types.VenueName {
	return VenueOkx
}

func (a *OkxAdapter) QuoteUnit() types.QuoteUnit {
	return types.QuoteUSDT
}

func (a *OkxAdapter) ConnectURL(_ context.Context) (url.URL, *Preflight, error) {
	return url.URL{
		Scheme: "wss",
		Host:   a.endpoints.Websocket,
		Path:   okxWSPath,
	}, nil, nil
}

func (a *OkxAdapter) SubscriptionMsgs() []interface{} {
	return []interface{}{
		OkxSubscriptionMsg{
			Op: "subscribe",
			Args: []OkxSubscriptionArg{
				{
					Channel: "tickers",
					InstID:  currencyPairToOkxPair(a.pair),
				},
			},
		},
	}
}

// ParseMessage decodes one frame. Frames without a data array are
// subscription acks or error events and are ignored.
func (a *OkxAdapter) ParseMessage(bz []byte) (types.Snapshot, bool, error) {
	var resp OkxTickerResponse
	if err := json.Unmarshal(bz, &resp); err != nil {
		return types.Snapshot{}, false, types.ErrTickerParse(VenueOkx, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].Last == "" {
		return types.Snapshot{}, false, nil
	}

	ticker := resp.Data[0]
	snapshot, err := types.NewSnapshot(
		VenueOkx, a.pair.Base, types.QuoteUSDT,
		ticker.Last, ticker.BidPx, ticker.AskPx,
	)
	if err != nil {
		return types.Snapshot{}, false, types.ErrTickerParse(VenueOkx, err)
	}
	return snapshot, true, nil
}

func (a *OkxAdapter) PingMessage() (interface{}, bool) {
	return nil, false
}

// currencyPairToOkxPair returns the dash-separated instrument id,
// ex.: "BTC-USDT".
func currencyPairToOkxPair(cp types.CurrencyPair) string {
	return cp.Base + "-" + cp.Quote
}
