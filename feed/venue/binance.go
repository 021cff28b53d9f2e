package venue

import (
	"context"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/pricemesh/pricemesh/feed/types"
)

const (
	// binance.com answers HTTP 451 from US networks, so the US host is the
	// default. Override via the endpoint config to use the global stream.
	binanceWSHost = "stream.binance.us:9443"
	binanceWSPath = "/ws/"
)

var _ Adapter = (*BinanceAdapter)(nil)

type (
	// BinanceAdapter streams the Binance 24hr ticker for one pair. The pair
	// is embedded in the stream URL, so no subscription frame is sent.
	//
	// REF: https://docs.binance.us/#ticker-streams
	BinanceAdapter struct {
		endpoints Endpoint
		pair      types.CurrencyPair
	}

	// BinanceTicker is the 24hr rolling window ticker stream payload.
	BinanceTicker struct {
		Symbol string `json:"s"` // Symbol ex.: BTCUSDT
		Last   string `json:"c"` // Last price ex.: 97000.10
		Bid    string `json:"b"` // Best bid price ex.: 97000.00
		Ask    string `json:"a"` // Best ask price ex.: 97000.20
	}
)

// NewBinanceAdapter creates a new BinanceAdapter for asset quoted in USDT.
func NewBinanceAdapter(endpoints Endpoint, asset string) *BinanceAdapter {
	if endpoints.Name != VenueBinance {
		endpoints = Endpoint{
			Name:      VenueBinance,
			Websocket: binanceWSHost,
		}
	}
	return &BinanceAdapter{
		endpoints: endpoints,
		pair:      types.CurrencyPair{Base: asset, Quote: "USDT"},
	}
}

func (a *BinanceAdapter) Name() types.VenueName {
	return VenueBinance
}

func (a *BinanceAdapter) QuoteUnit() types.QuoteUnit {
	return types.QuoteUSDT
}

// ConnectURL embeds the ticker stream for the pair in the URL,
// ex.: wss://stream.binance.us:9443/ws/btcusdt@ticker.
func (a *BinanceAdapter) ConnectURL(_ context.Context) (url.URL, *Preflight, error) {
	return url.URL{
		Scheme: "wss",
		Host:   a.endpoints.Websocket,
		Path:   binanceWSPath + currencyPairToBinanceTickerPair(a.pair),
	}, nil, nil
}

// SubscriptionMsgs returns nil; the stream URL carries the subscription.
func (a *BinanceAdapter) SubscriptionMsgs() []interface{} {
	return nil
}

// ParseMessage decodes one ticker frame. Frames without a last price carry no
// ticker and are ignored.
func (a *BinanceAdapter) ParseMessage(bz []byte) (types.Snapshot, bool, error) {
	var ticker BinanceTicker
	if err := json.Unmarshal(bz, &ticker); err != nil {
		return types.Snapshot{}, false, types.ErrTickerParse(VenueBinance, err)
	}
	if ticker.Last == "" {
		return types.Snapshot{}, false, nil
	}

	snapshot, err := types.NewSnapshot(
		VenueBinance, a.pair.Base, types.QuoteUSDT,
		ticker.Last, ticker.Bid, ticker.Ask,
	)
	if err != nil {
		return types.Snapshot{}, false, types.ErrTickerParse(VenueBinance, err)
	}
	return snapshot, true, nil
}

func (a *BinanceAdapter) PingMessage() (interface{}, bool) {
	return nil, false
}

// currencyPairToBinanceTickerPair appends @ticker to the lower-cased pair,
// ex.: "btcusdt@ticker".
func currencyPairToBinanceTickerPair(cp types.CurrencyPair) string {
	return strings.ToLower(cp.String()) + "@ticker"
}
