package venue

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"

	"github.com/pricemesh/pricemesh/feed/types"
)

const (
	kucoinRestHost    = "https://api.kucoin.com"
	kucoinBulletPath  = "/api/v1/bullet-public"
	kucoinOKCode      = "200000"
	kucoinTickerTopic = "/market/ticker:"
)

var _ Adapter = (*KucoinAdapter)(nil)

type (
	// KucoinAdapter subscribes to the KuCoin public ticker topic for one
	// symbol. KuCoin hands out the websocket endpoint, a connect token and
	// the required ping cadence through a REST preflight; the preflight is
	// re-run on every (re)connect because tokens expire.
	//
	// REF: https://www.kucoin.com/docs/websocket/basic-info/apply-connect-token/public-token-no-authentication-required-
	KucoinAdapter struct {
		endpoints Endpoint
		pair      types.CurrencyPair
		client    *http.Client
	}

	// KucoinBulletResponse is the bullet-public preflight response.
	KucoinBulletResponse struct {
		Code string           `json:"code"` // ex.: "200000"
		Data KucoinBulletData `json:"data"`
	}

	KucoinBulletData struct {
		Token           string                 `json:"token"`
		InstanceServers []KucoinInstanceServer `json:"instanceServers"`
	}

	KucoinInstanceServer struct {
		Endpoint     string `json:"endpoint"`     // ex.: wss://ws-api-spot.kucoin.com/
		PingInterval int64  `json:"pingInterval"` // server-specified cadence in ms ex.: 18000
		PingTimeout  int64  `json:"pingTimeout"`  // ms ex.: 10000
	}

	// KucoinSubscriptionMsg subscribes to the ticker topic.
	KucoinSubscriptionMsg struct {
		ID             int64  `json:"id"`   // unique request id ex.: unix ms
		Type           string `json:"type"` // ex.: "subscribe"
		Topic          string `json:"topic"` // ex.: /market/ticker:BTC-USDT
		PrivateChannel bool   `json:"privateChannel"`
		Response       bool   `json:"response"`
	}

	// KucoinPingMsg is the application-level keepalive frame KuCoin expects
	// instead of websocket control pings.
	KucoinPingMsg struct {
		ID   int64  `json:"id"`
		Type string `json:"type"` // "ping"
	}

	// KucoinTickerResponse is the ticker topic envelope. Welcome, ack and
	// pong frames have a different type/subject and carry no price.
	KucoinTickerResponse struct {
		Type    string       `json:"type"`    // ex.: "message"
		Subject string       `json:"subject"` // ex.: "trade.ticker"
		Data    KucoinTicker `json:"data"`
	}

	KucoinTicker struct {
		Price   string `json:"price"`   // Last traded price ex.: 97164.9
		BestBid string `json:"bestBid"` // ex.: 97164.8
		BestAsk string `json:"bestAsk"` // ex.: 97165.0
	}
)

// NewKucoinAdapter creates a new KucoinAdapter for asset quoted in USDT.
func NewKucoinAdapter(endpoints Endpoint, asset string) *KucoinAdapter {
	if endpoints.Name != VenueKucoin {
		endpoints = Endpoint{
			Name: VenueKucoin,
			Rest: kucoinRestHost,
		}
	}
	return &KucoinAdapter{
		endpoints: endpoints,
		pair:      types.CurrencyPair{Base: asset, Quote: "USDT"},
		client:    &http.Client{Timeout: defaultTimeout},
	}
}

func (a *KucoinAdapter) Name() types.VenueName {
	return VenueKucoin
}

func (a *KucoinAdapter) QuoteUnit() types.QuoteUnit {
	return types.QuoteUSDT
}

// ConnectURL performs the bullet-public preflight and derives the websocket
// URL from the returned endpoint and token. The server-specified ping cadence
// overrides the default keepalive interval.
func (a *KucoinAdapter) ConnectURL(ctx context.Context) (url.URL, *Preflight, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, a.endpoints.Rest+kucoinBulletPath, nil,
	)
	if err != nil {
		return url.URL{}, nil, types.ErrPreflight(VenueKucoin, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return url.URL{}, nil, types.ErrPreflight(VenueKucoin, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return url.URL{}, nil, types.ErrPreflight(
			VenueKucoin, fmt.Errorf("bullet-public returned status %d", resp.StatusCode),
		)
	}

	var bullet KucoinBulletResponse
	if err := json.NewDecoder(resp.Body).Decode(&bullet); err != nil {
		return url.URL{}, nil, types.ErrPreflight(VenueKucoin, err)
	}
	if bullet.Code != kucoinOKCode || len(bullet.Data.InstanceServers) == 0 {
		return url.URL{}, nil, types.ErrPreflight(
			VenueKucoin, fmt.Errorf("bullet-public returned code %q", bullet.Code),
		)
	}

	instance := bullet.Data.InstanceServers[0]
	wsURL, err := url.Parse(instance.Endpoint)
	if err != nil {
		return url.URL{}, nil, types.ErrPreflight(VenueKucoin, err)
	}
	wsURL.RawQuery = url.Values{"token": {bullet.Data.Token}}.Encode()

	preflight := &Preflight{
		PingInterval: time.Duration(instance.PingInterval) * time.Millisecond,
		PingTimeout:  time.Duration(instance.PingTimeout) * time.Millisecond,
	}
	return *wsURL, preflight, nil
}

func (a *KucoinAdapter) SubscriptionMsgs() []interface{} {
	return []interface{}{
		KucoinSubscriptionMsg{
			ID:       time.Now().UnixMilli(),
			Type:     "subscribe",
			Topic:    kucoinTickerTopic + currencyPairToKucoinPair(a.pair),
			Response: true,
		},
	}
}

// ParseMessage decodes one frame. Welcome, ack and pong frames are ignored.
func (a *KucoinAdapter) ParseMessage(bz []byte) (types.Snapshot, bool, error) {
	var resp KucoinTickerResponse
	if err := json.Unmarshal(bz, &resp); err != nil {
		return types.Snapshot{}, false, types.ErrTickerParse(VenueKucoin, err)
	}
	if resp.Type != "message" || resp.Subject != "trade.ticker" || resp.Data.Price == "" {
		return types.Snapshot{}, false, nil
	}

	snapshot, err := types.NewSnapshot(
		VenueKucoin, a.pair.Base, types.QuoteUSDT,
		resp.Data.Price, resp.Data.BestBid, resp.Data.BestAsk,
	)
	if err != nil {
		return types.Snapshot{}, false, types.ErrTickerParse(VenueKucoin, err)
	}
	return snapshot, true, nil
}

// PingMessage returns KuCoin's application-level keepalive frame.
func (a *KucoinAdapter) PingMessage() (interface{}, bool) {
	return KucoinPingMsg{ID: time.Now().UnixMilli(), Type: "ping"}, true
}

// currencyPairToKucoinPair returns the dash-separated symbol,
// ex.: "BTC-USDT".
func currencyPairToKucoinPair(cp types.CurrencyPair) string {
	return cp.Base + "-" + cp.Quote
}
