package venue

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/pricemesh/pricemesh/feed/types"
)

const (
	defaultTimeout = 10 * time.Second

	VenueBinance  types.VenueName = "binance"
	VenueBybit    types.VenueName = "bybit"
	VenueCoinbase types.VenueName = "coinbase"
	VenueGate     types.VenueName = "gate"
	VenueGemini   types.VenueName = "gemini"
	VenueKraken   types.VenueName = "kraken"
	VenueKucoin   types.VenueName = "kucoin"
	VenueOkx      types.VenueName = "okx"
)

type (
	// Adapter encapsulates one venue's wire protocol: where to connect, what
	// to send after connecting, and how its ticker frames map onto Snapshots.
	// Adapters hold no connection state; the Runner owns the socket.
	Adapter interface {
		// Name returns the venue tag.
		Name() types.VenueName

		// QuoteUnit returns the settlement currency of the venue's pair.
		QuoteUnit() types.QuoteUnit

		// ConnectURL returns the websocket URL to dial. Venues with a REST
		// preflight perform it here on every (re)connect and may return
		// server-specified keepalive timing.
		ConnectURL(ctx context.Context) (url.URL, *Preflight, error)

		// SubscriptionMsgs returns the frames to send after the handshake,
		// or nil for venues whose stream URL embeds the subscription.
		SubscriptionMsgs() []interface{}

		// ParseMessage decodes one websocket frame into a Snapshot. ok is
		// false for frames carrying no price (acks, heartbeats, book
		// updates); err is returned only for malformed or schema-violating
		// payloads.
		ParseMessage(bz []byte) (snapshot types.Snapshot, ok bool, err error)

		// PingMessage returns the venue's application-level keepalive frame.
		// ok is false for venues kept alive with websocket control pings.
		PingMessage() (msg interface{}, ok bool)
	}

	// Preflight carries connection parameters a venue hands out before the
	// websocket dial, such as KuCoin's server-specified ping cadence.
	Preflight struct {
		PingInterval time.Duration
		PingTimeout  time.Duration
	}

	// Endpoint defines an override setting in our config for the
	// hardcoded rest and websocket api endpoints.
	Endpoint struct {
		// Name of the venue, ex. "binance"
		Name types.VenueName `mapstructure:"name"`

		// Rest endpoint for the venue, ex. "https://api.binance.us"
		Rest string `mapstructure:"rest"`

		// Websocket endpoint for the venue, ex. "stream.binance.us:9443"
		Websocket string `mapstructure:"websocket"`
	}
)

// New returns the Adapter registered for name, configured for asset.
// Unknown venue tags are a configuration error.
func New(name types.VenueName, asset string, endpoints Endpoint) (Adapter, error) {
	asset = strings.ToUpper(asset)

	switch name {
	case VenueBinance:
		return NewBinanceAdapter(endpoints, asset), nil
	case VenueBybit:
		return NewBybitAdapter(endpoints, asset), nil
	case VenueCoinbase:
		return NewCoinbaseAdapter(endpoints, asset), nil
	case VenueGate:
		return NewGateAdapter(endpoints, asset), nil
	case VenueGemini:
		return NewGeminiAdapter(endpoints, asset), nil
	case VenueKraken:
		return NewKrakenAdapter(endpoints, asset), nil
	case VenueKucoin:
		return NewKucoinAdapter(endpoints, asset), nil
	case VenueOkx:
		return NewOkxAdapter(endpoints, asset), nil
	default:
		return nil, types.ErrConfigInvalid("unknown venue tag " + name.String())
	}
}

// All returns every registered venue tag in lexicographic order.
func All() []types.VenueName {
	return []types.VenueName{
		VenueBinance,
		VenueBybit,
		VenueCoinbase,
		VenueGate,
		VenueGemini,
		VenueKraken,
		VenueKucoin,
		VenueOkx,
	}
}
