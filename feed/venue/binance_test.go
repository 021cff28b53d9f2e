package venue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pricemesh/pricemesh/feed/types"
)

func TestBinanceAdapter_ParseMessage(t *testing.T) {
	a := NewBinanceAdapter(Endpoint{}, "BTC")

	t.Run("valid_ticker", func(t *testing.T) {
		bz := []byte(`{"e":"24hrTicker","s":"BTCUSDT","c":"97164.90","b":"97164.80","a":"97165.00"}`)
		snapshot, ok, err := a.ParseMessage(bz)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, VenueBinance, snapshot.Venue)
		require.Equal(t, types.QuoteUSDT, snapshot.Quote)
		require.Equal(t, 97164.90, snapshot.Price)
		require.Equal(t, 97164.80, snapshot.Bid)
		require.Equal(t, 97165.00, snapshot.Ask)
	})

	t.Run("frame_without_price_ignored", func(t *testing.T) {
		_, ok, err := a.ParseMessage([]byte(`{"result":null,"id":1}`))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("malformed_json", func(t *testing.T) {
		_, ok, err := a.ParseMessage([]byte(`{"c":"97164.90"`))
		require.False(t, ok)
		require.Error(t, err)
		require.Equal(t, types.ProtocolParse, types.ClassOf(err))
	})
}

func TestBinanceAdapter_ConnectURL(t *testing.T) {
	a := NewBinanceAdapter(Endpoint{}, "BTC")
	u, preflight, err := a.ConnectURL(context.Background())
	require.NoError(t, err)
	require.Nil(t, preflight)
	require.Equal(t, "wss://stream.binance.us:9443/ws/btcusdt@ticker", u.String())
	require.Nil(t, a.SubscriptionMsgs())
}

func TestCurrencyPairToBinanceTickerPair(t *testing.T) {
	cp := types.CurrencyPair{Base: "ETH", Quote: "USDT"}
	require.Equal(t, "ethusdt@ticker", currencyPairToBinanceTickerPair(cp))
}
