package venue

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/pricemesh/pricemesh/feed/types"
)

func TestBybitAdapter_ParseMessage(t *testing.T) {
	a := NewBybitAdapter(Endpoint{}, "BTC")

	t.Run("valid_ticker", func(t *testing.T) {
		bz := []byte(`{"topic":"tickers.BTCUSDT","ts":1700000000000,"type":"snapshot","data":{"symbol":"BTCUSDT","lastPrice":"97164.90","bid1Price":"97164.80","ask1Price":"97165.00"}}`)
		snapshot, ok, err := a.ParseMessage(bz)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, types.QuoteUSDT, snapshot.Quote)
		require.Equal(t, 97164.90, snapshot.Price)
		require.Equal(t, 97164.80, snapshot.Bid)
		require.Equal(t, 97165.00, snapshot.Ask)
	})

	t.Run("delta_without_price_ignored", func(t *testing.T) {
		bz := []byte(`{"topic":"tickers.BTCUSDT","type":"delta","data":{"symbol":"BTCUSDT","bid1Price":"97164.80"}}`)
		_, ok, err := a.ParseMessage(bz)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("subscribe_ack_ignored", func(t *testing.T) {
		_, ok, err := a.ParseMessage([]byte(`{"success":true,"op":"subscribe","conn_id":"abc"}`))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("malformed_json", func(t *testing.T) {
		_, ok, err := a.ParseMessage([]byte(`{"topic":`))
		require.False(t, ok)
		require.Error(t, err)
	})
}

func TestBybitAdapter_SubscriptionMsgs(t *testing.T) {
	a := NewBybitAdapter(Endpoint{}, "BTC")
	msgs := a.SubscriptionMsgs()
	require.Len(t, msgs, 1)

	bz, err := json.Marshal(msgs[0])
	require.NoError(t, err)
	require.JSONEq(t, `{"op":"subscribe","args":["tickers.BTCUSDT"]}`, string(bz))
}

func TestCurrencyPairToBybitPair(t *testing.T) {
	cp := types.CurrencyPair{Base: "SOL", Quote: "USDT"}
	require.Equal(t, "SOLUSDT", currencyPairToBybitPair(cp))
}
