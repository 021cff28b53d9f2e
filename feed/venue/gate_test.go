package venue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pricemesh/pricemesh/feed/types"
)

func TestGateAdapter_ParseMessage(t *testing.T) {
	a := NewGateAdapter(Endpoint{}, "BTC")

	t.Run("valid_ticker_update", func(t *testing.T) {
		bz := []byte(`{"time":1700000000,"channel":"spot.tickers","event":"update","result":{"currency_pair":"BTC_USDT","last":"97164.9","highest_bid":"97164.8","lowest_ask":"97165.0"}}`)
		snapshot, ok, err := a.ParseMessage(bz)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, types.QuoteUSDT, snapshot.Quote)
		require.Equal(t, 97164.9, snapshot.Price)
		require.Equal(t, 97164.8, snapshot.Bid)
		require.Equal(t, 97165.0, snapshot.Ask)
	})

	t.Run("subscribe_ack_ignored", func(t *testing.T) {
		_, ok, err := a.ParseMessage([]byte(`{"time":1700000000,"channel":"spot.tickers","event":"subscribe","result":{"status":"success"}}`))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("other_channel_ignored", func(t *testing.T) {
		_, ok, err := a.ParseMessage([]byte(`{"channel":"spot.pong","event":"","result":null}`))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("malformed_json", func(t *testing.T) {
		_, ok, err := a.ParseMessage([]byte(`}`))
		require.False(t, ok)
		require.Error(t, err)
	})
}

func TestGateAdapter_SubscriptionMsgs(t *testing.T) {
	a := NewGateAdapter(Endpoint{}, "BTC")
	msgs := a.SubscriptionMsgs()
	require.Len(t, msgs, 1)

	sub, ok := msgs[0].(GateSubscriptionMsg)
	require.True(t, ok)
	require.Equal(t, gateWSChannel, sub.Channel)
	require.Equal(t, "subscribe", sub.Event)
	require.Equal(t, []string{"BTC_USDT"}, sub.Payload)
	require.NotZero(t, sub.Time)
}

func TestCurrencyPairToGatePair(t *testing.T) {
	cp := types.CurrencyPair{Base: "ETH", Quote: "USDT"}
	require.Equal(t, "ETH_USDT", currencyPairToGatePair(cp))
}
