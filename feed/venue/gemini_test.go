package venue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pricemesh/pricemesh/feed/types"
)

func TestGeminiAdapter_ParseMessage(t *testing.T) {
	a := NewGeminiAdapter(Endpoint{}, "BTC")

	t.Run("trade_event_yields_price", func(t *testing.T) {
		bz := []byte(`{"type":"update","eventId":1,"events":[{"type":"trade","tid":2,"price":"97000.10","amount":"0.01","makerSide":"bid"}]}`)
		snapshot, ok, err := a.ParseMessage(bz)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, types.QuoteUSD, snapshot.Quote)
		require.Equal(t, 97000.10, snapshot.Price)
	})

	t.Run("mixed_events_take_last_trade_and_book", func(t *testing.T) {
		bz := []byte(`{"type":"update","events":[
			{"type":"change","side":"bid","price":"97000.00","remaining":"1.2"},
			{"type":"trade","price":"97000.10","amount":"0.5"},
			{"type":"change","side":"ask","price":"97000.20","remaining":"0.8"},
			{"type":"trade","price":"97000.15","amount":"0.1"}
		]}`)
		snapshot, ok, err := a.ParseMessage(bz)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 97000.15, snapshot.Price)
		require.Equal(t, 97000.00, snapshot.Bid)
		require.Equal(t, 97000.20, snapshot.Ask)
	})

	t.Run("change_only_frame_ignored", func(t *testing.T) {
		bz := []byte(`{"type":"update","events":[{"type":"change","side":"bid","price":"97000.00"}]}`)
		_, ok, err := a.ParseMessage(bz)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("heartbeat_ignored", func(t *testing.T) {
		_, ok, err := a.ParseMessage([]byte(`{"type":"heartbeat"}`))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("malformed_json", func(t *testing.T) {
		_, ok, err := a.ParseMessage([]byte(`{{`))
		require.False(t, ok)
		require.Error(t, err)
	})
}

func TestGeminiAdapter_ConnectURL(t *testing.T) {
	a := NewGeminiAdapter(Endpoint{}, "BTC")
	u, preflight, err := a.ConnectURL(context.Background())
	require.NoError(t, err)
	require.Nil(t, preflight)
	require.Equal(t, "wss://api.gemini.com/v1/marketdata/btcusd", u.String())
	require.Nil(t, a.SubscriptionMsgs())
}

func TestCurrencyPairToGeminiPair(t *testing.T) {
	cp := types.CurrencyPair{Base: "ETH", Quote: "USD"}
	require.Equal(t, "ethusd", currencyPairToGeminiPair(cp))
}
