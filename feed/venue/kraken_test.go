package venue

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/pricemesh/pricemesh/feed/types"
)

func TestKrakenAdapter_ParseMessage(t *testing.T) {
	a := NewKrakenAdapter(Endpoint{}, "BTC")

	t.Run("valid_ticker_update", func(t *testing.T) {
		bz := []byte(`{"channel":"ticker","type":"update","data":[{"symbol":"BTC/USD","last":97000.1,"bid":97000.0,"ask":97000.2}]}`)
		snapshot, ok, err := a.ParseMessage(bz)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, types.QuoteUSD, snapshot.Quote)
		require.Equal(t, 97000.1, snapshot.Price)
		require.Equal(t, 97000.0, snapshot.Bid)
		require.Equal(t, 97000.2, snapshot.Ask)
	})

	t.Run("snapshot_type_also_parses", func(t *testing.T) {
		bz := []byte(`{"channel":"ticker","type":"snapshot","data":[{"symbol":"BTC/USD","last":96950.5,"bid":96950.0,"ask":96951.0}]}`)
		snapshot, ok, err := a.ParseMessage(bz)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 96950.5, snapshot.Price)
	})

	t.Run("heartbeat_ignored", func(t *testing.T) {
		_, ok, err := a.ParseMessage([]byte(`{"channel":"heartbeat"}`))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("subscribe_ack_ignored", func(t *testing.T) {
		_, ok, err := a.ParseMessage([]byte(`{"method":"subscribe","success":true,"result":{"channel":"ticker","symbol":"BTC/USD"}}`))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("malformed_json", func(t *testing.T) {
		_, ok, err := a.ParseMessage([]byte(`[`))
		require.False(t, ok)
		require.Error(t, err)
	})
}

func TestKrakenAdapter_SubscriptionMsgs(t *testing.T) {
	a := NewKrakenAdapter(Endpoint{}, "BTC")
	msgs := a.SubscriptionMsgs()
	require.Len(t, msgs, 1)

	bz, err := json.Marshal(msgs[0])
	require.NoError(t, err)
	require.JSONEq(t,
		`{"method":"subscribe","params":{"channel":"ticker","symbol":["BTC/USD"]}}`,
		string(bz),
	)
}

func TestCurrencyPairToKrakenPair(t *testing.T) {
	cp := types.CurrencyPair{Base: "XRP", Quote: "USD"}
	require.Equal(t, "XRP/USD", currencyPairToKrakenPair(cp))
}
