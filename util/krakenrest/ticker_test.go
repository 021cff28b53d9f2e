package krakenrest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLastPrice(t *testing.T) {
	t.Run("aliased result key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, tickerPath, r.URL.Path)
			require.Equal(t, "XBTUSD", r.URL.Query().Get("pair"))
			w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":{"c":["97123.40000","0.01000000"]}}}`))
		}))
		defer server.Close()

		price, err := NewClient(server.URL).LastPrice(context.Background(), "XBTUSD")
		require.NoError(t, err)
		require.Equal(t, 97123.4, price)
	})

	t.Run("exact result key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":[],"result":{"XBTUSD":{"c":["97000.00000","0.5"]}}}`))
		}))
		defer server.Close()

		price, err := NewClient(server.URL).LastPrice(context.Background(), "XBTUSD")
		require.NoError(t, err)
		require.Equal(t, 97000.0, price)
	})

	t.Run("kraken error payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":["EQuery:Unknown asset pair"],"result":{}}`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).LastPrice(context.Background(), "NOPE")
		require.ErrorContains(t, err, "Unknown asset pair")
	})

	t.Run("non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := NewClient(server.URL).LastPrice(context.Background(), "XBTUSD")
		require.ErrorContains(t, err, "status 502")
	})

	t.Run("non-positive price", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":{"c":["0.0","0"]}}}`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).LastPrice(context.Background(), "XBTUSD")
		require.ErrorContains(t, err, "non-positive")
	})
}
