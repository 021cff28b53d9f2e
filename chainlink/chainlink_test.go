package chainlink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testStreamID = "0x00039d9e45394f473ab1f050a1b963e6b05351e52d71e507509ada0c95ed75b8"

func TestSignRequest(t *testing.T) {
	path := "/api/v1/ws?feedIDs=" + testStreamID

	sig := signRequest("test-key", "test-secret", "GET", path, "", 1700000000000)
	require.Equal(t, "20a5be7747763d692934a66f27a869731e5d94fbcfd56d065a00c7ac4bca7834", sig)

	sig = signRequest("test-key", "test-secret", "POST", "/api/v1/reports", `{"hello":"world"}`, 1700000000000)
	require.Equal(t, "8d11ddcc4a43a6a2dc5912175d0d6f5325940e736117ecb9e0e0b54a4a682f61", sig)
}

func TestAuthHeaders(t *testing.T) {
	header := authHeaders("test-key", "test-secret", "/api/v1/ws", 1700000000000)
	require.Equal(t, "test-key", header.Get("Authorization"))
	require.Equal(t, "1700000000000", header.Get("X-Authorization-Timestamp"))
	require.Len(t, header.Get("X-Authorization-Signature-SHA256"), 64)
}

func TestDecodeBenchmarkPrice(t *testing.T) {
	price, err := decodeBenchmarkPrice("97123450000000000000000")
	require.NoError(t, err)
	require.InDelta(t, 97123.45, price, 1e-6)

	_, err = decodeBenchmarkPrice("not-a-number")
	require.Error(t, err)

	_, err = decodeBenchmarkPrice("0")
	require.Error(t, err)
}

func TestFetchLatestReport(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.RequestURI()
		require.NotEmpty(t, r.Header.Get("X-Authorization-Signature-SHA256"))
		w.Write([]byte(`{"report":{"feedID":"` + testStreamID + `","benchmarkPrice":"97000000000000000000000"}}`))
	}))
	defer server.Close()

	probe := New(zerolog.Nop(), Config{
		APIKey:    "test-key",
		APISecret: "test-secret",
		RestURL:   server.URL,
	})

	price, err := probe.fetchLatestReport(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 97000.0, price, 1e-6)
	require.Equal(t, "test-key", gotAuth)
	require.Equal(t, "/api/v1/reports/latest?feedID="+testStreamID, gotPath)
}

func TestFallbackPolling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "XBTUSD", r.URL.Query().Get("pair"))
		w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":{"c":["97000.50000","0.01000000"]}}}`))
	}))
	defer server.Close()

	probe := New(zerolog.Nop(), Config{
		PollInterval: 10 * time.Millisecond,
		KrakenURL:    server.URL,
	})
	require.False(t, probe.UsingDataStreams())

	probe.Start(context.Background())
	defer probe.Stop()

	require.Eventually(t, func() bool {
		_, _, ok := probe.Price()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	price, updatedAt, ok := probe.Price()
	require.True(t, ok)
	require.Equal(t, 97000.5, price)
	require.InDelta(t, time.Now().UnixMilli(), updatedAt, 5000)
}

func TestPriceBeforeStart(t *testing.T) {
	probe := New(zerolog.Nop(), Config{})
	_, _, ok := probe.Price()
	require.False(t, ok)
}
