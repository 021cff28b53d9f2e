package types

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeIntegrityHash(t *testing.T) {
	report := PriceReport{
		Asset:          "BTC",
		Price:          97000,
		SourcesUsed:    []VenueName{"coinbase", "binance"},
		SourceCount:    2,
		DivergencePct:  0.01,
		Confidence:     1.0,
		UsdtPremiumPct: 0.1700515,
		GeneratedAtMs:  1700000000000,
	}

	t.Run("canonical serialization", func(t *testing.T) {
		preimage := "BTC|97000.00000000|binance,coinbase|2|0.01000000|1.00000000|0.17005150|1700000000000"
		sum := sha256.Sum256([]byte(preimage))

		require.Equal(t, hex.EncodeToString(sum[:]), report.ComputeIntegrityHash())
	})

	t.Run("source order does not change the hash", func(t *testing.T) {
		reordered := report
		reordered.SourcesUsed = []VenueName{"binance", "coinbase"}

		require.Equal(t, report.ComputeIntegrityHash(), reordered.ComputeIntegrityHash())
	})

	t.Run("hash field itself is not part of the preimage", func(t *testing.T) {
		sealed := report
		sealed.IntegrityHash = report.ComputeIntegrityHash()

		require.Equal(t, report.ComputeIntegrityHash(), sealed.ComputeIntegrityHash())
	})

	t.Run("any hashed field change produces a different hash", func(t *testing.T) {
		changed := report
		changed.Price = 97000.00000001

		require.NotEqual(t, report.ComputeIntegrityHash(), changed.ComputeIntegrityHash())

		changed = report
		changed.GeneratedAtMs++
		require.NotEqual(t, report.ComputeIntegrityHash(), changed.ComputeIntegrityHash())
	})
}

func TestPriceToInt(t *testing.T) {
	require.EqualValues(t, 9700000000000, PriceToInt(97000))
	require.EqualValues(t, 9700012345678, PriceToInt(97000.12345678))
	require.EqualValues(t, 1, PriceToInt(0.00000001))
}

func TestReportSlot(t *testing.T) {
	var slot ReportSlot

	require.Nil(t, slot.GetReport())

	sources := []VenueName{"kraken", "coinbase"}
	slot.SetReport(PriceReport{Asset: "BTC", Price: 97000, SourcesUsed: sources})

	// Mutating the caller's slice must not reach the stored report.
	sources[0] = "mutated"

	got := slot.GetReport()
	require.NotNil(t, got)
	require.Equal(t, 97000.0, got.Price)
	require.Equal(t, []VenueName{"kraken", "coinbase"}, got.SourcesUsed)

	slot.SetReport(PriceReport{Asset: "BTC", Price: 97100})
	require.Equal(t, 97100.0, slot.GetReport().Price)
}
