package feed

import "math"

// Signal labels the direction of the feed price relative to the oracle.
type Signal string

const (
	SignalLong    Signal = "LONG"
	SignalShort   Signal = "SHORT"
	SignalNeutral Signal = "NEUTRAL"

	// signalThresholdBps is the dead band around the oracle price.
	signalThresholdBps = 5.0

	// signalMaxBps is the divergence at which strength saturates at 1.
	signalMaxBps = 50.0
)

// OracleSignal is the lead-lag comparison of the aggregated price against an
// independent oracle price.
type OracleSignal struct {
	Signal        Signal  `json:"signal"`
	Strength      float64 `json:"strength"` // 0 to 1, saturating at 50 bps
	DivergencePct float64 `json:"divergence_pct"`
	DivergenceBps float64 `json:"divergence_bps"`
	OraclePrice   float64 `json:"oracle_price"`
	OracleAgeMs   int64   `json:"oracle_age_ms"`
}

// ComputeOracleSignal compares price against oraclePrice. A feed price above
// the oracle by more than 5 bps reads LONG, below by more than 5 bps SHORT.
func ComputeOracleSignal(price, oraclePrice float64) OracleSignal {
	if oraclePrice <= 0 || price <= 0 {
		return OracleSignal{Signal: SignalNeutral}
	}

	divergencePct := (price - oraclePrice) / oraclePrice * 100
	divergenceBps := divergencePct * 100

	signal := SignalNeutral
	switch {
	case divergenceBps > signalThresholdBps:
		signal = SignalLong
	case divergenceBps < -signalThresholdBps:
		signal = SignalShort
	}

	return OracleSignal{
		Signal:        signal,
		Strength:      math.Min(1.0, math.Abs(divergenceBps)/signalMaxBps),
		DivergencePct: divergencePct,
		DivergenceBps: divergenceBps,
		OraclePrice:   oraclePrice,
	}
}
