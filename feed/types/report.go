package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync/atomic"
)

// PriceReport is one aggregation result: the reference price for an asset
// across every accepted venue, with the statistics that produced it. Reports
// are immutable once published.
type PriceReport struct {
	Asset          string      `json:"asset"`
	Price          float64     `json:"price"`
	PriceInt       int64       `json:"price_int"` // price in 1e-8 units for fixed-point consumers
	SourcesUsed    []VenueName `json:"sources_used"`
	SourceCount    int         `json:"source_count"`
	DivergencePct  float64     `json:"divergence_pct"`
	SpreadPct      float64     `json:"spread_pct"`
	Confidence     float64     `json:"confidence"`
	UsdtPremiumPct float64     `json:"usdt_premium_pct"`
	GeneratedAtMs  int64       `json:"generated_at_ms"`
	IntegrityHash  string      `json:"integrity_hash"`
}

// canonicalString serializes the hashed report fields in a fixed layout:
// pipe-separated, sources comma-joined in lexicographic order, price and
// percentages printed with 8 fractional digits.
func (r PriceReport) canonicalString() string {
	sources := make([]string, len(r.SourcesUsed))
	for i, v := range r.SourcesUsed {
		sources[i] = string(v)
	}
	sort.Strings(sources)

	return fmt.Sprintf(
		"%s|%.8f|%s|%d|%.8f|%.8f|%.8f|%d",
		r.Asset,
		r.Price,
		strings.Join(sources, ","),
		r.SourceCount,
		r.DivergencePct,
		r.Confidence,
		r.UsdtPremiumPct,
		r.GeneratedAtMs,
	)
}

// ComputeIntegrityHash returns the hex SHA-256 of the canonical report
// serialization. The IntegrityHash field itself is not part of the preimage.
func (r PriceReport) ComputeIntegrityHash() string {
	sum := sha256.Sum256([]byte(r.canonicalString()))
	return hex.EncodeToString(sum[:])
}

// PriceToInt converts a price to 1e-8 fixed-point units.
func PriceToInt(price float64) int64 {
	return int64(math.Round(price * 1e8))
}

// AgeMs returns how old the report is relative to nowMs.
func (r PriceReport) AgeMs(nowMs int64) int64 {
	return nowMs - r.GeneratedAtMs
}

// ReportSlot holds the latest PriceReport for an asset. It has a single
// writer, the aggregator, and any number of readers. Publication replaces the
// stored pointer so readers never observe a partially written report; the
// returned report must be treated as read-only.
type ReportSlot struct {
	ptr atomic.Pointer[PriceReport]
}

// SetReport publishes r as the current report. The sources slice is copied so
// the stored report does not alias the caller's memory.
func (s *ReportSlot) SetReport(r PriceReport) {
	r.SourcesUsed = append([]VenueName(nil), r.SourcesUsed...)
	s.ptr.Store(&r)
}

// GetReport returns the current report, or nil if none has been published.
func (s *ReportSlot) GetReport() *PriceReport {
	return s.ptr.Load()
}
