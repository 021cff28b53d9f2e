package types

import (
	"fmt"
	"strconv"
	"time"
)

// Snapshot is one ticker observation from one venue. Snapshots are immutable
// after creation and may be shared by reference across goroutines.
type Snapshot struct {
	Venue       VenueName
	Asset       string
	Quote       QuoteUnit
	Price       float64
	Bid         float64 // zero when the venue did not report one
	Ask         float64 // zero when the venue did not report one
	TimestampMs int64
}

// NewSnapshot parses venue ticker fields transmitted as decimal strings and
// stamps the receipt time. Bid and ask are optional and may be empty.
func NewSnapshot(venue VenueName, asset string, quote QuoteUnit, price, bid, ask string) (Snapshot, error) {
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: failed to parse price %q: %w", venue, price, err)
	}

	var b, a float64
	if bid != "" {
		if b, err = strconv.ParseFloat(bid, 64); err != nil {
			return Snapshot{}, fmt.Errorf("%s: failed to parse bid %q: %w", venue, bid, err)
		}
	}
	if ask != "" {
		if a, err = strconv.ParseFloat(ask, 64); err != nil {
			return Snapshot{}, fmt.Errorf("%s: failed to parse ask %q: %w", venue, ask, err)
		}
	}

	return NewSnapshotFromFloats(venue, asset, quote, p, b, a)
}

// NewSnapshotFromFloats builds a Snapshot from already-decoded numbers. It
// enforces the price and bid/ask invariants.
func NewSnapshotFromFloats(venue VenueName, asset string, quote QuoteUnit, price, bid, ask float64) (Snapshot, error) {
	if price <= 0 {
		return Snapshot{}, fmt.Errorf("%s: non-positive price %f", venue, price)
	}
	if bid > 0 && ask > 0 && bid > ask {
		return Snapshot{}, fmt.Errorf("%s: bid %f above ask %f", venue, bid, ask)
	}

	return Snapshot{
		Venue:       venue,
		Asset:       asset,
		Quote:       quote,
		Price:       price,
		Bid:         bid,
		Ask:         ask,
		TimestampMs: time.Now().UnixMilli(),
	}, nil
}

// AgeMs returns how old the snapshot is relative to nowMs.
func (s Snapshot) AgeMs(nowMs int64) int64 {
	return nowMs - s.TimestampMs
}

// IsZero reports whether the snapshot is the zero value.
func (s Snapshot) IsZero() bool {
	return s.Venue == "" && s.Price == 0
}
