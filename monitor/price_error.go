package monitor

import (
	"fmt"
	"time"
)

type ErrorType int

const (
	PRICE_MATCH         = iota
	FEED_MISSING_PRICE  = iota
	FEED_STALE_REPORT   = iota
	FEED_DEVIATED_PRICE = iota
	API_MISSING_PRICE   = iota
	API_DOWN            = iota
)

var (
	criticalErrorTypes = map[ErrorType]struct{}{
		FEED_MISSING_PRICE:  {},
		FEED_STALE_REPORT:   {},
		FEED_DEVIATED_PRICE: {},
	}
)

type PriceError struct {
	ErrorType  ErrorType
	Asset      string
	Message    string
	occurredAt time.Time
}

func (pe PriceError) Key() string {
	return fmt.Sprintf("%d%s", pe.ErrorType, pe.Asset)
}

// IsCritical reports whether the error warrants immediate alerting.
func (pe PriceError) IsCritical() bool {
	_, ok := criticalErrorTypes[pe.ErrorType]
	return ok
}
