package monitor

import (
	"fmt"
	"time"

	"github.com/pricemesh/pricemesh/feed/types"
	"github.com/pricemesh/pricemesh/util"
)

const (
	maxCoeficientOfVariation = 0.75
)

// Feed is the surface of the price feed the monitor verifies.
type Feed interface {
	Asset() string
	GetReport() *types.PriceReport
}

// VerifyReport compares the feed's current report against the API reference
// price for its asset. maxStalenessMs is the feed's own staleness bound: a
// report older than that is flagged even when the feed still serves it.
func VerifyReport(
	feed Feed,
	apiPrices map[string]float64,
	maxStalenessMs int64,
) []PriceError {
	var priceErrors []PriceError
	asset := feed.Asset()

	report := feed.GetReport()
	if report == nil {
		return append(priceErrors, PriceError{
			ErrorType:  FEED_MISSING_PRICE,
			Asset:      asset,
			occurredAt: time.Now(),
			Message:    fmt.Sprintf("FAIL %s feed report not found", asset),
		})
	}

	if age := report.AgeMs(time.Now().UnixMilli()); age > maxStalenessMs {
		priceErrors = append(priceErrors, PriceError{
			ErrorType:  FEED_STALE_REPORT,
			Asset:      asset,
			occurredAt: time.Now(),
			Message: fmt.Sprintf(
				"FAIL %s stale feed report: age %dms > %dms", asset, age, maxStalenessMs,
			),
		})
	}

	apiPrice, ok := apiPrices[asset]
	if !ok {
		return append(priceErrors, PriceError{
			ErrorType:  API_MISSING_PRICE,
			Asset:      asset,
			occurredAt: time.Now(),
			Message: fmt.Sprintf(
				"SKIP %s feed price: %f, API price: not available at coinmarketcap",
				asset, report.Price,
			),
		})
	}

	cv := util.CalcCoeficientOfVariation([]float64{report.Price, apiPrice})

	if cv > maxCoeficientOfVariation {
		return append(priceErrors, PriceError{
			ErrorType:  FEED_DEVIATED_PRICE,
			Asset:      asset,
			occurredAt: time.Now(),
			Message: fmt.Sprintf(
				"FAIL %s deviated feed price: %f, API price: %f, Variation: %f > %f",
				asset, report.Price, apiPrice, cv, maxCoeficientOfVariation,
			),
		})
	}

	return append(priceErrors, PriceError{
		ErrorType:  PRICE_MATCH,
		Asset:      asset,
		occurredAt: time.Now(),
		Message: fmt.Sprintf(
			"PASS %s matched feed price: %f, API price: %f, Variation: %f < %f",
			asset, report.Price, apiPrice, cv, maxCoeficientOfVariation,
		),
	})
}
