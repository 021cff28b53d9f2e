package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricemesh/pricemesh/config"
	"github.com/pricemesh/pricemesh/feed"
	"github.com/pricemesh/pricemesh/util"
)

const (
	maxCoeficientOfVariation = 0.2
)

// TestPriceAccuracy tests the accuracy of the aggregated reference price
// by comparing it to the price from the CoinMarketCap API.
func TestPriceAccuracy(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	logger := getLogger()
	cfg, err := config.ParseConfig("../../pricemesh.example.toml")
	require.NoError(t, err)

	priceFeed, err := feed.New(logger, cfg.FeedOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, priceFeed.Start(ctx))
	defer priceFeed.Stop()

	require.NoError(t, priceFeed.WaitHealthy(ctx, 60*time.Second))

	report := priceFeed.GetReport()
	require.NotNil(t, report)

	apiPrices, err := getCoinMarketCapPrices(ctx, []string{cfg.Asset})
	require.NoError(t, err)

	apiPrice, ok := apiPrices[cfg.Asset]
	require.True(t, ok, "%s API price not found", cfg.Asset)

	cv := util.CalcCoeficientOfVariation([]float64{report.Price, apiPrice})
	if cv > maxCoeficientOfVariation {
		assert.Fail(t, fmt.Sprintf(
			"FAIL %s Feed price: %f, API price: %f, CV: %f > %f",
			cfg.Asset, report.Price, apiPrice, cv, maxCoeficientOfVariation,
		))
	} else {
		t.Logf(
			"PASS %s Feed price: %f, API price: %f, CV: %f < %f",
			cfg.Asset, report.Price, apiPrice, cv, maxCoeficientOfVariation)
	}
}
