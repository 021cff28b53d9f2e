package integration

import (
	"context"
	"fmt"
	"os"

	"github.com/pricemesh/pricemesh/monitor"
)

//lint:ignore U1000 helper function for integration tests
func getCoinMarketCapPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	apiKey := os.Getenv("COINMARKETCAP_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("COINMARKETCAP_API_KEY env var not set")
	}

	client := monitor.NewCoinMarketCapClient(apiKey, "")
	return client.Quotes(ctx, symbols)
}
