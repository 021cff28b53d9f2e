package v1

import (
	"github.com/pricemesh/pricemesh/feed"
	"github.com/pricemesh/pricemesh/feed/types"
)

// Feed defines the price feed interface contract that the v1 router depends on.
type Feed interface {
	Asset() string
	GetReport() *types.PriceReport
	GetOracleSignal() (feed.OracleSignal, bool)
	FeedStats() []types.VenueStats
}
