package feed

import (
	"math"
	"sort"
	"time"

	"github.com/pricemesh/pricemesh/feed/types"
	"github.com/pricemesh/pricemesh/util"
)

// aggregate computes one PriceReport from the latest per-venue snapshots:
// staleness filtering, USD/USDT segregation with premium normalization,
// outlier rejection against the pre-reduction median, median reduction and
// confidence statistics. It returns a FeedDegraded error when fewer than
// MinSources venues survive filtering; the caller keeps the prior report.
func aggregate(snapshots []types.Snapshot, nowMs int64, cfg Config) (types.PriceReport, error) {
	// Staleness filter.
	fresh := make([]types.Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.Price > 0 && s.AgeMs(nowMs) < cfg.MaxStalenessMs {
			fresh = append(fresh, s)
		}
	}

	// Segregate by quote unit and derive the USDT premium. With only one
	// side present prices are used raw and no normalization applies.
	var usd, usdt []float64
	for _, s := range fresh {
		if s.Quote == types.QuoteUSD {
			usd = append(usd, s.Price)
		} else {
			usdt = append(usdt, s.Price)
		}
	}

	premiumPct := 0.0
	if len(usd) > 0 && len(usdt) > 0 {
		usdMed := util.CalcMedian(usd)
		usdtMed := util.CalcMedian(usdt)
		premiumPct = (usdtMed - usdMed) / usdMed * 100
	}

	type normalized struct {
		venue types.VenueName
		price float64
	}
	norm := make([]normalized, 0, len(fresh))
	for _, s := range fresh {
		price := s.Price
		if s.Quote == types.QuoteUSDT && premiumPct != 0 {
			price = s.Price / (1 + premiumPct/100)
		}
		norm = append(norm, normalized{venue: s.Venue, price: price})
	}

	// Outlier rejection against the pre-reduction median.
	all := make([]float64, len(norm))
	for i, n := range norm {
		all[i] = n.price
	}
	m0 := util.CalcMedian(all)

	remaining := norm[:0]
	for _, n := range norm {
		if m0 > 0 && math.Abs(n.price-m0)/m0*100 > cfg.MaxDeviationPct {
			continue
		}
		remaining = append(remaining, n)
	}

	if len(remaining) < cfg.MinSources {
		return types.PriceReport{}, types.ErrFeedDegraded(len(remaining), cfg.MinSources)
	}

	prices := make([]float64, len(remaining))
	sources := make([]types.VenueName, len(remaining))
	minPrice, maxPrice := remaining[0].price, remaining[0].price
	for i, n := range remaining {
		prices[i] = n.price
		sources[i] = n.venue
		minPrice = math.Min(minPrice, n.price)
		maxPrice = math.Max(maxPrice, n.price)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	price := util.CalcMedian(prices)
	divergencePct := (maxPrice - minPrice) / price * 100
	spreadPct := 0.0
	if len(prices) >= 2 {
		spreadPct = util.CalcSampleStandardDeviation(prices) / price * 100
	}

	report := types.PriceReport{
		Asset:          cfg.Asset,
		Price:          price,
		PriceInt:       types.PriceToInt(price),
		SourcesUsed:    sources,
		SourceCount:    len(sources),
		DivergencePct:  divergencePct,
		SpreadPct:      spreadPct,
		Confidence:     confidence(spreadPct, cfg),
		UsdtPremiumPct: premiumPct,
		GeneratedAtMs:  nowMs,
	}
	report.IntegrityHash = report.ComputeIntegrityHash()
	return report, nil
}

// confidence maps the cross-venue spread into [0.5, 1.0]: full confidence at
// or below the tight band, half at or above the critical band, linear in
// between.
func confidence(spreadPct float64, cfg Config) float64 {
	switch {
	case spreadPct <= cfg.TightSpreadPct:
		return 1.0
	case spreadPct >= cfg.DivergenceCriticalPct:
		return 0.5
	default:
		band := cfg.DivergenceCriticalPct - cfg.TightSpreadPct
		c := 1.0 - (spreadPct-cfg.TightSpreadPct)/band*0.5
		return math.Max(0.5, c)
	}
}

// nowMs is the feed-wide clock, swapped out by tests.
var nowMs = func() int64 {
	return time.Now().UnixMilli()
}
