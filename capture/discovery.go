package capture

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	gammaAPI = "https://gamma-api.polymarket.com"

	discoveryTimeout = 3 * time.Second
)

// Timeframes maps the supported market window labels to their length in
// seconds.
var Timeframes = map[string]int64{
	"5m":  300,
	"15m": 900,
	"1hr": 3600,
}

// assetFullNames maps tickers to the long names used in hourly slugs.
var assetFullNames = map[string]string{
	"btc": "bitcoin",
	"eth": "ethereum",
	"sol": "solana",
	"xrp": "xrp",
}

var monthNames = []string{
	"", "january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// Hourly slugs carry the window hour in eastern time; the venue uses a fixed
// EST offset rather than tracking daylight saving.
var easternOffset = time.FixedZone("EST", -5*60*60)

type (
	// Market is one Polymarket up/down prediction market window.
	Market struct {
		Slug           string
		Asset          string
		Timeframe      string
		StartTimestamp int64
		UpToken        string
		DownToken      string
		UpPrice        float64
		DownPrice      float64
		Volume         float64
		Liquidity      float64
	}

	// Discovery resolves the active market window for an asset/timeframe via
	// the Gamma REST API. Lookups are rate limited and cached per slug, since
	// token IDs never change within a window.
	Discovery struct {
		logger  zerolog.Logger
		baseURL string
		client  *http.Client
		limiter *rate.Limiter

		mtx   sync.Mutex
		cache map[string]*Market
	}

	gammaEvent struct {
		Markets []gammaMarket `json:"markets"`
	}

	// gammaMarket mirrors the Gamma payload. The array fields are sometimes
	// returned as JSON-encoded strings, hence the flex types.
	gammaMarket struct {
		ClobTokenIds  flexStrings `json:"clobTokenIds"`
		Outcomes      flexStrings `json:"outcomes"`
		OutcomePrices flexStrings `json:"outcomePrices"`
		Volume        flexFloat   `json:"volume"`
		Liquidity     flexFloat   `json:"liquidity"`
	}

	// flexStrings decodes either ["a","b"] or "[\"a\",\"b\"]".
	flexStrings []string

	// flexFloat decodes either 12.5 or "12.5".
	flexFloat float64
)

func (f *flexStrings) UnmarshalJSON(bz []byte) error {
	if len(bz) > 0 && bz[0] == '"' {
		var encoded string
		if err := json.Unmarshal(bz, &encoded); err != nil {
			return err
		}
		bz = []byte(encoded)
	}
	return json.Unmarshal(bz, (*[]string)(f))
}

func (f *flexFloat) UnmarshalJSON(bz []byte) error {
	s := strings.Trim(string(bz), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// EndTimestamp returns the market resolution time.
func (m *Market) EndTimestamp() int64 {
	return m.StartTimestamp + Timeframes[m.Timeframe]
}

// TimeRemaining returns seconds until resolution, floored at zero.
func (m *Market) TimeRemaining() float64 {
	remaining := float64(m.EndTimestamp()) - float64(time.Now().UnixMilli())/1000
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsActive reports whether the market has not resolved yet.
func (m *Market) IsActive() bool {
	return m.TimeRemaining() > 0
}

// NewDiscovery creates a Discovery against baseURL, or the production Gamma
// API when empty.
func NewDiscovery(logger zerolog.Logger, baseURL string) *Discovery {
	if baseURL == "" {
		baseURL = gammaAPI
	}
	return &Discovery{
		logger:  logger.With().Str("module", "discovery").Logger(),
		baseURL: baseURL,
		client:  &http.Client{Timeout: discoveryTimeout},
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		cache:   make(map[string]*Market),
	}
}

// BuildSlug assembles the market slug for a window starting at timestamp.
//
// 5m/15m: {asset}-updown-{timeframe}-{timestamp}
// 1hr:    {fullname}-up-or-down-{month}-{day}-{hour}{am|pm}-et
func BuildSlug(asset, timeframe string, timestamp int64) string {
	asset = strings.ToLower(asset)
	if timeframe != "1hr" {
		return fmt.Sprintf("%s-updown-%s-%d", asset, timeframe, timestamp)
	}

	et := time.Unix(timestamp, 0).In(easternOffset)
	hour := et.Hour()
	var hourStr string
	switch {
	case hour == 0:
		hourStr = "12am"
	case hour < 12:
		hourStr = fmt.Sprintf("%dam", hour)
	case hour == 12:
		hourStr = "12pm"
	default:
		hourStr = fmt.Sprintf("%dpm", hour-12)
	}

	fullName, ok := assetFullNames[asset]
	if !ok {
		fullName = asset
	}
	return fmt.Sprintf("%s-up-or-down-%s-%d-%s-et",
		fullName, monthNames[et.Month()], et.Day(), hourStr)
}

// WindowStart returns the start timestamp of the window containing now.
func WindowStart(timeframe string, now int64) int64 {
	interval := Timeframes[timeframe]
	if interval == 0 {
		return now
	}
	return (now / interval) * interval
}

// Market resolves the currently active market for asset/timeframe.
func (d *Discovery) Market(ctx context.Context, asset, timeframe string) (*Market, error) {
	if _, ok := Timeframes[timeframe]; !ok {
		return nil, fmt.Errorf("unsupported timeframe: %s", timeframe)
	}
	startTs := WindowStart(timeframe, time.Now().Unix())
	return d.marketAt(ctx, asset, timeframe, startTs)
}

// NextMarket resolves the market for the window after the current one, used
// to pre-resolve tokens before a rollover.
func (d *Discovery) NextMarket(ctx context.Context, asset, timeframe string) (*Market, error) {
	if _, ok := Timeframes[timeframe]; !ok {
		return nil, fmt.Errorf("unsupported timeframe: %s", timeframe)
	}
	startTs := WindowStart(timeframe, time.Now().Unix()) + Timeframes[timeframe]
	return d.marketAt(ctx, asset, timeframe, startTs)
}

// MarketBySlug resolves a market directly by slug, bypassing the window math.
// The result is not cached since the slug carries no timeframe to expire on.
func (d *Discovery) MarketBySlug(ctx context.Context, slug string) (*Market, error) {
	d.mtx.Lock()
	cached, ok := d.cache[slug]
	d.mtx.Unlock()
	if ok {
		return cached, nil
	}
	return d.fetchMarket(ctx, slug)
}

func (d *Discovery) marketAt(ctx context.Context, asset, timeframe string, startTs int64) (*Market, error) {
	asset = strings.ToLower(asset)
	slug := BuildSlug(asset, timeframe, startTs)

	d.mtx.Lock()
	cached, ok := d.cache[slug]
	d.mtx.Unlock()
	if ok {
		return cached, nil
	}

	market, err := d.fetchMarket(ctx, slug)
	if err != nil {
		return nil, err
	}
	market.Asset = asset
	market.Timeframe = timeframe
	market.StartTimestamp = startTs

	d.mtx.Lock()
	d.cache[slug] = market
	// drop resolved windows while we hold the lock
	for s, m := range d.cache {
		if !m.IsActive() && s != slug {
			delete(d.cache, s)
		}
	}
	d.mtx.Unlock()

	return market, nil
}

func (d *Discovery) fetchMarket(ctx context.Context, slug string) (*Market, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/events?slug="+slug, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gamma returned status %d for %s", resp.StatusCode, slug)
	}

	var events []gammaEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, err
	}
	if len(events) == 0 || len(events[0].Markets) == 0 {
		return nil, fmt.Errorf("no market found for %s", slug)
	}

	gm := events[0].Markets[0]
	if len(gm.ClobTokenIds) < 2 || len(gm.Outcomes) < 2 {
		return nil, fmt.Errorf("market %s missing outcome tokens", slug)
	}

	market := &Market{
		Slug:      slug,
		Volume:    float64(gm.Volume),
		Liquidity: float64(gm.Liquidity),
	}
	for i, outcome := range gm.Outcomes {
		var price float64
		if i < len(gm.OutcomePrices) {
			price, _ = strconv.ParseFloat(gm.OutcomePrices[i], 64)
		}
		switch strings.ToUpper(outcome) {
		case "UP":
			market.UpToken = gm.ClobTokenIds[i]
			market.UpPrice = price
		case "DOWN":
			market.DownToken = gm.ClobTokenIds[i]
			market.DownPrice = price
		}
	}
	if market.UpToken == "" || market.DownToken == "" {
		return nil, fmt.Errorf("market %s missing up/down tokens", slug)
	}

	return market, nil
}
