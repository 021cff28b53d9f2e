package types

import "encoding/json"

// VenueName identifies one exchange feed. Usually it is a spot exchange
// but this can be any venue that streams ticker prices.
type VenueName string

// String cast to string.
func (n VenueName) String() string {
	return string(n)
}

// QuoteUnit is the settlement currency of a venue's traded pair.
type QuoteUnit string

const (
	QuoteUSD  QuoteUnit = "USD"
	QuoteUSDT QuoteUnit = "USDT"
)

// CurrencyPair defines a currency exchange pair consisting of a base and a
// quote. We primarily utilize the base for reporting reference prices and use
// the pair for building venue ticker symbols.
type CurrencyPair struct {
	Base  string
	Quote string
}

// String implements the Stringer interface and defines a ticker symbol for
// querying the exchange rate.
func (cp CurrencyPair) String() string {
	return cp.Base + cp.Quote
}

func (cp CurrencyPair) MarshalText() (text []byte, err error) {
	type noMethod CurrencyPair
	return json.Marshal(noMethod(cp))
}

func (cp *CurrencyPair) UnmarshalText(text []byte) error {
	type noMethod CurrencyPair
	return json.Unmarshal(text, (*noMethod)(cp))
}
