package types

// FeedStatus is the lifecycle state of a venue feed runner.
type FeedStatus uint8

const (
	StatusIdle FeedStatus = iota
	StatusConnecting
	StatusSubscribing
	StatusStreaming
	StatusBackoff
	StatusStopped
)

// String implements the Stringer interface.
func (s FeedStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusSubscribing:
		return "subscribing"
	case StatusStreaming:
		return "streaming"
	case StatusBackoff:
		return "backoff"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// VenueStats is a point-in-time health row for one venue feed, as exposed by
// the facade's FeedStats.
type VenueStats struct {
	Venue            VenueName `json:"venue"`
	Status           string    `json:"status"`
	Connected        bool      `json:"connected"`
	LastPrice        float64   `json:"last_price"`
	AgeMs            int64     `json:"age_ms"`
	MessageCount     uint64    `json:"message_count"`
	ErrorCount       uint64    `json:"error_count"`
	ReconnectCount   uint64    `json:"reconnect_count"`
	CurrentBackoffMs int64     `json:"current_backoff_ms"`
}

// IsHealthy reports whether the venue is connected and its last snapshot is
// fresh enough to contribute to aggregation.
func (vs VenueStats) IsHealthy(maxStalenessMs int64) bool {
	return vs.Connected && vs.LastPrice > 0 && vs.AgeMs < maxStalenessMs
}
