package types

import (
	"errors"
	"fmt"
)

// ModuleName is prefixed on feed error strings.
const ModuleName = "pricemesh"

// ErrorClass partitions feed errors by their recovery policy.
type ErrorClass uint8

const (
	// TransientNetwork covers dial timeouts, read errors, socket closes and
	// missed pings. Recovered locally with backoff, never surfaced to the
	// facade.
	TransientNetwork ErrorClass = iota + 1

	// ProtocolParse covers malformed JSON or schema-violating venue frames.
	// Counted and dropped without disturbing the connection.
	ProtocolParse

	// FeedDegraded signals fewer live venues than the publish minimum. No new
	// report is published while it holds.
	FeedDegraded

	// ConfigInvalid rejects a feed configuration before any I/O happens.
	ConfigInvalid

	// PermanentVenue marks venue-side rejections no retry can clear, such as
	// an HTTP 451 legal block.
	PermanentVenue
)

// String implements the Stringer interface.
func (c ErrorClass) String() string {
	switch c {
	case TransientNetwork:
		return "transient_network"
	case ProtocolParse:
		return "protocol_parse"
	case FeedDegraded:
		return "feed_degraded"
	case ConfigInvalid:
		return "config_invalid"
	case PermanentVenue:
		return "permanent_venue"
	default:
		return "unclassified"
	}
}

// FeedError is the typed error returned by feed components. Its class is
// recoverable with errors.As or ClassOf.
type FeedError struct {
	Class ErrorClass
	Venue VenueName
	Op    string
	Err   error
}

func (e *FeedError) Error() string {
	msg := ModuleName + ": " + e.Op
	if e.Venue != "" {
		msg = fmt.Sprintf("%s: %s %s", ModuleName, e.Venue, e.Op)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// ClassOf extracts the ErrorClass from err, or zero when err carries none.
func ClassOf(err error) ErrorClass {
	var fe *FeedError
	if errors.As(err, &fe) {
		return fe.Class
	}
	return 0
}

// ErrWebsocketDial reports a failure connecting to a venue websocket.
func ErrWebsocketDial(venue VenueName, err error) error {
	return &FeedError{Class: TransientNetwork, Venue: venue, Op: "websocket dial", Err: err}
}

// ErrWebsocketSend reports a failure sending a message to a venue websocket.
func ErrWebsocketSend(venue VenueName, err error) error {
	return &FeedError{Class: TransientNetwork, Venue: venue, Op: "websocket send", Err: err}
}

// ErrWebsocketRead reports a failure reading a message from a venue websocket.
func ErrWebsocketRead(venue VenueName, err error) error {
	return &FeedError{Class: TransientNetwork, Venue: venue, Op: "websocket read", Err: err}
}

// ErrWebsocketClose reports a failure closing a venue websocket.
func ErrWebsocketClose(venue VenueName, err error) error {
	return &FeedError{Class: TransientNetwork, Venue: venue, Op: "websocket close", Err: err}
}

// ErrPreflight reports a failure in a venue's REST preflight.
func ErrPreflight(venue VenueName, err error) error {
	return &FeedError{Class: TransientNetwork, Venue: venue, Op: "preflight", Err: err}
}

// ErrTickerParse reports a malformed or schema-violating ticker frame.
func ErrTickerParse(venue VenueName, err error) error {
	return &FeedError{Class: ProtocolParse, Venue: venue, Op: "ticker parse", Err: err}
}

// ErrFeedDegraded reports that too few venues survived filtering to publish.
func ErrFeedDegraded(live, minimum int) error {
	return &FeedError{
		Class: FeedDegraded,
		Op:    fmt.Sprintf("%d live sources below minimum %d", live, minimum),
	}
}

// ErrConfigInvalid rejects an invalid feed configuration.
func ErrConfigInvalid(reason string) error {
	return &FeedError{Class: ConfigInvalid, Op: reason}
}

// ErrVenueBlocked reports a venue-side permanent rejection.
func ErrVenueBlocked(venue VenueName, status string) error {
	return &FeedError{Class: PermanentVenue, Venue: venue, Op: "blocked: " + status}
}
