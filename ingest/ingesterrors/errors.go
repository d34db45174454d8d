// Package ingesterrors defines the error taxonomy for feed ingestion and
// stream transformers for observing and reshaping errors in flight.
//
// The taxonomy separates the two failure classes the session controller
// must treat differently: transport failures are terminal for a session,
// while parse and protocol problems are recovered per line and the feed
// continues.
package ingesterrors

import (
	"errors"
	"fmt"
)

// TransportError reports a connection-level failure: the request could
// not be made, the response had a non-success status, or the body failed
// mid-stream. It is terminal for the session that observed it.
type TransportError struct {
	URL        string
	StatusCode int // zero when the failure happened before a response
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed transport: %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("feed transport: %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a line that is not valid JSON. It carries the
// offending text so callers can surface or log it. Non-terminal.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("feed parse: %v: %q", e.Err, e.Line)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ProtocolError reports a record that parsed as JSON but carries an
// unrecognized or missing discriminant. Non-terminal and excluded from
// progress accounting.
type ProtocolError struct {
	Type string // the unrecognized discriminant; empty when missing
}

func (e *ProtocolError) Error() string {
	if e.Type == "" {
		return "feed protocol: record has no type field"
	}
	return fmt.Sprintf("feed protocol: unrecognized record type %q", e.Type)
}

// FeedError reports a problem the feed itself announced via an error
// record. Non-terminal from the controller's perspective.
type FeedError struct {
	Message string
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed reported: %s", e.Message)
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsParse reports whether err is (or wraps) a ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsProtocol reports whether err is (or wraps) a ProtocolError.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
