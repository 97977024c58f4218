// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

// Phase identifies where in the handshake a session currently is.  It is
// reported alongside failures so callers can tell a peer that refused the
// connection apart from one that hung up mid-negotiation.
type Phase int

// The phases of a crawl session in the order they occur.
const (
	PhaseConnect Phase = iota
	PhaseVersionSend
	PhaseVersionRecv
	PhaseVerackRecv
	PhaseAddrRecv
)

// String returns the Phase as a human-readable name.
func (p Phase) String() string {
	switch p {
	case PhaseConnect:
		return "connect"
	case PhaseVersionSend:
		return "version-send"
	case PhaseVersionRecv:
		return "version-recv"
	case PhaseVerackRecv:
		return "verack-recv"
	case PhaseAddrRecv:
		return "addr-recv"
	}
	return "unknown"
}

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants classify every way a session can fail.  The scheduler's
// retry policy keys off of them: transport and timeout failures are
// transient, protocol violations and unsupported peers are persistent, and
// cancellation is neither.
const (
	// ErrTransport indicates a connect, read, or write against the remote
	// peer failed.
	ErrTransport = ErrorKind("ErrTransport")

	// ErrTimeout indicates a phase or session deadline expired before the
	// peer made the required progress.
	ErrTimeout = ErrorKind("ErrTimeout")

	// ErrProtocolViolation indicates the peer sent a malformed frame, a
	// message with a bad checksum, or a message that is not valid in the
	// current handshake state.
	ErrProtocolViolation = ErrorKind("ErrProtocolViolation")

	// ErrUnsupported indicates the peer advertised a protocol version below
	// the configured minimum or a service bitfield lacking a required
	// capability.
	ErrUnsupported = ErrorKind("ErrUnsupported")

	// ErrCancelled indicates the session was stopped by external request
	// before reaching a natural terminal state.
	ErrCancelled = ErrorKind("ErrCancelled")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a session failure.  It carries the handshake phase the
// failure occurred in along with the underlying error kind.  It has full
// support for errors.Is and errors.As, so the caller can ascertain the
// specific reason for the error by checking the underlying error.
type Error struct {
	Phase       Phase
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// Kind returns the error kind the failure was classified as.
func (e Error) Kind() ErrorKind {
	if kind, ok := e.Err.(ErrorKind); ok {
		return kind
	}
	return ErrTransport
}

// sessionError creates an Error given a set of arguments.
func sessionError(phase Phase, kind ErrorKind, desc string) *Error {
	return &Error{Phase: phase, Err: kind, Description: desc}
}
