// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package frontier

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific Error.
const (
	// ErrUnknownAddressType indicates an address could not be classified
	// as any supported network type.
	ErrUnknownAddressType = ErrorKind("ErrUnknownAddressType")

	// ErrMismatchedAddressType indicates the claimed address type does not
	// match the raw address bytes.
	ErrMismatchedAddressType = ErrorKind("ErrMismatchedAddressType")

	// ErrUnknownEntry indicates an operation referenced a dedup key with
	// no tracked entry.
	ErrUnknownEntry = ErrorKind("ErrUnknownEntry")

	// ErrNotInFlight indicates a success or failure report referenced an
	// entry that was not dispatched.
	ErrNotInFlight = ErrorKind("ErrNotInFlight")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a frontier error.  It has full support for the standard
// errors.Is and errors.As functions.
type Error struct {
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

// makeError creates an Error given a set of arguments.
func makeError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}
