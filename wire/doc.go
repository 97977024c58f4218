// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package wire implements the bitcoin wire protocol.

This package is the foundation for communicating with bitcoin peers at the
wire protocol level.  It provides the subset of the protocol a network
crawler needs: the version handshake, address solicitation and relay
(including BIP0155 addrv2 addresses), and keepalives.

# Bitcoin Message Overview

The bitcoin protocol consists of exchanging messages between peers.  Each
message is preceded by a header which identifies information about it such as
which bitcoin network it is a part of, its type, how big it is, and a
checksum to verify validity.  All encoding and decoding of message headers is
handled by this package.

To accomplish this, there is a generic interface for bitcoin messages named
Message which allows messages of any type to be read, written, or passed
around through channels, functions, etc.  In addition, concrete
implementations of most of the currently supported bitcoin messages are
provided.  For these supported messages, all of the details of marshalling
and unmarshalling to and from the wire using bitcoin encoding are handled so
the caller doesn't have to concern themselves with the specifics.

# Reading Messages

In order to unmarshal a bitcoin message from the wire, use the ReadMessage
function.  It accepts any io.Reader, but typically this will be a net.Conn to
a remote node running a bitcoin peer:

	// Reads and validates the next bitcoin message from conn using the
	// protocol version pver and the bitcoin network btcnet.
	msg, err := wire.ReadMessage(conn, pver, btcnet)

For callers that feed bytes from their own event loop instead of blocking on
a reader, the Decoder type provides the same framing and validation
incrementally: write raw bytes with Write and drain completed messages with
Next.

# Writing Messages

In order to marshal a bitcoin message to the wire, use the WriteMessage
function.  It accepts any io.Writer, but typically this will be a net.Conn to
a remote node running a bitcoin peer:

	// Create a new getaddr bitcoin message.
	msg := wire.NewMsgGetAddr()

	// Writes a bitcoin message msg to conn using the protocol version
	// pver, and the bitcoin network btcnet.
	err := wire.WriteMessage(conn, msg, pver, btcnet)

# Errors

Errors returned by this package are of type wire.MessageError and fully
support the standard errors.Is and errors.As functions.  This allows the
caller to differentiate between errors further up the call stack through type
assertions and determine the specific reason for failure by examining the
ErrorKind field.
*/
package wire
