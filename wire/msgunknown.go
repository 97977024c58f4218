// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
)

// MsgUnknown implements the Message interface and represents a message with
// a command this package does not interpret.  The raw payload is retained so
// callers can ignore or count unrecognized traffic without aborting the
// stream, which matters for a crawler talking to peers that may implement
// newer or nonstandard protocol extensions.
type MsgUnknown struct {
	// Cmd is the command string from the message header.
	Cmd string

	// Payload is the raw, uninterpreted message payload.
	Payload []byte
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgUnknown) BtcDecode(r io.Reader, pver uint32) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	msg.Payload = payload
	return nil
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding.
// This is part of the Message interface implementation.
func (msg *MsgUnknown) BtcEncode(w io.Writer, pver uint32) error {
	_, err := w.Write(msg.Payload)
	return err
}

// Command returns the protocol command string for the message.  This is part
// of the Message interface implementation.
func (msg *MsgUnknown) Command() string {
	return msg.Cmd
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.  This is part of the Message interface implementation.
func (msg *MsgUnknown) MaxPayloadLength(pver uint32) uint32 {
	return MaxMessagePayload
}
