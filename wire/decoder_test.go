// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"errors"
	"testing"
)

// TestDecoderIncremental ensures the incremental decoder produces the same
// messages as the blocking reader when the frame bytes arrive one at a time.
func TestDecoderIncremental(t *testing.T) {
	pver := ProtocolVersion
	btcnet := MainNet

	// Encode a couple of messages back to back into a single stream.
	var stream bytes.Buffer
	err := WriteMessage(&stream, NewMsgPing(0xdeadbeef), pver, btcnet)
	if err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	err = WriteMessage(&stream, NewMsgGetAddr(), pver, btcnet)
	if err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	d := NewDecoder(pver, btcnet)

	// Before any bytes arrive a full header is needed.
	if needed := d.Needed(); needed != MessageHeaderSize {
		t.Fatalf("Needed: got %d, want %d", needed, MessageHeaderSize)
	}

	// Feed the stream one byte at a time and collect any messages that
	// complete along the way.
	var got []Message
	for _, b := range stream.Bytes() {
		if _, err := d.Write([]byte{b}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		msg, err := d.Next()
		if err != nil {
			if errors.Is(err, ErrNeedMoreData) {
				continue
			}
			t.Fatalf("Next: %v", err)
		}
		got = append(got, msg)
	}

	if len(got) != 2 {
		t.Fatalf("decoded %d messages, want 2", len(got))
	}
	ping, ok := got[0].(*MsgPing)
	if !ok {
		t.Fatalf("message 0 wrong type %T", got[0])
	}
	if ping.Nonce != 0xdeadbeef {
		t.Fatalf("ping nonce: got %x, want %x", ping.Nonce, 0xdeadbeef)
	}
	if _, ok := got[1].(*MsgGetAddr); !ok {
		t.Fatalf("message 1 wrong type %T", got[1])
	}

	// The stream is drained, so the decoder needs a full header again.
	if _, err := d.Next(); !errors.Is(err, ErrNeedMoreData) {
		t.Fatalf("Next after drain: %v", err)
	}
	if needed := d.Needed(); needed != MessageHeaderSize {
		t.Fatalf("Needed after drain: got %d, want %d", needed,
			MessageHeaderSize)
	}
}

// TestDecoderNeeded ensures the byte count hint tracks the header and payload
// phases of the frame being decoded.
func TestDecoderNeeded(t *testing.T) {
	pver := ProtocolVersion
	btcnet := MainNet

	var stream bytes.Buffer
	err := WriteMessage(&stream, NewMsgPing(1), pver, btcnet)
	if err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	frame := stream.Bytes()

	d := NewDecoder(pver, btcnet)

	// Feed half of the header.
	d.Write(frame[:10])
	if needed := d.Needed(); needed != MessageHeaderSize-10 {
		t.Fatalf("Needed mid-header: got %d, want %d", needed,
			MessageHeaderSize-10)
	}
	if _, err := d.Next(); !errors.Is(err, ErrNeedMoreData) {
		t.Fatalf("Next mid-header: %v", err)
	}

	// Feed the rest of the header.  The ping payload is the 8 byte nonce.
	d.Write(frame[10:MessageHeaderSize])
	if _, err := d.Next(); !errors.Is(err, ErrNeedMoreData) {
		t.Fatalf("Next after header: %v", err)
	}
	if needed := d.Needed(); needed != 8 {
		t.Fatalf("Needed after header: got %d, want 8", needed)
	}

	// Feed the payload.
	d.Write(frame[MessageHeaderSize:])
	if needed := d.Needed(); needed != 0 {
		t.Fatalf("Needed with full frame: got %d, want 0", needed)
	}
	if _, err := d.Next(); err != nil {
		t.Fatalf("Next with full frame: %v", err)
	}
}

// TestDecoderFatalErrors ensures frame level errors are latched so all
// subsequent calls fail without consuming further bytes.
func TestDecoderFatalErrors(t *testing.T) {
	pver := ProtocolVersion
	btcnet := MainNet

	tests := []struct {
		name string
		hdr  []byte
		err  error
	}{
		{
			"oversized declared payload",
			makeHeader(btcnet, "addr", MaxMessagePayload+1, 0),
			ErrPayloadTooLarge,
		},
		{
			"wrong network",
			makeHeader(TestNet3, "verack", 0, 0),
			ErrWrongNetwork,
		},
		{
			"bad checksum",
			makeHeader(btcnet, "verack", 0, 0),
			ErrPayloadChecksum,
		},
	}

	for _, test := range tests {
		d := NewDecoder(pver, btcnet)
		d.Write(test.hdr)
		if _, err := d.Next(); !errors.Is(err, test.err) {
			t.Errorf("%s: Next error got %v, want %v", test.name, err,
				test.err)
			continue
		}

		// The error must persist even after feeding a valid frame.
		var stream bytes.Buffer
		WriteMessage(&stream, NewMsgGetAddr(), pver, btcnet)
		d.Write(stream.Bytes())
		if _, err := d.Next(); !errors.Is(err, test.err) {
			t.Errorf("%s: latched error got %v, want %v", test.name,
				err, test.err)
		}
	}
}
