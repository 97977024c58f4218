// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"errors"
)

// ErrNeedMoreData is returned by Decoder.Next when the bytes fed to the
// decoder so far do not contain a complete message.  Use Decoder.Needed for
// the minimum number of additional bytes required to make progress.
var ErrNeedMoreData = errors.New("need more data")

// Decoder provides incremental decoding of the bitcoin message framing from
// a caller-fed byte buffer.  It is useful when bytes arrive from a
// non-blocking source and a full io.Reader is not available.
//
// Feed bytes with Write and extract messages with Next.  Header and
// checksum validation failures are fatal to the stream: once Next returns a
// *MessageError, the decoder must be discarded along with the connection it
// was fed from.
//
// Decoder is not safe for concurrent access.
type Decoder struct {
	pver   uint32
	btcnet BitcoinNet

	// buf accumulates fed bytes that have not yet been consumed.
	buf bytes.Buffer

	// hdr and msg hold the parsed and validated header of the message
	// currently awaiting its payload, if any.
	hdr *messageHeader
	msg Message

	// err latches a fatal stream error.
	err error
}

// NewDecoder returns a decoder for the provided protocol version and
// network.
func NewDecoder(pver uint32, btcnet BitcoinNet) *Decoder {
	return &Decoder{pver: pver, btcnet: btcnet}
}

// Write feeds bytes to the decoder.  It never fails and always consumes the
// entire slice.  It implements io.Writer so a decoder can be the target of
// io.Copy or a conn read loop.
func (d *Decoder) Write(p []byte) (int, error) {
	return d.buf.Write(p)
}

// Needed returns the minimum number of additional bytes the decoder
// requires before Next can make progress.  It returns 0 when a full message
// may already be buffered.
func (d *Decoder) Needed() int {
	if d.hdr != nil {
		need := int(d.hdr.length) - d.buf.Len()
		if need < 0 {
			return 0
		}
		return need
	}
	need := MessageHeaderSize - d.buf.Len()
	if need < 0 {
		return 0
	}
	return need
}

// Next decodes and returns the next complete message from the buffered
// bytes.  It returns ErrNeedMoreData when the buffer does not yet contain a
// complete message.  Any other error indicates a corrupt frame and is
// permanent: all subsequent calls return the same error.
//
// The declared payload length is validated against the configured caps
// before any payload-sized allocation occurs, so an adversarial length
// field cannot cause memory exhaustion.
func (d *Decoder) Next() (Message, error) {
	const op = "Decoder.Next"
	if d.err != nil {
		return nil, d.err
	}

	// Parse and validate the header once enough bytes are available.
	if d.hdr == nil {
		if d.buf.Len() < MessageHeaderSize {
			return nil, ErrNeedMoreData
		}
		var headerBytes [MessageHeaderSize]byte
		d.buf.Read(headerBytes[:])
		hdr := parseMessageHeader(headerBytes[:])

		msg, err := checkMessageHeader(op, hdr, d.pver, d.btcnet)
		if err != nil {
			d.err = err
			return nil, err
		}
		d.hdr, d.msg = hdr, msg
	}

	if d.buf.Len() < int(d.hdr.length) {
		return nil, ErrNeedMoreData
	}

	payload := make([]byte, d.hdr.length)
	d.buf.Read(payload)
	if err := checkMessagePayload(op, d.hdr, payload); err != nil {
		d.err = err
		return nil, err
	}

	msg := d.msg
	d.hdr, d.msg = nil, nil

	if err := msg.BtcDecode(bytes.NewBuffer(payload), d.pver); err != nil {
		d.err = err
		return nil, err
	}
	return msg, nil
}
