// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MessageHeaderSize is the number of bytes in a bitcoin message header.
// Bitcoin network (magic) 4 bytes + command 12 bytes + payload length 4
// bytes + checksum 4 bytes.
const MessageHeaderSize = 24

// CommandSize is the fixed size of all commands in the common bitcoin
// message header.  Shorter commands must be zero padded.
const CommandSize = 12

// MaxMessagePayload is the maximum bytes a message can be regardless of
// other individual limits imposed by messages themselves.
const MaxMessagePayload = (1024 * 1024 * 32) // 32MB

// Commands used in message headers which describe the type of message.
const (
	CmdVersion    = "version"
	CmdVerAck     = "verack"
	CmdGetAddr    = "getaddr"
	CmdAddr       = "addr"
	CmdAddrV2     = "addrv2"
	CmdSendAddrV2 = "sendaddrv2"
	CmdPing       = "ping"
	CmdPong       = "pong"
)

// Message is an interface that describes a bitcoin message.  A type that
// implements Message has complete control over the representation of its
// data and may therefore contain additional or fewer fields than those which
// are used directly in the protocol encoded message.
type Message interface {
	BtcDecode(io.Reader, uint32) error
	BtcEncode(io.Writer, uint32) error
	Command() string
	MaxPayloadLength(uint32) uint32
}

// makeEmptyMessage creates a message of the appropriate concrete type based
// on the command.  Commands this package does not implement produce a
// MsgUnknown so callers can ignore or count them without aborting the
// stream.
func makeEmptyMessage(command string) Message {
	var msg Message
	switch command {
	case CmdVersion:
		msg = &MsgVersion{}

	case CmdVerAck:
		msg = &MsgVerAck{}

	case CmdGetAddr:
		msg = &MsgGetAddr{}

	case CmdAddr:
		msg = &MsgAddr{}

	case CmdAddrV2:
		msg = &MsgAddrV2{}

	case CmdSendAddrV2:
		msg = &MsgSendAddrV2{}

	case CmdPing:
		msg = &MsgPing{}

	case CmdPong:
		msg = &MsgPong{}

	default:
		msg = &MsgUnknown{Cmd: command}
	}
	return msg
}

// messageHeader defines the header structure for all bitcoin protocol
// messages.
type messageHeader struct {
	magic    BitcoinNet // 4 bytes
	command  string     // 12 bytes
	length   uint32     // 4 bytes
	checksum [4]byte    // 4 bytes
}

// checkMessageHeader performs the validation of a message header that does
// not depend on the payload bytes: the network magic, the command string
// format, and the declared payload length against both the global and the
// per-command caps.  Notably it runs BEFORE any payload sized allocation so
// a malicious peer cannot exhaust memory with a bogus declared length.
func checkMessageHeader(op string, hdr *messageHeader, pver uint32, btcnet BitcoinNet) (Message, error) {
	// Enforce maximum message payload.
	if hdr.length > MaxMessagePayload {
		msg := fmt.Sprintf("message payload is too large - header "+
			"indicates %d bytes, but max message payload is %d bytes.",
			hdr.length, MaxMessagePayload)
		return nil, messageError(op, ErrPayloadTooLarge, msg)
	}

	// Check for messages from the wrong bitcoin network.
	if hdr.magic != btcnet {
		msg := fmt.Sprintf("message from other network [%v]", hdr.magic)
		return nil, messageError(op, ErrWrongNetwork, msg)
	}

	// Check for malformed commands.
	command := hdr.command
	if !isStrictAscii(command) {
		msg := fmt.Sprintf("invalid command %v", []byte(command))
		return nil, messageError(op, ErrMalformedCmd, msg)
	}

	// Create struct of appropriate message type based on the command.
	msg := makeEmptyMessage(command)

	// Check for maximum length based on the message type as a malicious
	// peer could otherwise create a well-formed header and set the length
	// to max numbers in order to exhaust the machine's memory.
	mpl := msg.MaxPayloadLength(pver)
	if hdr.length > mpl {
		str := fmt.Sprintf("payload exceeds max length - header "+
			"indicates %v bytes, but max payload size for messages of "+
			"type [%v] is %v.", hdr.length, command, mpl)
		return nil, messageError(op, ErrPayloadTooLarge, str)
	}

	return msg, nil
}

// parseMessageHeader populates a messageHeader from the raw header bytes.
func parseMessageHeader(headerBytes []byte) *messageHeader {
	hr := bytes.NewReader(headerBytes)
	hdr := messageHeader{}
	var command [CommandSize]byte
	readElements(hr, &hdr.magic, &command, &hdr.length, &hdr.checksum)

	// Strip trailing zeros from command string.
	hdr.command = string(bytes.TrimRight(command[:], string(rune(0))))
	return &hdr
}

// readMessageHeader reads a bitcoin message header from r.
func readMessageHeader(r io.Reader) (int, *messageHeader, error) {
	// Since readElements doesn't return the amount of bytes read, attempt
	// to read the entire header into a buffer first in case there is a
	// short read so the proper amount of read bytes are known.  This works
	// since the header is a fixed size.
	var headerBytes [MessageHeaderSize]byte
	n, err := io.ReadFull(r, headerBytes[:])
	if err != nil {
		return n, nil, err
	}

	return n, parseMessageHeader(headerBytes[:]), nil
}

// checkMessagePayload verifies the payload bytes against the checksum the
// header declared.
func checkMessagePayload(op string, hdr *messageHeader, payload []byte) error {
	checksum := chainhash.DoubleHashB(payload)[0:4]
	if !bytes.Equal(checksum, hdr.checksum[:]) {
		msg := fmt.Sprintf("payload checksum failed - header indicates %v, "+
			"but actual checksum is %v.", hdr.checksum, checksum)
		return messageError(op, ErrPayloadChecksum, msg)
	}
	return nil
}

// WriteMessageN writes a bitcoin Message to w including the necessary header
// information and returns the number of bytes written.  This function is the
// same as WriteMessage except it also returns the number of bytes written.
func WriteMessageN(w io.Writer, msg Message, pver uint32, btcnet BitcoinNet) (int, error) {
	const op = "WriteMessage"
	totalBytes := 0

	var elems struct {
		btcnet   BitcoinNet
		command  [CommandSize]byte
		lenp     uint32
		checksum [4]byte
	}
	elems.btcnet = btcnet

	// Enforce max command size.
	cmd := msg.Command()
	if len(cmd) > CommandSize {
		msg := fmt.Sprintf("command [%s] is too long [max %v]", cmd, CommandSize)
		return totalBytes, messageError(op, ErrCmdTooLong, msg)
	}
	copy(elems.command[:], []byte(cmd))

	// Encode the message payload.
	var bw bytes.Buffer
	err := msg.BtcEncode(&bw, pver)
	if err != nil {
		return totalBytes, err
	}
	payload := bw.Bytes()

	// Enforce maximum overall message payload.
	if len(payload) > MaxMessagePayload {
		msg := fmt.Sprintf("message payload is too large - encoded "+
			"%d bytes, but maximum message payload is %d bytes",
			len(payload), MaxMessagePayload)
		return totalBytes, messageError(op, ErrPayloadTooLarge, msg)
	}
	elems.lenp = uint32(len(payload))

	// Enforce maximum message payload based on the message type.
	mpl := msg.MaxPayloadLength(pver)
	if elems.lenp > mpl {
		str := fmt.Sprintf("message payload is too large - encoded "+
			"%d bytes, but maximum message payload size for "+
			"messages of type [%s] is %d.", elems.lenp, cmd, mpl)
		return totalBytes, messageError(op, ErrPayloadTooLarge, str)
	}

	// Encode the header for the message.  This is done to a buffer rather
	// than directly to the writer since writeElements doesn't return the
	// number of bytes written.
	cksum := chainhash.DoubleHashB(payload)
	copy(elems.checksum[:], cksum[0:4])
	var buf [MessageHeaderSize]byte
	hw := bytes.NewBuffer(buf[:0])
	writeElements(hw, &elems.btcnet, &elems.command, &elems.lenp, &elems.checksum)

	// Write header.
	n, err := w.Write(hw.Bytes())
	totalBytes += n
	if err != nil {
		return totalBytes, err
	}

	// Write payload.
	n, err = w.Write(payload)
	totalBytes += n
	return totalBytes, err
}

// WriteMessage writes a bitcoin Message to w including the necessary header
// information.  This function is the same as WriteMessageN except it doesn't
// return the number of bytes written.
func WriteMessage(w io.Writer, msg Message, pver uint32, btcnet BitcoinNet) error {
	_, err := WriteMessageN(w, msg, pver, btcnet)
	return err
}

// ReadMessageN reads, validates, and parses the next bitcoin Message from r
// for the provided protocol version and bitcoin network.  It returns the
// number of bytes read in addition to the parsed Message and raw bytes which
// comprise the message.  This function is the same as ReadMessage except it
// also returns the number of bytes read.
func ReadMessageN(r io.Reader, pver uint32, btcnet BitcoinNet) (int, Message, []byte, error) {
	const op = "ReadMessage"
	totalBytes := 0
	n, hdr, err := readMessageHeader(r)
	totalBytes += n
	if err != nil {
		return totalBytes, nil, nil, err
	}

	msg, err := checkMessageHeader(op, hdr, pver, btcnet)
	if err != nil {
		return totalBytes, nil, nil, err
	}

	// Read payload.
	payload := make([]byte, hdr.length)
	n, err = io.ReadFull(r, payload)
	totalBytes += n
	if err != nil {
		return totalBytes, nil, nil, err
	}

	// Test checksum.
	err = checkMessagePayload(op, hdr, payload)
	if err != nil {
		return totalBytes, nil, nil, err
	}

	// Unmarshal message.
	pr := bytes.NewBuffer(payload)
	err = msg.BtcDecode(pr, pver)
	if err != nil {
		return totalBytes, nil, nil, err
	}

	return totalBytes, msg, payload, nil
}

// ReadMessage reads, validates, and parses the next bitcoin Message from r
// for the provided protocol version and bitcoin network.  It returns the
// parsed Message and raw bytes which comprise the message.
func ReadMessage(r io.Reader, pver uint32, btcnet BitcoinNet) (Message, []byte, error) {
	_, msg, buf, err := ReadMessageN(r, pver, btcnet)
	return msg, buf, err
}
