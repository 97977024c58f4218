// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"fmt"
	"net"
	"time"

	"github.com/btckit/btccrawl/wire"
)

// handshakeState identifies the current state of the handshake transducer.
type handshakeState int

const (
	// stateIdle is the initial state before the local version message has
	// been written.
	stateIdle handshakeState = iota

	// stateSentVersion means the local version message has been written and
	// the peer's version is awaited.
	stateSentVersion

	// stateSentVerack means the local verack has been written.  The peer's
	// version and verack may arrive in either order, so this state persists
	// until both have been observed.
	stateSentVerack

	// stateReady means the version negotiation completed in both
	// directions.
	stateReady

	// stateRequestedAddr means a getaddr has been written and addr or
	// addrv2 responses are awaited.
	stateRequestedAddr

	// stateDone is the successful terminal state.
	stateDone

	// stateFailed is the failed terminal state.
	stateFailed
)

// gossipAddrThreshold is the maximum number of addresses in an unsolicited
// gossip announcement.  Responses to getaddr carry more addresses than this,
// which is how a reply is told apart from routine gossip while waiting in
// stateRequestedAddr.
const gossipAddrThreshold = 10

// handshakeConfig holds the negotiation parameters for a single handshake.
type handshakeConfig struct {
	// pver is the protocol version to advertise.
	pver uint32

	// minPver is the minimum acceptable remote protocol version.  Peers
	// below it fail with ErrUnsupported.
	minPver uint32

	// requiredServices are service flags the remote peer must advertise.
	requiredServices wire.ServiceFlag

	// services are the service flags to advertise for the local node.
	services wire.ServiceFlag

	// userAgent is the user agent to advertise.
	userAgent string

	// nonce is the random nonce for the local version message, used by the
	// remote peer to detect connections to self.
	nonce uint64

	// getAddr requests the peer's known addresses once the negotiation
	// completes.  When false the handshake is done at stateReady.
	getAddr bool

	// maxAddrMessages caps how many addr/addrv2 messages are consumed
	// before the harvest is considered complete.
	maxAddrMessages int
}

// handshake is a pure state transducer for the bitcoin version negotiation
// and address harvest.  It performs no I/O: callers write the messages
// returned by messagesToSend, acknowledge completed writes with
// sendCompleted, and feed every received message to receive.  The session
// owns all timeouts and reports their expiry via timeout.
//
// The transducer never retries.  Any failure is terminal and retry policy
// belongs entirely to the caller.
type handshake struct {
	cfg   handshakeConfig
	state handshakeState
	phase Phase

	// sendq accumulates messages the caller must write.
	sendq []wire.Message

	sentVersion bool
	sentVerack  bool
	gotVersion  bool
	gotVerack   bool

	// remote holds the peer's version message once received.
	remote *wire.MsgVersion

	// addrs accumulates harvested addresses, normalized to the BIP0155
	// form.  addrMsgs counts addr/addrv2 messages consumed and unknownMsgs
	// counts messages with unrecognized commands.
	addrs       []wire.NetAddressV2
	addrMsgs    int
	unknownMsgs int

	// err is set when the transducer enters stateFailed.
	err *Error
}

// newHandshake returns a handshake transducer with the local version message
// queued for sending.
func newHandshake(cfg handshakeConfig) *handshake {
	ver := &wire.MsgVersion{
		ProtocolVersion: int32(cfg.pver),
		Services:        cfg.services,
		Timestamp:       time.Unix(time.Now().Unix(), 0),
		Nonce:           cfg.nonce,
		UserAgent:       cfg.userAgent,
	}

	return &handshake{
		cfg:   cfg,
		state: stateIdle,
		phase: PhaseVersionSend,
		sendq: []wire.Message{ver},
	}
}

// pendingSend returns whether any outbound messages are queued.
func (hs *handshake) pendingSend() bool {
	return len(hs.sendq) > 0
}

// messagesToSend returns the queued outbound messages and clears the queue.
func (hs *handshake) messagesToSend() []wire.Message {
	msgs := hs.sendq
	hs.sendq = nil
	return msgs
}

// sendCompleted signals that all messages previously returned by
// messagesToSend were written successfully and advances the state machine
// accordingly.
func (hs *handshake) sendCompleted() {
	if hs.done() {
		return
	}

	switch hs.state {
	case stateIdle:
		hs.sentVersion = true
		hs.state = stateSentVersion
		hs.phase = PhaseVersionRecv

	case stateSentVersion:
		// The verack queued upon receiving the peer's version was
		// written.
		if hs.gotVersion {
			hs.sentVerack = true
			hs.state = stateSentVerack
			hs.phase = PhaseVerackRecv
			hs.maybeReady()
		}

	case stateReady:
		if hs.cfg.getAddr {
			hs.state = stateRequestedAddr
			hs.phase = PhaseAddrRecv
		}
	}
}

// receive processes a message from the peer and advances the state machine.
// The returned error, if any, is terminal.
func (hs *handshake) receive(msg wire.Message) *Error {
	if hs.done() {
		return hs.err
	}

	switch msg := msg.(type) {
	case *wire.MsgVersion:
		return hs.receiveVersion(msg)

	case *wire.MsgVerAck:
		if hs.gotVerack {
			return hs.fail(hs.phase, ErrProtocolViolation,
				"duplicate verack")
		}
		hs.gotVerack = true
		hs.maybeReady()
		return nil

	case *wire.MsgSendAddrV2:
		// BIP0155 signaling between version and verack.  Nothing to
		// track since both addr and addrv2 responses are accepted
		// regardless.
		return nil

	case *wire.MsgPing:
		// Answer keepalives in any state so a slow address harvest is
		// not cut short by the remote peer.
		hs.sendq = append(hs.sendq, wire.NewMsgPong(msg.Nonce))
		return nil

	case *wire.MsgPong:
		return nil

	case *wire.MsgAddr:
		count := len(msg.AddrList)
		for _, na := range msg.AddrList {
			hs.addrs = append(hs.addrs, legacyToV2(na))
		}
		return hs.receivedAddrMsg(count)

	case *wire.MsgAddrV2:
		count := len(msg.AddrList)
		hs.addrs = append(hs.addrs, msg.AddrList...)
		return hs.receivedAddrMsg(count)

	case *wire.MsgUnknown:
		// Ignore commands this package does not interpret rather than
		// treating them as a protocol violation.  A crawler talks to
		// many implementations and protocol extensions are common.
		hs.unknownMsgs++
		return nil

	default:
		return hs.fail(hs.phase, ErrProtocolViolation,
			fmt.Sprintf("unexpected %s message in state %d",
				msg.Command(), hs.state))
	}
}

// receiveVersion validates the peer's version message against the configured
// minimums and advances the negotiation.
func (hs *handshake) receiveVersion(msg *wire.MsgVersion) *Error {
	if hs.gotVersion {
		return hs.fail(PhaseVersionRecv, ErrProtocolViolation,
			"duplicate version message")
	}
	if msg.ProtocolVersion < int32(hs.cfg.minPver) {
		return hs.fail(PhaseVersionRecv, ErrUnsupported,
			fmt.Sprintf("protocol version must be %d or greater",
				hs.cfg.minPver))
	}
	if !msg.HasService(hs.cfg.requiredServices) {
		return hs.fail(PhaseVersionRecv, ErrUnsupported,
			fmt.Sprintf("required services %v, peer advertises %v",
				hs.cfg.requiredServices, msg.Services))
	}

	hs.gotVersion = true
	hs.remote = msg

	// Queue the BIP0155 signal and the verack.  sendaddrv2 must be sent
	// between version and verack per BIP0155.
	if !hs.sentVerack {
		hs.sendq = append(hs.sendq, wire.NewMsgSendAddrV2(),
			wire.NewMsgVerAck())
	}
	hs.maybeReady()
	return nil
}

// receivedAddrMsg accounts for one received addr or addrv2 message carrying
// count addresses and decides whether the harvest is complete.
func (hs *handshake) receivedAddrMsg(count int) *Error {
	if hs.state != stateRequestedAddr {
		// Unsolicited address gossip ahead of the negotiation
		// completing is a violation; small announcements after Ready
		// are normal and already collected above.
		if hs.state != stateReady && hs.state != stateSentVerack {
			return hs.fail(hs.phase, ErrProtocolViolation,
				"address message before version negotiation")
		}
		return nil
	}

	hs.addrMsgs++

	// A reply to getaddr carries substantially more addresses than routine
	// gossip, so a large message means the peer has answered.  Smaller
	// messages accumulate until the message cap or the caller's idle
	// timeout ends the harvest.
	if count > gossipAddrThreshold || hs.addrMsgs >= hs.cfg.maxAddrMessages {
		hs.state = stateDone
	}
	return nil
}

// timeout signals that the caller's per-phase deadline expired.  While
// waiting for addresses this is a success since an honest peer may have none
// to share; in any other state it is a terminal timeout failure.
func (hs *handshake) timeout() *Error {
	if hs.done() {
		return hs.err
	}
	if hs.state == stateRequestedAddr {
		hs.state = stateDone
		return nil
	}
	return hs.fail(hs.phase, ErrTimeout,
		fmt.Sprintf("no response in phase %v", hs.phase))
}

// maybeReady promotes the handshake once the version and verack have been
// both sent and observed, queueing the address request when configured.
func (hs *handshake) maybeReady() {
	if !hs.sentVersion || !hs.sentVerack || !hs.gotVersion || !hs.gotVerack {
		return
	}
	hs.state = stateReady
	if hs.cfg.getAddr {
		hs.sendq = append(hs.sendq, wire.NewMsgGetAddr())
		hs.phase = PhaseAddrRecv
		return
	}
	hs.state = stateDone
}

// fail transitions the transducer to the failed terminal state.
func (hs *handshake) fail(phase Phase, kind ErrorKind, desc string) *Error {
	hs.state = stateFailed
	hs.err = sessionError(phase, kind, desc)
	return hs.err
}

// done returns whether the transducer has reached a terminal state.
func (hs *handshake) done() bool {
	return hs.state == stateDone || hs.state == stateFailed
}

// succeeded returns whether the transducer terminated successfully.
func (hs *handshake) succeeded() bool {
	return hs.state == stateDone
}

// legacyToV2 converts a legacy addr message entry to the BIP0155 form.
func legacyToV2(na *wire.NetAddress) wire.NetAddressV2 {
	addrType := wire.IPv6Address
	addrBytes := na.IP.To16()
	if ip4 := na.IP.To4(); ip4 != nil {
		addrType = wire.IPv4Address
		addrBytes = ip4
	}
	if addrBytes == nil {
		addrBytes = make(net.IP, 16)
	}
	return wire.NetAddressV2{
		Timestamp: na.Timestamp,
		Services:  na.Services,
		Type:      addrType,
		Addr:      addrBytes,
		Port:      na.Port,
	}
}
