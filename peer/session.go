// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/decred/dcrd/crypto/rand"

	"github.com/btckit/btccrawl/wire"
)

const (
	// defaultConnectTimeout is the duration to wait for a connection to be
	// established before giving up.
	defaultConnectTimeout = time.Second * 10

	// defaultPhaseTimeout is the duration to wait for the peer to make
	// progress within a single handshake phase.
	defaultPhaseTimeout = time.Second * 15

	// defaultSessionTimeout is the hard upper bound on a full session
	// regardless of per-phase progress.
	defaultSessionTimeout = time.Minute * 2

	// defaultMaxAddrMessages is the default number of addr/addrv2 messages
	// consumed before the harvest is considered complete.
	defaultMaxAddrMessages = 8

	// maxSessionMessages caps the total number of messages read during one
	// session to bound the damage a flooding peer can do.
	maxSessionMessages = 512
)

// DialFunc is the signature of the transport dialer.  It abstracts the
// underlying connection mechanism so plain TCP and proxied transports such
// as SOCKS5 or Tor are interchangeable.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Config is the configuration for a session.
type Config struct {
	// Dial establishes the transport connection.  This field is required.
	Dial DialFunc

	// Net is the bitcoin network to handshake on.
	Net wire.BitcoinNet

	// ProtocolVersion is the protocol version to advertise.  Defaults to
	// wire.ProtocolVersion when zero.
	ProtocolVersion uint32

	// MinProtocolVersion is the minimum acceptable remote protocol
	// version.  Peers below it fail with ErrUnsupported.  Defaults to
	// wire.RelayVersion when zero.
	MinProtocolVersion uint32

	// RequiredServices are service flags the remote peer must advertise.
	RequiredServices wire.ServiceFlag

	// Services are the service flags to advertise for the local node.
	Services wire.ServiceFlag

	// UserAgent is the user agent to advertise.  Defaults to
	// wire.DefaultUserAgent when empty.
	UserAgent string

	// GetAddr requests the peer's known addresses after the version
	// negotiation completes.
	GetAddr bool

	// MaxAddrMessages caps how many addr/addrv2 messages are consumed per
	// session.  Defaults to defaultMaxAddrMessages when zero.
	MaxAddrMessages int

	// ConnectTimeout, PhaseTimeout, and SessionTimeout bound the connect
	// call, each handshake phase, and the overall session respectively.
	// Each falls back to its package default when zero.
	ConnectTimeout time.Duration
	PhaseTimeout   time.Duration
	SessionTimeout time.Duration
}

// Outcome is the terminal result of one session.  Exactly one Outcome is
// produced per crawled address.  Err is nil if and only if the handshake
// completed, in which case the peer identification fields are populated and
// Addresses holds any harvested addresses.
type Outcome struct {
	// Addr is the address the session dialed.
	Addr string

	// PeerVersion, Services, UserAgent, and LastBlock identify the remote
	// peer as self-reported in its version message.
	PeerVersion int32
	Services    wire.ServiceFlag
	UserAgent   string
	LastBlock   int32

	// Addresses holds the harvested addresses in BIP0155 form.
	Addresses []wire.NetAddressV2

	// Err describes the failure, including the phase it occurred in, or is
	// nil on success.
	Err *Error
}

// Succeeded returns whether the session reached a successful terminal state.
func (o *Outcome) Succeeded() bool {
	return o.Err == nil
}

// Session crawls addresses by dialing them, driving the handshake state
// machine over the connection, and optionally harvesting advertised
// addresses.  A single Session is safe for concurrent use by multiple
// goroutines since all per-connection state lives in Crawl.
type Session struct {
	cfg Config
}

// New returns a session crawler for the provided configuration.
func New(cfg *Config) (*Session, error) {
	if cfg.Dial == nil {
		return nil, errors.New("peer: dial function is required")
	}

	c := *cfg
	if c.ProtocolVersion == 0 {
		c.ProtocolVersion = wire.ProtocolVersion
	}
	if c.MinProtocolVersion == 0 {
		c.MinProtocolVersion = wire.RelayVersion
	}
	if c.UserAgent == "" {
		c.UserAgent = wire.DefaultUserAgent
	}
	if c.MaxAddrMessages == 0 {
		c.MaxAddrMessages = defaultMaxAddrMessages
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.PhaseTimeout == 0 {
		c.PhaseTimeout = defaultPhaseTimeout
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = defaultSessionTimeout
	}
	return &Session{cfg: c}, nil
}

// Crawl dials the provided address, performs the handshake, and returns the
// terminal outcome.  The connection is closed on every exit path.  The
// session stops promptly when the context is cancelled and reports
// ErrCancelled.
func (s *Session) Crawl(ctx context.Context, addr string) *Outcome {
	out := &Outcome{Addr: addr}

	sessCtx, cancel := context.WithTimeout(ctx, s.cfg.SessionTimeout)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(sessCtx, s.cfg.ConnectTimeout)
	conn, err := s.cfg.Dial(dialCtx, "tcp", addr)
	dialCancel()
	if err != nil {
		out.Err = s.classifyDialErr(ctx, err)
		return out
	}
	log.Debugf("Connected to %s", addr)

	// Ensure the connection is released on every exit path and that
	// cancellation or session expiry unblocks any in-progress read or
	// write by closing the connection out from under it.
	defer conn.Close()
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-sessCtx.Done():
			conn.Close()
		case <-watchdogDone:
		}
	}()

	hs := newHandshake(handshakeConfig{
		pver:             s.cfg.ProtocolVersion,
		minPver:          s.cfg.MinProtocolVersion,
		requiredServices: s.cfg.RequiredServices,
		services:         s.cfg.Services,
		userAgent:        s.cfg.UserAgent,
		nonce:            rand.Uint64(),
		getAddr:          s.cfg.GetAddr,
		maxAddrMessages:  s.cfg.MaxAddrMessages,
	})

	var msgsRead int
	for !hs.done() {
		// Flush everything the transducer wants written.  Writing can
		// queue more messages (the verack write completing promotes to
		// Ready which queues the getaddr), so loop until the queue
		// settles.
		for hs.pendingSend() {
			for _, msg := range hs.messagesToSend() {
				conn.SetWriteDeadline(time.Now().Add(s.cfg.PhaseTimeout))
				err := wire.WriteMessage(conn, msg, s.cfg.ProtocolVersion,
					s.cfg.Net)
				if err != nil {
					out.Err = s.classifyErr(ctx, sessCtx, hs.phase, err)
					return out
				}
				log.Tracef("Sent %s to %s%s", msg.Command(), addr,
					summarizeMessage(msg))
			}
			hs.sendCompleted()
		}
		if hs.done() {
			break
		}

		conn.SetReadDeadline(time.Now().Add(s.cfg.PhaseTimeout))
		msg, _, err := wire.ReadMessage(conn, s.cfg.ProtocolVersion, s.cfg.Net)
		if err != nil {
			// A read deadline expiring is a phase timeout, which the
			// transducer resolves: fatal in most phases, but the
			// successful end of the harvest while waiting for
			// addresses.  Cancellation and session expiry also
			// surface as read errors since the watchdog closes the
			// connection.
			if sessCtx.Err() == nil && isTimeoutErr(err) {
				if hsErr := hs.timeout(); hsErr != nil {
					out.Err = hsErr
					return out
				}
				continue
			}
			out.Err = s.classifyErr(ctx, sessCtx, hs.phase, err)
			return out
		}
		log.Tracef("Received %s from %s%s", msg.Command(), addr,
			summarizeMessage(msg))

		msgsRead++
		if msgsRead > maxSessionMessages {
			out.Err = sessionError(hs.phase, ErrProtocolViolation,
				fmt.Sprintf("peer sent more than %d messages",
					maxSessionMessages))
			return out
		}

		if hsErr := hs.receive(msg); hsErr != nil {
			out.Err = hsErr
			return out
		}
	}

	if !hs.succeeded() {
		out.Err = hs.err
		return out
	}

	out.PeerVersion = hs.remote.ProtocolVersion
	out.Services = hs.remote.Services
	out.UserAgent = hs.remote.UserAgent
	out.LastBlock = hs.remote.LastBlock
	out.Addresses = hs.addrs
	log.Debugf("Handshake with %s complete (agent %s, pver %d, %d addrs)",
		addr, out.UserAgent, out.PeerVersion, len(out.Addresses))
	return out
}

// classifyDialErr translates a connect failure into the error taxonomy.
func (s *Session) classifyDialErr(parent context.Context, err error) *Error {
	if parent.Err() != nil {
		return sessionError(PhaseConnect, ErrCancelled, "session cancelled")
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeoutErr(err) {
		return sessionError(PhaseConnect, ErrTimeout,
			fmt.Sprintf("connect timed out: %v", err))
	}
	return sessionError(PhaseConnect, ErrTransport,
		fmt.Sprintf("connect failed: %v", err))
}

// classifyErr translates a read or write failure into the nearest matching
// error kind of the taxonomy.  No unclassified error ever escapes a session.
func (s *Session) classifyErr(parent, sessCtx context.Context, phase Phase,
	err error) *Error {

	// External cancellation wins over whatever error the closed connection
	// produced.
	if parent.Err() != nil {
		return sessionError(phase, ErrCancelled, "session cancelled")
	}

	// The watchdog closed the connection because the overall session
	// deadline expired.
	if errors.Is(sessCtx.Err(), context.DeadlineExceeded) {
		return sessionError(phase, ErrTimeout, "session deadline exceeded")
	}

	// Frame-level failures from the codec are peer defects.
	var msgErr wire.MessageError
	if errors.As(err, &msgErr) {
		return sessionError(phase, ErrProtocolViolation, msgErr.Error())
	}

	if isTimeoutErr(err) {
		return sessionError(phase, ErrTimeout,
			fmt.Sprintf("deadline exceeded in phase %v", phase))
	}

	return sessionError(phase, ErrTransport, err.Error())
}

// isTimeoutErr returns whether the error indicates an expired I/O deadline.
func isTimeoutErr(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
