// session.go
//
// Session data-plane (C4): per-connection send/receive counters, AEAD
// encrypt/decrypt, replay filtering, keepalive and rekey. A Session
// exclusively owns its key material, counters, and replay state — the
// handshake object hands these off once (see handshake.Result) and never
// touches them again.

package session

import (
	"time"

	"github.com/llp-vpn/llp/crypto"
	"github.com/llp-vpn/llp/wire"
	"github.com/samber/oops"
)

// State is the session lifecycle per §3's session-state table.
type State int

const (
	StateHandshaking State = iota
	StateActive
	StateRekeying
	StateClosed
)

// Config bundles the tunables §6 lists as configuration inputs.
type Config struct {
	ReplayWindowSize     int // informational; window is always 256 bits wide (§4.4)
	MaxTimestampDrift    time.Duration
	KeepaliveInterval    time.Duration
	KeepaliveTimeout     time.Duration
	RekeyPacketThreshold uint64
	SessionLifetime      time.Duration
}

// DefaultConfig mirrors the defaults enumerated in §6.
func DefaultConfig() Config {
	return Config{
		ReplayWindowSize:     256,
		MaxTimestampDrift:    300 * time.Second,
		KeepaliveInterval:    30 * time.Second,
		KeepaliveTimeout:     90 * time.Second,
		RekeyPacketThreshold: 1 << 20,
		SessionLifetime:      time.Hour,
	}
}

// Session is one established LLP connection, after the handshake is done.
type Session struct {
	cfg Config

	sessionID   uint64
	sessionKey  [32]byte
	profileID   uint16
	state       State

	sendCounter       uint64
	recvWindow        ReplayWindow
	lastRxTime        time.Time
	lastTxTime        time.Time
	packetsSinceRekey uint64

	createdAt time.Time

	pendingRekeyNonce [32]byte
	rekeyPending      bool
}

// New constructs a Session from the key material a handshake produced.
func New(sessionID uint64, sessionKey [32]byte, profileID uint16, cfg Config) *Session {
	now := time.Now()
	return &Session{
		cfg:        cfg,
		sessionID:  sessionID,
		sessionKey: sessionKey,
		profileID:  profileID,
		state:      StateActive,
		lastRxTime: now,
		lastTxTime: now,
		createdAt:  now,
	}
}

func (s *Session) SessionID() uint64 { return s.sessionID }
func (s *Session) State() State      { return s.state }
func (s *Session) ProfileID() uint16 { return s.profileID }

// Close zeroizes the session key and the pending rekey nonce and
// transitions to Closed. Safe to call more than once.
func (s *Session) Close() {
	crypto.Zeroize(s.sessionKey[:])
	crypto.Zeroize(s.pendingRekeyNonce[:])
	s.state = StateClosed
}

// Send implements the §4.4 send path: encrypt P under a fresh counter,
// frame it with the header, and report whether a REKEY control record must
// be sent alongside it because the packet threshold was just crossed.
func (s *Session) Send(payload []byte, flags wire.Flags) (record []byte, needsRekey bool, err error) {
	if s.state != StateActive && s.state != StateRekeying {
		return nil, false, oops.Code("state").Errorf("send: session not established (state=%d)", s.state)
	}

	c := s.sendCounter
	if c == ^uint64(0) {
		return nil, false, oops.Code("resource").Errorf("send counter exhausted")
	}
	s.sendCounter++

	header := wire.Header{
		Magic:     wire.Magic,
		Version:   wire.Version,
		Flags:     flags,
		ProfileID: s.profileID,
		SessionID: s.sessionID,
		Counter:   c,
	}
	aad := headerAAD(header)
	nonce := crypto.BuildNonce(c, s.sessionID)
	sealed, err := crypto.AEADSeal(s.sessionKey, nonce, aad, payload)
	if err != nil {
		return nil, false, err
	}

	record = wire.Encode(header, sealed)
	s.lastTxTime = time.Now()

	if flags.Has(wire.FlagData) {
		s.packetsSinceRekey++
		if s.packetsSinceRekey >= s.cfg.RekeyPacketThreshold && s.state == StateActive {
			s.state = StateRekeying
			needsRekey = true
		}
	}
	return record, needsRekey, nil
}

// headerAAD returns the serialized header bytes used as AEAD associated
// data — the wire encoding of a header with no payload attached.
func headerAAD(h wire.Header) []byte {
	return wire.Encode(h, nil)
}

// ReceiveResult reports what a decoded, decrypted record asked the caller
// to do, per the flag dispatch in §4.4 step 6.
type ReceiveResult struct {
	Flags       wire.Flags
	Payload     []byte // meaningful only when Flags.Has(wire.FlagData)
	RekeyReady  bool   // a rekey completed as a result of this record
}

// Receive implements the §4.4 receive path in full: decode, validate
// session/magic/version, replay-check, AEAD-open, commit, dispatch.
func (s *Session) Receive(wireBytes []byte) (ReceiveResult, error) {
	header, payload, err := wire.Decode(wireBytes)
	if err != nil {
		return ReceiveResult{}, err
	}
	if header.SessionID != s.sessionID {
		return ReceiveResult{}, oops.Code("codec").Errorf("session id mismatch")
	}

	window := s.recvWindow
	if !window.Accept(header.Counter) {
		return ReceiveResult{}, oops.Code("replay").Errorf("replayed or too-old counter %d", header.Counter)
	}

	aad := headerAAD(header)
	nonce := crypto.BuildNonce(header.Counter, s.sessionID)
	plaintext, err := crypto.AEADOpen(s.sessionKey, nonce, aad, payload)
	if err != nil {
		return ReceiveResult{}, oops.Code("crypto").Errorf("authentication failed")
	}

	s.recvWindow = window
	s.lastRxTime = time.Now()

	result := ReceiveResult{Flags: header.Flags}
	switch {
	case header.Flags.Has(wire.FlagRekey):
		if err := s.processRekeyRecord(plaintext); err != nil {
			return ReceiveResult{}, err
		}
		result.RekeyReady = true
	case header.Flags.Has(wire.FlagKeepalive):
		// last_rx_time already updated above; nothing else to do.
	case header.Flags.Has(wire.FlagData):
		result.Payload = plaintext
	case header.Flags.Has(wire.FlagControl):
		// internal control record with no further handling defined here.
	}
	return result, nil
}

// NeedsKeepalive reports whether idle time on the send side has crossed
// KeepaliveInterval.
func (s *Session) NeedsKeepalive(now time.Time) bool {
	return now.Sub(s.lastTxTime) >= s.cfg.KeepaliveInterval
}

// BuildKeepalive produces a zero-payload KEEPALIVE record.
func (s *Session) BuildKeepalive() ([]byte, error) {
	record, _, err := s.Send(nil, wire.FlagKeepalive)
	return record, err
}

// IsIdleTimedOut reports whether the receive side has been silent longer
// than KeepaliveTimeout, meaning the session must be torn down.
func (s *Session) IsIdleTimedOut(now time.Time) bool {
	return now.Sub(s.lastRxTime) >= s.cfg.KeepaliveTimeout
}

// IsExpired reports whether the session has outlived its configured
// lifetime regardless of activity, per the supplemented session-table
// cleanup sweep (see session/table.go).
func (s *Session) IsExpired(now time.Time) bool {
	return now.Sub(s.createdAt) >= s.cfg.SessionLifetime
}
