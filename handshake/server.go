package handshake

import (
	"github.com/llp-vpn/llp/crypto"
	"github.com/llp-vpn/llp/wire"
	"github.com/samber/oops"
)

// ServerState walks Idle → ReceivedHello → SentServerHello → ReceivedVerify
// → Established | Failed, per §4.3.
type ServerState int

const (
	ServerIdle ServerState = iota
	ServerReceivedHello
	ServerSentServerHello
	ServerReceivedVerify
	ServerEstablished
	ServerFailed
)

// SessionIDAllocator hands out session ids unique across a server's
// concurrent sessions. The core does not mandate a scheme; session/table.go
// supplies one that draws random ids not already in the table.
type SessionIDAllocator func() (uint64, error)

// Server drives the responder side of the exchange.
type Server struct {
	state ServerState

	allocSessionID SessionIDAllocator

	ephemeralPriv [32]byte
	ephemeralPub  [32]byte
	serverRandom  [32]byte

	clientHelloBytes []byte
	serverHelloBytes []byte

	sessionKey [32]byte
	sessionID  uint64
	profileID  uint16
}

// NewServer prepares a fresh responder bound to the given session id
// allocator.
func NewServer(allocSessionID SessionIDAllocator) *Server {
	return &Server{state: ServerIdle, allocSessionID: allocSessionID}
}

// ProcessClientHello parses CLIENT_HELLO, derives the session key, and
// returns the SERVER_HELLO bytes to send next.
func (s *Server) ProcessClientHello(data []byte) ([]byte, error) {
	if s.state != ServerIdle {
		s.Abort()
		return nil, oops.Code("state").Errorf("server handshake: ProcessClientHello called in state %d", s.state)
	}

	msg, err := wire.UnmarshalClientHello(data)
	if err != nil {
		s.Abort()
		return nil, err
	}

	priv, pub, err := crypto.GenerateKeypair()
	if err != nil {
		s.Abort()
		return nil, oops.Code(errCode).Wrapf(err, "generate ephemeral keypair")
	}
	randomBytes, err := crypto.RandomBytes(32)
	if err != nil {
		s.Abort()
		return nil, oops.Code(errCode).Wrapf(err, "generate server random")
	}
	var serverRandom [32]byte
	copy(serverRandom[:], randomBytes)

	sessionID, err := s.allocSessionID()
	if err != nil {
		s.Abort()
		return nil, oops.Code("resource").Wrapf(err, "allocate session id")
	}

	shared, err := crypto.DHAgree(priv, msg.ClientPub)
	if err != nil {
		s.Abort()
		return nil, oops.Code(errCode).Wrapf(err, "server dh agreement")
	}
	sessionKey, err := deriveSessionKey(shared, msg.ClientRandom, serverRandom)
	crypto.Zeroize(shared[:])
	if err != nil {
		s.Abort()
		return nil, err
	}

	s.ephemeralPriv = priv
	s.ephemeralPub = pub
	s.serverRandom = serverRandom
	s.clientHelloBytes = data
	s.sessionKey = sessionKey
	s.sessionID = sessionID
	s.profileID = msg.ProfileID
	s.state = ServerReceivedHello

	hello := wire.ServerHello{
		ServerPub:    pub,
		ServerRandom: serverRandom,
		SessionID:    sessionID,
	}
	s.serverHelloBytes = hello.Marshal()
	s.state = ServerSentServerHello
	return s.serverHelloBytes, nil
}

// ProcessClientVerify checks CLIENT_VERIFY's HMAC against the transcript
// and, on success, returns the SERVER_VERIFY bytes plus the key material to
// hand off to the session layer.
func (s *Server) ProcessClientVerify(data []byte) (serverVerifyBytes []byte, result Result, err error) {
	if s.state != ServerSentServerHello {
		s.Abort()
		return nil, Result{}, oops.Code("state").Errorf("server handshake: ProcessClientVerify called in state %d", s.state)
	}

	msg, err := wire.UnmarshalClientVerify(data)
	if err != nil {
		s.Abort()
		return nil, Result{}, err
	}

	transcript := buildTranscript(s.clientHelloBytes, s.serverHelloBytes)
	if !crypto.VerifyHMACSHA256(s.sessionKey[:], transcript, msg.Tag) {
		s.Abort()
		return nil, Result{}, oops.Code(errCode).Errorf("client verify: hmac mismatch")
	}
	s.state = ServerReceivedVerify

	tag := crypto.HMACSHA256(s.sessionKey[:], transcript)
	verify := wire.Verify{Tag: tag}
	s.state = ServerEstablished

	result = Result{SessionID: s.sessionID, SessionKey: s.sessionKey}
	zeroize32(&s.ephemeralPriv)
	zeroize32(&s.sessionKey)
	return verify.MarshalServerVerify(), result, nil
}

// ProfileID returns the mimicry profile the client advertised in
// CLIENT_HELLO, valid once ProcessClientHello has succeeded.
func (s *Server) ProfileID() uint16 { return s.profileID }

// Abort transitions to Failed and zeroizes every secret the handshake is
// still holding. Safe to call multiple times.
func (s *Server) Abort() {
	s.state = ServerFailed
	zeroize32(&s.ephemeralPriv)
	zeroize32(&s.sessionKey)
}

func (s *Server) State() ServerState { return s.state }
