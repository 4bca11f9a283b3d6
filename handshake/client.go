package handshake

import (
	"github.com/llp-vpn/llp/crypto"
	"github.com/llp-vpn/llp/wire"
	"github.com/samber/oops"
)

// ClientState walks Init → SentHello → ReceivedServerHello → SentVerify →
// Established | Failed, per §4.3.
type ClientState int

const (
	ClientInit ClientState = iota
	ClientSentHello
	ClientReceivedServerHello
	ClientSentVerify
	ClientEstablished
	ClientFailed
)

// Client drives the initiator side of the exchange. Like the state structs
// in the teacher's Noise_IK implementation, it accumulates intermediate
// values as the steps proceed rather than recomputing them later.
type Client struct {
	state ClientState

	profileID uint16

	ephemeralPriv [32]byte
	ephemeralPub  [32]byte
	clientRandom  [32]byte

	clientHelloBytes []byte
	serverHelloBytes []byte

	sessionKey [32]byte
	sessionID  uint64
}

// NewClient prepares a fresh initiator. profileID selects the mimicry
// profile advertised in CLIENT_HELLO.
func NewClient(profileID uint16) (*Client, error) {
	priv, pub, err := crypto.GenerateKeypair()
	if err != nil {
		return nil, oops.Code(errCode).Wrapf(err, "generate ephemeral keypair")
	}
	randomBytes, err := crypto.RandomBytes(32)
	if err != nil {
		return nil, oops.Code(errCode).Wrapf(err, "generate client random")
	}
	c := &Client{
		state:         ClientInit,
		profileID:     profileID,
		ephemeralPriv: priv,
		ephemeralPub:  pub,
	}
	copy(c.clientRandom[:], randomBytes)
	return c, nil
}

// Start builds and returns the CLIENT_HELLO bytes to send on the carrier.
func (c *Client) Start() ([]byte, error) {
	if c.state != ClientInit {
		return nil, oops.Code("state").Errorf("client handshake: Start called in state %d", c.state)
	}
	msg := wire.ClientHello{
		ClientPub:    c.ephemeralPub,
		ClientRandom: c.clientRandom,
		ProfileID:    c.profileID,
	}
	c.clientHelloBytes = msg.Marshal()
	c.state = ClientSentHello
	return c.clientHelloBytes, nil
}

// ProcessServerHello parses SERVER_HELLO, derives the session key, and
// returns the CLIENT_VERIFY bytes to send next.
func (c *Client) ProcessServerHello(data []byte) ([]byte, error) {
	if c.state != ClientSentHello {
		c.Abort()
		return nil, oops.Code("state").Errorf("client handshake: ProcessServerHello called in state %d", c.state)
	}

	msg, err := wire.UnmarshalServerHello(data)
	if err != nil {
		c.Abort()
		return nil, err
	}

	shared, err := crypto.DHAgree(c.ephemeralPriv, msg.ServerPub)
	if err != nil {
		c.Abort()
		return nil, oops.Code(errCode).Wrapf(err, "client dh agreement")
	}
	sessionKey, err := deriveSessionKey(shared, c.clientRandom, msg.ServerRandom)
	crypto.Zeroize(shared[:])
	if err != nil {
		c.Abort()
		return nil, err
	}

	c.serverHelloBytes = data
	c.sessionKey = sessionKey
	c.sessionID = msg.SessionID
	c.state = ClientReceivedServerHello

	transcript := buildTranscript(c.clientHelloBytes, c.serverHelloBytes)
	tag := crypto.HMACSHA256(c.sessionKey[:], transcript)
	verify := wire.Verify{Tag: tag}
	c.state = ClientSentVerify
	return verify.MarshalClientVerify(), nil
}

// ProcessServerVerify checks SERVER_VERIFY's HMAC against the transcript.
// On success the client transitions to Established and returns the session
// key material; the caller now owns zeroizing it at session close.
func (c *Client) ProcessServerVerify(data []byte) (Result, error) {
	if c.state != ClientSentVerify {
		c.Abort()
		return Result{}, oops.Code("state").Errorf("client handshake: ProcessServerVerify called in state %d", c.state)
	}

	msg, err := wire.UnmarshalServerVerify(data)
	if err != nil {
		c.Abort()
		return Result{}, err
	}

	transcript := buildTranscript(c.clientHelloBytes, c.serverHelloBytes)
	if !crypto.VerifyHMACSHA256(c.sessionKey[:], transcript, msg.Tag) {
		c.Abort()
		return Result{}, oops.Code(errCode).Errorf("server verify: hmac mismatch")
	}

	c.state = ClientEstablished
	result := Result{SessionID: c.sessionID, SessionKey: c.sessionKey}
	zeroize32(&c.ephemeralPriv)
	zeroize32(&c.sessionKey)
	return result, nil
}

// Abort transitions to Failed and zeroizes every secret the handshake is
// still holding. Safe to call multiple times.
func (c *Client) Abort() {
	c.state = ClientFailed
	zeroize32(&c.ephemeralPriv)
	zeroize32(&c.sessionKey)
}

func (c *Client) State() ClientState { return c.state }
