// handshake.go
//
// LLP handshake state machine (C3): a four-message authenticated key
// exchange over ephemeral X25519 keys. No static identity keys and no
// cookies — unlike the Noise_IK exchange this protocol's state-struct
// shape is borrowed from, LLP's handshake has a single HKDF stage and a
// single HMAC-SHA256 verify on each side.
//
// The package contains:
// - Client-side state machine in client.go (Start / ProcessServerHello / ProcessServerVerify)
// - Server-side state machine in server.go (ProcessClientHello / ProcessClientVerify)
// - Transcript construction and session-key derivation shared by both sides (this file)

package handshake

import (
	"github.com/llp-vpn/llp/crypto"
	"github.com/samber/oops"
)

const errCode = "crypto"

// SessionKeyInfo is the HKDF info string fixed by §3/§4.3.
const SessionKeyInfo = "llp-session-key-v1"

// Result carries the key material a successful handshake hands off to the
// session layer. Per the design note in §9, these secrets are moved, not
// copied: once a Result is consumed the handshake's own copy must be
// zeroized.
type Result struct {
	SessionID  uint64
	SessionKey [32]byte
}

// buildTranscript concatenates the two hello messages bit-for-bit, exactly
// as each side observed them on the wire.
func buildTranscript(clientHelloBytes, serverHelloBytes []byte) []byte {
	out := make([]byte, 0, len(clientHelloBytes)+len(serverHelloBytes))
	out = append(out, clientHelloBytes...)
	out = append(out, serverHelloBytes...)
	return out
}

func deriveSessionKey(shared, clientRandom, serverRandom [32]byte) ([32]byte, error) {
	salt := append(append([]byte{}, clientRandom[:]...), serverRandom[:]...)
	okm, err := crypto.HKDF(shared[:], salt, []byte(SessionKeyInfo), 32)
	if err != nil {
		return [32]byte{}, oops.Code(errCode).Wrapf(err, "derive session key")
	}
	var key [32]byte
	copy(key[:], okm)
	return key, nil
}

func zeroize32(b *[32]byte) {
	crypto.Zeroize(b[:])
}
