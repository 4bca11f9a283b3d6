// rekey.go
//
// In-band rekey flow (§4.4, §9 open question). The REKEY control record's
// payload layout and derivation are not fully specified by the source
// material; this file implements the resolution recorded in §9 and
// DESIGN.md: a single record suffices because both sides derive the new
// key independently and deterministically from the old key and the fresh
// nonce the initiating side generates — there is no second round trip.

package session

import (
	"github.com/llp-vpn/llp/crypto"
	"github.com/llp-vpn/llp/wire"
	"github.com/samber/oops"
)

const rekeyInfo = "llp-rekey-v1"
const rekeyPayloadSize = 64 // fresh_nonce(32) ‖ hmac_tag(32)

// InitiateRekey builds and returns the REKEY control record to emit once
// the packet threshold has tripped (Send reported needsRekey). The session
// switches to the new key and resets its counters before returning.
func (s *Session) InitiateRekey() ([]byte, error) {
	if s.state != StateRekeying {
		return nil, oops.Code("state").Errorf("initiate rekey: session not in Rekeying state (state=%d)", s.state)
	}

	freshNonceBytes, err := crypto.RandomBytes(32)
	if err != nil {
		return nil, oops.Code("crypto").Wrapf(err, "generate rekey nonce")
	}
	var fresh [32]byte
	copy(fresh[:], freshNonceBytes)

	tag := crypto.HMACSHA256(s.sessionKey[:], append([]byte(rekeyInfo), fresh[:]...))

	payload := make([]byte, 0, rekeyPayloadSize)
	payload = append(payload, fresh[:]...)
	payload = append(payload, tag[:]...)

	record, _, err := s.Send(payload, wire.FlagControl|wire.FlagRekey)
	if err != nil {
		return nil, err
	}

	newKey, err := deriveRekeyedKey(s.sessionKey, fresh)
	if err != nil {
		return nil, err
	}
	s.applyRekeyedKey(newKey)

	return record, nil
}

// processRekeyRecord handles an inbound REKEY record's decrypted payload:
// verify the HMAC under the current key, derive the new key the same way
// the initiator did, and switch over.
func (s *Session) processRekeyRecord(plaintext []byte) error {
	if len(plaintext) != rekeyPayloadSize {
		return oops.Code("codec").Errorf("rekey payload wrong size: got %d, want %d", len(plaintext), rekeyPayloadSize)
	}

	var fresh [32]byte
	copy(fresh[:], plaintext[0:32])
	var tag [32]byte
	copy(tag[:], plaintext[32:64])

	if !crypto.VerifyHMACSHA256(s.sessionKey[:], append([]byte(rekeyInfo), fresh[:]...), tag) {
		return oops.Code("crypto").Errorf("rekey hmac mismatch")
	}

	newKey, err := deriveRekeyedKey(s.sessionKey, fresh)
	if err != nil {
		return err
	}
	s.applyRekeyedKey(newKey)
	return nil
}

// deriveRekeyedKey follows §4.4's "BLAKE3 of the current key and a fresh
// nonce" salt and §9's HKDF construction: new_key = HKDF(old_key,
// salt=BLAKE3(old_key ‖ fresh_nonce), info="llp-rekey-v1", 32).
func deriveRekeyedKey(oldKey, freshNonce [32]byte) ([32]byte, error) {
	var newKey [32]byte
	salt := crypto.Blake3Hash32(append(append([]byte{}, oldKey[:]...), freshNonce[:]...))
	okm, err := crypto.HKDF(oldKey[:], salt[:], []byte(rekeyInfo), 32)
	if err != nil {
		return newKey, oops.Code("crypto").Wrapf(err, "derive rekeyed session key")
	}
	copy(newKey[:], okm)
	return newKey, nil
}

func (s *Session) applyRekeyedKey(newKey [32]byte) {
	crypto.Zeroize(s.sessionKey[:])
	s.sessionKey = newKey
	s.sendCounter = 0
	s.recvWindow = ReplayWindow{}
	s.packetsSinceRekey = 0
	s.state = StateActive
}
