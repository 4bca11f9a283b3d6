// crypto.go
//
// Cryptographic primitives for LLP.
//
// Contains:
// - X25519 key generation and DH
// - HKDF-SHA256 key derivation
// - ChaCha20-Poly1305 AEAD seal/open
// - HMAC-SHA256 with constant-time verify
// - BLAKE3 hashing (rekey salt derivation)
// - secure RNG and zeroization helpers

package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"

	"github.com/samber/oops"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
	"lukechampine.com/blake3"
)

const errCode = "crypto"

// KeySize is the width in bytes of every DH key, shared secret, session key
// and HMAC tag this package deals with.
const KeySize = 32

// TagSize is the ChaCha20-Poly1305 authentication tag length.
const TagSize = chacha20poly1305.Overhead

// NonceSize is the ChaCha20-Poly1305 nonce length.
const NonceSize = chacha20poly1305.NonceSize

// GenerateKeypair creates a new X25519 keypair from the system RNG.
func GenerateKeypair() (priv, pub [KeySize]byte, err error) {
	if _, err = rand.Read(priv[:]); err != nil {
		return priv, pub, oops.Code(errCode).Wrapf(err, "generate private scalar")
	}
	p, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return priv, pub, oops.Code(errCode).Wrapf(err, "derive public point")
	}
	copy(pub[:], p)
	return priv, pub, nil
}

// DHAgree performs the X25519 scalar multiplication. It rejects the
// all-zero point and any other point that collapses to an all-zero shared
// secret, since both indicate the peer sent a small-subgroup or otherwise
// degenerate public key.
func DHAgree(priv, peerPub [KeySize]byte) (secret [KeySize]byte, err error) {
	if isAllZero(peerPub[:]) {
		return secret, oops.Code(errCode).Errorf("peer public key is all-zero")
	}
	s, err := curve25519.X25519(priv[:], peerPub[:])
	if err != nil {
		return secret, oops.Code(errCode).Wrapf(err, "x25519 agreement")
	}
	copy(secret[:], s)
	if isAllZero(secret[:]) {
		Zeroize(secret[:])
		return secret, oops.Code(errCode).Errorf("shared secret collapsed to zero")
	}
	return secret, nil
}

func isAllZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}

// HKDF derives a len-byte output key from ikm, salt and info using
// HKDF-SHA256 (RFC 5869: Extract then Expand).
func HKDF(ikm, salt, info []byte, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, length)
	if _, err := readFull(reader, out); err != nil {
		return nil, oops.Code(errCode).Wrapf(err, "hkdf expand")
	}
	return out, nil
}

type byteReader interface {
	Read(p []byte) (int, error)
}

func readFull(r byteReader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, oops.Code(errCode).Errorf("hkdf reader stalled")
		}
	}
	return total, nil
}

// AEADSeal encrypts plaintext under key/nonce with aad bound in, returning
// ciphertext‖tag.
func AEADSeal(key [KeySize]byte, nonce [NonceSize]byte, aad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, oops.Code(errCode).Wrapf(err, "construct aead")
	}
	return aead.Seal(nil, nonce[:], plaintext, aad), nil
}

// AEADOpen decrypts and authenticates ciphertext‖tag, failing with a
// generic error on any tag mismatch — callers must not report which check
// failed to an attacker.
func AEADOpen(key [KeySize]byte, nonce [NonceSize]byte, aad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, oops.Code(errCode).Wrapf(err, "construct aead")
	}
	plaintext, err := aead.Open(nil, nonce[:], ciphertext, aad)
	if err != nil {
		return nil, oops.Code(errCode).Errorf("authentication failed")
	}
	return plaintext, nil
}

// HMACSHA256 computes a 32-byte keyed HMAC.
func HMACSHA256(key, msg []byte) [KeySize]byte {
	var out [KeySize]byte
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	copy(out[:], mac.Sum(nil))
	return out
}

// VerifyHMACSHA256 checks a tag in constant time.
func VerifyHMACSHA256(key, msg []byte, tag [KeySize]byte) bool {
	got := HMACSHA256(key, msg)
	return subtle.ConstantTimeCompare(got[:], tag[:]) == 1
}

// Blake3Hash32 hashes input with BLAKE3, truncated to 32 bytes of output.
// Used for the rekey salt derivation (§4.4): the fresh key exchange binds
// the old key into the new salt without ever handing the old key to the
// peer in the clear.
func Blake3Hash32(input []byte) [KeySize]byte {
	var out [KeySize]byte
	sum := blake3.Sum256(input)
	copy(out[:], sum[:])
	return out
}

// BuildNonce constructs the 12-byte AEAD nonce mandated by §3: little-endian
// counter in the first 8 bytes, little-endian low 32 bits of session_id in
// the last 4. Distinct counters under one session_key always yield distinct
// nonces; the session layer owns never reusing a counter.
func BuildNonce(counter, sessionID uint64) [NonceSize]byte {
	var n [NonceSize]byte
	binary.LittleEndian.PutUint64(n[0:8], counter)
	binary.LittleEndian.PutUint32(n[8:12], uint32(sessionID))
	return n
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, oops.Code(errCode).Wrapf(err, "read random bytes")
	}
	return b, nil
}

// Zeroize overwrites b with zeros in place. Go has no destructors, so every
// owner of secret-bearing memory must call this explicitly before the
// buffer goes out of scope — at session close, after a failed handshake,
// and immediately after deriving a key from transient material like a DH
// shared secret.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
