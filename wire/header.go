// header.go
//
// LLP record header codec (C2): the fixed 24-byte header that precedes
// every encrypted record, plus size-bound enforcement. Pure functions only
// — no I/O, no allocation beyond the returned buffer, and every field is
// bounds-checked before it is read.

package wire

import (
	"encoding/binary"

	"github.com/samber/oops"
)

const errCode = "codec"

// HeaderSize is the fixed size of an LLP record header in bytes.
const HeaderSize = 24

// TagSize is the trailing AEAD authentication tag size.
const TagSize = 16

// MaxPayloadSize bounds the encrypted payload so a single record cannot
// exhaust memory on a malicious length claim.
const MaxPayloadSize = 65535

// Magic identifies an LLP record.
var Magic = [4]byte{'L', 'L', 'P', '1'}

// Version is the only wire version this implementation produces or accepts.
const Version = 1

// Flags is the header's bitfield of record kinds.
type Flags uint8

const (
	FlagData      Flags = 1 << 0
	FlagControl   Flags = 1 << 1
	FlagFragment  Flags = 1 << 2
	FlagLastFrag  Flags = 1 << 3
	FlagAck       Flags = 1 << 4
	FlagKeepalive Flags = 1 << 5
	FlagRekey     Flags = 1 << 6
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Header is the 24-byte LLP record header described in §3.
type Header struct {
	Magic     [4]byte
	Version   uint8
	Flags     Flags
	ProfileID uint16
	SessionID uint64
	Counter   uint64
}

// Encode serializes header and appends payload, producing the bytes that
// precede mimicry wrapping. payload must already be ciphertext‖tag.
func Encode(h Header, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	copy(buf[0:4], h.Magic[:])
	buf[4] = h.Version
	buf[5] = byte(h.Flags)
	binary.BigEndian.PutUint16(buf[6:8], h.ProfileID)
	binary.BigEndian.PutUint64(buf[8:16], h.SessionID)
	binary.BigEndian.PutUint64(buf[16:24], h.Counter)
	copy(buf[HeaderSize:], payload)
	return buf
}

// Decode validates bounds before reading any field beyond what is already
// known to be present, then splits header from the payload slice (which
// still carries its trailing auth tag — the session layer removes it after
// AEAD verification).
func Decode(data []byte) (Header, []byte, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, nil, oops.Code(errCode).
			With("required", HeaderSize).
			With("available", len(data)).
			Errorf("insufficient data for header")
	}

	copy(h.Magic[:], data[0:4])
	if h.Magic != Magic {
		return h, nil, oops.Code(errCode).Errorf("bad magic")
	}

	h.Version = data[4]
	if h.Version != Version {
		return h, nil, oops.Code(errCode).Errorf("unsupported version %d", h.Version)
	}

	h.Flags = Flags(data[5])
	if err := validateFlags(h.Flags); err != nil {
		return h, nil, err
	}

	h.ProfileID = binary.BigEndian.Uint16(data[6:8])
	h.SessionID = binary.BigEndian.Uint64(data[8:16])
	h.Counter = binary.BigEndian.Uint64(data[16:24])

	payload := data[HeaderSize:]
	if len(payload) > MaxPayloadSize+TagSize {
		return h, nil, oops.Code(errCode).Errorf("payload too large: %d bytes", len(payload))
	}

	return h, payload, nil
}

// validateFlags rejects flag combinations the header codec cannot produce.
// FRAGMENT/LAST_FRAG are reserved per §9 design note: until reassembly is
// implemented, any record claiming fragmentation is refused rather than
// silently mishandled.
func validateFlags(f Flags) error {
	const known = FlagData | FlagControl | FlagFragment | FlagLastFrag | FlagAck | FlagKeepalive | FlagRekey
	if f&^known != 0 {
		return oops.Code(errCode).Errorf("invalid flags: %#x", f)
	}
	if f.Has(FlagFragment) || f.Has(FlagLastFrag) {
		return oops.Code(errCode).Errorf("fragmentation is reserved and unsupported")
	}
	return nil
}
