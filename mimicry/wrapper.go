// wrapper.go
//
// Mimicry wrapper (C6): binds a single mimicry_profile to a session and
// exposes a uniform wrap/unwrap byte-stream contract over it. Grounded on
// original_source's PacketWrapper
// (crates/llp-mimicry/src/wrapper.rs) — the tagged-variant-over-an-enum
// shape survives unchanged; chunk_counter is kept as plain bookkeeping, not
// anything cryptographic.

package mimicry

import "time"

// Wrapper binds a chosen profile to a session's outbound/inbound stream.
// It holds no cryptographic state and can be freely reconstructed (§4.6).
type Wrapper struct {
	profile      Profile
	chunkCounter uint64
}

// NewWrapper constructs a Wrapper bound to id.
func NewWrapper(id ProfileID) (*Wrapper, error) {
	profile, err := NewProfile(id)
	if err != nil {
		return nil, err
	}
	return &Wrapper{profile: profile}, nil
}

// Wrap disguises an LLP wire record as an HTTP-shaped envelope.
func (w *Wrapper) Wrap(record []byte) ([]byte, error) {
	envelope, err := w.profile.Wrap(record)
	if err != nil {
		return nil, err
	}
	w.chunkCounter++
	return envelope, nil
}

// Unwrap recovers the LLP wire record from an HTTP-shaped envelope.
func (w *Wrapper) Unwrap(envelope []byte) ([]byte, error) {
	return w.profile.Unwrap(envelope)
}

// NextDelay reports the advisory delay before the next send.
func (w *Wrapper) NextDelay() time.Duration {
	return w.profile.NextDelay()
}

// RecommendedChunkSize reports the profile's preferred chunk size.
func (w *Wrapper) RecommendedChunkSize() int {
	return w.profile.RecommendedChunkSize()
}

// ChunkCounter reports how many records have been wrapped so far.
func (w *Wrapper) ChunkCounter() uint64 {
	return w.chunkCounter
}
