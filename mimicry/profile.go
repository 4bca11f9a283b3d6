// profile.go
//
// Mimicry profiles (C5): each profile wraps an LLP record inside bytes that
// look like an HTTP response for a specific streaming service, and is the
// exact inverse on unwrap. Grounded on original_source's
// crates/llp-mimicry/src/profiles/{vk_video,yandex_music}.rs — chunk-size
// ranges, header sets, and timing profiles are carried over verbatim from
// there (RuTube has no original_source/profiles/rutube.rs available in the
// retrieval pack, so its profile is modeled directly on spec.md's
// description using the same envelope shape as the other two).

package mimicry

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"encoding/hex"
	mrand "math/rand"
	"net/http"
	"time"

	"github.com/samber/oops"
)

// ProfileID identifies a mimicry variant on the wire (§3's profile_id
// field).
type ProfileID uint16

const (
	ProfileNone        ProfileID = 0
	ProfileVkVideo     ProfileID = 1
	ProfileYandexMusic ProfileID = 2
	ProfileRuTube      ProfileID = 3
)

func (p ProfileID) String() string {
	switch p {
	case ProfileNone:
		return "none"
	case ProfileVkVideo:
		return "vk_video"
	case ProfileYandexMusic:
		return "yandex_music"
	case ProfileRuTube:
		return "rutube"
	default:
		return "unknown"
	}
}

// Profile is the capability set §4.5 describes: wrap/unwrap plus the chunk
// size and timing advice a caller may honor.
type Profile interface {
	Wrap(record []byte) ([]byte, error)
	Unwrap(envelope []byte) ([]byte, error)
	RecommendedChunkSize() int
	NextDelay() time.Duration
}

// NewProfile constructs the Profile bound to id. The set is closed and
// small, so dispatch is a plain switch rather than a registry (§9's
// tagged-variant design note).
func NewProfile(id ProfileID) (Profile, error) {
	switch id {
	case ProfileNone:
		return noneProfile{}, nil
	case ProfileVkVideo:
		return newVkVideoProfile(), nil
	case ProfileYandexMusic:
		return newYandexMusicProfile(), nil
	case ProfileRuTube:
		return newRuTubeProfile(), nil
	default:
		return nil, oops.Code("codec").Errorf("unknown mimicry profile id %d", id)
	}
}

// noneProfile is the identity transform (§4.6).
type noneProfile struct{}

func (noneProfile) Wrap(record []byte) ([]byte, error)   { return record, nil }
func (noneProfile) Unwrap(envelope []byte) ([]byte, error) { return envelope, nil }
func (noneProfile) RecommendedChunkSize() int            { return 1024 * 1024 }
func (noneProfile) NextDelay() time.Duration             { return 0 }

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("resource").Wrapf(err, "generate random hex string")
	}
	return hex.EncodeToString(buf), nil
}

func httpDate(now time.Time) string {
	return now.UTC().Format(http.TimeFormat)
}

// extractResponseBody parses a well-formed HTTP/1.1 response and returns
// its body. Used by every profile's Unwrap since §4.5 requires failing
// MalformedEnvelope uniformly without leaking which structural check
// failed.
func extractResponseBody(envelope []byte) ([]byte, error) {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(envelope)), nil)
	if err != nil {
		return nil, oops.Code("codec").Errorf("malformed mimicry envelope")
	}
	defer resp.Body.Close()

	body := make([]byte, 0, len(envelope))
	buf := make([]byte, 4096)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			body = append(body, buf[:n]...)
		}
		if rerr != nil {
			break
		}
	}
	if resp.ContentLength >= 0 && int64(len(body)) != resp.ContentLength {
		return nil, oops.Code("codec").Errorf("malformed mimicry envelope")
	}
	return body, nil
}

// burstyRand is a package-local source so profiles don't need to carry
// *rand.Rand plumbing through every call site. Mimicry timing is advisory
// only (§4.5), never security-relevant, so a non-cryptographic PRNG is
// appropriate here in contrast to crypto.RandomBytes elsewhere.
var burstyRand = mrand.New(mrand.NewSource(time.Now().UnixNano()))
