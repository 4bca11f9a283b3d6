// vkvideo.go
//
// VkVideo mimicry profile (§4.5): disguises an LLP record as an HTTP/1.1
// 206 Partial Content response resembling a .ts HLS segment fetch from
// vkvideo.ru. Grounded on original_source's VkVideoProfile
// (crates/llp-mimicry/src/profiles/vk_video.rs) — header set, chunk-size
// range, and timing profile are carried over, with the rand/hex/chrono
// crates replaced by Go's math/rand, encoding/hex, and time.Time.Format.

package mimicry

import (
	"fmt"
	"time"
)

var vkQualities = []string{"240", "360", "480", "720", "1080"}

type vkVideoProfile struct {
	timing timingProfile
}

func newVkVideoProfile() *vkVideoProfile {
	return &vkVideoProfile{timing: videoStreamingTiming()}
}

func (p *vkVideoProfile) Wrap(record []byte) ([]byte, error) {
	sessionID, err := randomHex(16)
	if err != nil {
		return nil, err
	}
	quality := vkQualities[burstyRand.Intn(len(vkQualities))]
	rangeStart := burstyRand.Int63n(10_000_000)
	rangeEnd := rangeStart + int64(len(record))

	headers := fmt.Sprintf(
		"HTTP/1.1 206 Partial Content\r\n"+
			"Server: nginx/1.20.2\r\n"+
			"Date: %s\r\n"+
			"Content-Type: video/mp2t\r\n"+
			"Content-Length: %d\r\n"+
			"Content-Range: bytes %d-%d/50000000\r\n"+
			"Connection: keep-alive\r\n"+
			"X-VK-Session: %s\r\n"+
			"X-VK-Server: vkvideo42\r\n"+
			"X-VK-Quality: %s\r\n"+
			"Accept-Ranges: bytes\r\n"+
			"Cache-Control: public, max-age=31536000\r\n"+
			"Access-Control-Allow-Origin: https://vk.com\r\n"+
			"\r\n",
		httpDate(time.Now()), len(record), rangeStart, rangeEnd-1, sessionID, quality,
	)

	envelope := make([]byte, 0, len(headers)+len(record))
	envelope = append(envelope, headers...)
	envelope = append(envelope, record...)
	return envelope, nil
}

func (p *vkVideoProfile) Unwrap(envelope []byte) ([]byte, error) {
	return extractResponseBody(envelope)
}

func (p *vkVideoProfile) RecommendedChunkSize() int {
	return 64*1024 + burstyRand.Intn(256*1024-64*1024)
}

func (p *vkVideoProfile) NextDelay() time.Duration {
	return p.timing.nextDelay(burstyRand)
}
