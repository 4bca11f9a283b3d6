// yandexmusic.go
//
// YandexMusic mimicry profile (§4.5): disguises an LLP record as an
// HTTP/1.1 200 OK audio segment response from music.yandex.ru. Grounded on
// original_source's YandexMusicProfile
// (crates/llp-mimicry/src/profiles/yandex_music.rs).

package mimicry

import (
	"fmt"
	"time"
)

var yandexFormats = []string{"mp3", "aac", "m4a"}

var yandexContentTypes = map[string]string{
	"mp3": "audio/mpeg",
	"aac": "audio/aac",
	"m4a": "audio/mp4",
}

type yandexMusicProfile struct {
	timing timingProfile
}

func newYandexMusicProfile() *yandexMusicProfile {
	return &yandexMusicProfile{timing: audioStreamingTiming()}
}

func (p *yandexMusicProfile) Wrap(record []byte) ([]byte, error) {
	sessionToken, err := randomHex(20)
	if err != nil {
		return nil, err
	}
	requestID, err := randomHex(16)
	if err != nil {
		return nil, err
	}
	format := yandexFormats[burstyRand.Intn(len(yandexFormats))]

	headers := fmt.Sprintf(
		"HTTP/1.1 200 OK\r\n"+
			"Server: nginx\r\n"+
			"Date: %s\r\n"+
			"Content-Type: %s\r\n"+
			"Content-Length: %d\r\n"+
			"Connection: keep-alive\r\n"+
			"X-Yandex-Music-Session: %s\r\n"+
			"X-Yandex-Req-Id: %s\r\n"+
			"Accept-Ranges: bytes\r\n"+
			"Cache-Control: public, max-age=86400\r\n"+
			"Access-Control-Allow-Origin: https://music.yandex.ru\r\n"+
			"Timing-Allow-Origin: https://music.yandex.ru\r\n"+
			"\r\n",
		httpDate(time.Now()), yandexContentTypes[format], len(record), sessionToken, requestID,
	)

	envelope := make([]byte, 0, len(headers)+len(record))
	envelope = append(envelope, headers...)
	envelope = append(envelope, record...)
	return envelope, nil
}

func (p *yandexMusicProfile) Unwrap(envelope []byte) ([]byte, error) {
	return extractResponseBody(envelope)
}

func (p *yandexMusicProfile) RecommendedChunkSize() int {
	return 16*1024 + burstyRand.Intn(64*1024-16*1024)
}

func (p *yandexMusicProfile) NextDelay() time.Duration {
	return p.timing.nextDelay(burstyRand)
}
