// rutube.go
//
// RuTube mimicry profile (§4.5): disguises an LLP record as an HLS-style
// video segment response from rutube.ru. original_source/ ships no
// profiles/rutube.rs in this retrieval pack, so this profile is modeled on
// spec.md's description directly, reusing the envelope shape and header
// style of the VkVideo profile it sits alongside.

package mimicry

import (
	"fmt"
	"time"
)

type ruTubeProfile struct {
	timing timingProfile
}

func newRuTubeProfile() *ruTubeProfile {
	return &ruTubeProfile{timing: videoStreamingTiming()}
}

func (p *ruTubeProfile) Wrap(record []byte) ([]byte, error) {
	sessionID, err := randomHex(16)
	if err != nil {
		return nil, err
	}
	deviceID, err := randomHex(8)
	if err != nil {
		return nil, err
	}

	headers := fmt.Sprintf(
		"HTTP/1.1 200 OK\r\n"+
			"Server: nginx\r\n"+
			"Date: %s\r\n"+
			"Content-Type: video/mp2t\r\n"+
			"Content-Length: %d\r\n"+
			"Connection: keep-alive\r\n"+
			"X-RuTube-Session: %s\r\n"+
			"X-RuTube-Device-Id: %s\r\n"+
			"X-RuTube-Cache: HIT\r\n"+
			"Accept-Ranges: bytes\r\n"+
			"Cache-Control: public, max-age=3600\r\n"+
			"Access-Control-Allow-Origin: https://rutube.ru\r\n"+
			"\r\n",
		httpDate(time.Now()), len(record), sessionID, deviceID,
	)

	envelope := make([]byte, 0, len(headers)+len(record))
	envelope = append(envelope, headers...)
	envelope = append(envelope, record...)
	return envelope, nil
}

func (p *ruTubeProfile) Unwrap(envelope []byte) ([]byte, error) {
	return extractResponseBody(envelope)
}

func (p *ruTubeProfile) RecommendedChunkSize() int {
	return 100*1024 + burstyRand.Intn(500*1024-100*1024)
}

func (p *ruTubeProfile) NextDelay() time.Duration {
	return p.timing.nextDelay(burstyRand)
}
