package wire

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Magic:     Magic,
		Version:   Version,
		Flags:     FlagData,
		ProfileID: 1,
		SessionID: 0xDA44E0CCF7B21097,
		Counter:   42,
	}
	payload := bytes.Repeat([]byte{0xAB}, 1200+16)

	encoded := Encode(h, payload)
	if len(encoded) != HeaderSize+len(payload) {
		t.Fatalf("encoded length = %d, want %d", len(encoded), HeaderSize+len(payload))
	}

	decodedHeader, decodedPayload, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decodedHeader != h {
		t.Errorf("decoded header = %+v, want %+v", decodedHeader, h)
	}
	if !bytes.Equal(decodedPayload, payload) {
		t.Error("decoded payload mismatch")
	}
}

func TestHeaderInsufficientData(t *testing.T) {
	if _, _, err := Decode(make([]byte, HeaderSize-1)); err == nil {
		t.Error("expected error for short header")
	}
	if _, _, err := Decode(make([]byte, HeaderSize)); err == nil {
		t.Error("expected bad magic error for all-zero header")
	}
}

func TestHeaderBadMagic(t *testing.T) {
	h := Header{Magic: [4]byte{'X', 'X', 'X', 'X'}, Version: Version}
	encoded := Encode(h, nil)
	if _, _, err := Decode(encoded); err == nil {
		t.Error("expected bad magic error")
	}
}

func TestHeaderUnsupportedVersion(t *testing.T) {
	h := Header{Magic: Magic, Version: 99}
	encoded := Encode(h, nil)
	if _, _, err := Decode(encoded); err == nil {
		t.Error("expected unsupported version error")
	}
}

func TestHeaderRejectsFragmentFlags(t *testing.T) {
	h := Header{Magic: Magic, Version: Version, Flags: FlagFragment}
	encoded := Encode(h, nil)
	if _, _, err := Decode(encoded); err == nil {
		t.Error("expected fragmentation to be rejected")
	}
}

func TestHeaderRejectsOversizedPayload(t *testing.T) {
	h := Header{Magic: Magic, Version: Version}
	oversized := make([]byte, MaxPayloadSize+TagSize+1)
	encoded := Encode(h, oversized)
	if _, _, err := Decode(encoded); err == nil {
		t.Error("expected payload-too-large error")
	}
}

func TestClientHelloRoundTrip(t *testing.T) {
	var m ClientHello
	copy(m.ClientPub[:], bytes.Repeat([]byte{1}, 32))
	copy(m.ClientRandom[:], bytes.Repeat([]byte{2}, 32))
	m.ProfileID = 1

	raw := m.Marshal()
	if len(raw) != ClientHelloSize {
		t.Fatalf("marshal length = %d, want %d", len(raw), ClientHelloSize)
	}
	got, err := UnmarshalClientHello(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != m {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestClientHelloWrongLength(t *testing.T) {
	if _, err := UnmarshalClientHello(make([]byte, ClientHelloSize-1)); err == nil {
		t.Error("expected error for short client hello")
	}
	if _, err := UnmarshalClientHello(make([]byte, ClientHelloSize+1)); err == nil {
		t.Error("expected error for long client hello")
	}
}

func TestServerHelloRoundTrip(t *testing.T) {
	var m ServerHello
	copy(m.ServerPub[:], bytes.Repeat([]byte{3}, 32))
	copy(m.ServerRandom[:], bytes.Repeat([]byte{4}, 32))
	m.SessionID = 0xDA44E0CCF7B21097

	raw := m.Marshal()
	if len(raw) != ServerHelloSize {
		t.Fatalf("marshal length = %d, want %d", len(raw), ServerHelloSize)
	}
	got, err := UnmarshalServerHello(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != m {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	var m Verify
	copy(m.Tag[:], bytes.Repeat([]byte{9}, 32))

	clientRaw := m.MarshalClientVerify()
	if len(clientRaw) != ClientVerifySize {
		t.Fatalf("client verify length = %d, want %d", len(clientRaw), ClientVerifySize)
	}
	gotClient, err := UnmarshalClientVerify(clientRaw)
	if err != nil {
		t.Fatalf("unmarshal client verify: %v", err)
	}
	if gotClient != m {
		t.Error("client verify round trip mismatch")
	}

	serverRaw := m.MarshalServerVerify()
	gotServer, err := UnmarshalServerVerify(serverRaw)
	if err != nil {
		t.Fatalf("unmarshal server verify: %v", err)
	}
	if gotServer != m {
		t.Error("server verify round trip mismatch")
	}

	if _, err := UnmarshalClientVerify(serverRaw); err == nil {
		t.Error("server verify bytes should not parse as a client verify")
	}
}
