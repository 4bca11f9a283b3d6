package session

import (
	"bytes"
	"testing"
	"time"

	"github.com/llp-vpn/llp/wire"
)

func pairedSessions(cfg Config) (client, server *Session) {
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))
	client = New(0xDA44E0CCF7B21097, key, 0, cfg)
	server = New(0xDA44E0CCF7B21097, key, 0, cfg)
	return client, server
}

func TestDataRoundTrip(t *testing.T) {
	client, server := pairedSessions(DefaultConfig())

	payload := bytes.Repeat([]byte{0xAB}, 1200)
	record, needsRekey, err := client.Send(payload, wire.FlagData)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if needsRekey {
		t.Fatal("should not need rekey after a single packet")
	}

	result, err := server.Receive(record)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !bytes.Equal(result.Payload, payload) {
		t.Error("decrypted payload does not match original")
	}
	if server.recvWindow.High() != 0 {
		t.Errorf("recv_window_high = %d, want 0", server.recvWindow.High())
	}
	if !server.recvWindow.testBit(0) {
		t.Error("bit 0 should be set after accepting counter 0")
	}
}

func TestReplayRejection(t *testing.T) {
	client, server := pairedSessions(DefaultConfig())

	record, _, err := client.Send([]byte("hello"), wire.FlagData)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := server.Receive(record); err != nil {
		t.Fatalf("first receive: %v", err)
	}
	if _, err := server.Receive(record); err == nil {
		t.Error("expected replay rejection on duplicate record")
	}
}

func TestReorderWithinWindow(t *testing.T) {
	client, server := pairedSessions(DefaultConfig())

	var records [5][]byte
	for i := 0; i < 5; i++ {
		rec, _, err := client.Send([]byte("x"), wire.FlagData)
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		records[i] = rec
	}

	order := []int{2, 0, 4, 1, 3}
	for _, idx := range order {
		if _, err := server.Receive(records[idx]); err != nil {
			t.Fatalf("receive counter %d: %v", idx, err)
		}
	}

	for _, idx := range order {
		if _, err := server.Receive(records[idx]); err == nil {
			t.Errorf("expected rejection re-receiving counter %d", idx)
		}
	}
}

func TestRekeyFlow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RekeyPacketThreshold = 4
	client, server := pairedSessions(cfg)

	var lastRecord []byte
	var needsRekey bool
	var err error
	for i := 0; i < 4; i++ {
		lastRecord, needsRekey, err = client.Send([]byte("payload"), wire.FlagData)
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if _, err := server.Receive(lastRecord); err != nil {
			t.Fatalf("server receive %d: %v", i, err)
		}
	}
	if !needsRekey {
		t.Fatal("expected rekey to be triggered after the 4th packet")
	}
	if client.State() != StateRekeying {
		t.Fatalf("client state = %d, want Rekeying", client.State())
	}

	oldKey := client.sessionKey
	rekeyRecord, err := client.InitiateRekey()
	if err != nil {
		t.Fatalf("initiate rekey: %v", err)
	}
	if client.State() != StateActive {
		t.Fatalf("client state after rekey = %d, want Active", client.State())
	}
	if client.sessionKey == oldKey {
		t.Error("client session key did not change after rekey")
	}

	result, err := server.Receive(rekeyRecord)
	if err != nil {
		t.Fatalf("server receive rekey: %v", err)
	}
	if !result.RekeyReady {
		t.Error("expected RekeyReady on the rekey record")
	}
	if server.sessionKey != client.sessionKey {
		t.Error("server did not converge on the same new key as the client")
	}

	// A fifth data record, sent under the new key with the counter reset,
	// must decrypt cleanly.
	record5, _, err := client.Send([]byte("post-rekey"), wire.FlagData)
	if err != nil {
		t.Fatalf("send post-rekey: %v", err)
	}
	result5, err := server.Receive(record5)
	if err != nil {
		t.Fatalf("receive post-rekey: %v", err)
	}
	if !bytes.Equal(result5.Payload, []byte("post-rekey")) {
		t.Error("post-rekey payload mismatch")
	}
}

func TestSessionIDMismatchRejected(t *testing.T) {
	cfg := DefaultConfig()
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))
	a := New(1, key, 0, cfg)
	b := New(2, key, 0, cfg)

	record, _, err := a.Send([]byte("hi"), wire.FlagData)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := b.Receive(record); err == nil {
		t.Error("expected session id mismatch error")
	}
}

func TestKeepaliveAndIdleTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeepaliveInterval = time.Millisecond
	cfg.KeepaliveTimeout = time.Millisecond
	client, _ := pairedSessions(cfg)

	time.Sleep(2 * time.Millisecond)
	if !client.NeedsKeepalive(time.Now()) {
		t.Error("expected keepalive to be due")
	}
	if !client.IsIdleTimedOut(time.Now()) {
		t.Error("expected idle timeout to have elapsed")
	}

	record, err := client.BuildKeepalive()
	if err != nil {
		t.Fatalf("build keepalive: %v", err)
	}
	h, payload, err := wire.Decode(record)
	if err != nil {
		t.Fatalf("decode keepalive: %v", err)
	}
	if !h.Flags.Has(wire.FlagKeepalive) {
		t.Error("keepalive record missing KEEPALIVE flag")
	}
	if len(payload) != crypto_tagOnlySize() {
		t.Errorf("keepalive payload should carry only the auth tag, got %d bytes", len(payload))
	}
}

// crypto_tagOnlySize avoids importing the crypto package just for a
// constant in this test file.
func crypto_tagOnlySize() int { return wire.TagSize }

func TestCloseZeroizesKey(t *testing.T) {
	client, _ := pairedSessions(DefaultConfig())
	client.Close()
	var zero [32]byte
	if client.sessionKey != zero {
		t.Error("session key was not zeroized on close")
	}
	if client.State() != StateClosed {
		t.Error("session did not transition to Closed")
	}
}
