package transport

import "testing"

func TestMockTUNReadWrite(t *testing.T) {
	tun := NewMockTUN()
	defer tun.Close()

	tun.InjectPacket([]byte("incoming ip packet"))
	buf := make([]byte, 64)
	n, err := tun.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "incoming ip packet" {
		t.Errorf("got %q", buf[:n])
	}

	if _, err := tun.Write([]byte("outgoing ip packet")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := tun.ReadInbound()
	if string(got) != "outgoing ip packet" {
		t.Errorf("got %q", got)
	}
}

func TestMockTUNReadInboundEmpty(t *testing.T) {
	tun := NewMockTUN()
	defer tun.Close()
	if got := tun.ReadInbound(); got != nil {
		t.Errorf("expected nil on empty inbound, got %v", got)
	}
}
