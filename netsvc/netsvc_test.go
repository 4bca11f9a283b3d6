package netsvc

import (
	"net"
	"testing"

	"github.com/llp-vpn/llp/session"
)

func TestRegistryRouteToClient(t *testing.T) {
	registry := NewRegistry()
	vpnIP := net.ParseIP("10.8.0.2").To4()
	out := make(chan []byte, 1)
	registry.Register(vpnIP, out)

	if registry.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", registry.ActiveCount())
	}

	packet := []byte{
		0x45, 0x00, 0x00, 0x14,
		0x00, 0x00, 0x00, 0x00,
		0x40, 0x00, 0x00, 0x00,
		192, 168, 1, 1,
		10, 8, 0, 2,
	}
	if err := registry.RouteToClient(packet); err != nil {
		t.Fatalf("RouteToClient: %v", err)
	}

	select {
	case got := <-out:
		if len(got) != len(packet) {
			t.Errorf("delivered packet length = %d, want %d", len(got), len(packet))
		}
	default:
		t.Fatal("expected a packet to be delivered to the registered client")
	}

	registry.Unregister(vpnIP)
	if registry.ActiveCount() != 0 {
		t.Errorf("ActiveCount() after unregister = %d, want 0", registry.ActiveCount())
	}
}

func TestRegistryDropsUnroutablePacket(t *testing.T) {
	registry := NewRegistry()
	if err := registry.RouteToClient([]byte{0x45, 0x00}); err == nil {
		t.Error("expected an error for a packet too short to contain a destination address")
	}

	// A well-formed packet with no registered destination is dropped, not
	// an error.
	packet := []byte{
		0x45, 0x00, 0x00, 0x14,
		0x00, 0x00, 0x00, 0x00,
		0x40, 0x00, 0x00, 0x00,
		192, 168, 1, 1,
		10, 8, 0, 9,
	}
	if err := registry.RouteToClient(packet); err != nil {
		t.Errorf("RouteToClient with no registered client should not error, got %v", err)
	}
}

func TestRouterDeliversFromClientAndTUN(t *testing.T) {
	table := session.NewTable()
	var key [32]byte
	s := session.New(42, key, 0, session.DefaultConfig())
	table.Insert(s)

	registry := NewRegistry()
	out := make(chan []byte, 1)
	registry.Register(net.ParseIP("10.8.0.2").To4(), out)

	tunBuf := &fakeWriter{}
	router := NewRouter(table, registry, tunBuf)

	if err := router.DeliverFromClient(42, []byte("decrypted payload")); err != nil {
		t.Fatalf("DeliverFromClient: %v", err)
	}
	if string(tunBuf.written) != "decrypted payload" {
		t.Errorf("tun write = %q", tunBuf.written)
	}

	packet := []byte{
		0x45, 0x00, 0x00, 0x14,
		0x00, 0x00, 0x00, 0x00,
		0x40, 0x00, 0x00, 0x00,
		192, 168, 1, 1,
		10, 8, 0, 2,
	}
	if err := router.DeliverFromTUN(packet); err != nil {
		t.Fatalf("DeliverFromTUN: %v", err)
	}
	select {
	case <-out:
	default:
		t.Fatal("expected the packet to reach the registered client channel")
	}

	if err := router.DeliverFromClient(999, []byte("ignored")); err != nil {
		t.Errorf("DeliverFromClient for an unknown session should not error, got %v", err)
	}
}

type fakeWriter struct {
	written []byte
}

func (f *fakeWriter) Write(p []byte) (int, error) {
	f.written = append(f.written, p...)
	return len(p), nil
}
