// registry.go
//
// Client registry (supplemented from original_source's ClientRegistry,
// crates/llp-server/src/client_registry.rs): maps a VPN-internal IP to the
// outbound channel for the session serving that address, so a packet read
// off the server's TUN device can be routed back to the right client.
// Adapted to the sync.RWMutex-guarded-map idiom session/table.go already
// uses, rather than an async-runtime RwLock.

package netsvc

import (
	"net"
	"sync"

	"github.com/samber/oops"
)

// Registry tracks which session owns each VPN-internal address.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]chan<- []byte
}

// NewRegistry constructs an empty client registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]chan<- []byte)}
}

// Register binds vpnIP to the channel packets destined for it should be
// delivered on.
func (r *Registry) Register(vpnIP net.IP, out chan<- []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[vpnIP.String()] = out
}

// Unregister removes vpnIP from the registry, e.g. on session teardown.
func (r *Registry) Unregister(vpnIP net.IP) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, vpnIP.String())
}

// RouteToClient extracts the destination address from an IPv4 or IPv6
// packet and delivers it to the registered client's channel. It is a
// no-op, not an error, when no client is registered for the destination —
// the packet is simply dropped, mirroring the original's behavior of
// logging and continuing.
func (r *Registry) RouteToClient(packet []byte) error {
	dst, ok := extractDstIP(packet)
	if !ok {
		return oops.Code("codec").Errorf("could not extract destination IP from packet")
	}

	r.mu.RLock()
	out, found := r.clients[dst.String()]
	r.mu.RUnlock()
	if !found {
		return nil
	}

	cp := make([]byte, len(packet))
	copy(cp, packet)
	select {
	case out <- cp:
	default:
		return oops.Code("resource").Errorf("client channel for %s is full", dst)
	}
	return nil
}

// ActiveCount reports how many clients are currently registered.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// extractDstIP reads the destination address out of a raw IPv4 or IPv6
// packet by inspecting the version nibble and the fixed header offsets.
func extractDstIP(packet []byte) (net.IP, bool) {
	if len(packet) < 20 {
		return nil, false
	}
	version := packet[0] >> 4
	switch version {
	case 4:
		return net.IP(packet[16:20]), true
	case 6:
		if len(packet) < 40 {
			return nil, false
		}
		return net.IP(packet[24:40]), true
	default:
		return nil, false
	}
}

// ExtractSrcIP reads the source address out of a raw IPv4 or IPv6 packet,
// the mirror of extractDstIP. The server uses this to learn a client's
// VPN-internal address from its own outbound traffic rather than from a
// separate address-assignment exchange, since spec.md does not define one.
func ExtractSrcIP(packet []byte) (net.IP, bool) {
	if len(packet) < 20 {
		return nil, false
	}
	version := packet[0] >> 4
	switch version {
	case 4:
		return net.IP(packet[12:16]), true
	case 6:
		if len(packet) < 40 {
			return nil, false
		}
		return net.IP(packet[8:24]), true
	default:
		return nil, false
	}
}
