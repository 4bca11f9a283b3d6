// router.go
//
// Server-side fan-out between the shared TUN device and each client's
// session (supplemented from original_source's Router,
// crates/llp-server/src/router.rs). spec.md models NAT as nothing more
// than "a destination-selection function" (§ glossary), and the original
// implementation's own NatGateway is an unfinished placeholder
// (nat.rs: "TODO: Полная реализация SNAT") — so Router here does real
// address-keyed dispatch via Registry and never rewrites packet headers;
// it is explicitly not a NAT/SNAT/DNAT implementation.

package netsvc

import (
	"io"

	"github.com/llp-vpn/llp/session"
)

// Router wires a session table and client registry to the server's single
// shared TUN device.
type Router struct {
	sessions *session.Table
	registry *Registry
	tun      io.Writer
}

// NewRouter builds a Router over an existing session table, client
// registry, and the TUN device packets should be written to.
func NewRouter(sessions *session.Table, registry *Registry, tun io.Writer) *Router {
	return &Router{sessions: sessions, registry: registry, tun: tun}
}

// DeliverFromClient takes a decrypted DATA payload read from sessionID's
// carrier connection and writes it to the shared TUN device.
func (r *Router) DeliverFromClient(sessionID uint64, payload []byte) error {
	if _, ok := r.sessions.Get(sessionID); !ok {
		return nil // session torn down mid-flight; drop silently
	}
	_, err := r.tun.Write(payload)
	return err
}

// DeliverFromTUN takes a raw IP packet read from the shared TUN device and
// routes it to whichever client's VPN address matches the packet's
// destination, via the client registry.
func (r *Router) DeliverFromTUN(packet []byte) error {
	return r.registry.RouteToClient(packet)
}

// Registry exposes the underlying client registry so callers can bind a
// newly-observed client address to its outbound channel.
func (r *Router) Registry() *Registry {
	return r.registry
}
