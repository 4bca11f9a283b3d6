// Command llp-server accepts carrier connections from llp-client peers,
// drives the responder handshake on each, and fans decrypted traffic in
// and out of a single shared TUN device. Structured as a cobra CLI with a
// single "serve" subcommand, mirroring llp-client's shape.
package main

import (
	"context"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/llp-vpn/llp/config"
	"github.com/llp-vpn/llp/handshake"
	"github.com/llp-vpn/llp/mimicry"
	"github.com/llp-vpn/llp/netsvc"
	"github.com/llp-vpn/llp/session"
	"github.com/llp-vpn/llp/transport"
	"github.com/llp-vpn/llp/wire"
)

func main() {
	var configFile string

	root := &cobra.Command{
		Use:   "llp-server",
		Short: "LLP VPN server",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Listen for llp-client connections and bring up the tunnel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(configFile)
		},
	}
	serve.Flags().StringVarP(&configFile, "config", "c", "", "configuration file path")
	_ = serve.MarkFlagRequired("config")

	root.AddCommand(serve)
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runServer(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	tunDev, err := transport.OpenTUN(cfg.TunName, cfg.TunAddress)
	if err != nil {
		return err
	}
	defer tunDev.Close()

	sessions := session.NewTable()
	registry := netsvc.NewRegistry()
	router := netsvc.NewRouter(sessions, registry, tunDev)

	ln, err := transport.Listen(cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go reapExpiredSessions(sessions)
	go pumpTUNToClients(tunDev, router)

	log.Printf("llp-server listening on %s", cfg.ListenAddr)
	for {
		carrier, err := ln.Accept()
		if err != nil {
			log.Printf("accept: %v", err)
			continue
		}
		go handleClient(carrier, sessions, registry, router, cfg)
	}
}

// handleClient drives one responder handshake to completion and, on
// success, pumps that client's traffic until the carrier connection or
// session dies.
func handleClient(carrier *transport.Carrier, sessions *session.Table, registry *netsvc.Registry, router *netsvc.Router, cfg *config.Config) {
	defer carrier.Close()

	result, profileID, err := runServerHandshake(carrier, sessions)
	if err != nil {
		log.Printf("handshake from %s failed: %v", carrier.RemoteAddr(), err)
		return
	}
	log.Printf("session %d established from %s (profile=%s)", result.SessionID, carrier.RemoteAddr(), mimicry.ProfileID(profileID))

	sess := session.New(result.SessionID, result.SessionKey, profileID, cfg.SessionConfig())
	sessions.Insert(sess)
	defer func() {
		sess.Close()
		sessions.Remove(result.SessionID)
	}()

	wrapper, err := mimicry.NewWrapper(mimicry.ProfileID(profileID))
	if err != nil {
		log.Printf("session %d: build mimicry wrapper: %v", result.SessionID, err)
		return
	}
	pacer := mimicry.NewPacer(wrapper, cfg.RateLimitBytesPerSec())

	clientToServer(carrier, sess, wrapper, pacer, router)
}

func runServerHandshake(carrier *transport.Carrier, sessions *session.Table) (handshake.Result, uint16, error) {
	server := handshake.NewServer(sessions.AllocateSessionID)

	clientHello, err := carrier.ReadMessage()
	if err != nil {
		return handshake.Result{}, 0, err
	}
	serverHello, err := server.ProcessClientHello(clientHello)
	if err != nil {
		return handshake.Result{}, 0, err
	}
	if err := carrier.WriteMessage(serverHello); err != nil {
		return handshake.Result{}, 0, err
	}

	clientVerify, err := carrier.ReadMessage()
	if err != nil {
		return handshake.Result{}, 0, err
	}
	serverVerify, result, err := server.ProcessClientVerify(clientVerify)
	if err != nil {
		return handshake.Result{}, 0, err
	}
	if err := carrier.WriteMessage(serverVerify); err != nil {
		return handshake.Result{}, 0, err
	}

	return result, server.ProfileID(), nil
}

// clientToServer reads mimicry-wrapped records off one client's carrier
// connection, decrypts them, hands any resulting IP packet to the router
// for delivery onto the shared TUN device, and learns the client's VPN
// address from that packet's source field so later traffic addressed to
// it can be routed back (see registerClientSource).
func clientToServer(carrier *transport.Carrier, sess *session.Session, wrapper *mimicry.Wrapper, pacer *mimicry.Pacer, router *netsvc.Router) {
	out := make(chan []byte, 64)
	defer close(out)

	go func() {
		for packet := range out {
			// Rekeying is initiated by the client; the server only follows
			// inbound REKEY records, so needsRekey is not acted on here.
			record, _, err := sess.Send(packet, wire.FlagData)
			if err != nil {
				log.Printf("session %d: encrypt outbound packet: %v", sess.SessionID(), err)
				continue
			}
			wrapped, err := wrapper.Wrap(record)
			if err != nil {
				log.Printf("session %d: wrap outbound record: %v", sess.SessionID(), err)
				continue
			}
			if err := pacer.WaitToSend(context.Background(), len(wrapped)); err != nil {
				log.Printf("session %d: pace outbound record: %v", sess.SessionID(), err)
				return
			}
			if err := carrier.WriteMessage(wrapped); err != nil {
				log.Printf("session %d: carrier write: %v", sess.SessionID(), err)
				return
			}
		}
	}()

	for {
		if sess.IsIdleTimedOut(time.Now()) {
			log.Printf("session %d idle timeout", sess.SessionID())
			return
		}

		envelope, err := carrier.ReadMessage()
		if err != nil {
			log.Printf("session %d: carrier read: %v", sess.SessionID(), err)
			return
		}
		record, err := wrapper.Unwrap(envelope)
		if err != nil {
			log.Printf("session %d: unwrap inbound envelope: %v", sess.SessionID(), err)
			continue
		}
		result, err := sess.Receive(record)
		if err != nil {
			log.Printf("session %d: decrypt inbound record: %v", sess.SessionID(), err)
			continue
		}

		switch {
		case result.Flags.Has(wire.FlagData):
			if err := router.DeliverFromClient(sess.SessionID(), result.Payload); err != nil {
				log.Printf("session %d: deliver to tun: %v", sess.SessionID(), err)
			}
			registerClientSource(router, sess.SessionID(), result.Payload, out)
		case result.RekeyReady:
			// key already rotated inside Receive; nothing further to do.
		}
	}
}

// registerClientSource binds this session's outbound channel to the
// source IP carried by its first (and every subsequent) decrypted packet,
// so later traffic addressed to that VPN IP from other clients or from
// the TUN device routes back here. Re-registering on every packet is
// idempotent and cheap relative to the AEAD open that already happened.
func registerClientSource(router *netsvc.Router, sessionID uint64, payload []byte, out chan<- []byte) {
	srcIP, ok := netsvc.ExtractSrcIP(payload)
	if !ok {
		return
	}
	router.Registry().Register(srcIP, out)
}

func pumpTUNToClients(tunDev transport.TUNDevice, router *netsvc.Router) {
	buf := make([]byte, 1500)
	for {
		n, err := tunDev.Read(buf)
		if err != nil {
			log.Printf("tun read: %v", err)
			return
		}
		if err := router.DeliverFromTUN(buf[:n]); err != nil {
			log.Printf("deliver from tun: %v", err)
		}
	}
}

func reapExpiredSessions(sessions *session.Table) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		removed := sessions.CleanupExpired(time.Now())
		for _, id := range removed {
			log.Printf("session %d reaped (expired or idle)", id)
		}
	}
}
