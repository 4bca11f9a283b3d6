// Command llp-client dials an llp-server peer, completes the handshake,
// and pumps IP traffic between a local TUN interface and the mimicry-
// wrapped carrier connection. Structured as a cobra CLI with a single
// "connect" subcommand, following the teacher's flag-driven main() shape
// generalized from flag.String to cobra flags/subcommands (§B: CLI
// ambient stack).
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/llp-vpn/llp/config"
	"github.com/llp-vpn/llp/handshake"
	"github.com/llp-vpn/llp/mimicry"
	"github.com/llp-vpn/llp/session"
	"github.com/llp-vpn/llp/transport"
	"github.com/llp-vpn/llp/wire"
)

func main() {
	var configFile string

	root := &cobra.Command{
		Use:   "llp-client",
		Short: "LLP VPN client",
	}

	connect := &cobra.Command{
		Use:   "connect",
		Short: "Connect to an llp-server peer and bring up the tunnel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(configFile)
		},
	}
	connect.Flags().StringVarP(&configFile, "config", "c", "", "configuration file path")
	_ = connect.MarkFlagRequired("config")

	root.AddCommand(connect)
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runClient(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	carrier, err := transport.DialCarrier(cfg.PeerAddr)
	if err != nil {
		return fmt.Errorf("dial carrier: %w", err)
	}
	defer carrier.Close()

	result, profileID, err := runClientHandshake(carrier, cfg)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	log.Printf("handshake established: session_id=%d profile=%s", result.SessionID, mimicry.ProfileID(profileID))

	sess := session.New(result.SessionID, result.SessionKey, profileID, cfg.SessionConfig())
	wrapper, err := mimicry.NewWrapper(mimicry.ProfileID(profileID))
	if err != nil {
		return fmt.Errorf("build mimicry wrapper: %w", err)
	}

	tunDev, err := transport.OpenTUN(cfg.TunName, cfg.TunAddress)
	if err != nil {
		return fmt.Errorf("open tun: %w", err)
	}
	defer tunDev.Close()

	pacer := mimicry.NewPacer(wrapper, cfg.RateLimitBytesPerSec())

	pump := newPump(sess, wrapper, pacer, carrier, tunDev)
	return pump.run()
}

// runClientHandshake drives the four-message exchange over carrier and
// returns the resulting session key material plus the profile id. SERVER_HELLO
// carries no profile id: LLP's profile id is client-chosen and never
// renegotiated, so it is simply the one the client sent in CLIENT_HELLO.
func runClientHandshake(carrier *transport.Carrier, cfg *config.Config) (handshake.Result, uint16, error) {
	profileID := uint16(cfg.MimicryProfileID())

	client, err := handshake.NewClient(profileID)
	if err != nil {
		return handshake.Result{}, 0, err
	}

	clientHello, err := client.Start()
	if err != nil {
		return handshake.Result{}, 0, err
	}
	if err := carrier.WriteMessage(clientHello); err != nil {
		return handshake.Result{}, 0, err
	}

	serverHello, err := carrier.ReadMessage()
	if err != nil {
		return handshake.Result{}, 0, err
	}
	clientVerify, err := client.ProcessServerHello(serverHello)
	if err != nil {
		return handshake.Result{}, 0, err
	}
	if err := carrier.WriteMessage(clientVerify); err != nil {
		return handshake.Result{}, 0, err
	}

	serverVerify, err := carrier.ReadMessage()
	if err != nil {
		return handshake.Result{}, 0, err
	}
	result, err := client.ProcessServerVerify(serverVerify)
	if err != nil {
		return handshake.Result{}, 0, err
	}

	return result, profileID, nil
}

// pump moves IP packets between a TUN device and a mimicry-wrapped
// carrier connection, two directions each on its own goroutine, mirroring
// the teacher's tunReader/udpReader split in device/loop.go.
type pump struct {
	sess    *session.Session
	wrapper *mimicry.Wrapper
	pacer   *mimicry.Pacer
	carrier *transport.Carrier
	tun     transport.TUNDevice

	errCh chan error
}

func newPump(sess *session.Session, wrapper *mimicry.Wrapper, pacer *mimicry.Pacer, carrier *transport.Carrier, tun transport.TUNDevice) *pump {
	return &pump{sess: sess, wrapper: wrapper, pacer: pacer, carrier: carrier, tun: tun, errCh: make(chan error, 2)}
}

func (p *pump) run() error {
	go p.tunToCarrier()
	go p.carrierToTun()
	go p.keepaliveLoop()
	return <-p.errCh
}

func (p *pump) tunToCarrier() {
	buf := make([]byte, 1500)
	for {
		n, err := p.tun.Read(buf)
		if err != nil {
			p.errCh <- fmt.Errorf("tun read: %w", err)
			return
		}
		record, needsRekey, err := p.sess.Send(buf[:n], wire.FlagData)
		if err != nil {
			log.Printf("encrypt outbound packet: %v", err)
			continue
		}
		if err := p.sendRecord(record); err != nil {
			p.errCh <- err
			return
		}
		if needsRekey {
			if err := p.initiateRekey(); err != nil {
				p.errCh <- err
				return
			}
		}
	}
}

func (p *pump) carrierToTun() {
	for {
		envelope, err := p.carrier.ReadMessage()
		if err != nil {
			p.errCh <- fmt.Errorf("carrier read: %w", err)
			return
		}
		record, err := p.wrapper.Unwrap(envelope)
		if err != nil {
			log.Printf("unwrap inbound envelope: %v", err)
			continue
		}
		result, err := p.sess.Receive(record)
		if err != nil {
			log.Printf("decrypt inbound record: %v", err)
			continue
		}
		if result.Flags.Has(wire.FlagData) {
			if _, err := p.tun.Write(result.Payload); err != nil {
				p.errCh <- fmt.Errorf("tun write: %w", err)
				return
			}
		}
	}
}

func (p *pump) keepaliveLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if p.sess.State() == session.StateClosed {
			return
		}
		now := time.Now()
		if p.sess.IsIdleTimedOut(now) {
			p.errCh <- fmt.Errorf("session idle timeout")
			return
		}
		if p.sess.NeedsKeepalive(now) {
			record, err := p.sess.BuildKeepalive()
			if err != nil {
				log.Printf("build keepalive: %v", err)
				continue
			}
			if err := p.sendRecord(record); err != nil {
				p.errCh <- err
				return
			}
		}
	}
}

func (p *pump) sendRecord(record []byte) error {
	envelope, err := p.wrapper.Wrap(record)
	if err != nil {
		return fmt.Errorf("wrap outbound record: %w", err)
	}
	if err := p.pacer.WaitToSend(context.Background(), len(envelope)); err != nil {
		return fmt.Errorf("pace outbound record: %w", err)
	}
	if err := p.carrier.WriteMessage(envelope); err != nil {
		return fmt.Errorf("carrier write: %w", err)
	}
	return nil
}

func (p *pump) initiateRekey() error {
	record, err := p.sess.InitiateRekey()
	if err != nil {
		return fmt.Errorf("initiate rekey: %w", err)
	}
	return p.sendRecord(record)
}
