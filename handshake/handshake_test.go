package handshake

import (
	"testing"

	"github.com/llp-vpn/llp/wire"
)

func fixedSessionIDAllocator(id uint64) SessionIDAllocator {
	return func() (uint64, error) { return id, nil }
}

func TestFullHandshake(t *testing.T) {
	client, err := NewClient(1)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	server := NewServer(fixedSessionIDAllocator(0xDA44E0CCF7B21097))

	clientHello, err := client.Start()
	if err != nil {
		t.Fatalf("client start: %v", err)
	}
	if len(clientHello) != wire.ClientHelloSize {
		t.Fatalf("client hello size = %d, want %d", len(clientHello), wire.ClientHelloSize)
	}

	t.Run("server processes client hello", func(t *testing.T) {
		serverHello, err := server.ProcessClientHello(clientHello)
		if err != nil {
			t.Fatalf("process client hello: %v", err)
		}
		if len(serverHello) != wire.ServerHelloSize {
			t.Fatalf("server hello size = %d, want %d", len(serverHello), wire.ServerHelloSize)
		}

		t.Run("client processes server hello", func(t *testing.T) {
			clientVerify, err := client.ProcessServerHello(serverHello)
			if err != nil {
				t.Fatalf("process server hello: %v", err)
			}
			if len(clientVerify) != wire.ClientVerifySize {
				t.Fatalf("client verify size = %d, want %d", len(clientVerify), wire.ClientVerifySize)
			}

			t.Run("server processes client verify", func(t *testing.T) {
				serverVerify, serverResult, err := server.ProcessClientVerify(clientVerify)
				if err != nil {
					t.Fatalf("process client verify: %v", err)
				}
				if len(serverVerify) != wire.ServerVerifySize {
					t.Fatalf("server verify size = %d, want %d", len(serverVerify), wire.ServerVerifySize)
				}
				if serverResult.SessionID != 0xDA44E0CCF7B21097 {
					t.Errorf("server session id = %#x, want %#x", serverResult.SessionID, uint64(0xDA44E0CCF7B21097))
				}

				t.Run("client processes server verify", func(t *testing.T) {
					clientResult, err := client.ProcessServerVerify(serverVerify)
					if err != nil {
						t.Fatalf("process server verify: %v", err)
					}

					if clientResult.SessionID != serverResult.SessionID {
						t.Error("client and server session ids differ")
					}
					if clientResult.SessionKey != serverResult.SessionKey {
						t.Error("client and server session keys differ")
					}
					if client.State() != ClientEstablished {
						t.Error("client did not reach Established")
					}
					if server.State() != ServerEstablished {
						t.Error("server did not reach Established")
					}
				})
			})
		})
	})
}

func TestHandshakeInvalidState(t *testing.T) {
	client, err := NewClient(0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	// ProcessServerHello before Start: wrong state.
	if _, err := client.ProcessServerHello(make([]byte, wire.ServerHelloSize)); err == nil {
		t.Error("expected state error calling ProcessServerHello before Start")
	}
	if client.State() != ClientFailed {
		t.Error("client should move to Failed on a state error")
	}

	server := NewServer(fixedSessionIDAllocator(1))
	if _, _, err := server.ProcessClientVerify(make([]byte, wire.ClientVerifySize)); err == nil {
		t.Error("expected state error calling ProcessClientVerify before ProcessClientHello")
	}
	if server.State() != ServerFailed {
		t.Error("server should move to Failed on a state error")
	}
}

func TestHandshakeWrongHMAC(t *testing.T) {
	client, err := NewClient(0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	server := NewServer(fixedSessionIDAllocator(7))

	clientHello, err := client.Start()
	if err != nil {
		t.Fatalf("client start: %v", err)
	}
	serverHello, err := server.ProcessClientHello(clientHello)
	if err != nil {
		t.Fatalf("process client hello: %v", err)
	}
	clientVerify, err := client.ProcessServerHello(serverHello)
	if err != nil {
		t.Fatalf("process server hello: %v", err)
	}

	tampered := append([]byte(nil), clientVerify...)
	tampered[1] ^= 0xFF
	if _, _, err := server.ProcessClientVerify(tampered); err == nil {
		t.Error("expected hmac mismatch error for tampered client verify")
	}
	if server.State() != ServerFailed {
		t.Error("server should move to Failed after an hmac mismatch")
	}
}

func TestHandshakeRejectsZeroPeerKey(t *testing.T) {
	server := NewServer(fixedSessionIDAllocator(1))
	var clientHello wire.ClientHello // zero-valued ClientPub
	if _, err := server.ProcessClientHello(clientHello.Marshal()); err == nil {
		t.Error("expected error processing a client hello with an all-zero public key")
	}
}

func TestHandshakeTranscriptAgreement(t *testing.T) {
	client, err := NewClient(2)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	server := NewServer(fixedSessionIDAllocator(9))

	clientHello, _ := client.Start()
	serverHello, err := server.ProcessClientHello(clientHello)
	if err != nil {
		t.Fatalf("process client hello: %v", err)
	}
	if _, err := client.ProcessServerHello(serverHello); err != nil {
		t.Fatalf("process server hello: %v", err)
	}

	want := buildTranscript(clientHello, serverHello)
	got := buildTranscript(client.clientHelloBytes, client.serverHelloBytes)
	if len(want) != wire.ClientHelloSize+wire.ServerHelloSize {
		t.Fatalf("transcript length = %d, want %d", len(want), wire.ClientHelloSize+wire.ServerHelloSize)
	}
	if string(want) != string(got) {
		t.Error("client and server transcripts diverge before verify")
	}
}
