package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "llp.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadMinimalClientConfig(t *testing.T) {
	path := writeTempConfig(t, `
peer_addr: "203.0.113.7:51820"
tun_name: "llp0"
tun_address: "10.8.0.2/24"
mimicry_profile: "vk_video"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PeerAddr != "203.0.113.7:51820" {
		t.Errorf("PeerAddr = %q", cfg.PeerAddr)
	}
	if cfg.RekeyPacketThreshold != 1<<20 {
		t.Errorf("RekeyPacketThreshold default = %d, want 2^20", cfg.RekeyPacketThreshold)
	}
	if cfg.MimicryProfileID().String() != "vk_video" {
		t.Errorf("MimicryProfileID() = %v", cfg.MimicryProfileID())
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	path := writeTempConfig(t, `
mimicry_profile: "none"
`)
	if _, err := Load(path); err == nil {
		t.Error("expected an error for a config missing tun_name/tun_address/listen_addr/peer_addr")
	}
}

func TestLoadRejectsUnknownMimicryProfile(t *testing.T) {
	path := writeTempConfig(t, `
listen_addr: "0.0.0.0:51820"
tun_name: "llp0"
tun_address: "10.8.0.1/24"
mimicry_profile: "netflix"
`)
	if _, err := Load(path); err == nil {
		t.Error("expected an error for an unknown mimicry_profile")
	}
}

func TestLoadRejectsDirectoryTraversal(t *testing.T) {
	if _, err := Load("../../../etc/passwd"); err == nil {
		t.Error("expected an error for a config path containing directory traversal")
	}
}

func TestSessionConfigConversion(t *testing.T) {
	path := writeTempConfig(t, `
listen_addr: "0.0.0.0:51820"
tun_name: "llp0"
tun_address: "10.8.0.1/24"
mimicry_profile: "none"
keepalive_interval_secs: 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sc := cfg.SessionConfig()
	if sc.KeepaliveInterval.Seconds() != 5 {
		t.Errorf("KeepaliveInterval = %v, want 5s", sc.KeepaliveInterval)
	}
}
