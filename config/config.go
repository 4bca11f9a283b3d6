// config.go
//
// Configuration loading (§F / §6). Adapted from the teacher's
// config.go: same path-traversal guard and "collect every missing
// required field before failing" validation discipline, but the file
// format moves from WireGuard's flat KEY=VALUE pairs to YAML, since LLP's
// configuration surface is a larger set of typed fields (timing knobs,
// profile name) rather than a handful of keys, and no static keypair needs decoding — the
// core's DH keys are ephemeral per connection.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/llp-vpn/llp/mimicry"
	"github.com/llp-vpn/llp/session"
)

// Config holds everything a runnable llp-server or llp-client binary
// needs beyond the ephemeral key material the handshake generates itself.
type Config struct {
	ListenAddr string `yaml:"listen_addr"` // server only
	PeerAddr   string `yaml:"peer_addr"`   // client only

	TunName    string `yaml:"tun_name"`
	TunAddress string `yaml:"tun_address"`

	MimicryProfile              string `yaml:"mimicry_profile"`
	MimicryRateLimitBytesPerSec int    `yaml:"mimicry_rate_limit_bytes_per_sec"`

	ReplayWindowSize      int    `yaml:"replay_window_size"`
	MaxTimestampDriftSecs int    `yaml:"max_timestamp_drift_secs"`
	KeepaliveIntervalSecs int    `yaml:"keepalive_interval_secs"`
	KeepaliveTimeoutSecs  int    `yaml:"keepalive_timeout_secs"`
	RekeyPacketThreshold  uint64 `yaml:"rekey_packet_threshold"`
	SessionLifetimeSecs   int    `yaml:"session_lifetime_secs"`
	HandshakeTimeoutSecs  int    `yaml:"handshake_timeout_secs"`
}

var mimicryProfileNames = map[string]mimicry.ProfileID{
	"none":         mimicry.ProfileNone,
	"vk_video":     mimicry.ProfileVkVideo,
	"yandex_music": mimicry.ProfileYandexMusic,
	"rutube":       mimicry.ProfileRuTube,
}

// Load reads and parses a YAML configuration file, rejecting any path
// containing a directory-traversal segment the same way the teacher's
// LoadConfig did.
func Load(configFile string) (*Config, error) {
	cleanPath := filepath.Clean(configFile)
	if strings.Contains(cleanPath, "..") {
		return nil, oops.Code("codec").Errorf("invalid config file path: directory traversal not allowed")
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, oops.Code("resource").Wrapf(err, "open config file")
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, oops.Code("codec").Wrapf(err, "parse config file")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	d := session.DefaultConfig()
	return &Config{
		MimicryProfile:              "none",
		MimicryRateLimitBytesPerSec: 2 << 20, // 2 MiB/s, a plausible single-stream video/audio ceiling
		ReplayWindowSize:            d.ReplayWindowSize,
		MaxTimestampDriftSecs:       int(d.MaxTimestampDrift / time.Second),
		KeepaliveIntervalSecs:       int(d.KeepaliveInterval / time.Second),
		KeepaliveTimeoutSecs:        int(d.KeepaliveTimeout / time.Second),
		RekeyPacketThreshold:        d.RekeyPacketThreshold,
		SessionLifetimeSecs:         int(d.SessionLifetime / time.Second),
		HandshakeTimeoutSecs:        10,
	}
}

func (c *Config) validate() error {
	var missing []string
	if c.TunName == "" {
		missing = append(missing, "tun_name")
	}
	if c.TunAddress == "" {
		missing = append(missing, "tun_address")
	}
	if c.ListenAddr == "" && c.PeerAddr == "" {
		missing = append(missing, "listen_addr or peer_addr")
	}
	if len(missing) > 0 {
		return oops.Code("codec").Errorf("missing required configuration values: %v", missing)
	}

	if _, ok := mimicryProfileNames[c.MimicryProfile]; !ok {
		return oops.Code("codec").Errorf("unknown mimicry_profile %q", c.MimicryProfile)
	}
	return nil
}

// MimicryProfileID resolves the configured profile name to its wire id.
func (c *Config) MimicryProfileID() mimicry.ProfileID {
	return mimicryProfileNames[c.MimicryProfile]
}

// SessionConfig builds a session.Config from the loaded duration/threshold
// fields.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		ReplayWindowSize:     c.ReplayWindowSize,
		MaxTimestampDrift:    time.Duration(c.MaxTimestampDriftSecs) * time.Second,
		KeepaliveInterval:    time.Duration(c.KeepaliveIntervalSecs) * time.Second,
		KeepaliveTimeout:     time.Duration(c.KeepaliveTimeoutSecs) * time.Second,
		RekeyPacketThreshold: c.RekeyPacketThreshold,
		SessionLifetime:      time.Duration(c.SessionLifetimeSecs) * time.Second,
	}
}

// HandshakeTimeout returns the configured handshake deadline as a
// time.Duration.
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutSecs) * time.Second
}

// RateLimitBytesPerSec returns the configured mimicry pacer ceiling.
func (c *Config) RateLimitBytesPerSec() int {
	return c.MimicryRateLimitBytesPerSec
}

