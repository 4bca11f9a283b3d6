// tun.go
//
// TUN device setup, adapted from the teacher's tun/tun.go: same
// songgao/water-backed interface and the same command-injection-safe
// validation discipline for the interface name and address before
// shelling out to `ip`, generalized from the teacher's WireGuard-specific
// naming to LLP's.

package transport

import (
	"net"
	"os/exec"
	"regexp"
	"strings"

	"github.com/samber/oops"
	"github.com/songgao/water"
)

// TUNDevice is the minimal surface LLP needs from a TUN interface —
// narrow enough to mock in tests.
type TUNDevice interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
	Close() error
}

var validInterfaceName = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// validateInterfaceName prevents command injection through the interface
// name before it is interpolated into an `ip` invocation.
func validateInterfaceName(name string) error {
	if !validInterfaceName.MatchString(name) {
		return oops.Code("codec").Errorf("invalid interface name %q (unsafe characters)", name)
	}
	if len(name) > 16 {
		return oops.Code("codec").Errorf("interface name %q too long (max 16 chars)", name)
	}
	return nil
}

// validateTUNAddress ensures a CIDR address is well-formed and free of
// shell metacharacters before it is interpolated into an `ip` invocation.
func validateTUNAddress(address string) error {
	if _, _, err := net.ParseCIDR(address); err != nil {
		return oops.Code("codec").Wrapf(err, "invalid TUN address %q", address)
	}
	if strings.ContainsAny(address, ";|&$`(){}[]\\\"'<>*?") {
		return oops.Code("codec").Errorf("TUN address %q contains unsafe characters", address)
	}
	return nil
}

// OpenTUN creates and configures a TUN interface named tunName with
// address tunAddress (a CIDR, e.g. "10.8.0.1/24"). An empty tunAddress
// leaves the interface unconfigured and down.
func OpenTUN(tunName, tunAddress string) (TUNDevice, error) {
	config := water.Config{DeviceType: water.TUN}
	config.Name = tunName

	iface, err := water.New(config)
	if err != nil {
		return nil, oops.Code("resource").Wrapf(err, "create TUN interface")
	}

	if tunAddress == "" {
		return iface, nil
	}

	if err := validateTUNAddress(tunAddress); err != nil {
		return nil, err
	}
	if err := validateInterfaceName(iface.Name()); err != nil {
		return nil, err
	}

	// #nosec G204 -- tunAddress and iface.Name() are validated above.
	if err := exec.Command("ip", "addr", "add", tunAddress, "dev", iface.Name()).Run(); err != nil {
		return nil, oops.Code("resource").Wrapf(err, "add address %s to %s", tunAddress, iface.Name())
	}
	// #nosec G204 -- iface.Name() is validated above.
	if err := exec.Command("ip", "link", "set", iface.Name(), "up").Run(); err != nil {
		return nil, oops.Code("resource").Wrapf(err, "bring up interface %s", iface.Name())
	}

	return iface, nil
}
