package utils

import (
	"fmt"
	"net"
)

// ParseCIDRs parses the allowlist once at startup so the webhook does
// not re-parse on every request. Fails on the first invalid entry.
func ParseCIDRs(cidrs []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, netblock, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
		}
		nets = append(nets, netblock)
	}
	return nets, nil
}

// IPAllowed checks whether the IP address falls inside one of the
// allowed subnetworks.
func IPAllowed(ip string, allowed []*net.IPNet) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, netblock := range allowed {
		if netblock.Contains(parsed) {
			return true
		}
	}
	return false
}
