package ipam

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrInvalidCIDR = errors.New("invalid cidr")
	// ErrIPv6NotSupported — v6 pools are flagged loudly instead of silently
	// enumerating zero hosts.
	ErrIPv6NotSupported = errors.New("ipv6 enumeration not implemented yet")
)

// NormalizeAddress strips a trailing prefix-length suffix ("10.0.0.5/24" ->
// "10.0.0.5") and surrounding whitespace. Applied at every boundary the
// ledger and cache compare addresses on.
func NormalizeAddress(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}

// EnumerateHosts expands an IPv4 CIDR into its usable host addresses, in
// order: network+1 through broadcast-1, truncated to limit (limit <= 0 means
// no cap). A /31 or /32 has no usable hosts and yields an empty list.
func EnumerateHosts(cidr string, limit int) ([]string, error) {
	ip, nw, err := net.ParseCIDR(strings.TrimSpace(cidr))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCIDR, cidr)
	}
	if ip.To4() == nil {
		return nil, ErrIPv6NotSupported
	}

	ones, bits := nw.Mask.Size()
	if bits != 32 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCIDR, cidr)
	}
	if ones >= 31 {
		return []string{}, nil
	}

	netU := ip4ToUint(nw.IP.To4())
	first := netU + 1                        // network + 1
	last := netU + (1 << uint(32-ones)) - 2  // broadcast - 1
	usable := int(last - first + 1)

	n := usable
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]string, 0, n)
	for u := first; u <= last && len(out) < n; u++ {
		out = append(out, uintToIP4(u).String())
	}
	return out, nil
}

// UsableHostCount — number of addresses EnumerateHosts would return uncapped.
func UsableHostCount(cidr string) (int, error) {
	_, nw, err := net.ParseCIDR(strings.TrimSpace(cidr))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCIDR, cidr)
	}
	ones, bits := nw.Mask.Size()
	if bits != 32 {
		return 0, ErrIPv6NotSupported
	}
	if ones >= 31 {
		return 0, nil
	}
	return (1 << uint(32-ones)) - 2, nil
}

// Contains tests whether a bare address falls inside the CIDR.
func Contains(cidr, address string) bool {
	_, nw, err := net.ParseCIDR(strings.TrimSpace(cidr))
	if err != nil {
		return false
	}
	ip := net.ParseIP(NormalizeAddress(address))
	if ip == nil {
		return false
	}
	return nw.Contains(ip)
}

// Helpers IPv4
func ip4ToUint(ip net.IP) uint32 {
	ip = ip.To4()
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}
func uintToIP4(u uint32) net.IP {
	return net.IPv4(byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}
