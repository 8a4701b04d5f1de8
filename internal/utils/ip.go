package utils

import (
	"net/netip"
	"strings"
)

// Allowlist is a set of networks a caller address must fall into. Single
// addresses are accepted as host prefixes.
type Allowlist struct {
	prefixes []netip.Prefix
}

// ParseAllowlist returns the list built from the valid entries together with
// the entries it could not parse.
func ParseAllowlist(entries []string) (Allowlist, []string) {
	var (
		list    Allowlist
		invalid []string
	)
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if p, err := netip.ParsePrefix(raw); err == nil {
			list.prefixes = append(list.prefixes, p.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(raw); err == nil {
			list.prefixes = append(list.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		invalid = append(invalid, raw)
	}
	return list, invalid
}

// Empty reports whether no network was configured.
func (a Allowlist) Empty() bool {
	return len(a.prefixes) == 0
}

// Allows reports whether ip belongs to one of the networks. IPv4-mapped IPv6
// addresses match their IPv4 form.
func (a Allowlist) Allows(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range a.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
