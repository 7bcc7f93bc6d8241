package analysis

import (
	"fmt"
	"net/netip"
	"strings"
)

// AddressParseError is returned when an address cannot be tested against the ranges.
type AddressParseError struct {
	Input string
	Err   error
}

func (e *AddressParseError) Error() string {
	return fmt.Sprintf("invalid IP address %q: %v", e.Input, e.Err)
}

func (e *AddressParseError) Unwrap() error {
	return e.Err
}

// RangeFilter classifies addresses that belong to shared infrastructure (CDN edges).
type RangeFilter struct {
	prefixes []netip.Prefix
}

// NewRangeFilter parses the CIDR list once. An invalid entry fails the whole filter.
func NewRangeFilter(cidrs []string) (*RangeFilter, error) {
	f := &RangeFilter{prefixes: make([]netip.Prefix, 0, len(cidrs))}
	for _, c := range cidrs {
		p, err := netip.ParsePrefix(strings.TrimSpace(c))
		if err != nil {
			return nil, fmt.Errorf("invalid infrastructure range %q: %w", c, err)
		}
		f.prefixes = append(f.prefixes, p.Masked())
	}
	return f, nil
}

// IsInfrastructureIP reports whether ip falls inside any configured range.
// IPv4-mapped IPv6 addresses are matched against the IPv4 ranges.
func (f *RangeFilter) IsInfrastructureIP(ip string) (bool, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false, &AddressParseError{Input: ip, Err: err}
	}
	addr = addr.Unmap()

	for _, p := range f.prefixes {
		if p.Contains(addr) {
			return true, nil
		}
	}
	return false, nil
}

// Len returns the number of configured ranges.
func (f *RangeFilter) Len() int {
	return len(f.prefixes)
}
