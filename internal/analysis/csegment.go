package analysis

import (
	"net/netip"
	"sort"
	"strings"

	"ctfd_ip_scan/internal/model"
)

// SegmentInfo is a network segment holding several flagged addresses.
type SegmentInfo struct {
	CIDR  string
	IPs   []string
	Teams []string // display names of every team seen on the segment
}

// SegmentRollup groups flagged addresses by /24 (IPv4) or /64 (IPv6) and returns the
// segments holding at least minIPs of them, densest first. minIPs <= 0 returns nil.
// Addresses that do not parse are ignored here; Detect has already reported them.
func SegmentRollup(results []model.SharedIPResult, idx *Index, minIPs int) []SegmentInfo {
	if minIPs <= 0 {
		return nil
	}

	type segment struct {
		ips   []string
		teams map[string]struct{}
	}
	segments := make(map[netip.Prefix]*segment)

	for _, r := range results {
		addr, err := netip.ParseAddr(strings.TrimSpace(r.IP))
		if err != nil {
			continue
		}
		addr = addr.Unmap()

		bits := 64
		if addr.Is4() {
			bits = 24
		}
		p, err := addr.Prefix(bits)
		if err != nil {
			continue
		}

		seg, ok := segments[p]
		if !ok {
			seg = &segment{teams: make(map[string]struct{})}
			segments[p] = seg
		}
		seg.ips = append(seg.ips, r.IP)
		for _, id := range r.Users.IDs() {
			seg.teams[idx.TeamName(idx.TeamOf(id))] = struct{}{}
		}
	}

	var out []SegmentInfo
	for p, seg := range segments {
		if len(seg.ips) < minIPs {
			continue
		}
		sort.Strings(seg.ips)
		out = append(out, SegmentInfo{
			CIDR:  p.String(),
			IPs:   seg.ips,
			Teams: sortedKeys(seg.teams),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if len(out[i].IPs) != len(out[j].IPs) {
			return len(out[i].IPs) > len(out[j].IPs)
		}
		return out[i].CIDR < out[j].CIDR
	})
	return out
}

// IsMixed reports whether more than one team appears on the segment.
func (s SegmentInfo) IsMixed() bool {
	return len(s.Teams) > 1
}
