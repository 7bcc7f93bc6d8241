package analysis

import (
	"sort"

	"ctfd_ip_scan/internal/logging"
	"ctfd_ip_scan/internal/model"
)

// InfraFilter classifies shared infrastructure addresses. *RangeFilter implements it.
type InfraFilter interface {
	IsInfrastructureIP(ip string) (bool, error)
}

// DetectStats are the counters of the last Detect call.
type DetectStats struct {
	Scanned        int
	Infrastructure int
	ParseFailures  int
	Flagged        int
}

// Detector finds addresses used by accounts of more than one team.
type Detector struct {
	filter          InfraFilter
	distinctUnknown bool
	stats           DetectStats
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithDistinctUnknownTeams makes every user missing from the user table count as
// its own team. By default they all share the "Unknown" team, so two unknown users
// on one address are not flagged.
func WithDistinctUnknownTeams(enabled bool) DetectorOption {
	return func(d *Detector) {
		d.distinctUnknown = enabled
	}
}

// NewDetector returns a detector. A nil filter disables infrastructure filtering.
func NewDetector(filter InfraFilter, opts ...DetectorOption) *Detector {
	d := &Detector{filter: filter}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns every non-infrastructure address whose users resolve to more than
// one team, with the full user set of the address. Results are sorted by address
// for stable output only.
//
// An address the filter cannot parse is logged and kept as not-infrastructure, so a
// malformed row never hides a match nor stops the scan.
func (d *Detector) Detect(ipToUsers map[string]*model.UserSet, userToTeam map[string]string) []model.SharedIPResult {
	d.stats = DetectStats{}
	results := make([]model.SharedIPResult, 0)

	for ip, users := range ipToUsers {
		d.stats.Scanned++

		if d.isInfrastructure(ip) {
			d.stats.Infrastructure++
			continue
		}

		if d.teamCount(users, userToTeam) > 1 {
			results = append(results, model.SharedIPResult{IP: ip, Users: users})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].IP < results[j].IP
	})
	d.stats.Flagged = len(results)
	return results
}

// Stats returns the counters of the last Detect call.
func (d *Detector) Stats() DetectStats {
	return d.stats
}

func (d *Detector) isInfrastructure(ip string) bool {
	if d.filter == nil {
		return false
	}
	infra, err := d.filter.IsInfrastructureIP(ip)
	if err != nil {
		d.stats.ParseFailures++
		logging.Warn().Err(err).Str("ip", ip).Msg("address not checked against infrastructure ranges")
		return false
	}
	return infra
}

func (d *Detector) teamCount(users *model.UserSet, userToTeam map[string]string) int {
	teams := make(map[string]struct{}, users.Len())
	for _, id := range users.IDs() {
		team, ok := userToTeam[id]
		if !ok {
			team = model.UnknownTeam
			if d.distinctUnknown {
				// NUL cannot appear in a CSV-loaded team id
				team = "\x00" + id
			}
		}
		teams[team] = struct{}{}
	}
	return len(teams)
}
