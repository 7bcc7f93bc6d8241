package analysis

import (
	"sort"

	"ctfd_ip_scan/internal/model"
)

// Aggregate resolves a result to display names. Pseudos keep the order in which users
// were first seen at the address; team names are de-duplicated and sorted. ISP is left
// empty for the caller to fill with a single lookup.
func Aggregate(r model.SharedIPResult, idx *Index) model.EnrichedRow {
	ids := r.Users.IDs()
	pseudos := make([]string, 0, len(ids))
	teamSet := make(map[string]struct{}, len(ids))

	for _, id := range ids {
		pseudos = append(pseudos, idx.PseudoOf(id))
		teamSet[idx.TeamName(idx.TeamOf(id))] = struct{}{}
	}

	return model.EnrichedRow{
		IP:        r.IP,
		Pseudos:   pseudos,
		TeamNames: sortedKeys(teamSet),
	}
}

// AggregateAll maps Aggregate over results, keeping their order.
func AggregateAll(results []model.SharedIPResult, idx *Index) []model.EnrichedRow {
	rows := make([]model.EnrichedRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, Aggregate(r, idx))
	}
	return rows
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
