package database

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// TeamCount is the number of flagged IPs a team appears on.
type TeamCount struct {
	Team  string
	Count int
}

// TeamFrequencies counts, per team name, the staged rows that mention it and returns
// the teams seen on at least threshold rows, most frequent first.
func TeamFrequencies(db *sql.DB, tableName string, threshold int) ([]TeamCount, error) {
	query := fmt.Sprintf("SELECT team_names FROM %s", tableName)
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var teams []string
		if err := json.Unmarshal([]byte(raw), &teams); err != nil {
			return nil, fmt.Errorf("decode team names: %w", err)
		}
		for _, team := range teams {
			counts[team]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var result []TeamCount
	for team, count := range counts {
		if count >= threshold {
			result = append(result, TeamCount{Team: team, Count: count})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Team < result[j].Team
	})
	return result, nil
}
