// Package database stages enriched rows in an in-memory SQLite table for the run.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"ctfd_ip_scan/internal/logging"
	"ctfd_ip_scan/internal/model"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// mergeValues returns a followed by the values of b it does not already hold.
func mergeValues(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range append(append([]string(nil), a...), b...) {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// InitDB opens a private in-memory database and creates tableName in it. Nothing is
// written to disk.
func InitDB(tableName string) (*sql.DB, error) {
	if !tableNamePattern.MatchString(tableName) {
		return nil, fmt.Errorf("invalid table name %q", tableName)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// every new connection would get its own empty memory database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA encoding = 'UTF-8'"); err != nil {
		db.Close()
		return nil, err
	}

	createStmt := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    ip TEXT PRIMARY KEY,
    isp TEXT NOT NULL DEFAULT '',
    pseudos TEXT NOT NULL DEFAULT '[]',
    team_names TEXT NOT NULL DEFAULT '[]'
);
`, tableName)
	if _, err := db.Exec(createStmt); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// SaveRows upserts rows keyed by IP. A row for an IP already stored is merged: pseudonyms
// and team names are unioned, and a non-empty ISP replaces the stored one.
func SaveRows(db *sql.DB, tableName string, rows []model.EnrichedRow) error {
	querySQL := fmt.Sprintf("SELECT isp, pseudos, team_names FROM %s WHERE ip = ?", tableName)
	upsertSQL := fmt.Sprintf(`
INSERT INTO %s (ip, isp, pseudos, team_names)
VALUES (?, ?, ?, ?)
ON CONFLICT(ip) DO UPDATE SET
    isp=excluded.isp,
    pseudos=excluded.pseudos,
    team_names=excluded.team_names;
`, tableName)

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	queryStmt, err := tx.Prepare(querySQL)
	if err != nil {
		return err
	}
	defer queryStmt.Close()

	upsertStmt, err := tx.Prepare(upsertSQL)
	if err != nil {
		return err
	}
	defer upsertStmt.Close()

	for _, r := range rows {
		row := r
		var isp, pseudos, teams string
		err := queryStmt.QueryRow(r.IP).Scan(&isp, &pseudos, &teams)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("query row %s: %w", r.IP, err)
		default:
			existing, err := decodeRow(r.IP, isp, pseudos, teams)
			if err != nil {
				return err
			}
			row = mergeRows(existing, r)
			logging.Debug().Str("ip", r.IP).Msg("merged duplicate row")
		}

		pseudosJSON, err := json.Marshal(nonNil(row.Pseudos))
		if err != nil {
			return err
		}
		teamsJSON, err := json.Marshal(nonNil(row.TeamNames))
		if err != nil {
			return err
		}
		if _, err := upsertStmt.Exec(row.IP, row.ISP, string(pseudosJSON), string(teamsJSON)); err != nil {
			return fmt.Errorf("upsert row %s: %w", row.IP, err)
		}
	}

	return tx.Commit()
}

// LoadRows returns every staged row ordered by IP.
func LoadRows(db *sql.DB, tableName string) ([]model.EnrichedRow, error) {
	query := fmt.Sprintf("SELECT ip, isp, pseudos, team_names FROM %s ORDER BY ip", tableName)
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.EnrichedRow
	for rows.Next() {
		var ip, isp, pseudos, teams string
		if err := rows.Scan(&ip, &isp, &pseudos, &teams); err != nil {
			return nil, err
		}
		row, err := decodeRow(ip, isp, pseudos, teams)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// CountRows returns the number of staged rows.
func CountRows(db *sql.DB, tableName string) (int, error) {
	var count int
	err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName)).Scan(&count)
	return count, err
}

func decodeRow(ip, isp, pseudos, teams string) (model.EnrichedRow, error) {
	row := model.EnrichedRow{IP: ip, ISP: isp}
	if err := json.Unmarshal([]byte(pseudos), &row.Pseudos); err != nil {
		return row, fmt.Errorf("decode pseudos of %s: %w", ip, err)
	}
	if err := json.Unmarshal([]byte(teams), &row.TeamNames); err != nil {
		return row, fmt.Errorf("decode team names of %s: %w", ip, err)
	}
	return row, nil
}

func mergeRows(existing, incoming model.EnrichedRow) model.EnrichedRow {
	merged := model.EnrichedRow{
		IP:        existing.IP,
		ISP:       existing.ISP,
		Pseudos:   mergeValues(existing.Pseudos, incoming.Pseudos),
		TeamNames: mergeValues(existing.TeamNames, incoming.TeamNames),
	}
	if incoming.ISP != "" {
		merged.ISP = incoming.ISP
	}
	sort.Strings(merged.TeamNames)
	return merged
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
