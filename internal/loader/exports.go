package loader

import (
	"fmt"

	"ctfd_ip_scan/internal/model"
)

// ReadTracking loads the tracking export (columns ip, user_id). Rows with an empty
// ip or user id are returned as is; the join skips them.
func ReadTracking(path string) ([]model.TrackingRecord, Warnings, error) {
	var warnings Warnings
	t, err := readTable(path, &warnings)
	if err != nil {
		return nil, warnings, err
	}
	for _, col := range []string{"ip", "user_id"} {
		if !t.has(col) {
			return nil, warnings, fmt.Errorf("%s: missing required column %q", path, col)
		}
	}

	records := make([]model.TrackingRecord, 0, len(t.rows))
	for i := range t.rows {
		records = append(records, model.TrackingRecord{
			IP:     t.get(i, "ip"),
			UserID: t.get(i, "user_id"),
			Line:   t.lines[i],
		})
	}
	return records, warnings, nil
}

// ReadUsers loads the user export (columns id, name, team_id). Missing name or
// team_id columns only produce a warning.
func ReadUsers(path string) ([]model.User, Warnings, error) {
	var warnings Warnings
	t, err := readTable(path, &warnings)
	if err != nil {
		return nil, warnings, err
	}
	if !t.has("id") {
		return nil, warnings, fmt.Errorf("%s: missing required column %q", path, "id")
	}
	for _, col := range []string{"name", "team_id"} {
		if !t.has(col) {
			warnings.add(path, 0, "column %q is missing", col)
		}
	}

	users := make([]model.User, 0, len(t.rows))
	for i := range t.rows {
		users = append(users, model.User{
			ID:     t.get(i, "id"),
			Name:   t.get(i, "name"),
			TeamID: t.get(i, "team_id"),
		})
	}
	return users, warnings, nil
}

// ReadTeams loads the team export. The display name is the first non-empty value of
// name, oauth_id and email, then "Unknown Team <id>".
func ReadTeams(path string) ([]model.Team, Warnings, error) {
	var warnings Warnings
	t, err := readTable(path, &warnings)
	if err != nil {
		return nil, warnings, err
	}
	if !t.has("id") {
		return nil, warnings, fmt.Errorf("%s: missing required column %q", path, "id")
	}
	if !t.has("name") {
		warnings.add(path, 0, "column %q is missing, falling back to oauth_id/email", "name")
	}

	teams := make([]model.Team, 0, len(t.rows))
	for i := range t.rows {
		id := t.get(i, "id")
		name := firstNonEmpty(t.get(i, "name"), t.get(i, "oauth_id"), t.get(i, "email"))
		if name == "" {
			name = fmt.Sprintf("Unknown Team %s", id)
			if t.has("name") {
				warnings.add(path, t.lines[i], "team %q has no name", id)
			}
		}
		teams = append(teams, model.Team{ID: id, Name: name})
	}
	return teams, warnings, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
