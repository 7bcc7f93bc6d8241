package analysis

import (
	"errors"
	"fmt"

	"ctfd_ip_scan/internal/logging"
	"ctfd_ip_scan/internal/model"
)

// ErrNoTeams means the team table is empty; team based detection is meaningless then.
var ErrNoTeams = errors.New("no team data loaded")

// Index joins the three exports: ip -> users, user -> name/team, team -> name.
type Index struct {
	IPToUsers  map[string]*model.UserSet
	UserToName map[string]string
	UserToTeam map[string]string
	TeamToName map[string]string
	Stats      model.LoadStats
}

// BuildIndex builds the join maps. Tracking records without an ip or user id are
// skipped with a warning. Duplicate user and team ids keep the last row. Users with
// an empty team id get no UserToTeam entry.
func BuildIndex(tracking []model.TrackingRecord, users []model.User, teams []model.Team) *Index {
	idx := &Index{
		IPToUsers:  make(map[string]*model.UserSet),
		UserToName: make(map[string]string, len(users)),
		UserToTeam: make(map[string]string, len(users)),
		TeamToName: make(map[string]string, len(teams)),
	}

	for _, r := range tracking {
		if r.IP == "" || r.UserID == "" {
			idx.Stats.SkippedRows++
			logging.Warn().Int("line", r.Line).Str("ip", r.IP).Str("user_id", r.UserID).Msg("tracking record without ip or user id skipped")
			continue
		}
		set, ok := idx.IPToUsers[r.IP]
		if !ok {
			set = model.NewUserSet()
			idx.IPToUsers[r.IP] = set
		}
		set.Add(r.UserID)
		idx.Stats.TrackingRows++
	}

	for _, u := range users {
		idx.UserToName[u.ID] = u.Name
		if u.TeamID == "" {
			// teamless users resolve like users missing from the table
			delete(idx.UserToTeam, u.ID)
			continue
		}
		idx.UserToTeam[u.ID] = u.TeamID
	}

	for _, t := range teams {
		idx.TeamToName[t.ID] = t.Name
	}

	idx.Stats.IPs = len(idx.IPToUsers)
	idx.Stats.Users = len(idx.UserToName)
	idx.Stats.Teams = len(idx.TeamToName)
	return idx
}

// CheckTeams returns ErrNoTeams when no team was loaded.
func (i *Index) CheckTeams() error {
	if len(i.TeamToName) == 0 {
		return ErrNoTeams
	}
	return nil
}

// TeamOf returns the user's team id, model.UnknownTeam for unknown users.
func (i *Index) TeamOf(userID string) string {
	if team, ok := i.UserToTeam[userID]; ok {
		return team
	}
	return model.UnknownTeam
}

// PseudoOf returns the user's name, model.UnknownPseudo for unknown users.
func (i *Index) PseudoOf(userID string) string {
	if name, ok := i.UserToName[userID]; ok {
		return name
	}
	return model.UnknownPseudo
}

// TeamName returns the team's display name or the "Unknown Team (id)" placeholder.
func (i *Index) TeamName(teamID string) string {
	if name, ok := i.TeamToName[teamID]; ok {
		return name
	}
	return fmt.Sprintf("Unknown Team (%s)", teamID)
}
