package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctfd_ip_scan/internal/model"
)

// stubFilter marks listed addresses as infrastructure and fails on listed bad ones.
type stubFilter struct {
	infra map[string]bool
	bad   map[string]bool
	calls int
}

func (s *stubFilter) IsInfrastructureIP(ip string) (bool, error) {
	s.calls++
	if s.bad[ip] {
		return false, &AddressParseError{Input: ip, Err: errors.New("bad")}
	}
	return s.infra[ip], nil
}

func ipsOf(results []model.SharedIPResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.IP)
	}
	return out
}

func TestDetectScenarios(t *testing.T) {
	tracking := []model.TrackingRecord{
		{IP: "1.2.3.4", UserID: "u1"},
		{IP: "1.2.3.4", UserID: "u2"},
		{IP: "173.245.48.1", UserID: "u1"},
		{IP: "173.245.48.1", UserID: "u2"},
		{IP: "9.9.9.9", UserID: "u3"},
	}
	users := []model.User{
		{ID: "u1", Name: "Alice", TeamID: "A"},
		{ID: "u2", Name: "Bob", TeamID: "B"},
		{ID: "u3", Name: "Carol", TeamID: "C"},
	}
	teams := []model.Team{{ID: "A", Name: "Red"}, {ID: "B", Name: "Blue"}, {ID: "C", Name: "Green"}}

	idx := BuildIndex(tracking, users, teams)
	d := NewDetector(newDefaultFilter(t))
	results := d.Detect(idx.IPToUsers, idx.UserToTeam)

	require.Equal(t, []string{"1.2.3.4"}, ipsOf(results))
	assert.Equal(t, []string{"u1", "u2"}, results[0].Users.IDs())

	stats := d.Stats()
	assert.Equal(t, 3, stats.Scanned)
	assert.Equal(t, 1, stats.Infrastructure)
	assert.Equal(t, 1, stats.Flagged)
	assert.Equal(t, 0, stats.ParseFailures)
}

func TestDetectSameTeamNotFlagged(t *testing.T) {
	ipToUsers := map[string]*model.UserSet{
		"5.5.5.5": model.NewUserSet("u1", "u2", "u3"),
	}
	userToTeam := map[string]string{"u1": "A", "u2": "A", "u3": "A"}

	results := NewDetector(nil).Detect(ipToUsers, userToTeam)
	assert.Empty(t, results)
}

func TestDetectKeepsFullUserSet(t *testing.T) {
	ipToUsers := map[string]*model.UserSet{
		"5.5.5.5": model.NewUserSet("u1", "u2", "u3"),
	}
	userToTeam := map[string]string{"u1": "A", "u2": "A", "u3": "B"}

	results := NewDetector(nil).Detect(ipToUsers, userToTeam)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"u1", "u2", "u3"}, results[0].Users.IDs())
}

func TestDetectUnknownUsersCollapse(t *testing.T) {
	ipToUsers := map[string]*model.UserSet{
		"5.5.5.5": model.NewUserSet("ghost1", "ghost2"),
		"6.6.6.6": model.NewUserSet("ghost1", "u1"),
	}
	userToTeam := map[string]string{"u1": "A"}

	results := NewDetector(nil).Detect(ipToUsers, userToTeam)
	// both ghosts resolve to "Unknown": one team
	assert.Equal(t, []string{"6.6.6.6"}, ipsOf(results))
}

func TestDetectUnknownTeamIsARealTeam(t *testing.T) {
	ipToUsers := map[string]*model.UserSet{
		"5.5.5.5": model.NewUserSet("ghost", "u1"),
	}
	// u1 literally belongs to a team called "Unknown"
	userToTeam := map[string]string{"u1": model.UnknownTeam}

	results := NewDetector(nil).Detect(ipToUsers, userToTeam)
	assert.Empty(t, results)
}

func TestDetectDistinctUnknownTeams(t *testing.T) {
	ipToUsers := map[string]*model.UserSet{
		"5.5.5.5": model.NewUserSet("ghost1", "ghost2"),
		"7.7.7.7": model.NewUserSet("ghost1"),
	}

	results := NewDetector(nil, WithDistinctUnknownTeams(true)).Detect(ipToUsers, map[string]string{})
	assert.Equal(t, []string{"5.5.5.5"}, ipsOf(results))
}

func TestDetectSingleUserNeverFlagged(t *testing.T) {
	ipToUsers := map[string]*model.UserSet{
		"9.9.9.9": model.NewUserSet("u3"),
	}
	results := NewDetector(nil, WithDistinctUnknownTeams(true)).Detect(ipToUsers, map[string]string{"u3": "C"})
	assert.Empty(t, results)
}

func TestDetectInfrastructureTakesPrecedence(t *testing.T) {
	filter := &stubFilter{infra: map[string]bool{"1.1.1.1": true}}
	ipToUsers := map[string]*model.UserSet{
		"1.1.1.1": model.NewUserSet("u1", "u2"),
	}
	userToTeam := map[string]string{"u1": "A", "u2": "B"}

	results := NewDetector(filter).Detect(ipToUsers, userToTeam)
	assert.Empty(t, results)
	assert.Equal(t, 1, filter.calls)
}

func TestDetectFailsOpenOnParseError(t *testing.T) {
	filter := &stubFilter{bad: map[string]bool{"garbage": true}}
	ipToUsers := map[string]*model.UserSet{
		"garbage": model.NewUserSet("u1", "u2"),
		"2.2.2.2": model.NewUserSet("u1", "u2"),
	}
	userToTeam := map[string]string{"u1": "A", "u2": "B"}

	d := NewDetector(filter)
	results := d.Detect(ipToUsers, userToTeam)

	assert.Equal(t, []string{"2.2.2.2", "garbage"}, ipsOf(results))
	assert.Equal(t, 1, d.Stats().ParseFailures)
}

func TestDetectMalformedAddressWithRealFilter(t *testing.T) {
	ipToUsers := map[string]*model.UserSet{
		"2001:db8::1":  model.NewUserSet("u1", "u2"),
		"not-an-ip":    model.NewUserSet("u1", "u2"),
		"104.16.0.1":   model.NewUserSet("u1", "u2"),
		"2400:cb00::1": model.NewUserSet("u1", "u2"),
	}
	userToTeam := map[string]string{"u1": "A", "u2": "B"}

	f, err := NewRangeFilter([]string{"104.16.0.0/13", "2400:cb00::/32"})
	require.NoError(t, err)

	d := NewDetector(f)
	results := d.Detect(ipToUsers, userToTeam)
	assert.Equal(t, []string{"2001:db8::1", "not-an-ip"}, ipsOf(results))
	assert.Equal(t, 2, d.Stats().Infrastructure)
	assert.Equal(t, 1, d.Stats().ParseFailures)
}

func TestDetectIsIdempotent(t *testing.T) {
	ipToUsers := map[string]*model.UserSet{
		"1.2.3.4": model.NewUserSet("u1", "u2"),
		"4.3.2.1": model.NewUserSet("u2", "u3"),
		"8.8.8.8": model.NewUserSet("u1"),
	}
	userToTeam := map[string]string{"u1": "A", "u2": "B", "u3": "B"}

	d := NewDetector(newDefaultFilter(t))
	first := d.Detect(ipToUsers, userToTeam)
	second := d.Detect(ipToUsers, userToTeam)

	assert.Equal(t, ipsOf(first), ipsOf(second))
	assert.Equal(t, []string{"1.2.3.4"}, ipsOf(first))
}

func TestDetectEmptyInput(t *testing.T) {
	results := NewDetector(nil).Detect(map[string]*model.UserSet{}, nil)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}
