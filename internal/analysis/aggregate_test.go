package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctfd_ip_scan/internal/model"
)

func scenarioIndex() *Index {
	return BuildIndex(
		[]model.TrackingRecord{
			{IP: "1.2.3.4", UserID: "u1"},
			{IP: "1.2.3.4", UserID: "u2"},
		},
		[]model.User{
			{ID: "u1", Name: "Alice", TeamID: "A"},
			{ID: "u2", Name: "Bob", TeamID: "B"},
			{ID: "u4", Name: "Dan", TeamID: "A"},
			{ID: "u5", Name: "Eve", TeamID: "Q"},
		},
		[]model.Team{{ID: "A", Name: "Red"}, {ID: "B", Name: "Blue"}},
	)
}

func TestAggregateScenario(t *testing.T) {
	idx := scenarioIndex()
	results := NewDetector(newDefaultFilter(t)).Detect(idx.IPToUsers, idx.UserToTeam)
	require.Len(t, results, 1)

	row := Aggregate(results[0], idx)
	assert.Equal(t, "1.2.3.4", row.IP)
	assert.Equal(t, "", row.ISP)
	assert.Equal(t, []string{"Alice", "Bob"}, row.Pseudos)
	assert.ElementsMatch(t, []string{"Red", "Blue"}, row.TeamNames)
}

func TestAggregateCollapsesTeamNames(t *testing.T) {
	idx := scenarioIndex()
	r := model.SharedIPResult{IP: "8.8.4.4", Users: model.NewUserSet("u4", "u2", "u1")}

	row := Aggregate(r, idx)
	assert.Equal(t, []string{"Dan", "Bob", "Alice"}, row.Pseudos)
	assert.Equal(t, []string{"Blue", "Red"}, row.TeamNames)
}

func TestAggregateFallbacks(t *testing.T) {
	idx := scenarioIndex()
	r := model.SharedIPResult{IP: "8.8.4.4", Users: model.NewUserSet("ghost", "u5")}

	row := Aggregate(r, idx)
	assert.Equal(t, []string{"Unknown", "Eve"}, row.Pseudos)
	assert.Equal(t, []string{"Unknown Team (Q)", "Unknown Team (Unknown)"}, row.TeamNames)
}

func TestAggregateAllKeepsOrder(t *testing.T) {
	idx := scenarioIndex()
	results := []model.SharedIPResult{
		{IP: "2.2.2.2", Users: model.NewUserSet("u1")},
		{IP: "1.1.1.1", Users: model.NewUserSet("u2")},
	}

	rows := AggregateAll(results, idx)
	require.Len(t, rows, 2)
	assert.Equal(t, "2.2.2.2", rows[0].IP)
	assert.Equal(t, "1.1.1.1", rows[1].IP)
}
