package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctfd_ip_scan/internal/database"
	"ctfd_ip_scan/internal/model"
)

const testTable = "report_test"

func stage(t *testing.T, rows []model.EnrichedRow) string {
	t.Helper()
	db, err := database.InitDB(testTable)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.SaveRows(db, testTable, rows))

	path := filepath.Join(t.TempDir(), "out", "report.csv")
	require.NoError(t, ExportTableToCSV(db, testTable, path, false))
	return path
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportTableToCSV(t *testing.T) {
	path := stage(t, []model.EnrichedRow{
		{IP: "1.2.3.4", ISP: "Example Telecom", Pseudos: []string{"Alice", "Bob"}, TeamNames: []string{"Blue", "Red"}},
	})

	records := readCSV(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"IP", "ISP", "Pseudos", "Team Names"}, records[0])
	assert.Equal(t, []string{"1.2.3.4", "Example Telecom", "Alice\nBob", "Blue\nRed"}, records[1])
}

func TestExportTableToCSVEmpty(t *testing.T) {
	path := stage(t, nil)

	records := readCSV(t, path)
	assert.Equal(t, [][]string{Header}, records)
}

func TestExportTableToCSVBOM(t *testing.T) {
	db, err := database.InitDB(testTable)
	require.NoError(t, err)
	defer db.Close()

	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, ExportTableToCSV(db, testTable, path, true))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}))
	assert.Equal(t, "IP,ISP,Pseudos,Team Names\n", string(raw[3:]))
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, []model.EnrichedRow{
		{IP: "1.2.3.4", ISP: "Example Telecom", Pseudos: []string{"Alice", "Bob"}, TeamNames: []string{"Blue", "Red"}},
	})

	out := buf.String()
	for _, want := range []string{"IP", "ISP", "Pseudos", "Team Names", "1.2.3.4", "Example Telecom", "Alice", "Bob", "Blue", "Red"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Alice\\nBob")
}

func TestRenderTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, nil)
	assert.Contains(t, buf.String(), "Team Names")
}
