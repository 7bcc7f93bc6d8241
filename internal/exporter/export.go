package exporter

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ctfd_ip_scan/internal/database"
	"ctfd_ip_scan/internal/model"
)

// Header is the column layout shared by the table and the CSV report.
var Header = []string{"IP", "ISP", "Pseudos", "Team Names"}

// cellSeparator joins multi-valued cells so each value sits on its own line.
const cellSeparator = "\n"

// record flattens a row into report cells.
func record(r model.EnrichedRow) []string {
	return []string{
		r.IP,
		r.ISP,
		strings.Join(r.Pseudos, cellSeparator),
		strings.Join(r.TeamNames, cellSeparator),
	}
}

// ExportTableToCSV writes the staged rows of tableName to outputPath. The header is
// written even when no row is staged. With bom set, the file starts with a UTF-8 BOM
// so spreadsheet tools pick the right encoding.
func ExportTableToCSV(db *sql.DB, tableName, outputPath string, bom bool) error {
	rows, err := database.LoadRows(db, tableName)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	if bom {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return err
		}
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := writer.Write(record(r)); err != nil {
			return fmt.Errorf("write row %s: %w", r.IP, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}
