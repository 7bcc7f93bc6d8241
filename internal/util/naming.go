package util

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// GenerateTaskID returns the id of a run: the date followed by the last eight digits
// of the unix time.
func GenerateTaskID() string {
	return taskIDAt(time.Now())
}

func taskIDAt(now time.Time) string {
	dateStr := now.Format("20060102")
	tsStr := fmt.Sprintf("%08d", now.Unix())
	shortTS := tsStr[len(tsStr)-8:]
	return fmt.Sprintf("%s_%s", dateStr, shortTS)
}

// GenerateTableName returns the staging table name of a run.
func GenerateTableName(taskID string) string {
	return fmt.Sprintf("shared_ips_%s", taskID)
}

// GenerateCSVFileName returns "<taskID>_<suffix>.csv".
func GenerateCSVFileName(taskID, suffix string) string {
	return fmt.Sprintf("%s_%s.csv", taskID, suffix)
}

// ReportPath returns where the report is written. With timestamped set, the file name
// is prefixed by the task id and keeps its directory.
func ReportPath(reportFile, taskID string, timestamped bool) string {
	if !timestamped {
		return reportFile
	}
	dir, base := filepath.Split(reportFile)
	suffix := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, GenerateCSVFileName(taskID, suffix))
}
