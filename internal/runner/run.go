// Package runner wires loading, detection, enrichment and reporting into one run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"ctfd_ip_scan/internal/analysis"
	"ctfd_ip_scan/internal/config"
	"ctfd_ip_scan/internal/database"
	"ctfd_ip_scan/internal/exporter"
	"ctfd_ip_scan/internal/loader"
	"ctfd_ip_scan/internal/logging"
	"ctfd_ip_scan/internal/model"
	"ctfd_ip_scan/internal/query"
	"ctfd_ip_scan/internal/util"
)

// repeatTeamThreshold is the number of flagged IPs from which a team is logged as a
// repeat participant.
const repeatTeamThreshold = 2

// Summary describes a finished run.
type Summary struct {
	TaskID     string
	Load       model.LoadStats
	Detect     analysis.DetectStats
	Warnings   loader.Warnings
	Segments   []analysis.SegmentInfo
	Rows       []model.EnrichedRow
	ReportPath string
}

// Runner executes one scan.
type Runner struct {
	cfg    *config.Config
	lookup query.ISPLookup
	out    io.Writer
}

// New returns a runner. The table is rendered to out when enabled in the config.
func New(cfg *config.Config, lookup query.ISPLookup, out io.Writer) *Runner {
	if lookup == nil {
		lookup = query.DisabledLookup{}
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{cfg: cfg, lookup: lookup, out: out}
}

// Run loads the exports, flags addresses shared across teams, enriches them and writes
// the report. An empty team table aborts the run with analysis.ErrNoTeams before any
// lookup is made.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{TaskID: util.GenerateTaskID()}
	log := logging.With().Str("task", summary.TaskID).Logger()

	// 1. Load the exports
	tracking, warnings, err := loader.ReadTracking(r.cfg.Input.TrackingFile)
	summary.Warnings = append(summary.Warnings, warnings...)
	if err != nil {
		return nil, fmt.Errorf("load tracking: %w", err)
	}
	users, warnings, err := loader.ReadUsers(r.cfg.Input.UsersFile)
	summary.Warnings = append(summary.Warnings, warnings...)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	teams, warnings, err := loader.ReadTeams(r.cfg.Input.TeamsFile)
	summary.Warnings = append(summary.Warnings, warnings...)
	if errors.Is(err, loader.ErrEmptyFile) {
		return nil, fmt.Errorf("%s: %w", r.cfg.Input.TeamsFile, analysis.ErrNoTeams)
	}
	if err != nil {
		return nil, fmt.Errorf("load teams: %w", err)
	}

	// 2. Join and check preconditions
	idx := analysis.BuildIndex(tracking, users, teams)
	summary.Load = idx.Stats
	log.Info().
		Str("tracking_rows", humanize.Comma(int64(idx.Stats.TrackingRows))).
		Str("ips", humanize.Comma(int64(idx.Stats.IPs))).
		Str("users", humanize.Comma(int64(idx.Stats.Users))).
		Str("teams", humanize.Comma(int64(idx.Stats.Teams))).
		Int("skipped", idx.Stats.SkippedRows).
		Int("warnings", len(summary.Warnings)).
		Msg("exports loaded")
	if err := idx.CheckTeams(); err != nil {
		return nil, fmt.Errorf("%s: %w", r.cfg.Input.TeamsFile, err)
	}

	// 3. Detect shared addresses
	filter, err := analysis.NewRangeFilter(r.cfg.Detection.InfrastructureRanges)
	if err != nil {
		return nil, err
	}
	detector := analysis.NewDetector(filter, analysis.WithDistinctUnknownTeams(r.cfg.Detection.DistinctUnknownTeams))
	results := detector.Detect(idx.IPToUsers, idx.UserToTeam)
	summary.Detect = detector.Stats()
	log.Info().
		Int("scanned", summary.Detect.Scanned).
		Int("infrastructure", summary.Detect.Infrastructure).
		Int("unparsed", summary.Detect.ParseFailures).
		Int("flagged", summary.Detect.Flagged).
		Msg("detection finished")

	summary.Segments = analysis.SegmentRollup(results, idx, r.cfg.Detection.MinIPsPerSegment)
	for _, seg := range summary.Segments {
		log.Info().Str("segment", seg.CIDR).Int("ips", len(seg.IPs)).Strs("teams", seg.Teams).Bool("mixed", seg.IsMixed()).Msg("dense segment")
	}

	// 4. Aggregate and enrich, one lookup per flagged address
	rows := analysis.AggregateAll(results, idx)
	for i := range rows {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("enrichment interrupted: %w", err)
		}
		rows[i].ISP = r.lookup.LookupISP(ctx, rows[i].IP)
		log.Debug().Str("ip", rows[i].IP).Str("isp", rows[i].ISP).Msgf("lookup %d/%d", i+1, len(rows))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("enrichment interrupted: %w", err)
	}

	// 5. Stage, render and export
	tableName := util.GenerateTableName(summary.TaskID)
	db, err := database.InitDB(tableName)
	if err != nil {
		return nil, fmt.Errorf("init staging db: %w", err)
	}
	defer db.Close()

	if err := database.SaveRows(db, tableName, rows); err != nil {
		return nil, fmt.Errorf("stage rows: %w", err)
	}
	staged, err := database.LoadRows(db, tableName)
	if err != nil {
		return nil, fmt.Errorf("load staged rows: %w", err)
	}
	summary.Rows = staged

	if frequent, err := database.TeamFrequencies(db, tableName, repeatTeamThreshold); err != nil {
		log.Warn().Err(err).Msg("team frequency query failed")
	} else {
		for _, tc := range frequent {
			log.Info().Str("team", tc.Team).Int("ips", tc.Count).Msg("team seen on several shared IPs")
		}
	}

	if r.cfg.Output.Table {
		exporter.RenderTable(r.out, staged)
	}

	summary.ReportPath = util.ReportPath(r.cfg.Output.ReportFile, summary.TaskID, r.cfg.Output.Timestamped)
	if err := exporter.ExportTableToCSV(db, tableName, summary.ReportPath, r.cfg.Output.BOM); err != nil {
		return nil, fmt.Errorf("export csv: %w", err)
	}
	log.Info().Str("file", summary.ReportPath).Int("rows", len(staged)).Msg("report written")

	return summary, nil
}
