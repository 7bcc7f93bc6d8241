package exporter

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"ctfd_ip_scan/internal/model"
)

// RenderTable prints rows as a grid, one line per pseudonym and team name.
func RenderTable(w io.Writer, rows []model.EnrichedRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	style.Options.SeparateRows = true
	t.SetStyle(style)

	header := make(table.Row, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	t.AppendHeader(header)

	for _, r := range rows {
		cells := record(r)
		row := make(table.Row, len(cells))
		for i, c := range cells {
			row[i] = c
		}
		t.AppendRow(row)
	}
	t.Render()
}
