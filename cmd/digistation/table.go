package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"digistation/internal/capture"
)

// column describes one table column. Severity columns are coloured by the
// level passed to statusTable.row.
type column struct {
	title    string
	align    text.Align
	severity bool
}

func leftCol(title string) column     { return column{title: title, align: text.AlignLeft} }
func rightCol(title string) column    { return column{title: title, align: text.AlignRight} }
func severityCol(title string) column { return column{title: title, align: text.AlignLeft, severity: true} }

type statusTable struct {
	tw       table.Writer
	columns  []column
	colorize bool
	rows     int
}

func newStatusTable(colorize bool, columns ...column) *statusTable {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.title
		configs[i] = table.ColumnConfig{Number: i + 1, Align: c.align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)
	return &statusTable{tw: tw, columns: columns, colorize: colorize}
}

// row appends cells, padding short rows. An empty level leaves severity
// columns uncoloured.
func (t *statusTable) row(level capture.Severity, cells ...string) {
	r := make(table.Row, len(t.columns))
	for i, c := range t.columns {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if c.severity && level != "" {
			cell = colorizeSeverity(level, cell, t.colorize)
		}
		r[i] = cell
	}
	t.tw.AppendRow(r)
	t.rows++
}

func (t *statusTable) rowCount() int { return t.rows }

func (t *statusTable) render() string {
	if len(t.columns) == 0 {
		return ""
	}
	return t.tw.Render()
}
