package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"subseek/internal/deps"
	"subseek/internal/engine"
)

// column describes one table column. Numeric columns are right aligned.
type column struct {
	title   string
	numeric bool
}

func textCol(title string) column { return column{title: title} }

func numCol(title string) column { return column{title: title, numeric: true} }

// renderTable draws rows under columns. Short rows are padded with blanks;
// extra cells are dropped.
func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.title
		configs[i] = table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft, Align: text.AlignLeft}
		if c.numeric {
			configs[i].Align = text.AlignRight
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

func statusColors(status engine.Status) text.Colors {
	switch status {
	case engine.StatusDownloaded:
		return text.Colors{text.FgGreen}
	case engine.StatusNotFound:
		return text.Colors{text.FgYellow}
	case engine.StatusFailed:
		return text.Colors{text.FgRed}
	default:
		return text.Colors{text.FgHiBlack}
	}
}

// statusLabel renders a download status, colored when colorize is set.
func statusLabel(status engine.Status, colorize bool) string {
	label := string(status)
	if !colorize {
		return label
	}
	return statusColors(status).Sprint(label)
}

const depNameWidth = 12

// dependencyLine renders one external binary as "  name: [STATE] detail".
// A missing optional binary is a warning, a missing required one an error.
func dependencyLine(s deps.Status, colorize bool) string {
	state, detail, colors := "OK", "Ready (command: "+s.Command+")", text.Colors{text.FgGreen}
	if !s.Available {
		state, detail, colors = "ERROR", s.Detail, text.Colors{text.FgRed}
		if s.Optional {
			state, colors = "WARN", text.Colors{text.FgYellow}
		}
	}
	line := fmt.Sprintf("  %-*s [%s] %s", depNameWidth, s.Name+":", state, detail)
	if colorize {
		return colors.Sprint(line)
	}
	return line
}

// shouldColorize reports whether w is a terminal and NO_COLOR is unset.
func shouldColorize(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
