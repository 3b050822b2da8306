// Package output renders sectioned console output and tables.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
)

// Colors for terminal output.
const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
)

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// UseColor returns true if colored output should be used.
// Respects NO_COLOR env, TERM=dumb, and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal() || IsCI()
}

// Table writes rows under header as a light-styled table.
func Table(w io.Writer, header []string, rows [][]string, color bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if !color {
		t.Style().Color = table.ColorOptions{}
	} else {
		t.Style().Color.Header = text.Colors{text.Bold, text.FgCyan}
	}
	t.Style().Options.SeparateRows = false

	hdr := make(table.Row, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	t.AppendHeader(hdr)
	for _, r := range rows {
		row := make(table.Row, len(r))
		for i, c := range r {
			row[i] = c
		}
		t.AppendRow(row)
	}
	t.Render()
}

// KeyValues writes an aligned two-column report.
func KeyValues(w io.Writer, kv []KV, color bool) {
	rows := make([][]string, len(kv))
	for i, p := range kv {
		rows[i] = []string{p.Key, p.Value}
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false
	for _, r := range rows {
		key := r[0]
		if color {
			key = colorBold + key + colorReset
		}
		t.AppendRow(table.Row{key, r[1]})
	}
	t.Render()
	fmt.Fprintln(w)
}
