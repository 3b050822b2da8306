package output

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

// frameWidth is the number of columns between the left rule and line end.
const frameWidth = 66

const (
	ansiDimCyan = "\033[2;36m"
	ansiGreen   = "\033[32m"
	ansiRed     = "\033[31m"
	ansiYellow  = "\033[33m"
	ansiGray    = "\033[90m"
)

// Status is the outcome shown next to a section entry.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusPlanned Status = "planned" // dry-run and layout stages
)

// Section is a framed block of console output, opened with a titled rule
// and closed with a bottom rule.
type Section struct {
	w     io.Writer
	color bool
}

// NewSection writes the title rule of a section. A non-zero elapsed time
// is shown at the right end of the rule.
func NewSection(w io.Writer, title string, elapsed time.Duration, color bool) *Section {
	s := &Section{w: w, color: color}

	head := "── " + title + " "
	tail := "──"
	if elapsed > 0 {
		tail = " " + formatElapsed(elapsed) + " ──"
	}
	fill := max(frameWidth-utf8.RuneCountInString(head)-utf8.RuneCountInString(tail), 1)
	rule := head + strings.Repeat("─", fill) + tail
	if color {
		rule = ansiDimCyan + rule + colorReset
	}
	fmt.Fprintf(w, "\n    %s\n", rule)
	return s
}

// Row writes a free-form line inside the frame.
func (s *Section) Row(format string, args ...any) {
	fmt.Fprintf(s.w, "    │ %s\n", fmt.Sprintf(format, args...))
}

// Entry writes a named line with a status icon and detail text.
func (s *Section) Entry(name string, status Status, detail string) {
	s.Row("%-25s%s  %s", name, Icon(status, s.color), detail)
}

// Total writes the closing summary line after a divider.
func (s *Section) Total(elapsed time.Duration, status Status) {
	s.divider()
	s.Row("%-25s%40s   %s", "total", formatElapsed(elapsed), Icon(status, s.color))
}

// Close writes the bottom rule.
func (s *Section) Close() {
	fmt.Fprintf(s.w, "    └%s\n", strings.Repeat("─", frameWidth-5))
}

func (s *Section) divider() {
	fmt.Fprintf(s.w, "    ├%s\n", strings.Repeat("─", frameWidth-5))
}

// Icon returns the symbol for a status, colored when requested.
func Icon(status Status, color bool) string {
	var sym, ansi string
	switch status {
	case StatusOK:
		sym, ansi = "✓", ansiGreen
	case StatusFailed:
		sym, ansi = "✗", ansiRed
	case StatusPlanned:
		sym, ansi = "…", ansiGray
	default:
		sym, ansi = "⊘", ansiYellow
	}
	if !color {
		return sym
	}
	return ansi + sym + colorReset
}

// Dimmed returns text in gray when color is enabled.
func Dimmed(text string, color bool) string {
	if !color {
		return text
	}
	return ansiGray + text + colorReset
}

// KV is one key-value pair of a context block or report.
type KV struct {
	Key   string
	Value string
}

// ContextBlock prints pairs two per line, each column padded to the
// widest key or value in that column.
func ContextBlock(w io.Writer, kv []KV) {
	if len(kv) == 0 {
		return
	}
	var widths [3]int
	for i, p := range kv {
		col := (i % 2) * 2
		widths[col] = max(widths[col], len(p.Key))
		if col == 0 {
			widths[1] = max(widths[1], len(p.Value))
		}
	}

	fmt.Fprintln(w)
	for i := 0; i < len(kv); i += 2 {
		if i+1 == len(kv) {
			fmt.Fprintf(w, "    %-*s  %s\n", widths[0], kv[i].Key, kv[i].Value)
			continue
		}
		fmt.Fprintf(w, "    %-*s  %-*s    %-*s  %s\n",
			widths[0], kv[i].Key, widths[1], kv[i].Value,
			widths[2], kv[i+1].Key, kv[i+1].Value)
	}
}

// formatElapsed renders a duration compactly: <1ms, 250ms, 1.5s, 2m5.0s.
func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return "<1ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d / time.Minute)
	return fmt.Sprintf("%dm%.1fs", mins, (d - time.Duration(mins)*time.Minute).Seconds())
}
