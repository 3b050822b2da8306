// Package logging builds the slog loggers used by the commands: a terse,
// optionally colored handler for terminals and a JSON handler for machines.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// Mode controls the handler style used when constructing a logger.
type Mode int

const (
	// ModeCLI renders log records in a terse text-oriented format.
	ModeCLI Mode = iota
	// ModeJSON renders log records as JSON.
	ModeJSON
)

// ParseMode maps a --log-format value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "text", "cli":
		return ModeCLI, nil
	case "json":
		return ModeJSON, nil
	}
	return ModeCLI, fmt.Errorf("unknown log format %q, valid values are text and json", s)
}

// Options configures a logger.
type Options struct {
	Mode  Mode
	Level slog.Leveler
	// Prefix is written before every CLI record, e.g. "[ue4-docker build] ".
	Prefix string
	// Color enables ANSI colors in CLI mode.
	Color bool
}

// New constructs a logger targeting w.
// If opts.Level is nil, slog.LevelInfo is used.
func New(w io.Writer, opts Options) *slog.Logger {
	if w == nil {
		panic("logging: writer must not be nil")
	}
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}

	switch opts.Mode {
	case ModeJSON:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	default:
		return slog.New(&cliHandler{
			writer: w,
			level:  level,
			prefix: opts.Prefix,
			color:  opts.Color,
			mu:     &sync.Mutex{},
		})
	}
}

// NewCLI constructs a human-readable logger on stderr, colored when stderr
// is a terminal and NO_COLOR is unset.
func NewCLI(prefix string, level slog.Leveler) *slog.Logger {
	return New(os.Stderr, Options{Mode: ModeCLI, Level: level, Prefix: prefix, Color: ColorEnabled(os.Stderr)})
}

// ColorEnabled reports whether ANSI colors should be written to f.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Ensure returns the provided logger or the process default if nil.
func Ensure(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

type cliHandler struct {
	writer io.Writer
	level  slog.Leveler
	prefix string
	color  bool

	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

func (h *cliHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= currentLevel(h.level)
}

func (h *cliHandler) Handle(_ context.Context, record slog.Record) error {
	var builder strings.Builder
	builder.WriteString(h.prefix)
	if label := levelLabel(record.Level); label != "" {
		builder.WriteString(label)
		builder.WriteString(": ")
	}
	builder.WriteString(record.Message)

	h.appendAttrs(&builder, nil, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		h.appendAttr(&builder, h.groups, attr)
		return true
	})

	line := builder.String()
	if h.color {
		line = levelColor(record.Level) + line + colorReset
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := io.WriteString(h.writer, line+"\n")
	return err
}

func (h *cliHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	// Handler attrs are qualified by the groups open when they were added.
	if len(h.groups) > 0 {
		attrs = []slog.Attr{{Key: strings.Join(h.groups, "."), Value: slog.GroupValue(attrs...)}}
	}
	cloned := make([]slog.Attr, len(h.attrs))
	copy(cloned, h.attrs)
	cloned = append(cloned, attrs...)

	c := *h
	c.attrs = cloned
	c.groups = append([]string(nil), h.groups...)
	return &c
}

func (h *cliHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	c.groups = append(append([]string(nil), h.groups...), name)
	return &c
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARNING"
	case level < slog.LevelInfo:
		return "DEBUG"
	}
	return ""
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level < slog.LevelInfo:
		return colorGray
	}
	return colorGreen
}

func (h *cliHandler) appendAttrs(builder *strings.Builder, groups []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		h.appendAttr(builder, groups, attr)
	}
}

func (h *cliHandler) appendAttr(builder *strings.Builder, groups []string, attr slog.Attr) {
	value := resolveValue(attr.Value)
	if value.Kind() == slog.KindGroup {
		nestedGroups := append(groups, attr.Key)
		for _, nested := range value.Group() {
			h.appendAttr(builder, nestedGroups, nested)
		}
		return
	}
	if attr.Key == "" {
		return
	}

	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(append(append([]string(nil), groups...), key), ".")
	}

	builder.WriteByte(' ')
	builder.WriteString(key)
	builder.WriteByte('=')
	builder.WriteString(formatValue(value))
}

func formatValue(value slog.Value) string {
	value = resolveValue(value)
	switch value.Kind() {
	case slog.KindString:
		s := value.String()
		if strings.ContainsAny(s, " \t\"") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindInt64:
		return strconv.FormatInt(value.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(value.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(value.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(value.Bool())
	case slog.KindDuration:
		return value.Duration().String()
	case slog.KindTime:
		return value.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := value.Any().(error); ok && err != nil {
			return err.Error()
		}
		return fmt.Sprint(value.Any())
	default:
		return value.String()
	}
}

func currentLevel(level slog.Leveler) slog.Level {
	if level == nil {
		return slog.LevelInfo
	}
	return level.Level()
}

func resolveValue(value slog.Value) slog.Value {
	for i := 0; i < 4; i++ {
		if value.Kind() != slog.KindLogValuer {
			return value
		}
		value = value.Resolve()
	}
	return value
}
