package log

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
)

type PrettyHandlerOptions struct {
	SlogOpts slog.HandlerOptions
	// Optional timezone to use for logging. If nil, local timezone is used.
	TimeZone *time.Location
}

// PrettyHandler prints one coloured line per record with the attributes
// rendered as a trailing JSON object.
type PrettyHandler struct {
	opts     slog.HandlerOptions
	l        *log.Logger
	timeZone *time.Location
	attrs    []slog.Attr
	groups   []string
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

func (h *PrettyHandler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String()

	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.BlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	}

	fields := make(map[string]interface{}, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		fields[a.Key] = attrValue(a)
	}
	prefix := h.groupPrefix()
	r.Attrs(func(a slog.Attr) bool {
		fields[prefix+a.Key] = attrValue(a)
		return true
	})

	var err error
	var b []byte
	if len(fields) > 0 {
		b, err = json.Marshal(fields)
		if err != nil {
			return err
		}
	}

	logTime := r.Time
	if h.timeZone != nil {
		logTime = logTime.In(h.timeZone)
	}

	// Format: [2023-04-15 15:05:05.000 -0700 PDT]
	timeStr := logTime.Format("[2006-01-02 15:04:05.000 -0700 MST]")
	msg := color.CyanString(r.Message)

	h.l.Println(timeStr, level, msg, color.HiBlackString(string(b)))

	return nil
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	prefix := h.groupPrefix()
	next.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		a.Key = prefix + a.Key
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}

func (h *PrettyHandler) groupPrefix() string {
	if len(h.groups) == 0 {
		return ""
	}
	return strings.Join(h.groups, ".") + "."
}

func attrValue(a slog.Attr) interface{} {
	v := a.Value.Resolve()
	if errVal, ok := v.Any().(error); ok {
		return errVal.Error()
	}
	if v.Kind() == slog.KindDuration {
		return v.Duration().String()
	}
	return v.Any()
}

func NewPrettyHandler(
	out io.Writer,
	opts PrettyHandlerOptions,
) *PrettyHandler {
	return &PrettyHandler{
		opts:     opts.SlogOpts,
		l:        log.New(out, "", 0),
		timeZone: opts.TimeZone,
	}
}

// Helper function to create a new handler with UTC timezone
func NewUTCPrettyHandler(
	out io.Writer,
	opts PrettyHandlerOptions,
) *PrettyHandler {
	opts.TimeZone = time.UTC
	return NewPrettyHandler(out, opts)
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds the process logger. format is one of pretty, tint or json;
// anything else falls back to pretty. timezone is an IANA name and may be
// empty, and applies to every format.
func New(format, level, timezone string) (*slog.Logger, error) {
	var tz *time.Location
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, err
		}
		tz = loc
	}

	out := io.Writer(os.Stdout)
	if format == "tint" {
		out = colorable.NewColorableStdout()
	}
	return slog.New(newHandler(out, format, ParseLevel(level), tz)), nil
}

func newHandler(out io.Writer, format string, level slog.Level, tz *time.Location) slog.Handler {
	switch format {
	case "tint":
		return tint.NewHandler(out, &tint.Options{
			Level:       level,
			TimeFormat:  "15:04:05.000",
			ReplaceAttr: inZone(tz),
		})
	case "json":
		return slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: inZone(tz),
		})
	default:
		return NewPrettyHandler(out, PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{Level: level},
			TimeZone: tz,
		})
	}
}

// inZone converts the record time to tz. A nil tz leaves times alone.
func inZone(tz *time.Location) func(groups []string, a slog.Attr) slog.Attr {
	if tz == nil {
		return nil
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
			a.Value = slog.TimeValue(a.Value.Time().In(tz))
		}
		return a
	}
}
