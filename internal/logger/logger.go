// Package logger implements the process-wide, step-scoped event log.
//
// Every event goes to up to two sinks: a colourised, emoji-decorated line on
// the terminal (fatih/color) and an append-only JSON Lines record file encoded
// with zerolog. Steps are bracketed by StepBegin/StepEnd, which measure the
// elapsed time between the two calls.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog" // JSON encoder for the record file sink
)

// Level is the severity attached to every record.
type Level string

const (
	LevelDebug   Level = "DEBUG"
	LevelInfo    Level = "INFO"
	LevelWarn    Level = "WARN"
	LevelError   Level = "ERROR"
	LevelSuccess Level = "SUCCESS"
)

// Kind distinguishes step boundaries from plain log lines.
type Kind string

const (
	KindStepBegin Kind = "step_begin"
	KindStepEnd   Kind = "step_end"
	KindLog       Kind = "log"
)

// Format selects which sinks are active.
type Format string

const (
	FormatPretty Format = "pretty"
	FormatJSON   Format = "json"
	FormatBoth   Format = "both"
)

// SchemaVersion is written into every JSON record as "version".
const SchemaVersion = 1

// DefaultComponent is the "component" value used when Options leaves it empty.
const DefaultComponent = "bootstrap"

// timeLayout renders timestamps as ISO-8601 with millisecond precision.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// ParseFormat validates a LOG_FORMAT value. The empty string means both sinks.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatBoth:
		return FormatBoth, nil
	case FormatPretty:
		return FormatPretty, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("invalid log format %q (want pretty, json or both)", s)
}

func (f Format) pretty() bool { return f == FormatPretty || f == FormatBoth }
func (f Format) json() bool   { return f == FormatJSON || f == FormatBoth }

// Options configures a Logger.
type Options struct {
	Format    Format
	File      string    // JSONL record file; parent directories are created
	Color     bool      // colourise the pretty sink
	Emoji     bool      // prefix pretty lines with emoji badges
	Debug     bool      // show DEBUG lines on the pretty sink
	Component string    // value of the "component" field
	Out       io.Writer // pretty sink destination, os.Stdout when nil
	JSONOut   io.Writer // overrides File for the record sink when set
	Now       func() time.Time
}

// End describes how a step finished.
type End struct {
	OK    bool
	Code  *int
	Error string
}

// Event is a single log record before it is rendered by the sinks.
type Event struct {
	Time     time.Time
	Level    Level
	Kind     Kind
	Step     string
	Msg      string
	OK       *bool
	Code     *int
	Duration *time.Duration
	Error    string
}

// Logger writes events to the configured sinks.
// A Logger is safe for use from multiple goroutines, but StepBegin/StepEnd for
// the same step name must not overlap: the most recent StepBegin wins.
type Logger struct {
	mu        sync.Mutex
	pretty    io.Writer
	records   *zerolog.Logger
	file      *os.File
	color     bool
	emoji     bool
	debug     bool
	component string
	now       func() time.Time
	starts    map[string]time.Time
}

// New builds a Logger from opts. When the record file cannot be opened the
// logger falls back to the pretty sink alone and reports the problem there.
func New(opts Options) *Logger {
	l := &Logger{
		color:     opts.Color,
		emoji:     opts.Emoji,
		debug:     opts.Debug,
		component: opts.Component,
		now:       opts.Now,
		starts:    make(map[string]time.Time),
	}
	if l.component == "" {
		l.component = DefaultComponent
	}
	if l.now == nil {
		l.now = time.Now
	}
	if opts.Format == "" {
		opts.Format = FormatBoth
	}

	if opts.Format.pretty() {
		l.pretty = opts.Out
		if l.pretty == nil {
			l.pretty = os.Stdout
		}
	}

	if opts.Format.json() {
		w := opts.JSONOut
		var openErr error
		if w == nil {
			l.file, openErr = openRecordFile(opts.File)
			if openErr == nil {
				w = l.file
			}
		}
		if w != nil {
			zl := zerolog.New(w)
			l.records = &zl
		} else {
			// Keep the run visible even if the record file is unusable.
			if l.pretty == nil {
				l.pretty = opts.Out
				if l.pretty == nil {
					l.pretty = os.Stdout
				}
			}
			l.Warn("", "log file %s unavailable, logging to console only: %v", opts.File, openErr)
		}
	}
	return l
}

// Discard returns a Logger with both sinks disabled.
func Discard() *Logger {
	return &Logger{component: DefaultComponent, now: time.Now, starts: make(map[string]time.Time)}
}

// openRecordFile creates the parent directory and opens path for appending.
func openRecordFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("no log file configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Close releases the record file, if one was opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.records = nil
	return err
}

// StepBegin marks the start of step and remembers when it began.
func (l *Logger) StepBegin(step string) {
	l.mu.Lock()
	t := l.now()
	l.starts[step] = t
	l.mu.Unlock()
	l.emit(Event{Time: t, Level: LevelInfo, Kind: KindStepBegin, Step: step})
}

// StepEnd closes step. The duration is only reported when a matching
// StepBegin was seen.
func (l *Logger) StepEnd(step string, end End) {
	l.mu.Lock()
	t := l.now()
	var dur *time.Duration
	if started, ok := l.starts[step]; ok {
		d := t.Sub(started)
		if d < 0 {
			d = 0
		}
		dur = &d
		delete(l.starts, step)
	}
	l.mu.Unlock()

	lvl := LevelSuccess
	if !end.OK {
		lvl = LevelError
	}
	ok := end.OK
	l.emit(Event{
		Time:     t,
		Level:    lvl,
		Kind:     KindStepEnd,
		Step:     step,
		OK:       &ok,
		Code:     end.Code,
		Duration: dur,
		Error:    end.Error,
	})
}

func (l *Logger) Debug(step, format string, args ...any) { l.logf(LevelDebug, step, format, args) }
func (l *Logger) Info(step, format string, args ...any)  { l.logf(LevelInfo, step, format, args) }
func (l *Logger) Warn(step, format string, args ...any)  { l.logf(LevelWarn, step, format, args) }
func (l *Logger) Error(step, format string, args ...any) { l.logf(LevelError, step, format, args) }

// Success logs a completed action at SUCCESS level.
func (l *Logger) Success(step, format string, args ...any) {
	l.logf(LevelSuccess, step, format, args)
}

func (l *Logger) logf(lvl Level, step, format string, args []any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	l.emit(Event{Time: l.now(), Level: lvl, Kind: KindLog, Step: step, Msg: msg})
}

func (l *Logger) emit(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pretty != nil && (e.Level != LevelDebug || l.debug) {
		fmt.Fprintln(l.pretty, l.render(e))
	}
	if l.records != nil {
		l.record(e)
	}
}

// record writes e as one JSON object on its own line.
func (l *Logger) record(e Event) {
	ev := l.records.Log().
		Str("ts", e.Time.UTC().Format(timeLayout)).
		Str("lvl", string(e.Level)).
		Str("ev", string(e.Kind))
	if e.Step != "" {
		ev.Str("step", e.Step)
	}
	if e.Msg != "" {
		ev.Str("msg", e.Msg)
	}
	if e.OK != nil {
		ev.Bool("ok", *e.OK)
	}
	if e.Code != nil {
		ev.Int("code", *e.Code)
	}
	if e.Duration != nil {
		ev.Int64("duration_ms", e.Duration.Milliseconds())
	}
	ev.Str("component", l.component).Int("version", SchemaVersion)
	if e.Error != "" {
		ev.Str("error", e.Error)
	}
	ev.Send()
}
