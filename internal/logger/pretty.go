package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// paint colours s when colour output is enabled.
func (l *Logger) paint(s string, attrs ...color.Attribute) string {
	if !l.color {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

// badge renders the level prefix of a plain log line.
func (l *Logger) badge(lvl Level) string {
	var icon string
	var attr color.Attribute
	switch lvl {
	case LevelSuccess:
		icon, attr = "✅ ", color.FgGreen
	case LevelInfo:
		icon, attr = "ℹ️  ", color.FgCyan
	case LevelWarn:
		icon, attr = "⚠️  ", color.FgYellow
	case LevelError:
		icon, attr = "❌ ", color.FgRed
	default:
		icon, attr = "🔎 ", color.FgHiBlack
	}
	if !l.emoji {
		icon = ""
	}
	return icon + l.paint(string(lvl), attr)
}

func (l *Logger) stepIcon(k Kind, ok bool) string {
	if !l.emoji {
		return ""
	}
	switch k {
	case KindStepBegin:
		return "🚀"
	case KindStepEnd:
		if ok {
			return "✅"
		}
		return "❌"
	}
	return ""
}

// render builds the human-readable line for e.
func (l *Logger) render(e Event) string {
	var parts []string
	stepLabel := func() string {
		name := e.Step
		if name == "" {
			name = "step"
		}
		return l.paint("["+name+"]", color.Bold)
	}

	switch e.Kind {
	case KindStepBegin:
		parts = append(parts, l.stepIcon(e.Kind, true), stepLabel(), "begin")
	case KindStepEnd:
		ok := e.OK != nil && *e.OK
		parts = append(parts, l.stepIcon(e.Kind, ok), stepLabel())
		if ok {
			parts = append(parts, l.paint("ok", color.FgGreen))
		} else {
			parts = append(parts, l.paint("fail", color.FgRed))
		}
		if e.Duration != nil {
			parts = append(parts, l.paint(fmt.Sprintf("(%d ms)", e.Duration.Milliseconds()), color.Faint))
		}
	default:
		parts = append(parts, l.badge(e.Level))
		if e.Step != "" {
			parts = append(parts, l.paint("["+e.Step+"]", color.Bold))
		}
		if e.Msg != "" {
			parts = append(parts, e.Msg)
		}
	}

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
