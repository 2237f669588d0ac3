package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock returns successive instants 250ms apart.
func fakeClock() func() time.Time {
	t := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		cur := t
		t = t.Add(250 * time.Millisecond)
		return cur
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), "line: %s", sc.Text())
		out = append(out, m)
	}
	return out
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatBoth, false},
		{"both", FormatBoth, false},
		{"PRETTY", FormatPretty, false},
		{" json ", FormatJSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStepRecords(t *testing.T) {
	var records, pretty bytes.Buffer
	l := New(Options{Format: FormatBoth, Out: &pretty, JSONOut: &records, Now: fakeClock()})

	l.StepBegin("install-jq")
	l.Info("install-jq", "jq already installed; skipping")
	code := 3
	l.StepEnd("install-jq", End{OK: false, Code: &code, Error: "boom"})

	lines := decodeLines(t, &records)
	require.Len(t, lines, 3)

	assert.Equal(t, "step_begin", lines[0]["ev"])
	assert.Equal(t, "INFO", lines[0]["lvl"])
	assert.Equal(t, "install-jq", lines[0]["step"])
	assert.Equal(t, "2025-01-02T03:04:05.000Z", lines[0]["ts"])
	assert.Equal(t, "bootstrap", lines[0]["component"])
	assert.EqualValues(t, 1, lines[0]["version"])
	assert.NotContains(t, lines[0], "ok")

	assert.Equal(t, "log", lines[1]["ev"])
	assert.Equal(t, "jq already installed; skipping", lines[1]["msg"])

	end := lines[2]
	assert.Equal(t, "step_end", end["ev"])
	assert.Equal(t, "ERROR", end["lvl"])
	assert.Equal(t, false, end["ok"])
	assert.EqualValues(t, 3, end["code"])
	assert.EqualValues(t, 500, end["duration_ms"])
	assert.Equal(t, "boom", end["error"])

	out := pretty.String()
	assert.Contains(t, out, "[install-jq] begin")
	assert.Contains(t, out, "[install-jq] fail (500 ms)")
}

func TestStepEndWithoutBeginHasNoDuration(t *testing.T) {
	var records bytes.Buffer
	l := New(Options{Format: FormatJSON, JSONOut: &records, Now: fakeClock()})

	l.StepEnd("orphan", End{OK: true})

	lines := decodeLines(t, &records)
	require.Len(t, lines, 1)
	assert.Equal(t, "SUCCESS", lines[0]["lvl"])
	assert.NotContains(t, lines[0], "duration_ms")
}

func TestLastBeginWins(t *testing.T) {
	var records bytes.Buffer
	l := New(Options{Format: FormatJSON, JSONOut: &records, Now: fakeClock()})

	l.StepBegin("dup")
	l.StepBegin("dup")
	l.StepEnd("dup", End{OK: true})
	l.StepEnd("dup", End{OK: true})

	lines := decodeLines(t, &records)
	require.Len(t, lines, 4)
	assert.EqualValues(t, 250, lines[2]["duration_ms"])
	assert.NotContains(t, lines[3], "duration_ms")
}

func TestPrettyOnlySkipsRecordsAndHidesDebug(t *testing.T) {
	var pretty bytes.Buffer
	l := New(Options{Format: FormatPretty, Out: &pretty, Emoji: false})

	l.Debug("", "hidden")
	l.Warn("install-fd", "careful")
	l.Success("", "done")

	out := pretty.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN [install-fd] careful")
	assert.Contains(t, out, "SUCCESS done")
	assert.Nil(t, l.records)
}

func TestDebugShownWhenEnabled(t *testing.T) {
	var pretty bytes.Buffer
	l := New(Options{Format: FormatPretty, Out: &pretty, Debug: true})

	l.Debug("s", "visible %d", 42)

	assert.Contains(t, pretty.String(), "DEBUG [s] visible 42")
}

func TestEmojiBadges(t *testing.T) {
	var pretty bytes.Buffer
	l := New(Options{Format: FormatPretty, Out: &pretty, Emoji: true})

	l.StepBegin("x")
	l.StepEnd("x", End{OK: true})

	lines := strings.Split(strings.TrimSpace(pretty.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "🚀 [x] begin"))
	assert.True(t, strings.HasPrefix(lines[1], "✅ [x] ok"))
}

func TestRecordFileIsCreatedAndAppended(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".logs", "install.jsonl")

	for i := 0; i < 2; i++ {
		l := New(Options{Format: FormatJSON, File: path})
		l.Info("", "run %d", i)
		require.NoError(t, l.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := decodeLines(t, bytes.NewBuffer(data))
	require.Len(t, lines, 2)
	assert.Equal(t, "run 0", lines[0]["msg"])
	assert.Equal(t, "run 1", lines[1]["msg"])
}

func TestUnwritableRecordFileFallsBackToConsole(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	var pretty bytes.Buffer
	l := New(Options{Format: FormatJSON, File: filepath.Join(blocker, "x.jsonl"), Out: &pretty})
	l.Info("", "still visible")

	assert.Contains(t, pretty.String(), "unavailable")
	assert.Contains(t, pretty.String(), "still visible")
	assert.NoError(t, l.Close())
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.StepBegin("s")
	l.Error("s", "nothing to see")
	l.StepEnd("s", End{OK: true})
	assert.NoError(t, l.Close())
}
