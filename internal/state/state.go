package state

import (
	"encoding/json" // For JSON encoding and decoding of the state file
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/adrg/xdg" // Resolves $XDG_STATE_HOME with per-OS defaults
)

// relPath is the state file location below the XDG state directory.
const relPath = "machine-bootstrap/state.json"

// TaskState represents the saved outcome of one installer task.
// It records the final status, how long the task ran and the error text when
// it failed.
type TaskState struct {
	Status     string    `json:"status"`          // pending, skipped, succeeded or failed
	DurationMS int64     `json:"duration_ms"`     // Wall time spent in the task
	Error      string    `json:"error,omitempty"` // Error text for failed tasks
	UpdatedAt  time.Time `json:"updated_at"`      // When this entry was last written
}

// LinkState represents a dotfile symlink created by the linker.
type LinkState struct {
	Source    string    `json:"source"` // Absolute path inside the dotfiles checkout
	CreatedAt time.Time `json:"created_at"`
}

// State holds the entire saved state for the bootstrap tool.
// Tasks is keyed by task name, Links by destination path.
type State struct {
	Platform string               `json:"platform"`
	LastRun  time.Time            `json:"last_run"`
	Tasks    map[string]TaskState `json:"tasks"`
	Links    map[string]LinkState `json:"links"`
}

// New returns an empty State with its maps initialised.
func New() *State {
	return &State{
		Tasks: make(map[string]TaskState),
		Links: make(map[string]LinkState),
	}
}

// DefaultPath returns the state file path under $XDG_STATE_HOME, creating the
// parent directory.
func DefaultPath() (string, error) {
	p, err := xdg.StateFile(relPath)
	if err != nil {
		return "", fmt.Errorf("resolve state file: %w", err)
	}
	return p, nil
}

// Load reads the saved state from path.
// A missing file yields an empty State; unreadable or corrupt files are errors.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}

	st := New()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	// JSON may carry null for either map.
	if st.Tasks == nil {
		st.Tasks = make(map[string]TaskState)
	}
	if st.Links == nil {
		st.Links = make(map[string]LinkState)
	}
	return st, nil
}

// Save writes st to path as indented JSON. The file is written to a temporary
// sibling first and renamed into place.
func Save(path string, st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write state file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace state file %s: %w", path, err)
	}
	return nil
}

// RecordTask stores the outcome of a task run at time now.
func (s *State) RecordTask(name, status string, d time.Duration, taskErr error, now time.Time) {
	ts := TaskState{Status: status, DurationMS: d.Milliseconds(), UpdatedAt: now}
	if taskErr != nil {
		ts.Error = taskErr.Error()
	}
	s.Tasks[name] = ts
}

// RecordLink remembers that dst now points at src.
func (s *State) RecordLink(dst, src string, now time.Time) {
	s.Links[dst] = LinkState{Source: src, CreatedAt: now}
}

// ForgetLink drops dst from the recorded links.
func (s *State) ForgetLink(dst string) {
	delete(s.Links, dst)
}

// TaskNames returns the recorded task names in lexical order.
func (s *State) TaskNames() []string {
	names := make([]string, 0, len(s.Tasks))
	for n := range s.Tasks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LinkDestinations returns the recorded link destinations in lexical order.
func (s *State) LinkDestinations() []string {
	dsts := make([]string, 0, len(s.Links))
	for d := range s.Links {
		dsts = append(dsts, d)
	}
	sort.Strings(dsts)
	return dsts
}
