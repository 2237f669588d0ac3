package dotfiles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"machine-bootstrap/internal/logger"
)

// Filesystem is an afero filesystem that can create and read symlinks.
// afero.OsFs satisfies it.
type Filesystem interface {
	afero.Fs
	afero.Symlinker
}

// Action reports what Link did to a destination.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUnchanged Action = "unchanged"
	ActionReplaced  Action = "replaced"
)

// Linker creates and removes dotfile symlinks.
type Linker struct {
	fs Filesystem
}

// NewLinker returns a Linker operating on fsys.
func NewLinker(fsys Filesystem) *Linker {
	return &Linker{fs: fsys}
}

// NewOsLinker returns a Linker on the host filesystem.
func NewOsLinker() *Linker {
	return NewLinker(&afero.OsFs{})
}

// Link makes m.Destination a symlink to m.Source. A symlink already pointing
// at the source is left alone; any other symlink or regular file at the
// destination is replaced. A non-empty directory is an error.
func (l *Linker) Link(m Mapping) (Action, error) {
	if err := l.fs.MkdirAll(filepath.Dir(m.Destination), 0o755); err != nil {
		return "", fmt.Errorf("create parent of %s: %w", m.Destination, err)
	}

	action := ActionCreated
	info, _, err := l.fs.LstatIfPossible(m.Destination)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return "", fmt.Errorf("inspect %s: %w", m.Destination, err)
	default:
		if info.Mode()&os.ModeSymlink != 0 {
			if target, err := l.fs.ReadlinkIfPossible(m.Destination); err == nil && target == m.Source {
				return ActionUnchanged, nil
			}
		}
		if err := l.fs.Remove(m.Destination); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("remove %s: %w", m.Destination, err)
		}
		action = ActionReplaced
	}

	if err := l.fs.SymlinkIfPossible(m.Source, m.Destination); err != nil {
		return "", fmt.Errorf("link %s -> %s: %w", m.Destination, m.Source, err)
	}
	return action, nil
}

// Unlink removes m.Destination only when it is a symlink whose target is
// exactly m.Source. It reports whether anything was removed.
func (l *Linker) Unlink(m Mapping) (bool, error) {
	info, _, err := l.fs.LstatIfPossible(m.Destination)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", m.Destination, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return false, nil
	}
	target, err := l.fs.ReadlinkIfPossible(m.Destination)
	if err != nil {
		return false, fmt.Errorf("read link %s: %w", m.Destination, err)
	}
	if target != m.Source {
		return false, nil
	}
	if err := l.fs.Remove(m.Destination); err != nil {
		return false, fmt.Errorf("remove %s: %w", m.Destination, err)
	}
	return true, nil
}

// Apply links every mapping in order and stops at the first error. It returns
// the mappings that are in place, including unchanged ones.
func (l *Linker) Apply(log *logger.Logger, step string, maps []Mapping) ([]Mapping, error) {
	done := make([]Mapping, 0, len(maps))
	for _, m := range maps {
		action, err := l.Link(m)
		if err != nil {
			return done, err
		}
		log.Debug(step, "link %s -> %s (%s)", m.Destination, m.Source, action)
		done = append(done, m)
	}
	return done, nil
}

// Revert unlinks every owned mapping and returns those it removed.
func (l *Linker) Revert(log *logger.Logger, step string, maps []Mapping) ([]Mapping, error) {
	var removed []Mapping
	for _, m := range maps {
		ok, err := l.Unlink(m)
		if err != nil {
			return removed, err
		}
		if ok {
			log.Debug(step, "removed symlink %s", m.Destination)
			removed = append(removed, m)
		} else {
			log.Debug(step, "skip %s (not our symlink or missing)", m.Destination)
		}
	}
	return removed, nil
}
