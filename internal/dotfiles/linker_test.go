package dotfiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"machine-bootstrap/internal/logger"
)

type fixture struct {
	repo, home string
	linker     *Linker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		repo:   filepath.Join(root, "repo"),
		home:   filepath.Join(root, "home"),
		linker: NewLinker(&afero.OsFs{}),
	}
	require.NoError(t, os.MkdirAll(f.repo, 0o755))
	require.NoError(t, os.MkdirAll(f.home, 0o755))
	return f
}

func (f *fixture) mapping(t *testing.T, name, dst string) Mapping {
	t.Helper()
	src := filepath.Join(f.repo, name)
	require.NoError(t, os.WriteFile(src, []byte(name), 0o644))
	return Mapping{Source: src, Destination: filepath.Join(f.home, dst)}
}

func readlink(t *testing.T, p string) string {
	t.Helper()
	target, err := os.Readlink(p)
	require.NoError(t, err)
	return target
}

func TestLinkCreatesParentAndSymlink(t *testing.T) {
	f := newFixture(t)
	m := f.mapping(t, "config.fish", ".config/fish/config.fish")

	action, err := f.linker.Link(m)
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, action)
	assert.Equal(t, m.Source, readlink(t, m.Destination))
}

func TestLinkIsIdempotent(t *testing.T) {
	f := newFixture(t)
	m := f.mapping(t, "bashrc", ".bashrc")

	_, err := f.linker.Link(m)
	require.NoError(t, err)
	first, err := os.Lstat(m.Destination)
	require.NoError(t, err)

	action, err := f.linker.Link(m)
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, action)

	second, err := os.Lstat(m.Destination)
	require.NoError(t, err)
	assert.Equal(t, first.ModTime(), second.ModTime())
	assert.Equal(t, m.Source, readlink(t, m.Destination))
}

func TestLinkReplacesForeignSymlinkAndRegularFile(t *testing.T) {
	f := newFixture(t)
	m1 := f.mapping(t, "zshrc", ".zshrc")
	m2 := f.mapping(t, "gitconfig", ".gitconfig")

	require.NoError(t, os.Symlink("/elsewhere", m1.Destination))
	require.NoError(t, os.WriteFile(m2.Destination, []byte("old"), 0o644))

	for _, m := range []Mapping{m1, m2} {
		action, err := f.linker.Link(m)
		require.NoError(t, err)
		assert.Equal(t, ActionReplaced, action)
		assert.Equal(t, m.Source, readlink(t, m.Destination))
	}
}

func TestLinkRefusesNonEmptyDirectory(t *testing.T) {
	f := newFixture(t)
	m := f.mapping(t, "tmux.conf", ".tmux.conf")
	require.NoError(t, os.MkdirAll(filepath.Join(m.Destination, "keep"), 0o755))

	_, err := f.linker.Link(m)
	assert.Error(t, err)
	assert.DirExists(t, filepath.Join(m.Destination, "keep"))
}

func TestUnlinkOnlyRemovesOwnedLinks(t *testing.T) {
	f := newFixture(t)
	owned := f.mapping(t, "bashrc", ".bashrc")
	foreign := f.mapping(t, "zshrc", ".zshrc")
	regular := f.mapping(t, "gitconfig", ".gitconfig")
	missing := f.mapping(t, "aliases.sh", ".aliases.sh")

	_, err := f.linker.Link(owned)
	require.NoError(t, err)
	require.NoError(t, os.Symlink("/elsewhere", foreign.Destination))
	require.NoError(t, os.WriteFile(regular.Destination, []byte("mine"), 0o644))

	removed, err := f.linker.Revert(logger.Discard(), "uninstall-files", []Mapping{owned, foreign, regular, missing})
	require.NoError(t, err)
	assert.Equal(t, []Mapping{owned}, removed)

	assert.NoFileExists(t, owned.Destination)
	assert.Equal(t, "/elsewhere", readlink(t, foreign.Destination))
	data, err := os.ReadFile(regular.Destination)
	require.NoError(t, err)
	assert.Equal(t, "mine", string(data))
	assert.FileExists(t, owned.Source)
}

func TestApplyThenRevertRestoresAbsence(t *testing.T) {
	f := newFixture(t)
	maps := []Mapping{
		f.mapping(t, "bashrc", ".bashrc"),
		f.mapping(t, "starship.toml", ".config/starship.toml"),
	}

	linked, err := f.linker.Apply(logger.Discard(), "install-files", maps)
	require.NoError(t, err)
	assert.Equal(t, maps, linked)

	removed, err := f.linker.Revert(logger.Discard(), "uninstall-files", maps)
	require.NoError(t, err)
	assert.Equal(t, maps, removed)
	for _, m := range maps {
		_, err := os.Lstat(m.Destination)
		assert.True(t, os.IsNotExist(err))
	}
}
