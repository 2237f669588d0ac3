package config

import (
	"errors"
	"path/filepath"

	"machine-bootstrap/internal/logger"
)

// ErrConfig marks fatal configuration problems such as a missing HOME.
var ErrConfig = errors.New("configuration error")

// Config is the process-wide configuration, read once at startup from the
// environment. Nothing mutates it after Load returns.
type Config struct {
	LogFormat  logger.Format // LOG_FORMAT: pretty, json or both
	LogFile    string        // LOG_FILE: JSONL record file
	NoColor    bool          // NO_COLOR: disable colours
	Emoji      bool          // LOG_EMOJI: emoji badges on the console
	Home       string        // HOME: required
	ConfigHome string        // XDG_CONFIG_HOME, or ~/.config
	RepoRoot   string        // DOTFILES_REPO, or the working directory
	Path       string        // PATH after hardening
	Skip       []string      // SKIP_TOOLS: tools whose tasks are skipped
}

// BinDir is the user-local bin directory for binaries installed without
// elevated privileges.
func (c *Config) BinDir() string {
	return filepath.Join(c.Home, ".local", "bin")
}

// DotfilesDir is the directory holding the files the linker points at.
func (c *Config) DotfilesDir() string {
	return filepath.Join(c.RepoRoot, "dotfiles")
}
