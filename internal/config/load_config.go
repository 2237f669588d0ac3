package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"machine-bootstrap/internal/logger"
)

// Environment variables understood by the tool.
const (
	EnvLogFormat  = "LOG_FORMAT"
	EnvLogFile    = "LOG_FILE"
	EnvNoColor    = "NO_COLOR"
	EnvLogEmoji   = "LOG_EMOJI"
	EnvHome       = "HOME"
	EnvConfigHome = "XDG_CONFIG_HOME"
	EnvPath       = "PATH"
	EnvSkipTools  = "SKIP_TOOLS"
	EnvRepo       = "DOTFILES_REPO"
)

// DefaultLogFile is relative to the working directory.
const DefaultLogFile = ".logs/install.jsonl"

// systemDirs are placed ahead of user-controlled PATH entries so that a
// broken or hostile shim in a user directory cannot shadow system binaries.
var systemDirs = []string{
	"/usr/bin",
	"/bin",
	"/usr/sbin",
	"/sbin",
	"/opt/homebrew/bin",
	"/usr/local/bin",
}

var known = []string{
	EnvLogFormat, EnvLogFile, EnvNoColor, EnvLogEmoji, EnvHome,
	EnvConfigHome, EnvPath, EnvSkipTools, EnvRepo,
}

var defaults = map[string]any{
	key(EnvLogFormat): string(logger.FormatBoth),
	key(EnvLogFile):   DefaultLogFile,
	key(EnvLogEmoji):  "1",
}

func key(envName string) string { return strings.ToLower(envName) }

// Load reads the configuration from the process environment.
// A missing HOME or an invalid LOG_FORMAT returns an error wrapping ErrConfig.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	err := k.Load(env.Provider("", ".", func(s string) string {
		for _, name := range known {
			if s == name {
				return key(s)
			}
		}
		return ""
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	home := strings.TrimSpace(k.String(key(EnvHome)))
	if home == "" {
		return nil, fmt.Errorf("%w: HOME not set", ErrConfig)
	}

	format, err := logger.ParseFormat(k.String(key(EnvLogFormat)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	configHome := k.String(key(EnvConfigHome))
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}

	repo := k.String(key(EnvRepo))
	if repo == "" {
		if repo, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("%w: resolve working directory: %v", ErrConfig, err)
		}
	}
	if repo, err = filepath.Abs(repo); err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", ErrConfig, EnvRepo, err)
	}

	logFile := k.String(key(EnvLogFile))
	if logFile == "" {
		logFile = DefaultLogFile
	}

	return &Config{
		LogFormat:  format,
		LogFile:    logFile,
		NoColor:    truthy(k.String(key(EnvNoColor))),
		Emoji:      truthy(k.String(key(EnvLogEmoji))),
		Home:       home,
		ConfigHome: configHome,
		RepoRoot:   repo,
		Path:       HardenPath(k.String(key(EnvPath))),
		Skip:       SplitList(k.String(key(EnvSkipTools))),
	}, nil
}

// truthy accepts the usual spellings of an enabled flag.
func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// HardenPath puts the system directories first and keeps the remaining
// entries of current in order, without duplicates.
func HardenPath(current string) string {
	seen := make(map[string]bool)
	var parts []string
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		parts = append(parts, p)
	}
	for _, p := range systemDirs {
		add(p)
	}
	for _, p := range filepath.SplitList(current) {
		add(p)
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

// ShadowingShims returns user files named "env" that may shadow /usr/bin/env
// and break installer scripts.
func (c *Config) ShadowingShims() ([]string, error) {
	var found []string
	for _, p := range []string{
		filepath.Join(c.Home, ".local", "bin", "env"),
		filepath.Join(c.Home, ".deno", "env"),
	} {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return found, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.Mode().IsRegular() {
			found = append(found, p)
		}
	}
	return found, nil
}
