// Package dotfiles links the repository's dotfiles into the user's home and
// config directories, and removes the links it owns.
package dotfiles

import (
	_ "embed"
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed mappings.yaml
var mappingsYAML []byte

// Mapping is one symlink: Destination will point at Source. Both are absolute.
type Mapping struct {
	Source      string
	Destination string
}

// entry is a row of the embedded mapping table.
type entry struct {
	Src  string `yaml:"src"`
	Root string `yaml:"root"`
	Dst  string `yaml:"dst"`
}

type table struct {
	Common []entry            `yaml:"common"`
	Extra  map[string][]entry `yaml:",inline"`
}

// Roots locates the directories mapping entries are resolved against.
type Roots struct {
	Dotfiles string // <repo>/dotfiles
	Home     string
	Config   string // XDG config dir
}

// Mappings returns the absolute mappings for goos, common entries first.
func Mappings(roots Roots, goos string) ([]Mapping, error) {
	return parse(mappingsYAML, roots, goos)
}

func parse(data []byte, roots Roots, goos string) ([]Mapping, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse mapping table: %w", err)
	}

	entries := append(append([]entry{}, t.Common...), t.Extra[goos]...)
	out := make([]Mapping, 0, len(entries))
	for _, e := range entries {
		var base string
		switch e.Root {
		case "home":
			base = roots.Home
		case "config":
			base = roots.Config
		default:
			return nil, fmt.Errorf("mapping %q: unknown root %q", e.Src, e.Root)
		}
		if e.Src == "" || e.Dst == "" {
			return nil, fmt.Errorf("mapping %q: src and dst are required", e.Src)
		}
		out = append(out, Mapping{
			Source:      filepath.Join(roots.Dotfiles, filepath.FromSlash(e.Src)),
			Destination: filepath.Join(base, filepath.FromSlash(e.Dst)),
		})
	}
	return out, nil
}
