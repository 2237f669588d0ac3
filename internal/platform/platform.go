// Package platform classifies the host into one of the supported OS families.
package platform

import (
	"bufio"
	"os"
	"slices"
	"strings"
)

// Platform is an OS family with its own package manager and task list.
type Platform string

const (
	Debian Platform = "debian"
	Fedora Platform = "fedora"
	Darwin Platform = "darwin"
)

// OSReleasePath is the standard location of the os-release metadata file.
const OSReleasePath = "/etc/os-release"

// fedoraFamily are the ids that mark a dnf-based distribution.
var fedoraFamily = []string{"fedora", "rhel", "centos", "rocky", "almalinux"}

// debianFamily are the ids that mark an apt-based distribution.
var debianFamily = []string{"ubuntu", "debian"}

// All lists the platforms in a stable order.
func All() []Platform { return []Platform{Debian, Fedora, Darwin} }

// Parse maps a user supplied name (including the task-name suffixes
// "ubuntu" and "mac") to a Platform.
func Parse(s string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debian", "ubuntu":
		return Debian, true
	case "fedora", "rhel":
		return Fedora, true
	case "darwin", "mac", "macos":
		return Darwin, true
	}
	return "", false
}

// Suffix is the short label used in task names, e.g. fzf-ubuntu.
func (p Platform) Suffix() string {
	switch p {
	case Fedora:
		return "fedora"
	case Darwin:
		return "mac"
	}
	return "ubuntu"
}

// Detect classifies the host. goos is runtime.GOOS; osRelease is the path of
// the os-release file. It never fails: anything unrecognised or unreadable is
// treated as Debian.
func Detect(goos, osRelease string) Platform {
	if goos == "darwin" {
		return Darwin
	}
	if goos != "linux" {
		return Debian
	}
	f, err := os.Open(osRelease)
	if err != nil {
		return Debian
	}
	defer f.Close()

	id, idLike := parseOSRelease(f)
	return classify(id, idLike)
}

func classify(id string, idLike []string) Platform {
	if strings.Contains(id, "fedora") || slices.Contains(fedoraFamily, id) {
		return Fedora
	}
	for _, like := range idLike {
		if slices.Contains(fedoraFamily, like) {
			return Fedora
		}
	}
	if slices.Contains(debianFamily, id) {
		return Debian
	}
	for _, like := range idLike {
		if slices.Contains(debianFamily, like) {
			return Debian
		}
	}
	return Debian
}

// parseOSRelease extracts ID and the whitespace separated ID_LIKE list.
func parseOSRelease(f *os.File) (string, []string) {
	var id, idLike string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		value = strings.ToLower(strings.TrimSpace(strings.Trim(value, `"'`)))
		switch key {
		case "ID":
			id = value
		case "ID_LIKE":
			idLike = value
		}
	}
	return id, strings.Fields(idLike)
}
