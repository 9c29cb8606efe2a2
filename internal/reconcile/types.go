// Package reconcile computes the minimal set of actions that converge the
// observed state of a host with its declared state, and applies those plans
// through a transport.
//
// Planning is pure and never fails. Only actuation returns errors.
package reconcile

import (
	"sort"
	"strings"
)

// Mode selects how a reconciler treats items that are already present.
type Mode string

const (
	ModeInstall Mode = "install"
	ModeUpdate  Mode = "update"
	ModeUpgrade Mode = "upgrade"
)

// PackageSpec is a declared package with an optional pinned version.
type PackageSpec struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
}

// Versioned reports whether the spec pins a version.
func (p PackageSpec) Versioned() bool {
	return p.Version != ""
}

// Render formats the spec for apt: name=version or name.
func (p PackageSpec) Render() string {
	if p.Versioned() {
		return p.Name + "=" + p.Version
	}
	return p.Name
}

func (p PackageSpec) String() string {
	return p.Render()
}

// ParsePackageSpec parses "name" or "name=version".
func ParsePackageSpec(s string) PackageSpec {
	name, version, _ := strings.Cut(strings.TrimSpace(s), "=")
	return PackageSpec{Name: name, Version: version}
}

// VersionSet is the set of versions installed for one package name.
type VersionSet map[string]struct{}

// Installed maps package names to their installed versions. A nil Installed
// means nothing is known to be installed.
type Installed map[string]VersionSet

// Add records name as installed with the given versions.
func (i Installed) Add(name string, versions ...string) {
	set, ok := i[name]
	if !ok {
		set = make(VersionSet)
		i[name] = set
	}
	for _, v := range versions {
		if v != "" {
			set[v] = struct{}{}
		}
	}
}

// Has reports whether any version of name is installed.
func (i Installed) Has(name string) bool {
	_, ok := i[name]
	return ok
}

// HasVersion reports whether exactly version of name is installed.
func (i Installed) HasVersion(name, version string) bool {
	set, ok := i[name]
	if !ok {
		return false
	}
	_, ok = set[version]
	return ok
}

// Names returns the installed names in sorted order.
func (i Installed) Names() []string {
	names := make([]string, 0, len(i))
	for name := range i {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Versions returns the sorted versions installed for name.
func (i Installed) Versions(name string) []string {
	set := i[name]
	versions := make([]string, 0, len(set))
	for v := range set {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

func renderAll(specs []PackageSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Render()
	}
	return out
}
