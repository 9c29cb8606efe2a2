package reconcile

import (
	"regexp"
	"strings"
)

// GemPlan is the action plan for language packages. The package tool cannot
// mix versioned and unversioned requests in one invocation, so the two groups
// are actuated separately.
type GemPlan struct {
	Mode        Mode
	Unversioned []string
	Versioned   []PackageSpec
}

// Empty reports whether neither group needs actuation.
func (p GemPlan) Empty() bool {
	return len(p.Unversioned) == 0 && len(p.Versioned) == 0
}

// Verb is the tool subcommand for the plan mode.
func (p GemPlan) Verb() string {
	if p.Mode == ModeInstall {
		return "install"
	}
	return "update"
}

// VersionedArgs renders the versioned group as "name -v version" tokens.
func (p GemPlan) VersionedArgs() []string {
	args := make([]string, 0, len(p.Versioned)*3)
	for _, spec := range p.Versioned {
		args = append(args, spec.Name, "-v", spec.Version)
	}
	return args
}

// ParseGemSpecs parses "name" and "name:version" entries.
func ParseGemSpecs(entries []string) []PackageSpec {
	specs := make([]PackageSpec, 0, len(entries))
	for _, e := range entries {
		name, version, _ := strings.Cut(strings.TrimSpace(e), ":")
		if name == "" {
			continue
		}
		specs = append(specs, PackageSpec{Name: name, Version: version})
	}
	return specs
}

type gemVersion struct {
	name    string
	version string
}

// PlanGems reconciles declared language packages against what is installed.
//
// Unversioned names already installed are dropped in install mode only; update
// mode keeps them all. A versioned entry whose exact version is installed is
// dropped in every mode.
func PlanGems(desired []PackageSpec, observed Installed, mode Mode) GemPlan {
	if mode == ModeUpgrade {
		mode = ModeUpdate
	}

	var unversioned []string
	pinned := make(map[string]string)
	var pinnedOrder []string
	for _, spec := range desired {
		if !spec.Versioned() {
			unversioned = append(unversioned, spec.Name)
			continue
		}
		if _, ok := pinned[spec.Name]; !ok {
			pinnedOrder = append(pinnedOrder, spec.Name)
		}
		pinned[spec.Name] = spec.Version
	}

	plan := GemPlan{Mode: mode}

	if mode == ModeInstall {
		plan.Unversioned, _ = Diff(unversioned, observed.Names())
	} else {
		plan.Unversioned, _ = Diff(unversioned, nil)
	}

	want := make([]gemVersion, 0, len(pinnedOrder))
	var have []gemVersion
	for _, name := range pinnedOrder {
		want = append(want, gemVersion{name: name, version: pinned[name]})
		for _, v := range observed.Versions(name) {
			have = append(have, gemVersion{name: name, version: v})
		}
	}
	toAdd, _ := Diff(want, have)
	for _, gv := range toAdd {
		plan.Versioned = append(plan.Versioned, PackageSpec{Name: gv.name, Version: gv.version})
	}
	return plan
}

var gemListLine = regexp.MustCompile(`^(\S+) \((.*)\)\s*$`)

// ParseGemList parses `gem list --local` output into installed versions.
// Lines look like "rake (13.0.6, 12.3.3)" or "json (default: 2.6.1)".
func ParseGemList(output string) Installed {
	installed := make(Installed)
	for _, line := range strings.Split(output, "\n") {
		m := gemListLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		var versions []string
		for _, v := range strings.Split(m[2], ",") {
			v = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "default:"))
			// Drop a platform suffix such as "1.13.1 x86_64-linux".
			if fields := strings.Fields(v); len(fields) > 0 {
				versions = append(versions, fields[0])
			}
		}
		installed.Add(m[1], versions...)
	}
	return installed
}
