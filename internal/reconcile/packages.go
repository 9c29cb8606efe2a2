package reconcile

import (
	"strings"
)

// PackagePlan is the action plan for OS packages. Removal is never planned:
// packages that are not declared are left alone.
type PackagePlan struct {
	ToInstall []PackageSpec
	// Upgrade replaces the per-package plan with one full upgrade.
	Upgrade bool
}

// Empty reports whether there is nothing to actuate.
func (p PackagePlan) Empty() bool {
	return !p.Upgrade && len(p.ToInstall) == 0
}

// Rendered returns the install list as apt arguments.
func (p PackagePlan) Rendered() []string {
	return renderAll(p.ToInstall)
}

// Args returns the install list as a single space-joined argument.
func (p PackagePlan) Args() string {
	return strings.Join(p.Rendered(), " ")
}

// PlanPackages reconciles declared OS packages against what is installed.
//
// In install mode a spec is planned when its name is absent, or when it pins a
// version that is not installed. ModeUpdate and ModeUpgrade skip the diff and
// plan a single full upgrade. A nil observed plans every declared spec.
func PlanPackages(desired []PackageSpec, observed Installed, mode Mode) PackagePlan {
	if mode != ModeInstall {
		return PackagePlan{Upgrade: true}
	}

	// Installed keys are every name plus every name=version pair, so an
	// unversioned spec matches on name and a pinned one on its exact pair.
	var have []string
	for _, name := range observed.Names() {
		have = append(have, name)
		for _, v := range observed.Versions(name) {
			have = append(have, PackageSpec{Name: name, Version: v}.Render())
		}
	}

	byKey := make(map[string]PackageSpec, len(desired))
	want := make([]string, 0, len(desired))
	for _, spec := range desired {
		key := spec.Render()
		if _, dup := byKey[key]; !dup {
			byKey[key] = spec
		}
		want = append(want, key)
	}

	toAdd, _ := Diff(want, have)

	plan := PackagePlan{}
	for _, key := range toAdd {
		plan.ToInstall = append(plan.ToInstall, byKey[key])
	}
	return plan
}

// DpkgQueryFormat is the dpkg-query output format ParseDpkgQuery reads.
const DpkgQueryFormat = "${db:Status-Abbrev} ${Package} ${Version}\\n"

// ParseDpkgQuery parses dpkg-query output in DpkgQueryFormat. Only packages
// whose current state is installed count: removed packages that still have
// config files (rc) are skipped.
func ParseDpkgQuery(output string) Installed {
	installed := make(Installed)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !dpkgInstalled(fields[0]) {
			continue
		}
		installed.Add(fields[1], fields[2:]...)
	}
	return installed
}

// dpkgInstalled reads the second letter of a status abbreviation such as
// "ii" or "hi".
func dpkgInstalled(status string) bool {
	return len(status) >= 2 && status[1] == 'i'
}
