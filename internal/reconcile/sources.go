package reconcile

import (
	"fmt"
	"sort"
	"strings"
)

// SourcePlan is the action plan for package source URIs.
type SourcePlan struct {
	ToAdd    []string
	ToRemove []string
}

// Empty reports whether there is nothing to actuate.
func (p SourcePlan) Empty() bool {
	return len(p.ToAdd) == 0 && len(p.ToRemove) == 0
}

// ParseSourceList filters a raw source listing: header and comment lines are
// dropped, lines are trimmed, blanks removed and duplicates collapsed.
func ParseSourceList(raw string) []string {
	var sources []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(line, "*") || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		sources = append(sources, line)
	}
	return sources
}

// PlanSources reconciles declared source URIs against configured ones.
func PlanSources(desired, observed []string) SourcePlan {
	toAdd, toRemove := Diff(desired, observed)
	return SourcePlan{ToAdd: toAdd, ToRemove: toRemove}
}

// SourceFailures lists the URIs whose add or remove call failed. The other
// URIs of the same plan were still attempted.
type SourceFailures struct {
	Failed map[string]error
}

func (e *SourceFailures) Error() string {
	uris := e.URIs()
	parts := make([]string, 0, len(uris))
	for _, uri := range uris {
		parts = append(parts, fmt.Sprintf("%s: %v", uri, e.Failed[uri]))
	}
	return fmt.Sprintf("%d source(s) failed: %s", len(uris), strings.Join(parts, "; "))
}

// URIs returns the failed URIs in sorted order.
func (e *SourceFailures) URIs() []string {
	uris := make([]string, 0, len(e.Failed))
	for uri := range e.Failed {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}
