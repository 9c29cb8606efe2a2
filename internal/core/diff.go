package core

import (
	"bytes"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// GenerateDiff returns a line-level +/- view of the change from current to
// desired. Unchanged lines are prefixed with two spaces.
func GenerateDiff(current, desired string) string {
	if current == desired {
		return ""
	}
	dmp := diffmatchpatch.New()

	a, b, c := dmp.DiffLinesToChars(current, desired)
	diffs := dmp.DiffMain(a, b, false)
	result := dmp.DiffCharsToLines(diffs, c)

	var buff bytes.Buffer
	for _, diff := range result {
		prefix := "  "
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		if diff.Text == "" {
			continue
		}
		// Chunks hold whole lines, so blank lines are kept.
		for _, line := range strings.Split(strings.TrimSuffix(diff.Text, "\n"), "\n") {
			buff.WriteString(prefix + line + "\n")
		}
	}
	return buff.String()
}
