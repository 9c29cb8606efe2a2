// Package hostsfile maintains a managed block of alias rows inside a hosts
// file. Text outside the block is preserved byte for byte.
package hostsfile

import (
	"regexp"
	"strings"

	"github.com/melih-ucgun/fleetprov/internal/core"
)

// Path is the hosts file managed on every machine.
const Path = "/etc/hosts"

// LocalDelimiter bounds the block written on the operator machine. The domain
// keeps blocks of several fleets apart.
func LocalDelimiter(domain, env string) string {
	return "## fleetprov config " + domain + " " + env
}

// RemoteDelimiter bounds the block written on managed instances.
func RemoteDelimiter(env string) string {
	return "## fleetprov config " + env
}

// Rewrite removes every block bounded by start and end lines from text, drops
// any unpaired delimiter line left behind, and appends a single fresh block
// holding content. Applying it twice with the
// same arguments gives the same result as applying it once.
func Rewrite(text, start, end, content string) (string, error) {
	content = strings.TrimRight(content, "\n")
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == start || line == end {
			return "", &core.DelimiterCollision{Delimiter: line}
		}
	}

	rest := blockPattern(start, end).ReplaceAllString(text, "")
	rest = strayPattern(start, end).ReplaceAllString(rest, "")
	if rest != "" && !strings.HasSuffix(rest, "\n") {
		rest += "\n"
	}

	var b strings.Builder
	b.WriteString(rest)
	b.WriteString(start)
	b.WriteByte('\n')
	if content != "" {
		b.WriteString(content)
		b.WriteByte('\n')
	}
	b.WriteString(end)
	b.WriteByte('\n')
	return b.String(), nil
}

// Extract returns the content of the first managed block in text.
func Extract(text, start, end string) (string, bool) {
	m := blockPattern(start, end).FindString(text)
	if m == "" {
		return "", false
	}
	m = strings.TrimSuffix(m, "\n")
	m = strings.TrimPrefix(m, start)
	m = strings.TrimSuffix(m, end)
	return strings.Trim(m, "\n"), true
}

// blockPattern matches from a start line to the nearest following end line,
// plus one trailing newline.
func blockPattern(start, end string) *regexp.Regexp {
	return regexp.MustCompile(`(?ms)^` + regexp.QuoteMeta(start) + `$.*?^` + regexp.QuoteMeta(end) + `$\n?`)
}

// strayPattern matches a delimiter line that no longer pairs with another.
func strayPattern(start, end string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^(?:` + regexp.QuoteMeta(start) + `|` + regexp.QuoteMeta(end) + `)$\n?`)
}
