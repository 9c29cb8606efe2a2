package core

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"nginx=1.24.0-1", "nginx=1.24.0-1"},
		{"https://rubygems.org/", "https://rubygems.org/"},
		{"-f=${Package}", "'-f=${Package}'"},
		{"it's", `'it'"'"'s'`},
		{"a b", "'a b'"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShellQuote(tt.in), tt.in)
	}
}

func TestCommandString(t *testing.T) {
	c := Command{
		Name: "apt-get",
		Args: []string{"-q", "-y", "install", "git"},
		Env:  []string{"DEBIAN_FRONTEND=noninteractive"},
		Sudo: true,
	}
	assert.Equal(t, "sudo env DEBIAN_FRONTEND=noninteractive apt-get -q -y install git", c.String())
	assert.Equal(t, "gem list --local", NewCommand("gem", "list", "--local").String())
}

func TestExitCode(t *testing.T) {
	code, ok := ExitCode(nil)
	assert.True(t, ok)
	assert.Equal(t, 0, code)

	err := exec.Command("sh", "-c", "exit 4").Run()
	code, ok = ExitCode(err)
	assert.True(t, ok)
	assert.Equal(t, 4, code)

	_, ok = ExitCode(errors.New("not started"))
	assert.False(t, ok)
}

func TestErrors(t *testing.T) {
	af := &ActuationFailed{Domain: "language-packages", Phase: "versioned", Items: []string{"b:1.2"}, ExitCode: 1}
	assert.Equal(t, "language-packages/versioned: actuation failed with exit status 1 for [b:1.2]", af.Error())

	cause := errors.New("connection reset")
	var ou error = &ObservationUnavailable{Domain: "packages", Err: cause}
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", ou), cause)

	dc := &DelimiterCollision{Delimiter: "## fleetprov config production"}
	assert.Contains(t, dc.Error(), "## fleetprov config production")
}

func TestGenerateDiff(t *testing.T) {
	assert.Empty(t, GenerateDiff("a\nb\n", "a\nb\n"))

	d := GenerateDiff("127.0.0.1 localhost\n", "127.0.0.1 localhost\n10.0.0.1 web01\n")
	assert.Contains(t, d, "  127.0.0.1 localhost\n")
	assert.Contains(t, d, "+ 10.0.0.1 web01\n")

	d = GenerateDiff("a\nb\n", "a\n\nb\n")
	assert.Equal(t, "  a\n+ \n  b\n", d)

	d = GenerateDiff("a\n\n\nb\n", "a\nb\n")
	assert.Equal(t, "  a\n- \n- \n  b\n", d)
}

func TestMemFS(t *testing.T) {
	m := NewMemFS()
	require.NoError(t, m.WriteFile("/etc/hosts", []byte("x"), 0644))
	info, err := m.Stat("/etc/hosts")
	require.NoError(t, err)
	assert.Equal(t, "hosts", info.Name())

	require.NoError(t, m.Remove("/etc/hosts"))
	_, err = m.ReadFile("/etc/hosts")
	assert.Error(t, err)
}

func TestDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewDefaultLogger(&buf, LevelInfo, FormatText)
	log.With("host", "web01").Info("installed", "count", 2)
	log.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "msg=installed")
	assert.Contains(t, out, "host=web01")
	assert.Contains(t, out, "count=2")
	assert.NotContains(t, out, "hidden")

	assert.Equal(t, LevelDebug, LevelFromVerbosity(1))
	assert.Equal(t, LevelTrace, LevelFromVerbosity(3))
}

func TestParseTemplate(t *testing.T) {
	tmpl, err := ParseTemplate("row", `{{ .Name | upper }} {{ .IP | default "-" }}`)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, tmpl.Execute(&buf, map[string]string{"Name": "web01"}))
	assert.Equal(t, "WEB01 -", buf.String())
}
