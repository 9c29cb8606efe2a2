package core

import (
	"context"
	"strings"

	"github.com/melih-ucgun/fleetprov/internal/prompt"
)

// Command is a single invocation sent through a Transport.
type Command struct {
	Name string
	Args []string
	// Env entries are KEY=VALUE pairs added to the command environment.
	Env []string
	// Stdin is fed to the command when no Responder is set.
	Stdin string
	// Sudo runs the command with privilege elevation.
	Sudo bool
	// Responder, when set, makes the call semi-interactive: every output chunk
	// that ends with a prompt marker blocks until the responder supplies a line.
	Responder prompt.Responder
}

// NewCommand builds a Command from a name and its arguments.
func NewCommand(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// String renders the command as a POSIX shell line. Env and sudo prefixes are
// included so the same string can be sent over SSH.
func (c Command) String() string {
	var parts []string
	if c.Sudo {
		parts = append(parts, "sudo")
	}
	if len(c.Env) > 0 {
		parts = append(parts, "env")
		for _, e := range c.Env {
			parts = append(parts, ShellQuote(e))
		}
	}
	parts = append(parts, ShellQuote(c.Name))
	for _, a := range c.Args {
		parts = append(parts, ShellQuote(a))
	}
	return strings.Join(parts, " ")
}

// ExecResult is the outcome of a command that ran to completion.
// A non-zero ExitCode is not an error at the transport level.
type ExecResult struct {
	ExitCode int
	Output   string
}

// Success reports whether the command exited with status zero.
func (r ExecResult) Success() bool {
	return r.ExitCode == 0
}

// Transport is the local or remote command channel of a single host.
// Execute only returns an error when the command could not be run at all.
type Transport interface {
	Execute(ctx context.Context, cmd Command) (ExecResult, error)
	FS() FileSystem
	Close() error
}

// ShellQuote quotes s for a POSIX shell unless it only holds safe characters.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !isShellSafe(r) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func isShellSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("-_./:=+,@%", r)
}
