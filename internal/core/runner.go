package core

import (
	"errors"
	"os/exec"
)

// Runner runs prepared commands. Tests can replace CommandRunner with a mock.
type Runner interface {
	CombinedOutput(cmd *exec.Cmd) ([]byte, error)
}

// RealRunner implements Runner using os/exec.
type RealRunner struct{}

func (r *RealRunner) CombinedOutput(cmd *exec.Cmd) ([]byte, error) {
	return cmd.CombinedOutput()
}

// CommandRunner is the global runner used by the local transport.
var CommandRunner Runner = &RealRunner{}

// ExitCode extracts the exit status from an os/exec error.
// ok is false when err is not an exit error (the command never ran).
func ExitCode(err error) (code int, ok bool) {
	if err == nil {
		return 0, true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return -1, false
}
