package transport

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/melih-ucgun/fleetprov/internal/core"
)

// LocalTransport runs commands on the machine fleetprov runs on.
type LocalTransport struct {
	fs *core.RealFS
	// Echo receives the output of interactive commands as it arrives.
	Echo io.Writer
}

func NewLocalTransport() *LocalTransport {
	return &LocalTransport{fs: &core.RealFS{}}
}

func (t *LocalTransport) Execute(ctx context.Context, c core.Command) (core.ExecResult, error) {
	if err := ctx.Err(); err != nil {
		return core.ExecResult{}, err
	}

	name, args := c.Name, c.Args
	if c.Sudo && os.Geteuid() != 0 {
		args = append([]string{name}, args...)
		name = "sudo"
	}
	// Package manager runs are not cut short once started, so no CommandContext.
	cmd := exec.Command(name, args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	if c.Responder != nil {
		return t.interactive(cmd, c)
	}

	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	out, err := core.CommandRunner.CombinedOutput(cmd)
	return result(string(out), err)
}

func (t *LocalTransport) interactive(cmd *exec.Cmd, c core.Command) (core.ExecResult, error) {
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return core.ExecResult{}, err
	}

	p := piped{
		stdin: stdin,
		start: cmd.Start,
		wait:  cmd.Wait,
		kill: func() {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		},
	}
	ex, err := runExchange(p, pr, pw, c.Responder, t.Echo)
	if err != nil {
		return core.ExecResult{Output: ex.Output}, err
	}
	return result(ex.Output, ex.WaitErr)
}

// result maps a process error to an ExecResult. Only failures to run the
// process at all are returned as errors.
func result(out string, err error) (core.ExecResult, error) {
	code, ok := core.ExitCode(err)
	if !ok {
		return core.ExecResult{Output: out}, err
	}
	return core.ExecResult{ExitCode: code, Output: out}, nil
}

func (t *LocalTransport) FS() core.FileSystem {
	return t.fs
}

func (t *LocalTransport) Close() error {
	return nil
}
