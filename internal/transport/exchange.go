package transport

import (
	"bytes"
	"io"

	"github.com/melih-ucgun/fleetprov/internal/prompt"
)

// piped is a started-on-demand process whose combined output is written to
// the pipe handed to runExchange.
type piped struct {
	stdin io.WriteCloser
	start func() error
	wait  func() error
	kill  func()
	// preamble is written to stdin before any prompt is answered.
	preamble string
}

// exited is the outcome of a process run through runExchange.
type exited struct {
	Output  string
	WaitErr error
}

// runExchange starts p and answers prompts on its output until it exits. The
// returned error is set when the process could not start or a prompt could
// not be answered.
func runExchange(p piped, pr *io.PipeReader, pw *io.PipeWriter, responder prompt.Responder, echo io.Writer) (exited, error) {
	if err := p.start(); err != nil {
		pw.Close()
		return exited{}, err
	}
	if p.preamble != "" {
		if _, err := io.WriteString(p.stdin, p.preamble); err != nil {
			p.kill()
		}
	}

	done := make(chan error, 1)
	go func() {
		err := p.wait()
		pw.Close()
		done <- err
	}()

	if echo == nil {
		echo = io.Discard
	}
	var out bytes.Buffer
	xerr := prompt.Exchange(pr, p.stdin, responder, io.MultiWriter(&out, echo))
	if xerr != nil {
		p.kill()
		_, _ = io.Copy(io.Discard, pr)
	}
	p.stdin.Close()
	waitErr := <-done
	return exited{Output: out.String(), WaitErr: waitErr}, xerr
}
