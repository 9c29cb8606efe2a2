package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pterm/pterm"
)

// terminal serializes operator prompts across hosts so that one question and
// its answer are never interleaved with another host's.
var (
	terminal   sync.Mutex
	stdinLines = bufio.NewReader(os.Stdin)
)

// TerminalWriter wraps w so that every write holds the terminal lock and
// cannot land inside another host's prompt.
func TerminalWriter(w io.Writer) io.Writer {
	return terminalWriter{w: w}
}

type terminalWriter struct {
	w io.Writer
}

func (t terminalWriter) Write(p []byte) (int, error) {
	terminal.Lock()
	defer terminal.Unlock()
	return t.w.Write(p)
}

// StdinResponder asks the operator on the terminal. Create one per host.
type StdinResponder struct {
	Host string
	in   *bufio.Reader
	out  io.Writer
}

func NewStdinResponder(host string) *StdinResponder {
	return &StdinResponder{Host: host, in: stdinLines, out: os.Stderr}
}

func (s *StdinResponder) Respond(output string) (string, error) {
	terminal.Lock()
	defer terminal.Unlock()

	pterm.Info.WithWriter(s.out).Printfln("[%s] the command is asking for input:", s.Host)
	fmt.Fprint(s.out, output)
	if !strings.HasSuffix(output, " ") {
		fmt.Fprint(s.out, " ")
	}

	line, err := s.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read operator input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ErrNoAnswer is returned by a ScriptedResponder that ran out of answers.
var ErrNoAnswer = errors.New("no scripted answer left")

// ScriptedResponder replays fixed answers in order and records the prompts it
// saw.
type ScriptedResponder struct {
	mu      sync.Mutex
	Answers []string
	Prompts []string
}

func NewScriptedResponder(answers ...string) *ScriptedResponder {
	return &ScriptedResponder{Answers: answers}
}

func (s *ScriptedResponder) Respond(output string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Prompts = append(s.Prompts, output)
	if len(s.Answers) == 0 {
		return "", ErrNoAnswer
	}
	answer := s.Answers[0]
	s.Answers = s.Answers[1:]
	return answer, nil
}
