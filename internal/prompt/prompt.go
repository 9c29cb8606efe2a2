// Package prompt implements the request/response exchange used by commands
// that may stop and ask the operator a question on their output stream.
//
// The exchange reads the command output chunk by chunk. When a chunk ends with
// the prompt marker the calling goroutine blocks on a Responder until it
// supplies one line, which is written back to the command input. One Exchange
// serves exactly one stream; it is not safe to share between streams.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Marker is the trailing character that identifies a prompt.
const Marker = ">"

// Responder supplies one line of input for a detected prompt. The argument is
// the output accumulated since the previous answer.
type Responder interface {
	Respond(output string) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(output string) (string, error)

func (f ResponderFunc) Respond(output string) (string, error) {
	return f(output)
}

// IsPrompt reports whether chunk ends with the prompt marker, ignoring
// trailing whitespace.
func IsPrompt(chunk string) bool {
	return strings.HasSuffix(strings.TrimRight(chunk, " \t\r\n"), Marker)
}

// Exchange copies r to echo until EOF. Each chunk that IsPrompt triggers one
// call to responder, whose answer is written to w followed by a newline.
func Exchange(r io.Reader, w io.Writer, responder Responder, echo io.Writer) error {
	if echo == nil {
		echo = io.Discard
	}
	buf := make([]byte, 4096)
	var pending strings.Builder

	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			pending.WriteString(chunk)
			if _, werr := io.WriteString(echo, chunk); werr != nil {
				return werr
			}
			if IsPrompt(chunk) {
				answer, rerr := responder.Respond(pending.String())
				if rerr != nil {
					return fmt.Errorf("prompt responder: %w", rerr)
				}
				pending.Reset()
				if !strings.HasSuffix(answer, "\n") {
					answer += "\n"
				}
				if _, werr := io.WriteString(w, answer); werr != nil {
					return fmt.Errorf("prompt answer: %w", werr)
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
