package transport

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/melih-ucgun/fleetprov/internal/prompt"
)

// MockResponse is a canned command outcome.
type MockResponse struct {
	Output   string
	ExitCode int
	Err      error
	// Chunks are streamed through the command's responder, one read each.
	Chunks []string
}

// MockTransport simulates a host for tests. Commands are matched by their
// rendered string: an exact match wins, then the longest registered prefix.
type MockTransport struct {
	mu        sync.Mutex
	Responses map[string]MockResponse
	// Fallback answers unmatched commands. Nil makes them an error.
	Fallback *MockResponse
	Calls    []string
	Answers  []string
	Files    *core.MemFS
}

var _ core.Transport = (*MockTransport)(nil)

func NewMockTransport() *MockTransport {
	return &MockTransport{
		Responses: make(map[string]MockResponse),
		Files:     core.NewMemFS(),
	}
}

// AddResponse registers a successful output for a command.
func (m *MockTransport) AddResponse(cmd, output string) {
	m.On(cmd, MockResponse{Output: output})
}

// AddError registers a transport failure for a command.
func (m *MockTransport) AddError(cmd string, err error) {
	m.On(cmd, MockResponse{Err: err})
}

// On registers resp for cmd.
func (m *MockTransport) On(cmd string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[cmd] = resp
}

func (m *MockTransport) lookup(line string) (MockResponse, bool) {
	if resp, ok := m.Responses[line]; ok {
		return resp, true
	}
	best := ""
	for key := range m.Responses {
		if strings.HasPrefix(line, key) && len(key) > len(best) {
			best = key
		}
	}
	if best != "" {
		return m.Responses[best], true
	}
	if m.Fallback != nil {
		return *m.Fallback, true
	}
	return MockResponse{}, false
}

func (m *MockTransport) Execute(ctx context.Context, c core.Command) (core.ExecResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	line := c.String()
	m.Calls = append(m.Calls, line)

	resp, ok := m.lookup(line)
	if !ok {
		return core.ExecResult{}, fmt.Errorf("mock: command not mocked: %s", line)
	}
	if resp.Err != nil {
		return core.ExecResult{}, resp.Err
	}

	if c.Responder != nil && len(resp.Chunks) > 0 {
		var answers strings.Builder
		var echo strings.Builder
		if err := prompt.Exchange(&chunkReader{chunks: resp.Chunks}, &answers, c.Responder, &echo); err != nil {
			return core.ExecResult{Output: echo.String()}, err
		}
		for _, a := range strings.Split(strings.TrimSuffix(answers.String(), "\n"), "\n") {
			if a != "" {
				m.Answers = append(m.Answers, a)
			}
		}
		return core.ExecResult{ExitCode: resp.ExitCode, Output: echo.String()}, nil
	}

	return core.ExecResult{ExitCode: resp.ExitCode, Output: resp.Output}, nil
}

// Called reports whether a command containing fragment was executed.
func (m *MockTransport) Called(fragment string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.ContainsFunc(m.Calls, func(c string) bool {
		return strings.Contains(c, fragment)
	})
}

func (m *MockTransport) FS() core.FileSystem {
	return m.Files
}

func (m *MockTransport) Close() error {
	return nil
}

// chunkReader returns one chunk per Read call.
type chunkReader struct {
	chunks []string
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}
