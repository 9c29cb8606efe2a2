package transport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/melih-ucgun/fleetprov/internal/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockTransport_Matching(t *testing.T) {
	m := NewMockTransport()
	m.AddResponse("gem list", "generic")
	m.AddResponse("gem list --local", "local")
	m.AddError("apt-get", errors.New("boom"))

	res, err := m.Execute(context.Background(), core.NewCommand("gem", "list", "--local"))
	require.NoError(t, err)
	assert.Equal(t, "local", res.Output)

	res, err = m.Execute(context.Background(), core.NewCommand("gem", "list", "--remote"))
	require.NoError(t, err)
	assert.Equal(t, "generic", res.Output)

	_, err = m.Execute(context.Background(), core.NewCommand("apt-get", "update"))
	assert.EqualError(t, err, "boom")

	_, err = m.Execute(context.Background(), core.NewCommand("true"))
	assert.Error(t, err)

	assert.True(t, m.Called("--remote"))
	assert.Len(t, m.Calls, 4)
}

func TestMockTransport_Interactive(t *testing.T) {
	m := NewMockTransport()
	m.On("gem install", MockResponse{Chunks: []string{"Fetching rails\n", "Overwrite the executable? [yN] >", "done\n"}})

	cmd := core.NewCommand("gem", "install", "rails")
	cmd.Responder = prompt.NewScriptedResponder("y")
	res, err := m.Execute(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Contains(t, res.Output, "done")
	assert.Equal(t, []string{"y"}, m.Answers)
}

func TestLocalTransport_ExitCode(t *testing.T) {
	tr := NewLocalTransport()

	res, err := tr.Execute(context.Background(), core.NewCommand("sh", "-c", "echo out; exit 3"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out\n", res.Output)

	_, err = tr.Execute(context.Background(), core.NewCommand("fleetprov-no-such-binary"))
	assert.Error(t, err)
}

func TestLocalTransport_Stdin(t *testing.T) {
	tr := NewLocalTransport()
	cmd := core.NewCommand("cat")
	cmd.Stdin = "hello"
	res, err := tr.Execute(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Output)
}

func TestLocalTransport_Interactive(t *testing.T) {
	tr := NewLocalTransport()
	responder := prompt.NewScriptedResponder("yes")
	cmd := core.NewCommand("sh", "-c", `printf 'continue? >'; read answer; echo "got $answer"`)
	cmd.Responder = responder

	res, err := tr.Execute(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Contains(t, res.Output, "got yes")
	assert.Len(t, responder.Prompts, 1)
}

func TestLocalTransport_InteractiveNoAnswer(t *testing.T) {
	tr := NewLocalTransport()
	cmd := core.NewCommand("sh", "-c", `printf 'continue? >'; read answer`)
	cmd.Responder = prompt.NewScriptedResponder()

	done := make(chan error, 1)
	go func() {
		_, err := tr.Execute(context.Background(), cmd)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, prompt.ErrNoAnswer)
	case <-time.After(5 * time.Second):
		t.Fatal("interactive command did not stop after responder failure")
	}
}

func TestNewSSHTransport_MissingKnownHosts(t *testing.T) {
	dir := t.TempDir()
	keyless := HostConfig{Name: "web01", Address: "127.0.0.1", Password: "x", KnownHostsPath: filepath.Join(dir, "missing")}

	_, err := NewSSHTransport(context.Background(), keyless)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewSSHTransport_NoAuth(t *testing.T) {
	_, err := NewSSHTransport(context.Background(), HostConfig{Name: "web01", Address: "127.0.0.1"})
	assert.ErrorContains(t, err, "no ssh key or password")
}

func TestSSHTransport_CommandLine(t *testing.T) {
	tr := &SSHTransport{host: HostConfig{BecomePassword: "secret"}}
	cmd := core.NewCommand("apt-get", "install", "vim")
	cmd.Sudo = true

	line, preamble := tr.commandLine(cmd)
	assert.Equal(t, "sudo -S -p '' apt-get install vim", line)
	assert.Equal(t, "secret\n", preamble)

	tr.host.BecomePassword = ""
	line, preamble = tr.commandLine(cmd)
	assert.Equal(t, "sudo apt-get install vim", line)
	assert.Empty(t, preamble)
}
