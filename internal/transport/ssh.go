package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostConfig holds the connection settings of one SSH host.
type HostConfig struct {
	Name           string
	Address        string
	User           string
	Port           int
	KeyPath        string
	Password       string
	BecomePassword string
	// KnownHostsPath defaults to ~/.ssh/known_hosts.
	KnownHostsPath string
	Timeout        time.Duration
}

// SSHTransport runs commands on a remote host over a single SSH connection.
type SSHTransport struct {
	client *ssh.Client
	fs     *SFTPFS
	host   HostConfig
	// Echo receives the output of interactive commands as it arrives.
	Echo io.Writer
}

// NewSSHTransport opens a verified SSH connection. Unknown host keys are
// rejected; connect once with ssh to record the key first.
func NewSSHTransport(ctx context.Context, h HostConfig) (*SSHTransport, error) {
	auth, err := authMethods(h)
	if err != nil {
		return nil, err
	}

	knownHostsPath := h.KnownHostsPath
	if knownHostsPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("home directory not found: %w", err)
		}
		knownHostsPath = filepath.Join(home, ".ssh", "known_hosts")
	}
	hostKeyCallback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts (%s): %w", knownHostsPath, err)
	}

	timeout := h.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	clientConfig := &ssh.ClientConfig{
		User:            h.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	port := h.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(h.Address, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("start sftp on %s: %w", addr, err)
	}

	return &SSHTransport{client: client, fs: NewSFTPFS(sftpClient), host: h}, nil
}

func authMethods(h HostConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if h.KeyPath != "" {
		key, err := os.ReadFile(h.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read key %s: %w", h.KeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse key %s: %w", h.KeyPath, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if h.Password != "" {
		methods = append(methods, ssh.Password(h.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("host %s: no ssh key or password configured", h.Name)
	}
	return methods, nil
}

// commandLine renders c for the remote shell. With a become password, sudo
// reads it from stdin before anything else.
func (t *SSHTransport) commandLine(c core.Command) (line, preamble string) {
	if !c.Sudo {
		return c.String(), ""
	}
	c.Sudo = false
	if t.host.BecomePassword != "" {
		return "sudo -S -p '' " + c.String(), t.host.BecomePassword + "\n"
	}
	return "sudo " + c.String(), ""
}

func (t *SSHTransport) Execute(ctx context.Context, c core.Command) (core.ExecResult, error) {
	if err := ctx.Err(); err != nil {
		return core.ExecResult{}, err
	}

	session, err := t.client.NewSession()
	if err != nil {
		return core.ExecResult{}, fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	line, preamble := t.commandLine(c)

	if c.Responder != nil {
		pr, pw := io.Pipe()
		session.Stdout = pw
		session.Stderr = pw
		stdin, err := session.StdinPipe()
		if err != nil {
			return core.ExecResult{}, err
		}
		p := piped{
			stdin:    stdin,
			start:    func() error { return session.Start(line) },
			wait:     session.Wait,
			kill:     func() { _ = session.Close() },
			preamble: preamble,
		}
		ex, err := runExchange(p, pr, pw, c.Responder, t.Echo)
		if err != nil {
			return core.ExecResult{Output: ex.Output}, err
		}
		return sshResult(ex.Output, ex.WaitErr)
	}

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out
	if preamble != "" || c.Stdin != "" {
		session.Stdin = strings.NewReader(preamble + c.Stdin)
	}
	err = session.Run(line)
	return sshResult(out.String(), err)
}

func sshResult(out string, err error) (core.ExecResult, error) {
	if err == nil {
		return core.ExecResult{Output: out}, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return core.ExecResult{ExitCode: exitErr.ExitStatus(), Output: out}, nil
	}
	return core.ExecResult{Output: out}, err
}

func (t *SSHTransport) FS() core.FileSystem {
	return t.fs
}

// Close shuts down the SFTP subsystem and the SSH connection.
func (t *SSHTransport) Close() error {
	var errs []error
	if t.fs != nil {
		errs = append(errs, t.fs.Close())
	}
	if t.client != nil {
		errs = append(errs, t.client.Close())
	}
	return errors.Join(errs...)
}
