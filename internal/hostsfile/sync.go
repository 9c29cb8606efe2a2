package hostsfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/google/uuid"
	"github.com/melih-ucgun/fleetprov/internal/core"
)

// Domain names hosts file steps in errors and history.
const Domain = "hosts"

// Backuper keeps the previous content of a file before it is replaced.
type Backuper interface {
	CreateBackup(txID, sourcePath string, content []byte) (string, error)
}

// Outcome describes one hosts file sync.
type Outcome struct {
	Changed    bool
	Diff       string
	BackupPath string
}

// Syncer rewrites the managed block of a hosts file through a transport.
type Syncer struct {
	Transport core.Transport
	Logger    core.Logger
	// Path defaults to /etc/hosts.
	Path    string
	Backups Backuper
	TxID    string
	// Sudo elevates the final copy into place.
	Sudo   bool
	DryRun bool
}

func (s *Syncer) path() string {
	if s.Path == "" {
		return Path
	}
	return s.Path
}

func (s *Syncer) logger() core.Logger {
	if s.Logger == nil {
		return core.NopLogger{}
	}
	return s.Logger
}

// Sync replaces the block bounded by start and end with content. Nothing is
// written when the file already holds exactly that block.
func (s *Syncer) Sync(ctx context.Context, start, end, content string) (Outcome, error) {
	current, err := s.Read()
	if err != nil {
		return Outcome{}, &core.ObservationUnavailable{Domain: Domain, Err: err}
	}

	updated, err := Rewrite(current, start, end, content)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Changed: updated != current, Diff: core.GenerateDiff(current, updated)}
	if !out.Changed {
		s.logger().Debug("hosts file already up to date", "path", s.path())
		return out, nil
	}
	if s.DryRun {
		s.logger().Info("[DryRun] would rewrite "+s.path(), "block", start)
		return out, nil
	}

	if s.Backups != nil {
		out.BackupPath, err = s.Backups.CreateBackup(s.TxID, s.path(), []byte(current))
		if err != nil {
			return out, fmt.Errorf("backup %s: %w", s.path(), err)
		}
	}
	if err := s.Write(ctx, updated); err != nil {
		return out, err
	}
	s.logger().Info("rewrote "+s.path(), "block", start)
	return out, nil
}

// Read returns the current file content. A missing file reads as empty.
func (s *Syncer) Read() (string, error) {
	data, err := s.Transport.FS().ReadFile(s.path())
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write replaces the file with data. The content is staged in /tmp by the
// connecting user and copied into place, elevated when Sudo is set, so the
// target keeps its owner and mode.
func (s *Syncer) Write(ctx context.Context, data string) error {
	staging := "/tmp/fleetprov-hosts-" + uuid.NewString()
	fsys := s.Transport.FS()
	if err := fsys.WriteFile(staging, []byte(data), 0644); err != nil {
		return fmt.Errorf("stage %s: %w", s.path(), err)
	}
	defer func() {
		if err := fsys.Remove(staging); err != nil {
			s.logger().Warn("could not remove staging file", "path", staging, "error", err)
		}
	}()

	cmd := core.NewCommand("cp", staging, s.path())
	cmd.Sudo = s.Sudo
	res, err := s.Transport.Execute(ctx, cmd)
	if err != nil {
		return fmt.Errorf("copy %s into place: %w", s.path(), err)
	}
	if !res.Success() {
		return &core.ActuationFailed{Domain: Domain, Items: []string{s.path()}, ExitCode: res.ExitCode, Output: res.Output}
	}
	return nil
}

// SetHostname writes /etc/hostname and applies the name to the running system.
func (s *Syncer) SetHostname(ctx context.Context, name string) error {
	if s.DryRun {
		s.logger().Info("[DryRun] would set hostname", "name", name)
		return nil
	}
	cmd := core.NewCommand("sh", "-c", "echo "+core.ShellQuote(name)+" > /etc/hostname && hostname "+core.ShellQuote(name))
	cmd.Sudo = s.Sudo
	res, err := s.Transport.Execute(ctx, cmd)
	if err != nil {
		return fmt.Errorf("set hostname: %w", err)
	}
	if !res.Success() {
		return &core.ActuationFailed{Domain: Domain, Phase: "hostname", Items: []string{name}, ExitCode: res.ExitCode, Output: res.Output}
	}
	return nil
}
