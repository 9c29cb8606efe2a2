package transport

import (
	"context"
	"io"

	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/melih-ucgun/fleetprov/internal/inventory"
)

// Options are connection settings shared by every host of a run.
type Options struct {
	KnownHostsPath string
	// Echo receives interactive command output.
	Echo io.Writer
}

// Dial opens the transport for inst.
func Dial(ctx context.Context, inst inventory.Instance, opts Options) (core.Transport, error) {
	if inst.Connection == inventory.ConnectionLocal {
		t := NewLocalTransport()
		if opts.Echo != nil {
			t.Echo = opts.Echo
		}
		return t, nil
	}

	t, err := NewSSHTransport(ctx, HostConfig{
		Name:           inst.Name,
		Address:        inst.Addr(),
		User:           inst.User,
		Port:           inst.Port,
		KeyPath:        inst.KeyPath,
		BecomePassword: inst.BecomePassword,
		KnownHostsPath: opts.KnownHostsPath,
	})
	if err != nil {
		return nil, err
	}
	if opts.Echo != nil {
		t.Echo = opts.Echo
	}
	return t, nil
}
