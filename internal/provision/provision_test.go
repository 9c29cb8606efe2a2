package provision

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/melih-ucgun/fleetprov/internal/config"
	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/melih-ucgun/fleetprov/internal/inventory"
	"github.com/melih-ucgun/fleetprov/internal/prompt"
	"github.com/melih-ucgun/fleetprov/internal/reconcile"
	"github.com/melih-ucgun/fleetprov/internal/state"
	"github.com/melih-ucgun/fleetprov/internal/system"
	"github.com/melih-ucgun/fleetprov/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
domain: example.com
timezone: Etc/UTC
packages: [vim, git]
gems: [a, "b:1.2"]
gem_sources: [https://rubygems.org/, https://gems.example.com/]
`

var web01 = inventory.Instance{Name: "web01", FullName: "web01.example.com", ExternalIP: "1.2.3.4", InternalIP: "10.0.0.1", Roles: []string{"web"}}

func newProvisioner(t *testing.T) (*Provisioner, *state.Manager) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleetprov.yml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0644))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	mgr, err := state.NewManager("/state/state.json", core.NewMemFS())
	require.NoError(t, err)

	return &Provisioner{
		Config: cfg,
		Inventory: &inventory.Inventory{Domain: "example.com", Instances: []inventory.Instance{
			web01,
			{Name: "db01", FullName: "db01.example.com", ExternalIP: "1.2.3.5", InternalIP: "10.0.0.2"},
		}},
		Env:       "production",
		State:     mgr,
		Responder: func(string) prompt.Responder { return prompt.NewScriptedResponder() },
		Out:       &bytes.Buffer{},
	}, mgr
}

const dpkgQuery = "dpkg-query -W '-f=${db:Status-Abbrev} ${Package} ${Version}\\n'"

func hostMock() *transport.MockTransport {
	m := transport.NewMockTransport()
	m.AddResponse("dpkg-query", "ii  vim 2:9.0.1378-2\nrc  nano 7.2-1\n")
	m.AddResponse("gem list --local", "*** LOCAL GEMS ***\n\na (1.0)\n")
	m.AddResponse("gem sources -l", "*** CURRENT SOURCES ***\n\nhttps://rubygems.org/\nhttp://old.example.com/\n")
	m.Fallback = &transport.MockResponse{}
	return m
}

func TestRun_Install(t *testing.T) {
	p, mgr := newProvisioner(t)
	mock := hostMock()

	require.NoError(t, p.Run(context.Background(), "install", web01, mock))

	assert.Equal(t, []string{
		dpkgQuery,
		"sudo apt-get -q update",
		"sudo env DEBIAN_FRONTEND=noninteractive apt-get -q -y install git",
		"gem list --local",
		"sudo gem install --no-document b -v 1.2",
	}, mock.Calls)

	txs := mgr.GetTransactions("web01")
	require.Len(t, txs, 1)
	assert.Equal(t, state.StatusSuccess, txs[0].Status)
	assert.Equal(t, "install", txs[0].Command)
	require.Len(t, txs[0].Changes, 2)
	assert.Equal(t, []string{"git"}, txs[0].Changes[0].Items)
	assert.Equal(t, []string{"b:1.2"}, txs[0].Changes[1].Items)
}

func TestRun_UnsupportedOS(t *testing.T) {
	p, mgr := newProvisioner(t)
	mock := hostMock()
	require.NoError(t, mock.Files.WriteFile(system.OSReleasePath, []byte("ID=fedora\nPRETTY_NAME=\"Fedora Linux 39\"\n"), 0644))

	err := p.Run(context.Background(), "install", web01, mock)
	var unsupported *system.UnsupportedOS
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "fedora", unsupported.Release.ID)
	assert.False(t, mock.Called("apt-get"))
	assert.False(t, mock.Called("dpkg-query"))
	assert.True(t, mock.Called("sudo gem install --no-document b -v 1.2"), "gems do not depend on apt")

	txs := mgr.GetTransactions("web01")
	require.Len(t, txs, 1)
	assert.Equal(t, state.StatusPartial, txs[0].Status)
}

func TestRun_DebianHostPassesOSCheck(t *testing.T) {
	p, _ := newProvisioner(t)
	mock := hostMock()
	require.NoError(t, mock.Files.WriteFile(system.OSReleasePath, []byte("ID=ubuntu\nID_LIKE=debian\n"), 0644))

	require.NoError(t, p.Run(context.Background(), "upgrade-packages", web01, mock))
	assert.True(t, mock.Called("apt-get -q -y dist-upgrade"))
}

func TestRun_Update(t *testing.T) {
	p, _ := newProvisioner(t)
	mock := hostMock()

	require.NoError(t, p.Run(context.Background(), "update", web01, mock))
	assert.True(t, mock.Called("apt-get -q -y dist-upgrade"))
	assert.True(t, mock.Called("gem update --no-document a"))
	assert.True(t, mock.Called("gem update --no-document b -v 1.2"))
	assert.False(t, mock.Called("dpkg-query"), "upgrade does not observe packages")
}

func TestRun_GemSources(t *testing.T) {
	p, _ := newProvisioner(t)
	mock := hostMock()

	require.NoError(t, p.Run(context.Background(), "setup-gem-sources", web01, mock))
	assert.True(t, mock.Called("sudo gem sources -a https://gems.example.com/"))
	assert.True(t, mock.Called("sudo gem sources -r http://old.example.com/"))
	assert.False(t, mock.Called("-a https://rubygems.org/"))
}

func TestRun_ObservationUnavailable(t *testing.T) {
	p, mgr := newProvisioner(t)
	mock := hostMock()
	mock.AddError("dpkg-query", errors.New("connection reset"))

	err := p.Run(context.Background(), "install-packages", web01, mock)
	var unavailable *core.ObservationUnavailable
	require.ErrorAs(t, err, &unavailable)
	assert.False(t, mock.Called("apt-get"))
	assert.Equal(t, state.StatusFailed, mgr.GetTransactions("web01")[0].Status)

	p.AssumeEmpty = true
	mock = hostMock()
	mock.On("dpkg-query", transport.MockResponse{ExitCode: 127, Output: "dpkg-query: not found"})
	require.NoError(t, p.Run(context.Background(), "install-packages", web01, mock))
	assert.True(t, mock.Called("apt-get -q -y install vim git"))
}

func TestRun_FailedStepSkipsOnlyItsReconciler(t *testing.T) {
	p, mgr := newProvisioner(t)
	mock := hostMock()
	mock.Files.Files["/etc/timezone"] = "Etc/UTC\n"
	mock.On("sudo apt-get -q update", transport.MockResponse{ExitCode: 100, Output: "E: Could not get lock"})

	err := p.Run(context.Background(), "bootstrap", web01, mock)
	var failed *core.ActuationFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, reconcile.DomainPackages, failed.Domain)
	assert.Contains(t, err.Error(), string(StepUpgradePackages))
	assert.NotContains(t, err.Error(), string(StepInstallPackages))
	assert.False(t, mock.Called("/etc/localtime"), "timezone already set")

	updates := 0
	for _, c := range mock.Calls {
		if c == "sudo apt-get -q update" {
			updates++
		}
	}
	assert.Equal(t, 1, updates, "install-packages is skipped after upgrade-packages failed")
	assert.False(t, mock.Called("install git"))

	assert.True(t, mock.Called("sudo gem sources -a https://gems.example.com/"))
	assert.True(t, mock.Called("sudo gem install --no-document b -v 1.2"))

	tx := mgr.GetTransactions("web01")[0]
	assert.Equal(t, state.StatusPartial, tx.Status)
	assert.True(t, tx.Failed())
}

func TestRun_ReinstallsRemovedPackage(t *testing.T) {
	p, _ := newProvisioner(t)
	mock := hostMock()
	mock.AddResponse("dpkg-query", "ii  vim 2:9.0.1378-2\nrc  git 1:2.39.2-1\n")

	require.NoError(t, p.Run(context.Background(), "install-packages", web01, mock))
	assert.True(t, mock.Called("apt-get -q -y install git"))
}

func TestRun_Timezone(t *testing.T) {
	p, _ := newProvisioner(t)
	mock := hostMock()

	require.NoError(t, p.RunSteps(context.Background(), "bootstrap", []Step{StepTimezone}, web01, mock))
	assert.Equal(t, []string{"sudo sh -c 'echo Etc/UTC > /etc/timezone && cp /usr/share/zoneinfo/Etc/UTC /etc/localtime'"}, mock.Calls)
}

func TestRun_DryRun(t *testing.T) {
	p, mgr := newProvisioner(t)
	p.DryRun = true
	out := &bytes.Buffer{}
	p.Out = out
	mock := hostMock()

	require.NoError(t, p.Run(context.Background(), "install", web01, mock))
	assert.Equal(t, []string{dpkgQuery, "gem list --local"}, mock.Calls)
	assert.Contains(t, out.String(), "install git")
	assert.Contains(t, out.String(), "install b -v 1.2")
	assert.Empty(t, mgr.GetTransactions(""))
}

func TestRun_RemoteAliases(t *testing.T) {
	p, _ := newProvisioner(t)
	mock := hostMock()
	mock.Files.Files["/etc/hosts"] = "127.0.0.1 localhost\n"

	require.NoError(t, p.Run(context.Background(), "aliases-remote", web01, mock))
	require.Len(t, mock.Calls, 2)
	assert.True(t, strings.HasPrefix(mock.Calls[0], "sudo cp /tmp/fleetprov-hosts-"))
	assert.Equal(t, "sudo sh -c 'echo web01 > /etc/hostname && hostname web01'", mock.Calls[1])
}

func TestRun_UnknownCommand(t *testing.T) {
	p, _ := newProvisioner(t)
	assert.Error(t, p.Run(context.Background(), "deploy", web01, hostMock()))
}

func TestLocalAliases(t *testing.T) {
	p, mgr := newProvisioner(t)
	p.DryRun = true
	out := &bytes.Buffer{}
	p.Out = out

	mock := hostMock()
	mock.Files.Files["/etc/hosts"] = "127.0.0.1 localhost\n"

	res, err := p.LocalAliases(context.Background(), mock, nil)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Contains(t, out.String(), "+ 1.2.3.4 web01.example.com")
	assert.Contains(t, out.String(), "+ ## fleetprov config example.com production")
	assert.NotContains(t, out.String(), " db01 ")
	assert.Empty(t, mock.Calls)
	assert.Empty(t, mgr.GetTransactions(""))
}

func TestObserveOrAssumeEmpty(t *testing.T) {
	got, err := ObserveOrAssumeEmpty([]string{"x"}, &core.ObservationUnavailable{Domain: "d", Err: errors.New("down")}, core.NopLogger{})
	require.NoError(t, err)
	assert.Nil(t, got)

	other := errors.New("boom")
	_, err = ObserveOrAssumeEmpty([]string{"x"}, other, core.NopLogger{})
	assert.Equal(t, other, err)
}
