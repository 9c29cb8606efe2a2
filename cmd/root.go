package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/melih-ucgun/fleetprov/internal/consts"
	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fleetprov",
	Short: "Converge a fleet of hosts to their declared packages and aliases.",
	Long: `fleetprov installs OS packages, gems and gem sources on every host of an
inventory and keeps DNS records and /etc/hosts aliases in sync.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// globalFlags are shared by every command.
type globalFlags struct {
	configPath    string
	inventoryPath string
	envFile       string
	env           string
	hosts         []string
	roles         []string
	concurrency   int
	dryRun        bool
	assumeEmpty   bool
	logFormat     string
	metricsFile   string
	knownHosts    string
	verbose       int
}

var flags globalFlags

// Execute runs the CLI. Ctrl+C cancels the context handed to commands.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))

	// Keep stdout clean for plans and tables.
	pterm.SetDefaultOutput(os.Stderr)
	pterm.Success.Writer = os.Stderr
	pterm.Info.Writer = os.Stderr
	pterm.Error.Writer = os.Stderr
	pterm.Warning.Writer = os.Stderr
	pterm.DefaultHeader.Writer = os.Stderr

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", consts.DefaultConfigFile, "config file path (.yml, .yaml or .toml)")
	pf.StringVarP(&flags.inventoryPath, "inventory", "i", consts.DefaultInventoryFile, "instance inventory file")
	pf.StringVar(&flags.envFile, "env-file", consts.EnvFileName, "dotenv file holding provider secrets")
	pf.StringVarP(&flags.env, "env", "e", consts.DefaultEnvironment, "environment name")
	pf.StringSliceVar(&flags.hosts, "hosts", nil, "only act on these instance names")
	pf.StringSliceVar(&flags.roles, "roles", nil, "only act on instances with one of these roles")
	pf.IntVar(&flags.concurrency, "concurrency", consts.DefaultConcurrency, "hosts provisioned in parallel")
	pf.BoolVar(&flags.dryRun, "dry-run", false, "show what would change without changing anything")
	pf.BoolVar(&flags.assumeEmpty, "assume-empty", false, "treat hosts that cannot be queried as having nothing installed")
	pf.StringVar(&flags.logFormat, "log-format", core.FormatConsole, "log format: console, text or pretty")
	pf.StringVar(&flags.metricsFile, "metrics-file", "", "write prometheus metrics to this textfile after the run")
	pf.StringVar(&flags.knownHosts, "known-hosts", "", "known_hosts file (default ~/.ssh/known_hosts)")
	pf.CountVarP(&flags.verbose, "verbose", "v", "Increase verbosity level (-v, -vv)")
}
