package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/melih-ucgun/fleetprov/internal/provision"
	"github.com/spf13/cobra"
)

// hostCommands are the provisioning sequences exposed as top-level commands.
var hostCommands = []struct {
	use   string
	short string
}{
	{"bootstrap", "Set the timezone, upgrade packages, then install packages, gem sources and gems"},
	{"install", "Install missing packages and gems"},
	{"update", "Upgrade every package and update the declared gems"},
	{"upgrade-packages", "Run a full package upgrade"},
	{"install-packages", "Install missing OS packages"},
	{"install-gems", "Install missing gems"},
	{"update-gems", "Update the declared gems"},
	{"setup-gem-sources", "Make the gem sources match the declared list"},
}

func newHostCommand(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			return a.finish(a.runSequence(cmd.Context(), use))
		},
	}
}

var planCmd = &cobra.Command{
	Use:   "plan <command>",
	Short: "Show what a command would change without changing anything",
	Long: fmt.Sprintf(`Plan queries every host and prints the packages, gems and sources a command
would touch, plus hosts file diffs. Commands: %s.`, strings.Join(sequenceNames(), ", ")),
	Args:      cobra.ExactArgs(1),
	ValidArgs: sequenceNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := flags
		f.dryRun = true
		a, err := newApp(f)
		if err != nil {
			return err
		}
		return a.finish(a.runSequence(cmd.Context(), args[0]))
	},
}

func sequenceNames() []string {
	names := make([]string, 0, len(provision.Sequences))
	for name := range provision.Sequences {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	for _, c := range hostCommands {
		rootCmd.AddCommand(newHostCommand(c.use, c.short))
	}
	rootCmd.AddCommand(planCmd)
}
