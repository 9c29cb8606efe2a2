package cmd

import (
	"github.com/melih-ucgun/fleetprov/internal/inventory"
	"github.com/melih-ucgun/fleetprov/internal/transport"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var aliasesCmd = &cobra.Command{
	Use:   "aliases",
	Short: "Publish instance aliases to hosts files and DNS",
}

var aliasesLocalCmd = &cobra.Command{
	Use:   "local",
	Short: "Write the external addresses of every instance into the local /etc/hosts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		out, err := a.provisioner().LocalAliases(cmd.Context(), transport.NewLocalTransport(), a.backups)
		if err != nil {
			return a.finish(err)
		}
		switch {
		case !out.Changed:
			pterm.Info.Println("Local hosts file already up to date")
		case a.flags.dryRun:
			pterm.Info.Println("Local hosts file would change")
		default:
			pterm.Success.Printfln("Local hosts file updated, previous copy kept at %s", out.BackupPath)
		}
		return a.finish(nil)
	},
}

var aliasesRemoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Write the internal addresses of every instance into each host's /etc/hosts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		return a.finish(a.runSequence(cmd.Context(), "aliases-remote"))
	},
}

var aliasesDNSCmd = &cobra.Command{
	Use:   "dns",
	Short: "Point the DNS alias of every instance at its external address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		instances, err := a.instances()
		if err != nil {
			return err
		}
		d := a.dispatcher()
		if a.flags.dryRun {
			return a.finish(printBindings(a, instances))
		}
		if err := d.UpdateAll(cmd.Context(), a.flags.env, instances); err != nil {
			return a.finish(err)
		}
		pterm.Success.Printfln("DNS aliases updated for %d instances", len(instances))
		return a.finish(nil)
	},
}

var destroyDNSYes bool

var destroyDNSCmd = &cobra.Command{
	Use:   "destroy-dns",
	Short: "Remove the DNS alias of every selected instance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		instances, err := a.instances()
		if err != nil {
			return err
		}
		if a.flags.dryRun {
			return a.finish(printBindings(a, instances))
		}
		if !destroyDNSYes {
			ok, _ := pterm.DefaultInteractiveConfirm.Show(pterm.Sprintf("Remove DNS aliases of %d instances?", len(instances)))
			if !ok {
				pterm.Info.Println("Aborted")
				return nil
			}
		}
		if err := a.dispatcher().DestroyAll(cmd.Context(), a.flags.env, instances); err != nil {
			return a.finish(err)
		}
		pterm.Success.Printfln("DNS aliases removed for %d instances", len(instances))
		return a.finish(nil)
	},
}

// printBindings shows the provider each instance resolves to.
func printBindings(a *app, instances []inventory.Instance) error {
	d := a.dispatcher()
	rows := [][]string{{"Instance", "Provider", "Zone", "Address"}}
	for _, inst := range instances {
		_, s, err := d.Bind(a.flags.env, inst.Roles, inst)
		if err != nil {
			return err
		}
		kind := string(s.Kind)
		if kind == "" {
			kind = "none"
		}
		rows = append(rows, []string{inst.Name, kind, s.Zone, inst.ExternalIP})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func init() {
	aliasesCmd.AddCommand(aliasesLocalCmd, aliasesRemoteCmd, aliasesDNSCmd)
	destroyDNSCmd.Flags().BoolVarP(&destroyDNSYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(aliasesCmd, destroyDNSCmd)
}
