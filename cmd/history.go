package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/melih-ucgun/fleetprov/internal/hostsfile"
	"github.com/melih-ucgun/fleetprov/internal/state"
	"github.com/melih-ucgun/fleetprov/internal/transport"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var historyHost string

var historyCmd = &cobra.Command{
	Use:   "history [tx-id]",
	Short: "List past runs, or show the changes of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := openState()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			tx, err := mgr.GetTransaction(args[0])
			if err != nil {
				return err
			}
			pterm.DefaultHeader.Printf("%s %s on %s", tx.ID, tx.Command, tx.Host)
			return pterm.DefaultTable.WithHasHeader().WithWriter(os.Stdout).WithData(changeRows(tx)).Render()
		}

		history := mgr.GetTransactions(historyHost)
		if len(history) == 0 {
			pterm.Info.Println("No transaction log found.")
			return nil
		}
		pterm.DefaultHeader.Println("Transaction Log")
		return pterm.DefaultTable.WithHasHeader().WithWriter(os.Stdout).WithData(historyRows(history)).Render()
	},
}

// historyRows renders transactions latest first.
func historyRows(history []state.Transaction) [][]string {
	rows := [][]string{{"ID", "Date", "Host", "Command", "Status", "Changes"}}
	for i := len(history) - 1; i >= 0; i-- {
		tx := history[i]
		rows = append(rows, []string{
			tx.ID,
			tx.Timestamp.Format("2006-01-02 15:04:05"),
			tx.Host,
			tx.Command,
			statusStyle(tx.Status).Sprint(tx.Status),
			fmt.Sprintf("%d", len(tx.Changes)),
		})
	}
	return rows
}

func changeRows(tx state.Transaction) [][]string {
	rows := [][]string{{"Domain", "Action", "Items", "Backup", "Error"}}
	for _, c := range tx.Changes {
		rows = append(rows, []string{c.Domain, c.Action, strings.Join(c.Items, " "), c.BackupPath, c.Error})
	}
	return rows
}

func statusStyle(status string) *pterm.Style {
	switch status {
	case state.StatusFailed:
		return pterm.NewStyle(pterm.FgRed)
	case state.StatusPartial, state.StatusDryRun:
		return pterm.NewStyle(pterm.FgYellow)
	default:
		return pterm.NewStyle(pterm.FgGreen)
	}
}

var restoreHostsCmd = &cobra.Command{
	Use:   "restore-hosts <tx-id>",
	Short: "Put back the local hosts file saved by an aliases local run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, backups, err := openState()
		if err != nil {
			return err
		}
		tx, err := mgr.GetTransaction(args[0])
		if err != nil {
			return err
		}
		change, err := hostsBackup(tx)
		if err != nil {
			return err
		}
		data, err := backups.ReadBackup(change.BackupPath)
		if err != nil {
			return err
		}

		log := core.NewDefaultLogger(os.Stderr, core.LevelFromVerbosity(flags.verbose), flags.logFormat)
		syncer := &hostsfile.Syncer{
			Transport: transport.NewLocalTransport(),
			Logger:    log,
			Path:      change.Target,
			Sudo:      true,
		}
		if flags.dryRun {
			current, err := syncer.Read()
			if err != nil {
				return err
			}
			fmt.Fprint(os.Stdout, core.GenerateDiff(current, string(data)))
			return nil
		}

		writeErr := syncer.Write(cmd.Context(), string(data))
		restore := state.Transaction{
			ID:        uuid.NewString(),
			Host:      tx.Host,
			Command:   "restore-hosts",
			Timestamp: time.Now(),
			Status:    state.StatusSuccess,
			Changes: []state.TransactionChange{{
				Domain: hostsfile.Domain,
				Action: "restore",
				Items:  []string{tx.ID},
				Target: change.Target,
			}},
		}
		if writeErr != nil {
			restore.Status = state.StatusFailed
			restore.Changes[0].Error = writeErr.Error()
		}
		if err := mgr.AddTransaction(restore); err != nil {
			log.Warn("could not record transaction", "error", err)
		}
		if writeErr != nil {
			return writeErr
		}
		pterm.Success.Printfln("Restored %s from %s", change.Target, tx.ID)
		return nil
	},
}

// hostsBackup finds the hosts file change of tx that kept a backup.
func hostsBackup(tx state.Transaction) (state.TransactionChange, error) {
	for _, c := range tx.Changes {
		if c.Domain == hostsfile.Domain && c.BackupPath != "" {
			if c.Target == "" {
				c.Target = hostsfile.Path
			}
			return c, nil
		}
	}
	return state.TransactionChange{}, errors.New("transaction " + tx.ID + " has no hosts file backup")
}

func init() {
	historyCmd.Flags().StringVar(&historyHost, "host", "", "only show runs of this host")
	rootCmd.AddCommand(historyCmd, restoreHostsCmd)
}
