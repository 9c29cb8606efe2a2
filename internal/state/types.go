package state

import "time"

// Transaction statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPartial = "partial"
	StatusDryRun  = "dry-run"
)

// HostEntry is the last known outcome for one host.
type HostEntry struct {
	Host        string    `json:"host"`
	Command     string    `json:"command"`
	Status      string    `json:"status"`
	LastApplied time.Time `json:"last_applied"`
	LastTxID    string    `json:"last_tx_id"`
}

// TransactionChange is one domain step applied during a transaction.
type TransactionChange struct {
	Domain     string   `json:"domain"`
	Action     string   `json:"action"`
	Items      []string `json:"items,omitempty"`
	Target     string   `json:"target,omitempty"`
	BackupPath string   `json:"backup_path,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Transaction is one command run against one host.
type Transaction struct {
	ID        string              `json:"id"`
	Host      string              `json:"host"`
	Command   string              `json:"command"`
	Timestamp time.Time           `json:"timestamp"`
	Status    string              `json:"status"`
	Changes   []TransactionChange `json:"changes"`
}

// Failed reports whether any change of the transaction failed.
func (t Transaction) Failed() bool {
	for _, c := range t.Changes {
		if c.Error != "" {
			return true
		}
	}
	return false
}

// State is everything fleetprov remembers between runs.
type State struct {
	Version string               `json:"version"`
	LastRun time.Time            `json:"last_run"`
	Hosts   map[string]HostEntry `json:"hosts"`
	History []Transaction        `json:"history,omitempty"`
}

func NewState() *State {
	return &State{
		Version: "1.0",
		Hosts:   make(map[string]HostEntry),
	}
}
