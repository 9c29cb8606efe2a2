package state

import (
	"fmt"
)

// AddTransaction appends tx to history, updates the host entry and saves.
func (m *Manager) AddTransaction(tx Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Current.History = append(m.Current.History, tx)
	if m.MaxHistory > 0 && len(m.Current.History) > m.MaxHistory {
		m.Current.History = m.Current.History[len(m.Current.History)-m.MaxHistory:]
	}
	m.Current.Hosts[tx.Host] = HostEntry{
		Host:        tx.Host,
		Command:     tx.Command,
		Status:      tx.Status,
		LastApplied: tx.Timestamp,
		LastTxID:    tx.ID,
	}
	return m.saveLocked()
}

// GetTransactions returns a copy of history, optionally limited to one host.
func (m *Manager) GetTransactions(host string) []Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := make([]Transaction, 0, len(m.Current.History))
	for _, tx := range m.Current.History {
		if host == "" || tx.Host == host {
			history = append(history, tx)
		}
	}
	return history
}

// GetTransaction finds a transaction by ID.
func (m *Manager) GetTransaction(id string) (Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, tx := range m.Current.History {
		if tx.ID == id {
			return tx, nil
		}
	}
	return Transaction{}, fmt.Errorf("transaction not found: %s", id)
}
