package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryManager(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state", "state.json")
	fsys := &core.RealFS{}

	mgr, err := NewManager(stateFile, fsys)
	require.NoError(t, err)

	tx := Transaction{
		ID:        "tx1",
		Host:      "web01",
		Command:   "install",
		Timestamp: time.Now(),
		Status:    StatusSuccess,
		Changes: []TransactionChange{
			{Domain: "packages", Action: "install", Items: []string{"vim"}},
		},
	}
	require.NoError(t, mgr.AddTransaction(tx))
	require.NoError(t, mgr.AddTransaction(Transaction{ID: "tx2", Host: "db01", Status: StatusFailed,
		Changes: []TransactionChange{{Domain: "language-packages", Error: "exit status 1"}}}))

	// A fresh manager reads what was saved.
	mgr2, err := NewManager(stateFile, fsys)
	require.NoError(t, err)

	txs := mgr2.GetTransactions("")
	require.Len(t, txs, 2)
	assert.Equal(t, "tx1", txs[0].ID)
	assert.Len(t, txs[0].Changes, 1)

	web := mgr2.GetTransactions("web01")
	require.Len(t, web, 1)

	got, err := mgr2.GetTransaction("tx2")
	require.NoError(t, err)
	assert.True(t, got.Failed())

	entry, ok := mgr2.Host("db01")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, entry.Status)
	assert.Equal(t, "tx2", entry.LastTxID)

	_, err = mgr2.GetTransaction("nope")
	assert.Error(t, err)
}

func TestManager_MaxHistory(t *testing.T) {
	fsys := core.NewMemFS()
	mgr, err := NewManager("/state/state.json", fsys)
	require.NoError(t, err)
	mgr.MaxHistory = 2

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, mgr.AddTransaction(Transaction{ID: id, Host: "web01"}))
	}
	txs := mgr.GetTransactions("")
	require.Len(t, txs, 2)
	assert.Equal(t, "b", txs[0].ID)
	assert.Contains(t, fsys.Files, "/state/state.json")
}

func TestNewManager_CorruptState(t *testing.T) {
	fsys := core.NewMemFS()
	fsys.Files["/state.json"] = "{not json"
	_, err := NewManager("/state.json", fsys)
	assert.Error(t, err)
}
