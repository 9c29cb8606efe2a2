package state

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupManager(t *testing.T) {
	bm := NewBackupManager(t.TempDir())

	content := []byte("127.0.0.1 localhost\n")
	backupPath, err := bm.CreateBackup("tx1", "/etc/hosts", content)
	require.NoError(t, err)

	_, err = os.Stat(backupPath)
	require.NoError(t, err)

	restored, err := bm.ReadBackup(backupPath)
	require.NoError(t, err)
	assert.Equal(t, content, restored)

	other, err := bm.CreateBackup("tx2", "/etc/hosts", content)
	require.NoError(t, err)
	assert.NotEqual(t, backupPath, other)

	_, err = bm.ReadBackup(backupPath + "-missing")
	assert.Error(t, err)
}
