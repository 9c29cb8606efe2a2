package state

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
)

// BackupManager keeps copies of files before fleetprov replaces them. The
// content is passed in since the file may live on another host.
type BackupManager struct {
	BaseDir string
}

func NewBackupManager(baseDir string) *BackupManager {
	return &BackupManager{BaseDir: baseDir}
}

// CreateBackup stores content as the pre-change copy of sourcePath for txID.
// Returns the path to the backup file.
func (bm *BackupManager) CreateBackup(txID, sourcePath string, content []byte) (string, error) {
	// baseDir / txID / <hash_of_path> keeps file names flat.
	pathHash := fmt.Sprintf("%x", sha256.Sum256([]byte(sourcePath)))
	backupDir := filepath.Join(bm.BaseDir, txID)
	backupPath := filepath.Join(backupDir, pathHash)

	if err := os.MkdirAll(backupDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}
	if err := os.WriteFile(backupPath, content, 0600); err != nil {
		return "", fmt.Errorf("write backup of %s: %w", sourcePath, err)
	}
	return backupPath, nil
}

// ReadBackup returns the content saved at backupPath.
func (bm *BackupManager) ReadBackup(backupPath string) ([]byte, error) {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return nil, fmt.Errorf("backup not found at %s: %w", backupPath, err)
	}
	return data, nil
}
