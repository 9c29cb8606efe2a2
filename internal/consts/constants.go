package consts

import (
	"os"
	"path/filepath"
)

// Constants for configuration paths and defaults
const (
	DefaultDirName       = ".fleetprov"
	StateFileName        = "state.json"
	BackupDirName        = "backups"
	MetricsFileName      = "fleetprov.prom"
	DefaultConfigFile    = "fleetprov.yml"
	DefaultInventoryFile = "instances.yml"
	EnvFileName          = ".env"
	EnvPrefix            = "FLEETPROV_"
	DefaultEnvironment   = "production"
	DefaultConcurrency   = 10
)

// GetStateDir returns the per-user directory holding state and backups.
func GetStateDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "STATE_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultDirName), nil
}

// GetStateFilePath returns the path to the state file
func GetStateFilePath() (string, error) {
	dir, err := GetStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, StateFileName), nil
}

// GetBackupDir returns the directory where replaced files are kept
func GetBackupDir() (string, error) {
	dir, err := GetStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, BackupDirName), nil
}
