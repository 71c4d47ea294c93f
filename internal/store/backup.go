// ABOUTME: Point-in-time store snapshot taken before any schema upgrade
// ABOUTME: Consistent online copy to <path>.bak via VACUUM INTO, never overwrites a prior backup

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
)

// BackupSuffix is appended to the store path to form the backup file.
const BackupSuffix = ".bak"

// recoveryDocURL is surfaced when setup fails and a backup is retained.
const recoveryDocURL = "https://github.com/2389/tokstore/blob/main/docs/DB_UPGRADE.md"

// snapshot writes a consistent online copy of the open store to
// <path>.bak and returns the backup path. It refuses to overwrite an
// existing backup: a leftover .bak is the artifact of a failed upgrade and
// must be resolved by an operator first.
func snapshot(db *sql.DB, path string, logger *slog.Logger) (string, error) {
	bakPath := path + BackupSuffix

	if _, err := os.Stat(bakPath); err == nil {
		return "", fmt.Errorf("backup already exists at %q, refusing to overwrite; see %s",
			bakPath, recoveryDocURL)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat backup path %q: %w", bakPath, err)
	}

	logger.Debug("taking store backup", "path", bakPath)

	// VACUUM INTO produces a transactionally consistent copy while readers
	// stay active, the database/sql equivalent of the engine's backup API.
	if _, err := db.Exec("VACUUM INTO ?", bakPath); err != nil {
		return "", fmt.Errorf("backing up store to %q: %w", bakPath, err)
	}

	return bakPath, nil
}

// removeBackup deletes the snapshot after a fully successful setup.
func removeBackup(bakPath string, logger *slog.Logger) {
	logger.Debug("removing store backup", "path", bakPath)
	if err := os.Remove(bakPath); err != nil {
		logger.Warn("could not remove backup", "path", bakPath, "error", err)
	}
}
