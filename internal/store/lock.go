// ABOUTME: Cross-process advisory lock guarding the backup/upgrade sequence
// ABOUTME: Blocking exclusive flock on a sidecar file, released and unlinked on every exit path

package store

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// LockSuffix is appended to the store path to form the sidecar lock file.
const LockSuffix = ".lock"

// upgradeLock holds the advisory lock serializing backup and migration
// across processes. It does not serialize ordinary CRUD from processes
// that skip the setup path; that is a documented limitation.
type upgradeLock struct {
	fl     *flock.Flock
	path   string
	owner  string
	logger *slog.Logger
}

// acquireUpgradeLock blocks until the exclusive lock on <storePath>.lock is
// held, creating the sidecar if absent. The returned lock must be released
// on every exit path.
func acquireUpgradeLock(storePath string, logger *slog.Logger) (*upgradeLock, error) {
	lockPath := storePath + LockSuffix

	fl := flock.New(lockPath)
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("locking %q: %w", lockPath, err)
	}

	l := &upgradeLock{
		fl:     fl,
		path:   lockPath,
		owner:  uuid.NewString(),
		logger: logger,
	}

	// Owner line is diagnostics only; a stale sidecar after a crash tells
	// an operator which process held it last.
	info := fmt.Sprintf("pid=%d owner=%s\n", os.Getpid(), l.owner)
	if err := os.WriteFile(lockPath, []byte(info), 0o644); err != nil {
		logger.Warn("could not record lock owner", "path", lockPath, "error", err)
	}

	logger.Debug("acquired upgrade lock", "path", lockPath, "owner", l.owner)
	return l, nil
}

// release unlocks and removes the sidecar. Safe to call exactly once; it is
// invoked from deferred paths so failures are logged, not returned.
func (l *upgradeLock) release() {
	if err := l.fl.Unlock(); err != nil {
		l.logger.Warn("could not unlock sidecar", "path", l.path, "error", err)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		l.logger.Warn("could not remove lock sidecar", "path", l.path, "error", err)
	}
	l.logger.Debug("released upgrade lock", "path", l.path, "owner", l.owner)
}
