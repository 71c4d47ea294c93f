// ABOUTME: Store file location resolution across prioritized candidate directories
// ABOUTME: Override dir, user home, cwd, then the compiled-in system directory

package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// StoreFileName is the fixed base name of the store file under whichever
// directory the locator resolves.
const StoreFileName = "tokstore.sqlite3"

// DefaultSystemDir is the compiled-in last-resort store directory.
const DefaultSystemDir = "/etc/tokstore"

// ResolveMode selects what the locator is looking for.
type ResolveMode int

const (
	// ModeExisting resolves the first candidate whose store file is
	// already present on disk.
	ModeExisting ResolveMode = iota
	// ModeCreate resolves the first candidate whose parent directory
	// exists; the file itself is not created.
	ModeCreate
)

// Locator resolves the store file path. Candidates are tried in fixed
// priority order: the configured override directory, the per-user default
// directory, the current working directory, then the system directory.
type Locator struct {
	// OverrideDir, when non-empty, is tried first.
	OverrideDir string
	// SystemDir defaults to DefaultSystemDir when empty.
	SystemDir string

	logger *slog.Logger
}

// NewLocator returns a locator with the given override directory.
func NewLocator(overrideDir string) *Locator {
	return &Locator{
		OverrideDir: overrideDir,
		logger:      slog.Default().With("component", "locator"),
	}
}

// candidate produces a store path for one priority step. A skipped step
// (ok=false, err=nil) falls through to the next; a step error is fatal and
// aborts resolution.
type candidate func() (path string, ok bool, err error)

func (l *Locator) candidates() []candidate {
	return []candidate{
		func() (string, bool, error) {
			if l.OverrideDir == "" {
				return "", false, nil
			}
			return filepath.Join(l.OverrideDir, StoreFileName), true, nil
		},
		func() (string, bool, error) {
			home, err := os.UserHomeDir()
			if err != nil {
				// No home directory means skip, same as an unset HOME.
				return "", false, nil
			}
			return filepath.Join(home, ".tokstore", StoreFileName), true, nil
		},
		func() (string, bool, error) {
			cwd, err := os.Getwd()
			if err != nil {
				return "", false, fmt.Errorf("reading working directory: %w", err)
			}
			return filepath.Join(cwd, StoreFileName), true, nil
		},
		func() (string, bool, error) {
			dir := l.SystemDir
			if dir == "" {
				dir = DefaultSystemDir
			}
			return filepath.Join(dir, StoreFileName), true, nil
		},
	}
}

// Resolve walks the candidate list and returns the first usable store
// path for the given mode. It returns ErrNotFound once every candidate has
// been exhausted; callers typically retry with ModeCreate after an
// ErrNotFound from ModeExisting.
func (l *Locator) Resolve(mode ResolveMode) (string, error) {
	for _, c := range l.candidates() {
		path, ok, err := c()
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}

		usable, err := l.usable(path, mode)
		if err != nil {
			return "", err
		}
		if usable {
			l.logger.Debug("resolved store path", "path", path, "mode", mode)
			return path, nil
		}
	}
	return "", ErrNotFound
}

func (l *Locator) usable(path string, mode ResolveMode) (bool, error) {
	switch mode {
	case ModeExisting:
		if _, err := os.Stat(path); err != nil {
			// No store here, keep looking.
			return false, nil
		}
		return true, nil
	case ModeCreate:
		dir := filepath.Dir(path)
		if dir == "." {
			return true, nil
		}
		if _, err := os.Stat(dir); err != nil {
			return false, nil
		}
		return true, nil
	default:
		return false, errors.New("unknown resolve mode")
	}
}

// String implements fmt.Stringer for log output.
func (m ResolveMode) String() string {
	switch m {
	case ModeExisting:
		return "existing"
	case ModeCreate:
		return "create"
	default:
		return "unknown"
	}
}
