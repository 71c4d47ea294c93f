// ABOUTME: Tests for store path resolution priority and modes
// ABOUTME: Override beats home beats cwd beats system directory

package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every default location at throwaway directories so the
// host machine's real store can never leak into a test.
func isolate(t *testing.T) (home, cwd, system string) {
	t.Helper()

	home = t.TempDir()
	cwd = t.TempDir()
	system = t.TempDir()

	t.Setenv("HOME", home)
	t.Chdir(cwd)
	return home, cwd, system
}

func touchStore(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, StoreFileName)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestResolveExistingPrefersOverride(t *testing.T) {
	home, cwd, system := isolate(t)
	override := t.TempDir()

	// Store present everywhere; the override must win.
	want := touchStore(t, override)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".tokstore"), 0o755))
	touchStore(t, filepath.Join(home, ".tokstore"))
	touchStore(t, cwd)
	touchStore(t, system)

	loc := NewLocator(override)
	loc.SystemDir = system

	got, err := loc.Resolve(ModeExisting)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolveExistingFallsThroughPriorities(t *testing.T) {
	home, cwd, system := isolate(t)

	homeDir := filepath.Join(home, ".tokstore")
	require.NoError(t, os.MkdirAll(homeDir, 0o755))

	loc := NewLocator("")
	loc.SystemDir = system

	// Only the system location has a store.
	want := touchStore(t, system)
	got, err := loc.Resolve(ModeExisting)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Adding one in cwd takes priority over system.
	want = touchStore(t, cwd)
	got, err = loc.Resolve(ModeExisting)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// And home beats cwd.
	want = touchStore(t, homeDir)
	got, err = loc.Resolve(ModeExisting)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolveExistingNotFound(t *testing.T) {
	_, _, system := isolate(t)

	loc := NewLocator("")
	loc.SystemDir = system

	_, err := loc.Resolve(ModeExisting)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveCreateSkipsMissingDirectories(t *testing.T) {
	home, _, system := isolate(t)

	loc := NewLocator(filepath.Join(home, "nope"))
	loc.SystemDir = system

	// Override dir and ~/.tokstore do not exist; cwd always does.
	got, err := loc.Resolve(ModeCreate)
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, StoreFileName), got)
}

func TestResolveCreateUsesOverrideWhenPresent(t *testing.T) {
	_, _, system := isolate(t)
	override := t.TempDir()

	loc := NewLocator(override)
	loc.SystemDir = system

	got, err := loc.Resolve(ModeCreate)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(override, StoreFileName), got)
}
