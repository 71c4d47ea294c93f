// ABOUTME: Tests for version detection and the 1->2 sealobjects migration
// ABOUTME: Migration must preserve every row while lifting the user-auth NOT NULL constraints

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildVersion1Store writes a store file with the generation-1 layout:
// the three user-auth columns of sealobjects still carry NOT NULL.
func buildVersion1Store(t *testing.T, path string) {
	t.Helper()
	db := openRaw(t, path)

	stmts := []string{
		`CREATE TABLE tokens(
			id INTEGER PRIMARY KEY,
			pid INTEGER NOT NULL,
			label TEXT UNIQUE,
			config TEXT NOT NULL,
			FOREIGN KEY (pid) REFERENCES pobjects(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE sealobjects(
			id INTEGER PRIMARY KEY,
			tokid INTEGER NOT NULL,
			userpub BLOB NOT NULL,
			userpriv BLOB NOT NULL,
			userauthsalt TEXT NOT NULL,
			sopub BLOB NOT NULL,
			sopriv BLOB NOT NULL,
			soauthsalt TEXT NOT NULL,
			FOREIGN KEY (tokid) REFERENCES tokens(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE pobjects(
			id INTEGER PRIMARY KEY,
			hierarchy TEXT NOT NULL,
			handle BLOB NOT NULL,
			objauth TEXT NOT NULL
		);`,
		`CREATE TABLE tobjects(
			id INTEGER PRIMARY KEY,
			tokid INTEGER NOT NULL,
			attrs TEXT NOT NULL,
			FOREIGN KEY (tokid) REFERENCES tokens(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE schema(
			id INTEGER PRIMARY KEY,
			schema_version INTEGER NOT NULL
		);`,
		`REPLACE INTO schema (id, schema_version) VALUES (1, 1);`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}

	_, err := db.Exec(`INSERT INTO pobjects (hierarchy, handle, objauth) VALUES ('o', ?, '')`,
		handleBlob(0x81000001))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO tokens (id, pid, label, config) VALUES (1, 1, 'migrated', 'is-initialized: true')`)
	require.NoError(t, err)
	_, err = db.Exec(
		`INSERT INTO sealobjects (tokid, userpub, userpriv, userauthsalt, sopub, sopriv, soauthsalt)
		 VALUES (1, ?, ?, 'user-salt', ?, ?, 'so-salt')`,
		[]byte("user-pub"), []byte("user-priv"), []byte("so-pub"), []byte("so-priv"))
	require.NoError(t, err)

	require.NoError(t, db.Close())
}

func TestFreshStoreReportsTargetVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), StoreFileName)
	db := openRaw(t, path)

	version, err := schemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version, "fresh store needs no migration")
}

func TestVersionZeroIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), StoreFileName)
	db := openRaw(t, path)

	_, err := db.Exec(`CREATE TABLE schema (id INTEGER PRIMARY KEY, schema_version INTEGER NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO schema (id, schema_version) VALUES (1, 0)`)
	require.NoError(t, err)

	_, err = schemaVersion(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 0")
}

func TestMigrateVersion1To2(t *testing.T) {
	path := filepath.Join(t.TempDir(), StoreFileName)
	buildVersion1Store(t, path)

	s, err := OpenAt(path, testOptions())
	require.NoError(t, err)
	defer s.Close()

	version, err := s.Version()
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	// Every pre-existing row survives with its values intact.
	tokens, err := s.LoadTokens(t.Context())
	require.NoError(t, err)
	got := findToken(tokens, 1)
	require.NotNil(t, got)
	assert.Equal(t, "migrated", got.Label)
	assert.Equal(t, "user-salt", got.Seal.UserAuthSalt)
	assert.Equal(t, []byte("user-priv"), got.Seal.UserPriv)
	assert.Equal(t, []byte("user-pub"), got.Seal.UserPub)
	assert.Equal(t, "so-salt", got.Seal.SOAuthSalt)

	// The user-auth columns are nullable after the rebuild.
	_, err = s.db.Exec(
		`INSERT INTO sealobjects (tokid, sopub, sopriv, soauthsalt) VALUES (1, ?, ?, 'x')`,
		[]byte("p"), []byte("q"))
	require.NoError(t, err, "user columns must accept NULL after migration")

	// The upgrade's backup was cleaned up on success.
	assert.NoFileExists(t, path+BackupSuffix)
}

func TestUpgradeNoopWhenCurrent(t *testing.T) {
	s := newTestStore(t)

	version, err := s.Version()
	require.NoError(t, err)
	require.Equal(t, SchemaVersion, version)

	// Reopening a current store must not disturb it.
	require.NoError(t, s.Close())

	s2, err := OpenAt(s.Path(), testOptions())
	require.NoError(t, err)
	defer s2.Close()

	version, err = s2.Version()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestUpgradeUnknownTargetFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), StoreFileName)
	db := openRaw(t, path)

	err := upgrade(db, 1, len(migrations)+1, testOptions().Logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no migration path")
}
