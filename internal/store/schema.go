// ABOUTME: Schema version detection, ordered migration steps, base schema installation
// ABOUTME: Guard triggers enforce the 255-token and 16777215-object ceilings in the engine

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// SchemaVersion is the current schema generation. Bump it whenever the
// base schema below changes and add a matching entry to migrations.
const SchemaVersion = 2

// baseSchema is always safe to reissue: every statement is idempotent.
var baseSchema = []string{
	`CREATE TABLE IF NOT EXISTS tokens(
		id INTEGER PRIMARY KEY,
		pid INTEGER NOT NULL,
		label TEXT UNIQUE,
		config TEXT NOT NULL,
		FOREIGN KEY (pid) REFERENCES pobjects(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS sealobjects(
		id INTEGER PRIMARY KEY,
		tokid INTEGER NOT NULL,
		userpub BLOB,
		userpriv BLOB,
		userauthsalt TEXT,
		sopub BLOB NOT NULL,
		sopriv BLOB NOT NULL,
		soauthsalt TEXT NOT NULL,
		FOREIGN KEY (tokid) REFERENCES tokens(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS pobjects(
		id INTEGER PRIMARY KEY,
		hierarchy TEXT NOT NULL,
		handle BLOB NOT NULL,
		objauth TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS tobjects(
		id INTEGER PRIMARY KEY,
		tokid INTEGER NOT NULL,
		attrs TEXT NOT NULL,
		FOREIGN KEY (tokid) REFERENCES tokens(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS schema(
		id INTEGER PRIMARY KEY,
		schema_version INTEGER NOT NULL
	);`,
	// REPLACE updates the row if it exists, inserts it otherwise.
	fmt.Sprintf(`REPLACE INTO schema (id, schema_version) VALUES (1, %d);`, SchemaVersion),
	fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS limit_tokens
	BEFORE INSERT ON tokens
	BEGIN
		SELECT CASE WHEN
			(SELECT COUNT (*) FROM tokens) >= %d
		THEN
			RAISE(FAIL, "Maximum token count of %d reached.")
		END;
	END;`, MaxTokenCount, MaxTokenCount),
	fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS limit_tobjects
	BEFORE INSERT ON tobjects
	BEGIN
		SELECT CASE WHEN
			(SELECT COUNT (*) FROM tobjects) >= %d
		THEN
			RAISE(FAIL, "Maximum object count of %d reached.")
		END;
	END;`, MaxTokenObjectCount, MaxTokenObjectCount),
}

// schemaVersion reads the installed schema generation. A store without a
// schema table or version row is fresh; it reports the current target so no
// migration runs. Version 0 was never valid and is a fatal inconsistency.
func schemaVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`SELECT schema_version FROM schema`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		// Table exists but was never populated; fresh store.
		return SchemaVersion, nil
	case err != nil && strings.Contains(err.Error(), "no such table"):
		// Fresh store; the base schema install will create the table.
		return SchemaVersion, nil
	case err != nil:
		return 0, fmt.Errorf("reading schema version: %w", err)
	}

	if version == 0 {
		return 0, fmt.Errorf("schema version 0 was never a valid store version")
	}
	return version, nil
}

// migrationStep is one self-contained transformation from version i-1 to i.
type migrationStep func(db *sql.DB) error

// migrations is indexed by version: migrations[i] upgrades i to i+1.
// Index 0 is a placeholder; version 0 never existed.
var migrations = []migrationStep{
	nil,
	migrateSealUserAuthNullable,
}

// migrateSealUserAuthNullable lifts the NOT NULL constraint from the three
// user-auth columns of sealobjects (version 1 -> 2). SQLite cannot drop a
// column constraint in place, so: replacement table, row copy, drop,
// rename.
func migrateSealUserAuthNullable(db *sql.DB) error {
	steps := []string{
		`CREATE TABLE sealobjects_new2(
			id INTEGER PRIMARY KEY,
			tokid INTEGER NOT NULL,
			userpub BLOB,
			userpriv BLOB,
			userauthsalt TEXT,
			sopub BLOB NOT NULL,
			sopriv BLOB NOT NULL,
			soauthsalt TEXT NOT NULL,
			FOREIGN KEY (tokid) REFERENCES tokens(id) ON DELETE CASCADE
		);`,
		`INSERT INTO sealobjects_new2 SELECT * FROM sealobjects;`,
		`DROP TABLE sealobjects;`,
		`ALTER TABLE sealobjects_new2 RENAME TO sealobjects;`,
	}

	for _, s := range steps {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("rebuilding sealobjects: %w", err)
		}
	}
	return nil
}

// upgrade applies migrations sequentially from oldVersion+1 through
// targetVersion. A step failure aborts immediately; recovery relies on the
// backup retained by the caller.
func upgrade(db *sql.DB, oldVersion, targetVersion int, logger *slog.Logger) error {
	if oldVersion == targetVersion {
		logger.Debug("store schema is current", "version", oldVersion)
		return nil
	}

	if targetVersion > len(migrations) {
		return fmt.Errorf("no migration path to schema version %d", targetVersion)
	}
	if oldVersion == 0 {
		return fmt.Errorf("schema version 0 was never a valid store version")
	}

	for v := oldVersion; v < len(migrations) && v < targetVersion; v++ {
		logger.Info("migrating store schema", "from", v, "to", v+1)
		if err := migrations[v](db); err != nil {
			return fmt.Errorf("migrating schema from version %d: %w", v, err)
		}
	}

	return nil
}

// installBaseSchema reissues the idempotent schema statements, upserts the
// version row to the current target and (re)installs the guard triggers.
func installBaseSchema(db *sql.DB) error {
	for _, s := range baseSchema {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("installing base schema: %w", err)
		}
	}
	return nil
}
