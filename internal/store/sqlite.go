// ABOUTME: SQLite-backed token store using modernc.org/sqlite
// ABOUTME: Open orchestrates locate -> connect -> lock -> backup -> migrate -> schema install

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Store is the handle to an open token store. It owns a single shared
// connection for the process lifetime; there are no internal workers and
// callers must not overlap transactions on it.
type Store struct {
	db   *sql.DB
	path string

	secel     SecureElement
	attrCodec AttributeCodec
	cfgCodec  ConfigCodec
	logger    *slog.Logger
}

// Options configures Open. The secure element and both codecs are
// mandatory collaborators; the store does not ship crypto of its own.
type Options struct {
	// OverrideDir is the explicit store directory, tried before the
	// default locations. Usually sourced from configuration.
	OverrideDir string
	// SystemDir overrides the compiled-in system directory (tests).
	SystemDir string

	SecureElement  SecureElement
	AttributeCodec AttributeCodec
	ConfigCodec    ConfigCodec

	Logger *slog.Logger
}

func (o *Options) validate() error {
	if o.SecureElement == nil {
		return errors.New("secure element is required")
	}
	if o.AttributeCodec == nil {
		return errors.New("attribute codec is required")
	}
	if o.ConfigCodec == nil {
		return errors.New("config codec is required")
	}
	return nil
}

// Open locates the store file (falling back to a creatable location when
// none exists yet), opens it, and runs the guarded setup sequence:
// upgrade lock, backup, migration, base schema. On success the returned
// store serves CRUD calls until Close.
func Open(opts Options) (*Store, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	loc := NewLocator(opts.OverrideDir)
	loc.SystemDir = opts.SystemDir

	path, err := loc.Resolve(ModeExisting)
	if errors.Is(err, ErrNotFound) {
		path, err = loc.Resolve(ModeCreate)
	}
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("no usable store location, consider configuring an override directory: %w", err)
	}
	if err != nil {
		return nil, err
	}

	return OpenAt(path, opts)
}

// OpenAt opens the store at an explicit path, bypassing location
// resolution. The setup sequence still runs in full.
func OpenAt(path string, opts Options) (*Store, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	// One shared connection: transactions, nested statements and the
	// migration sequence all assume they observe the same session.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := setup(db, path, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("token store initialized", "path", path)

	return &Store{
		db:        db,
		path:      path,
		secel:     opts.SecureElement,
		attrCodec: opts.AttributeCodec,
		cfgCodec:  opts.ConfigCodec,
		logger:    logger,
	}, nil
}

// setup runs the cross-process-serialized backup/migration sequence. The
// sidecar lock is held for the whole sequence and released on every exit
// path; the backup survives any failure for manual recovery.
func setup(db *sql.DB, path string, logger *slog.Logger) error {
	lock, err := acquireUpgradeLock(path, logger)
	if err != nil {
		return err
	}
	defer lock.release()

	bakPath, err := snapshot(db, path, logger)
	if err != nil {
		return err
	}

	if err := migrateAndInstall(db, logger); err != nil {
		logger.Error("store setup failed, backup retained",
			"backup", bakPath, "recovery", recoveryDocURL, "error", err)
		return err
	}

	removeBackup(bakPath, logger)
	return nil
}

func migrateAndInstall(db *sql.DB, logger *slog.Logger) error {
	version, err := schemaVersion(db)
	if err != nil {
		return err
	}

	if err := upgrade(db, version, SchemaVersion, logger); err != nil {
		return err
	}

	return installBaseSchema(db)
}

// Path returns the resolved store file path.
func (s *Store) Path() string {
	return s.path
}

// Version reports the installed schema generation.
func (s *Store) Version() (int, error) {
	return schemaVersion(s.db)
}

// Close tears down the shared connection. The store must not be used
// afterwards.
func (s *Store) Close() error {
	s.logger.Info("closing token store", "path", s.path)
	return s.db.Close()
}
