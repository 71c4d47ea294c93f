// ABOUTME: Transactional CRUD over tokens, primary objects, seal objects and token objects
// ABOUTME: Multi-statement operations run inside one transaction; no partial write is observable

package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
)

// LoadTokens scans the token table and reconstructs every token with its
// primary object and, when initialized, its seal object and token objects.
// If no stored token is uninitialized and the ceiling permits, a
// non-persisted placeholder token is appended so callers can discover a
// free slot.
func (s *Store) LoadTokens(ctx context.Context) ([]*Token, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM tokens`)
	if err != nil {
		return nil, fmt.Errorf("querying tokens: %w", err)
	}

	// Collect the raw rows first: the single shared connection cannot
	// serve nested queries while this cursor is open.
	var raw []tokenRow
	for rows.Next() {
		if len(raw) >= MaxTokenCount {
			rows.Close()
			return nil, fmt.Errorf("token table holds more than %d rows: %w", MaxTokenCount, ErrTooManyRows)
		}
		var r tokenRow
		if err := scanBound(rows, &r); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decoding token row: %w", err)
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating token rows: %w", err)
	}
	rows.Close()

	tokens := make([]*Token, 0, len(raw))
	hasUninit := false
	var maxID uint

	for _, r := range raw {
		cfg, err := s.cfgCodec.DecodeConfig(r.config)
		if err != nil {
			return nil, fmt.Errorf("decoding config for token %d: %w", r.id, err)
		}

		t := &Token{
			ID:     uint(r.id),
			PID:    uint(r.pid),
			Config: cfg,
		}
		if r.label.Valid {
			t.Label = r.label.String
		}
		if t.ID > maxID {
			maxID = t.ID
		}

		// Stored tokens always reference an existing primary object.
		if err := s.loadPrimaryObject(ctx, t); err != nil {
			return nil, err
		}

		if !cfg.Initialized {
			hasUninit = true
			s.logger.Debug("skipping object load for uninitialized token", "id", t.ID)
			tokens = append(tokens, t)
			continue
		}

		if err := s.loadSealObject(ctx, t); err != nil {
			return nil, err
		}
		if err := s.loadTokenObjects(ctx, t); err != nil {
			return nil, err
		}

		tokens = append(tokens, t)
	}

	// Advertise a free slot when every stored token is already in use.
	if !hasUninit {
		if len(tokens) >= MaxTokenCount {
			return nil, fmt.Errorf("token table holds %d rows, no free slot: %w", len(tokens), ErrTooManyRows)
		}
		tokens = append(tokens, &Token{
			ID:          maxID + 1,
			Placeholder: true,
		})
	}

	return tokens, nil
}

func (s *Store) loadPrimaryObject(ctx context.Context, t *Token) error {
	var handleBlob []byte
	var hierarchy, objauth string

	err := s.db.QueryRowContext(ctx,
		`SELECT hierarchy, handle, objauth FROM pobjects WHERE id = ?`, t.PID).
		Scan(&hierarchy, &handleBlob, &objauth)
	if err != nil {
		return fmt.Errorf("querying primary object %d: %w", t.PID, err)
	}
	if len(handleBlob) == 0 {
		return fmt.Errorf("primary object %d has an empty handle blob", t.PID)
	}

	handle, err := s.secel.DeserializeHandle(handleBlob)
	if err != nil {
		return fmt.Errorf("deserializing handle for primary object %d: %w", t.PID, err)
	}

	t.Primary = PrimaryObject{
		ID:        t.PID,
		Hierarchy: hierarchy,
		Handle:    handle,
		ObjAuth:   objauth,
	}
	return nil
}

func (s *Store) loadSealObject(ctx context.Context, t *Token) error {
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM sealobjects WHERE tokid = ?`, t.ID)
	if err != nil {
		return fmt.Errorf("querying seal object for token %d: %w", t.ID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating seal object rows: %w", err)
		}
		return fmt.Errorf("initialized token %d has no seal object", t.ID)
	}

	var r sealRow
	if err := scanBound(rows, &r); err != nil {
		return fmt.Errorf("decoding seal object for token %d: %w", t.ID, err)
	}

	seal := r.entity()
	if len(seal.SOPub) == 0 || len(seal.SOPriv) == 0 || seal.SOAuthSalt == "" {
		return fmt.Errorf("seal object for token %d is missing its SO triple", t.ID)
	}

	t.Seal = seal
	return nil
}

func (s *Store) loadTokenObjects(ctx context.Context, t *Token) error {
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM tobjects WHERE tokid = ?`, t.ID)
	if err != nil {
		return fmt.Errorf("querying token objects for token %d: %w", t.ID, err)
	}

	var raw []tobjectRow
	for rows.Next() {
		var r tobjectRow
		if err := scanBound(rows, &r); err != nil {
			rows.Close()
			return fmt.Errorf("decoding token object row: %w", err)
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterating token object rows: %w", err)
	}
	rows.Close()

	for _, r := range raw {
		attrs, err := s.attrCodec.DecodeAttributes(r.attrs)
		if err != nil {
			return fmt.Errorf("decoding attributes of token object %d: %w", r.id, err)
		}

		obj := &TokenObject{
			ID:    uint(r.id),
			TokID: uint(r.tokid),
			Attrs: attrs,
		}
		if err := obj.hydrateBlobs(); err != nil {
			return err
		}
		t.Objects = append(t.Objects, obj)
	}

	return nil
}

// AddToken persists a token under its caller-assigned id and, if and only
// if the token is initialized, its seal object, as one transaction. The
// caller guarantees id uniqueness; collisions on id or label surface as
// ErrConstraint. The label is stripped of trailing space padding first.
func (s *Store) AddToken(ctx context.Context, t *Token) error {
	config, err := s.cfgCodec.EncodeConfig(t.Config)
	if err != nil {
		return fmt.Errorf("encoding token config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tokens (id, pid, label, config) VALUES (?, ?, ?, ?)`,
		t.ID, t.PID, trimLabel(t.Label), config)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("inserting token %d: %w", t.ID, ErrConstraint)
		}
		return fmt.Errorf("inserting token %d: %w", t.ID, err)
	}

	// The seal object rides in the same transaction; an uninitialized
	// token has nothing to seal yet.
	if t.Config.Initialized {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sealobjects (tokid, soauthsalt, sopriv, sopub) VALUES (?, ?, ?, ?)`,
			t.ID, t.Seal.SOAuthSalt, t.Seal.SOPriv, t.Seal.SOPub)
		if err != nil {
			if isConstraintViolation(err) {
				return fmt.Errorf("inserting seal object for token %d: %w", t.ID, ErrConstraint)
			}
			return fmt.Errorf("inserting seal object for token %d: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing token %d: %w", t.ID, err)
	}

	s.logger.Debug("added token", "id", t.ID, "label", trimLabel(t.Label),
		"initialized", t.Config.Initialized)
	return nil
}

// AddPrimaryObject inserts a wrapping key object holding the given handle
// blob and returns the engine-generated id.
func (s *Store) AddPrimaryObject(ctx context.Context, handleBlob []byte) (uint, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO pobjects (hierarchy, handle, objauth) VALUES (?, ?, ?)`,
		"o", handleBlob, "")
	if err != nil {
		return 0, fmt.Errorf("inserting primary object: %w", err)
	}

	id, err := generatedID(res)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing primary object: %w", err)
	}

	s.logger.Debug("added primary object", "id", id)
	return id, nil
}

// AddTokenObject encodes the object's attribute set, inserts the row and
// writes the engine-generated id back onto the in-memory object.
func (s *Store) AddTokenObject(ctx context.Context, t *Token, obj *TokenObject) error {
	attrs, err := s.attrCodec.EncodeAttributes(obj.Attrs)
	if err != nil {
		return fmt.Errorf("encoding attributes: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO tobjects (tokid, attrs) VALUES (?, ?)`, t.ID, attrs)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("inserting token object: %w", ErrConstraint)
		}
		return fmt.Errorf("inserting token object: %w", err)
	}

	id, err := generatedID(res)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing token object: %w", err)
	}

	obj.ID = id
	obj.TokID = t.ID

	s.logger.Debug("added token object", "id", id, "token", t.ID)
	return nil
}

// DeleteTokenObject removes the object's row by id. The engine reporting
// zero rows affected without error counts as success.
func (s *Store) DeleteTokenObject(ctx context.Context, obj *TokenObject) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tobjects WHERE id = ?`, obj.ID); err != nil {
		return fmt.Errorf("deleting token object %d: %w", obj.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing token object delete: %w", err)
	}

	s.logger.Debug("deleted token object", "id", obj.ID)
	return nil
}

// UpdatePINChange rewrites the selected auth triple (security officer when
// so is true, user otherwise) of the token's seal object as one
// transaction. The public blob column is touched only when newPub is
// non-nil, i.e. when the sealing key itself rotated.
func (s *Store) UpdatePINChange(ctx context.Context, t *Token, so bool, newSalt string, newPriv, newPub []byte) error {
	var query string
	args := []any{newSalt, newPriv}

	switch {
	case so && newPub != nil:
		query = `UPDATE sealobjects SET soauthsalt = ?, sopriv = ?, sopub = ? WHERE tokid = ?`
	case so:
		query = `UPDATE sealobjects SET soauthsalt = ?, sopriv = ? WHERE tokid = ?`
	case newPub != nil:
		query = `UPDATE sealobjects SET userauthsalt = ?, userpriv = ?, userpub = ? WHERE tokid = ?`
	default:
		query = `UPDATE sealobjects SET userauthsalt = ?, userpriv = ? WHERE tokid = ?`
	}
	if newPub != nil {
		args = append(args, newPub)
	}
	args = append(args, t.ID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating seal object for token %d: %w", t.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no seal object for token %d", t.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing PIN change for token %d: %w", t.ID, err)
	}

	s.logger.Debug("updated seal object", "token", t.ID, "so", so, "rotated_pub", newPub != nil)
	return nil
}

// FirstPrimaryObjectID returns the lowest primary object id present, or 0
// when the table is empty.
func (s *Store) FirstPrimaryObjectID(ctx context.Context) (uint, error) {
	var id uint
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM pobjects ORDER BY id ASC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying first primary object id: %w", err)
	}
	return id, nil
}

// generatedID validates an engine-generated rowid: zero means the insert
// produced nothing and anything above uint32 cannot be carried by the
// in-memory id space.
func generatedID(res sql.Result) (uint, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting generated id: %w", err)
	}
	if id == 0 {
		return 0, fmt.Errorf("engine returned no generated id")
	}
	if id > math.MaxUint32 {
		return 0, fmt.Errorf("generated id %d exceeds the id space", id)
	}
	return uint(id), nil
}
