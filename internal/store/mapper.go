// ABOUTME: Typed row decoding bound to per-table column binders
// ABOUTME: Unknown columns are a decode error, not silently skipped

package store

import (
	"database/sql"
	"fmt"
)

// rowBinder maps a column name to the typed destination it scans into.
// A false return marks the column as unknown to the table descriptor.
type rowBinder interface {
	bind(column string) (dest any, ok bool)
}

// scanBound decodes the current row of rows through the binder. Every
// returned column must resolve to a destination; an unrecognized column
// means the schema and the mapper have diverged and the row is rejected.
func scanBound(rows *sql.Rows, b rowBinder) error {
	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("reading row columns: %w", err)
	}

	dests := make([]any, len(cols))
	for i, col := range cols {
		dest, ok := b.bind(col)
		if !ok {
			return fmt.Errorf("unknown column %q", col)
		}
		dests[i] = dest
	}

	if err := rows.Scan(dests...); err != nil {
		return fmt.Errorf("scanning row: %w", err)
	}
	return nil
}

// tokenRow is the raw form of one tokens row.
type tokenRow struct {
	id     int64
	pid    int64
	label  sql.NullString
	config string
}

func (r *tokenRow) bind(column string) (any, bool) {
	switch column {
	case "id":
		return &r.id, true
	case "pid":
		return &r.pid, true
	case "label":
		return &r.label, true
	case "config":
		return &r.config, true
	default:
		return nil, false
	}
}

// sealRow is the raw form of one sealobjects row.
type sealRow struct {
	id    int64
	tokid int64

	userpub      []byte
	userpriv     []byte
	userauthsalt sql.NullString

	sopub      []byte
	sopriv     []byte
	soauthsalt string
}

func (r *sealRow) bind(column string) (any, bool) {
	switch column {
	case "id":
		return &r.id, true
	case "tokid":
		return &r.tokid, true
	case "userpub":
		return &r.userpub, true
	case "userpriv":
		return &r.userpriv, true
	case "userauthsalt":
		return &r.userauthsalt, true
	case "sopub":
		return &r.sopub, true
	case "sopriv":
		return &r.sopriv, true
	case "soauthsalt":
		return &r.soauthsalt, true
	default:
		return nil, false
	}
}

func (r *sealRow) entity() SealObject {
	s := SealObject{
		ID:         uint(r.id),
		TokID:      uint(r.tokid),
		UserPub:    r.userpub,
		UserPriv:   r.userpriv,
		SOPub:      r.sopub,
		SOPriv:     r.sopriv,
		SOAuthSalt: r.soauthsalt,
	}
	if r.userauthsalt.Valid {
		s.UserAuthSalt = r.userauthsalt.String
	}
	return s
}

// tobjectRow is the raw form of one tobjects row.
type tobjectRow struct {
	id    int64
	tokid int64
	attrs string
}

func (r *tobjectRow) bind(column string) (any, bool) {
	switch column {
	case "id":
		return &r.id, true
	case "tokid":
		return &r.tokid, true
	case "attrs":
		return &r.attrs, true
	default:
		return nil, false
	}
}
