// Package store keeps raw generic parameter rows in SQLite so that emitted
// metadata can be inspected and re-imported without the original universe.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/funvibe/typecon/internal/metadata"
)

//go:embed schema.sql
var schema string

// Store is a metadata.Reader and metadata.Writer backed by a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. Use ":memory:" for a
// throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema in %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordSession notes which assembly a session wrote.
func (s *Store) RecordSession(ctx context.Context, id uuid.UUID, assembly string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (id, assembly, created_at) VALUES (?, ?, ?)`,
		id.String(), assembly, at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording session %s: %w", id, err)
	}
	return nil
}

// Sessions returns the recorded session ids for an assembly, oldest first.
func (s *Store) Sessions(ctx context.Context, assembly string) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE assembly = ? ORDER BY created_at, id`, assembly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("session id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) WriteTypeParameter(raw metadata.RawTypeParameter) error {
	return s.WriteTypeParameterContext(context.Background(), raw)
}

// WriteTypeParameterContext replaces every row of one parameter in a single
// transaction.
func (s *Store) WriteTypeParameterContext(ctx context.Context, raw metadata.RawTypeParameter) (err error) {
	if raw.Owner == "" {
		return fmt.Errorf("type parameter %s: missing owner", raw.Name)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	for _, table := range []string{"generic_params", "param_constraints", "constraint_modifiers", "param_attributes"} {
		if _, err = tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE owner = ? AND ordinal = ?`, raw.Owner, raw.Ordinal); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO generic_params (owner, ordinal, name, flags) VALUES (?, ?, ?, ?)`,
		raw.Owner, raw.Ordinal, raw.Name, int64(raw.Flags)); err != nil {
		return fmt.Errorf("writing %s#%d: %w", raw.Owner, raw.Ordinal, err)
	}
	for seq, c := range raw.Constraints {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO param_constraints (owner, ordinal, seq, type) VALUES (?, ?, ?, ?)`,
			raw.Owner, raw.Ordinal, seq, c.Type.String()); err != nil {
			return fmt.Errorf("writing constraint %s: %w", c.Type, err)
		}
		for modSeq, m := range c.Modifiers {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO constraint_modifiers (owner, ordinal, seq, mod_seq, required, type) VALUES (?, ?, ?, ?, ?, ?)`,
				raw.Owner, raw.Ordinal, seq, modSeq, m.Kind == metadata.ModRequired, m.Type.String()); err != nil {
				return fmt.Errorf("writing modifier %s: %w", m, err)
			}
		}
	}
	for seq, a := range raw.Attributes {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO param_attributes (owner, ordinal, seq, type) VALUES (?, ?, ?, ?)`,
			raw.Owner, raw.Ordinal, seq, a.String()); err != nil {
			return fmt.Errorf("writing attribute %s: %w", a, err)
		}
	}
	return tx.Commit()
}

func (s *Store) Owners() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT owner FROM generic_params ORDER BY owner`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var owners []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, err
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

func (s *Store) TypeParameters(owner string) ([]metadata.RawTypeParameter, error) {
	return s.TypeParametersContext(context.Background(), owner)
}

// TypeParametersContext reads one owner's parameters in ordinal order.
func (s *Store) TypeParametersContext(ctx context.Context, owner string) ([]metadata.RawTypeParameter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ordinal, name, flags FROM generic_params WHERE owner = ? ORDER BY ordinal`, owner)
	if err != nil {
		return nil, err
	}
	var out []metadata.RawTypeParameter
	for rows.Next() {
		raw := metadata.RawTypeParameter{Owner: owner}
		var flags int64
		if err := rows.Scan(&raw.Ordinal, &raw.Name, &flags); err != nil {
			rows.Close()
			return nil, err
		}
		raw.Flags = metadata.GenericParamAttributes(flags)
		out = append(out, raw)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no generic parameters stored for %s", owner)
	}

	for i := range out {
		if err := s.loadConstraints(ctx, &out[i]); err != nil {
			return nil, err
		}
		if err := s.loadAttributes(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadConstraints(ctx context.Context, raw *metadata.RawTypeParameter) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.seq, c.type, m.required, m.type
		   FROM param_constraints c
		   LEFT JOIN constraint_modifiers m
		     ON m.owner = c.owner AND m.ordinal = c.ordinal AND m.seq = c.seq
		  WHERE c.owner = ? AND c.ordinal = ?
		  ORDER BY c.seq, m.mod_seq`, raw.Owner, raw.Ordinal)
	if err != nil {
		return err
	}
	defer rows.Close()

	last := -1
	for rows.Next() {
		var (
			seq      int
			typ      string
			required sql.NullBool
			modType  sql.NullString
		)
		if err := rows.Scan(&seq, &typ, &required, &modType); err != nil {
			return err
		}
		if seq != last {
			name, err := metadata.ParseTypeName(typ)
			if err != nil {
				return fmt.Errorf("%s#%d: %w", raw.Owner, raw.Ordinal, err)
			}
			raw.Constraints = append(raw.Constraints, metadata.RawConstraint{Type: name})
			last = seq
		}
		if !modType.Valid {
			continue
		}
		name, err := metadata.ParseTypeName(modType.String)
		if err != nil {
			return fmt.Errorf("%s#%d: %w", raw.Owner, raw.Ordinal, err)
		}
		kind := metadata.ModOptional
		if required.Bool {
			kind = metadata.ModRequired
		}
		c := &raw.Constraints[len(raw.Constraints)-1]
		c.Modifiers = append(c.Modifiers, metadata.ModifierSpec{Kind: kind, Type: name})
	}
	return rows.Err()
}

func (s *Store) loadAttributes(ctx context.Context, raw *metadata.RawTypeParameter) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type FROM param_attributes WHERE owner = ? AND ordinal = ? ORDER BY seq`, raw.Owner, raw.Ordinal)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		if err := rows.Scan(&typ); err != nil {
			return err
		}
		name, err := metadata.ParseTypeName(typ)
		if err != nil {
			return fmt.Errorf("%s#%d: %w", raw.Owner, raw.Ordinal, err)
		}
		raw.Attributes = append(raw.Attributes, name)
	}
	return rows.Err()
}

var (
	_ metadata.Reader = (*Store)(nil)
	_ metadata.Writer = (*Store)(nil)
)
