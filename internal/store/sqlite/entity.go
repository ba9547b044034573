// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// Compile-time interface check.
var _ store.EntityStore = (*EntityStore)(nil)

// EntityStore implements store.EntityStore backed by SQLite.
type EntityStore struct {
	db *sql.DB
}

// NewEntityStore opens (or creates) a SQLite database at dbPath and
// initialises the entities table.
func NewEntityStore(dbPath string) (*EntityStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrateEntities(db); err != nil {
		_ = db.Close()
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "migrating entities table: %w", err)
	}

	return &EntityStore{db: db}, nil
}

// NewEntityStoreWithDB wraps an already-open database handle.
func NewEntityStoreWithDB(db *sql.DB) (*EntityStore, error) {
	if err := migrateEntities(db); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "migrating entities table: %w", err)
	}
	return &EntityStore{db: db}, nil
}

func migrateEntities(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS entities (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	name         TEXT NOT NULL,
	status       TEXT NOT NULL,
	data         TEXT NOT NULL DEFAULT '{}',
	metadata     TEXT NOT NULL DEFAULT '{}',
	parent_id    TEXT NOT NULL DEFAULT '',
	completed_at TEXT,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_kind_status ON entities(kind, status);
CREATE INDEX IF NOT EXISTS idx_entities_parent ON entities(parent_id);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *EntityStore) Close() error {
	return s.db.Close()
}

const entityColumns = `id, kind, name, status, data, metadata, parent_id, completed_at, created_at, updated_at`

func (s *EntityStore) Create(ctx context.Context, e *store.StatefulEntity) error {
	if e == nil {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "entity is required")
	}
	if e.Status == "" {
		e.Status = store.InitialStatus(e.Kind)
	}
	if err := e.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}

	dataJSON, err := json.Marshal(metadataOrEmpty(e.Data))
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "marshalling entity data: %w", err)
	}
	metaJSON, err := json.Marshal(metadataOrEmpty(e.Metadata))
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "marshalling entity metadata: %w", err)
	}

	var completedAt any
	if e.CompletedAt != nil {
		completedAt = formatTime(*e.CompletedAt)
	}

	const q = `INSERT INTO entities (` + entityColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		e.ID, string(e.Kind), e.Name, string(e.Status), string(dataJSON),
		string(metaJSON), e.ParentID, completedAt,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	); err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "creating entity %s: %w", e.ID, err)
	}
	return nil
}

func (s *EntityStore) Get(ctx context.Context, id string) (*store.StatefulEntity, error) {
	if id == "" {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "entity id is required")
	}

	e, err := scanEntity(s.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, strataerr.New(strataerr.CodeEntityNotFound, "entity "+id+" not found")
	}
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "getting entity %s: %w", id, err)
	}
	return e, nil
}

// Transition moves the entity to status. A no-op transition succeeds
// without touching the row. Reaching completed stamps CompletedAt; every
// field other than status, completed_at and updated_at is preserved.
// Children are never touched.
func (s *EntityStore) Transition(ctx context.Context, id string, to store.EntityStatus) (*store.StatefulEntity, error) {
	if id == "" {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "entity id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "beginning transition transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	e, err := scanEntity(tx.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, strataerr.New(strataerr.CodeEntityNotFound, "entity "+id+" not found")
	}
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "reading entity %s: %w", id, err)
	}

	if err := store.CheckTransition(e.Kind, e.Status, to); err != nil {
		return nil, err
	}
	if e.Status == to {
		return e, nil
	}

	now := time.Now()
	var completedAt any
	if e.CompletedAt != nil {
		completedAt = formatTime(*e.CompletedAt)
	}
	if to == store.StatusCompleted {
		completedAt = formatTime(now)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE entities SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		string(to), completedAt, formatTime(now), id,
	); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "transitioning entity %s: %w", id, err)
	}

	updated, err := scanEntity(tx.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id))
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "re-reading entity %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "committing transition for %s: %w", id, err)
	}
	return updated, nil
}

func (s *EntityStore) List(ctx context.Context, filter store.EntityFilter) ([]*store.StatefulEntity, error) {
	where, args, err := buildEntityWhere(filter)
	if err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	q := `SELECT ` + entityColumns + ` FROM entities ` + where + ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "listing %s entities: %w", filter.Kind, err)
	}
	defer func() { _ = rows.Close() }()

	var entities []*store.StatefulEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "scanning entity row: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "iterating entities: %w", err)
	}
	return entities, nil
}

func (s *EntityStore) Count(ctx context.Context, filter store.EntityFilter) (int64, error) {
	where, args, err := buildEntityWhere(filter)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities `+where, args...).Scan(&n); err != nil {
		return 0, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "counting %s entities: %w", filter.Kind, err)
	}
	return n, nil
}

func (s *EntityStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "entity id is required")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "deleting entity %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "checking rows affected for entity %s: %w", id, err)
	}
	if rows == 0 {
		return strataerr.New(strataerr.CodeEntityNotFound, "entity "+id+" not found")
	}
	return nil
}

// buildEntityWhere assembles the WHERE clause shared by List and Count.
func buildEntityWhere(filter store.EntityFilter) (string, []any, error) {
	if !filter.Kind.Valid() {
		return "", nil, strataerr.Errorf(strataerr.CodeStoreInvalidInput, "unknown entity kind %q", filter.Kind)
	}
	if filter.Status != "" && !store.ValidStatus(filter.Kind, filter.Status) {
		return "", nil, strataerr.Errorf(strataerr.CodeStatusInvalidValue,
			"status %q is not valid for kind %q", filter.Status, filter.Kind)
	}
	if filter.Limit < 0 || filter.Limit > store.MaxListLimit {
		return "", nil, strataerr.Errorf(strataerr.CodeStoreInvalidInput,
			"limit must be between 0 and %d", store.MaxListLimit)
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`WHERE kind = ?`)
	args = append(args, string(filter.Kind))

	if filter.Status != "" {
		qb.WriteString(` AND status = ?`)
		args = append(args, string(filter.Status))
	}
	if filter.ParentID != "" {
		qb.WriteString(` AND parent_id = ?`)
		args = append(args, filter.ParentID)
	}
	return qb.String(), args, nil
}

func scanEntity(row rowScanner) (*store.StatefulEntity, error) {
	var (
		e                    store.StatefulEntity
		kind, status         string
		dataJSON, metaJSON   string
		completedAt          sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&e.ID, &kind, &e.Name, &status, &dataJSON, &metaJSON,
		&e.ParentID, &completedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	e.Kind = store.EntityKind(kind)
	e.Status = store.EntityStatus(status)

	if dataJSON != "" && dataJSON != "{}" {
		if err := json.Unmarshal([]byte(dataJSON), &e.Data); err != nil {
			return nil, err
		}
	}
	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
			return nil, err
		}
	}

	if completedAt.Valid && completedAt.String != "" {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		e.CompletedAt = &t
	}

	var err error
	e.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	e.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
