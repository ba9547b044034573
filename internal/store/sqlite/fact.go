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
var _ store.FactStore = (*FactStore)(nil)

// FactStore implements store.FactStore backed by SQLite. Each fact row
// carries its own version chain as a JSON history column, the same scheme
// the versioned record store uses. Supersession is a timestamp, not a
// delete: valid_until marks when the fact stopped being believed.
type FactStore struct {
	db *sql.DB
}

// NewFactStore opens (or creates) a SQLite database at dbPath and
// initialises the facts table.
func NewFactStore(dbPath string) (*FactStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrateFacts(db); err != nil {
		_ = db.Close()
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "migrating facts table: %w", err)
	}

	return &FactStore{db: db}, nil
}

// NewFactStoreWithDB wraps an already-open database handle.
func NewFactStoreWithDB(db *sql.DB) (*FactStore, error) {
	if err := migrateFacts(db); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "migrating facts table: %w", err)
	}
	return &FactStore{db: db}, nil
}

func migrateFacts(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS facts (
	id          TEXT PRIMARY KEY,
	space_id    TEXT NOT NULL,
	subject     TEXT NOT NULL,
	predicate   TEXT NOT NULL,
	object      TEXT NOT NULL,
	fact_type   TEXT NOT NULL,
	confidence  REAL NOT NULL DEFAULT 0,
	tags        TEXT NOT NULL DEFAULT '[]',
	source_type TEXT NOT NULL DEFAULT '',
	valid_until TEXT,
	version     INTEGER NOT NULL DEFAULT 1,
	history     TEXT NOT NULL DEFAULT '[]',
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_facts_active ON facts(space_id, subject, predicate, valid_until);
CREATE INDEX IF NOT EXISTS idx_facts_space_type ON facts(space_id, fact_type);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *FactStore) Close() error {
	return s.db.Close()
}

const factColumns = `id, space_id, subject, predicate, object, fact_type, confidence,
tags, source_type, valid_until, version, history, metadata, created_at, updated_at`

func (s *FactStore) Put(ctx context.Context, fact *store.Fact) error {
	if fact == nil {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "fact is required")
	}
	if err := fact.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = now
	}
	if fact.UpdatedAt.IsZero() {
		fact.UpdatedAt = now
	}
	if fact.Version == 0 {
		fact.Version = 1
	}

	tagsJSON, err := json.Marshal(tagsOrEmpty(fact.Tags))
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "marshalling tags: %w", err)
	}
	metaJSON, err := json.Marshal(metadataOrEmpty(fact.Metadata))
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "marshalling metadata: %w", err)
	}

	var validUntil any
	if fact.ValidUntil != nil {
		validUntil = formatTime(*fact.ValidUntil)
	}

	const q = `INSERT INTO facts (` + factColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '[]', ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		fact.ID, fact.SpaceID, fact.Subject, fact.Predicate, fact.Object,
		string(fact.FactType), fact.Confidence, string(tagsJSON), fact.SourceType,
		validUntil, fact.Version, string(metaJSON),
		formatTime(fact.CreatedAt), formatTime(fact.UpdatedAt),
	); err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "inserting fact %s: %w", fact.ID, err)
	}
	return nil
}

func (s *FactStore) Get(ctx context.Context, id string) (*store.Fact, error) {
	if id == "" {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "fact id is required")
	}

	fact, err := scanFact(s.db.QueryRowContext(ctx, `SELECT `+factColumns+` FROM facts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, strataerr.New(strataerr.CodeFactNotFound, "fact "+id+" not found")
	}
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "getting fact %s: %w", id, err)
	}
	return fact, nil
}

func (s *FactStore) GetActive(ctx context.Context, spaceID, subject, predicate string) ([]*store.Fact, error) {
	if spaceID == "" || subject == "" || predicate == "" {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "space id, subject and predicate are required")
	}

	const q = `SELECT ` + factColumns + ` FROM facts
WHERE space_id = ? AND subject = ? AND predicate = ? AND valid_until IS NULL
ORDER BY updated_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, q, spaceID, subject, predicate)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure,
			"querying active facts for %s/%s: %w", subject, predicate, err)
	}
	defer func() { _ = rows.Close() }()

	return collectFacts(rows)
}

func (s *FactStore) AppendVersion(ctx context.Context, id string, content store.FactContent) (*store.Fact, error) {
	if id == "" {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "fact id is required")
	}
	if content.Object == "" {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "fact object is required")
	}
	if content.FactType != "" && !content.FactType.Valid() {
		return nil, strataerr.Errorf(strataerr.CodeStoreInvalidInput, "unknown fact type %q", content.FactType)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "beginning append transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanFact(tx.QueryRowContext(ctx, `SELECT `+factColumns+` FROM facts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, strataerr.New(strataerr.CodeFactNotFound, "fact "+id+" not found")
	}
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "reading fact %s: %w", id, err)
	}

	// Push the current content into history before overwriting it.
	snapshot, err := factSnapshot(current)
	if err != nil {
		return nil, err
	}
	history := append(current.History, *snapshot)
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "marshalling fact history: %w", err)
	}

	factType := current.FactType
	if content.FactType != "" {
		factType = content.FactType
	}
	tagsJSON, err := json.Marshal(tagsOrEmpty(content.Tags))
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "marshalling tags: %w", err)
	}

	const q = `UPDATE facts SET
	object = ?, fact_type = ?, confidence = ?, tags = ?, source_type = ?,
	version = version + 1, history = ?, updated_at = ?
WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q,
		content.Object, string(factType), content.Confidence, string(tagsJSON),
		content.SourceType, string(historyJSON), formatTime(time.Now()), id,
	); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "appending version to fact %s: %w", id, err)
	}

	updated, err := scanFact(tx.QueryRowContext(ctx, `SELECT `+factColumns+` FROM facts WHERE id = ?`, id))
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "re-reading fact %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "committing append for fact %s: %w", id, err)
	}
	return updated, nil
}

func (s *FactStore) Supersede(ctx context.Context, id string, at time.Time) error {
	if id == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "fact id is required")
	}
	if at.IsZero() {
		at = time.Now()
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE facts SET valid_until = ?, updated_at = ? WHERE id = ?`,
		formatTime(at), formatTime(at), id)
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "superseding fact %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "checking rows affected for fact %s: %w", id, err)
	}
	if rows == 0 {
		return strataerr.New(strataerr.CodeFactNotFound, "fact "+id+" not found")
	}
	return nil
}

func (s *FactStore) History(ctx context.Context, id string) ([]store.VersionSnapshot, error) {
	fact, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	current, err := factSnapshot(fact)
	if err != nil {
		return nil, err
	}
	return append(fact.History, *current), nil
}

func (s *FactStore) List(ctx context.Context, filter store.FactFilter) ([]*store.Fact, error) {
	where, args, err := buildFactWhere(filter)
	if err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	q := `SELECT ` + factColumns + ` FROM facts ` + where + ` ORDER BY updated_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "listing facts in %s: %w", filter.SpaceID, err)
	}
	defer func() { _ = rows.Close() }()

	return collectFacts(rows)
}

func (s *FactStore) Count(ctx context.Context, filter store.FactFilter) (int64, error) {
	where, args, err := buildFactWhere(filter)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts `+where, args...).Scan(&n); err != nil {
		return 0, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "counting facts in %s: %w", filter.SpaceID, err)
	}
	return n, nil
}

func (s *FactStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "fact id is required")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM facts WHERE id = ?`, id)
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "deleting fact %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "checking rows affected for fact %s: %w", id, err)
	}
	if rows == 0 {
		return strataerr.New(strataerr.CodeFactNotFound, "fact "+id+" not found")
	}
	return nil
}

// buildFactWhere assembles the WHERE clause shared by List and Count. Tag
// matching uses a JSON substring probe over the serialized tags array.
func buildFactWhere(filter store.FactFilter) (string, []any, error) {
	if filter.SpaceID == "" {
		return "", nil, strataerr.New(strataerr.CodeStoreInvalidInput, "space id is required")
	}
	if filter.FactType != "" && !filter.FactType.Valid() {
		return "", nil, strataerr.Errorf(strataerr.CodeStoreInvalidInput, "unknown fact type %q", filter.FactType)
	}
	if filter.Limit < 0 || filter.Limit > store.MaxListLimit {
		return "", nil, strataerr.Errorf(strataerr.CodeStoreInvalidInput,
			"limit must be between 0 and %d", store.MaxListLimit)
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`WHERE space_id = ?`)
	args = append(args, filter.SpaceID)

	if !filter.IncludeInactive {
		qb.WriteString(` AND valid_until IS NULL`)
	}
	if filter.Subject != "" {
		qb.WriteString(` AND subject = ?`)
		args = append(args, filter.Subject)
	}
	if filter.Predicate != "" {
		qb.WriteString(` AND predicate = ?`)
		args = append(args, filter.Predicate)
	}
	if filter.FactType != "" {
		qb.WriteString(` AND fact_type = ?`)
		args = append(args, string(filter.FactType))
	}
	if filter.Tag != "" {
		tagJSON, err := json.Marshal(filter.Tag)
		if err != nil {
			return "", nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "marshalling tag filter: %w", err)
		}
		qb.WriteString(` AND instr(tags, ?) > 0`)
		args = append(args, string(tagJSON))
	}
	return qb.String(), args, nil
}

func collectFacts(rows *sql.Rows) ([]*store.Fact, error) {
	var facts []*store.Fact
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "scanning fact row: %w", err)
		}
		facts = append(facts, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "iterating facts: %w", err)
	}
	return facts, nil
}

func scanFact(row rowScanner) (*store.Fact, error) {
	var (
		fact                 store.Fact
		factType             string
		tagsJSON, metaJSON   string
		historyJSON          string
		validUntil           sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&fact.ID, &fact.SpaceID, &fact.Subject, &fact.Predicate, &fact.Object,
		&factType, &fact.Confidence, &tagsJSON, &fact.SourceType, &validUntil,
		&fact.Version, &historyJSON, &metaJSON, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	fact.FactType = store.FactType(factType)

	if err := json.Unmarshal([]byte(tagsJSON), &fact.Tags); err != nil {
		return nil, err
	}
	if len(fact.Tags) == 0 {
		fact.Tags = nil
	}
	if err := json.Unmarshal([]byte(historyJSON), &fact.History); err != nil {
		return nil, err
	}
	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &fact.Metadata); err != nil {
			return nil, err
		}
	}

	if validUntil.Valid && validUntil.String != "" {
		t, err := parseTime(validUntil.String)
		if err != nil {
			return nil, err
		}
		fact.ValidUntil = &t
	}

	var err error
	fact.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	fact.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &fact, nil
}

// factSnapshot serializes a fact's current content as a version snapshot
// for the history chain.
func factSnapshot(fact *store.Fact) (*store.VersionSnapshot, error) {
	content := store.FactContent{
		Object:     fact.Object,
		FactType:   fact.FactType,
		Confidence: fact.Confidence,
		Tags:       fact.Tags,
		SourceType: fact.SourceType,
	}
	data, err := json.Marshal(content)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "marshalling fact snapshot: %w", err)
	}
	return &store.VersionSnapshot{
		Version:   fact.Version,
		Data:      data,
		Timestamp: fact.UpdatedAt,
	}, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
