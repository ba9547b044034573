// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.MemoryStore = (*MemoryStore)(nil)

// MemoryStore implements store.MemoryStore backed by SQLite with
// sqlite-vec. The memories table holds content and metadata; the vec0
// virtual table holds embeddings for the subset of memories that have one.
// A memory without an embedding is listable but never appears in Search.
type MemoryStore struct {
	db         *sql.DB
	dimensions int
}

// NewMemoryStore opens (or creates) a SQLite database at dbPath and
// initialises the memories table and the vec0 virtual table sized to
// dimensions.
func NewMemoryStore(dbPath string, dimensions int) (*MemoryStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrateMemories(db, dimensions); err != nil {
		_ = db.Close()
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "migrating memory tables: %w", err)
	}

	return &MemoryStore{db: db, dimensions: dimensions}, nil
}

func migrateMemories(db *sql.DB, dimensions int) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS memories (
	id         TEXT PRIMARY KEY,
	space_id   TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	archived   INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_space ON memories(space_id, archived, created_at);
`
	if _, err := db.Exec(ddl); err != nil {
		return err
	}

	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS memory_vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`,
		dimensions,
	)
	_, err := db.Exec(vecDDL)
	return err
}

// Close closes the underlying database connection.
func (s *MemoryStore) Close() error {
	return s.db.Close()
}

func (s *MemoryStore) Store(ctx context.Context, mem *store.Memory, embedding []float32) error {
	if mem == nil {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "memory is required")
	}
	if err := mem.Validate(); err != nil {
		return err
	}
	if len(embedding) > 0 && len(embedding) != s.dimensions {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput,
			"embedding has %d dimensions, store expects %d", len(embedding), s.dimensions)
	}

	now := time.Now()
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = now
	}
	if mem.UpdatedAt.IsZero() {
		mem.UpdatedAt = now
	}

	metaJSON, err := json.Marshal(metadataOrEmpty(mem.Metadata))
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "marshalling memory metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "beginning memory transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO memories (id, space_id, content, metadata, archived, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	space_id = excluded.space_id,
	content = excluded.content,
	metadata = excluded.metadata,
	archived = excluded.archived,
	updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, q,
		mem.ID, mem.SpaceID, mem.Content, string(metaJSON), boolToInt(mem.Archived),
		formatTime(mem.CreatedAt), formatTime(mem.UpdatedAt),
	); err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "storing memory %s: %w", mem.ID, err)
	}

	// vec0 does not support ON CONFLICT; delete first for upsert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_vectors WHERE id = ?`, mem.ID); err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "deleting existing vector %s: %w", mem.ID, err)
	}
	if len(embedding) > 0 {
		blob, err := sqlite_vec.SerializeFloat32(embedding)
		if err != nil {
			return strataerr.Errorf(strataerr.CodeStoreInvalidInput, "serializing embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memory_vectors(id, embedding) VALUES (?, ?)`, mem.ID, blob); err != nil {
			return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "inserting vector %s: %w", mem.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "committing memory store: %w", err)
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*store.Memory, error) {
	if id == "" {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "memory id is required")
	}

	mem, err := scanMemory(s.db.QueryRowContext(ctx,
		`SELECT id, space_id, content, metadata, archived, created_at, updated_at
FROM memories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, strataerr.New(strataerr.CodeMemoryNotFound, "memory "+id+" not found")
	}
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "getting memory %s: %w", id, err)
	}
	return mem, nil
}

func (s *MemoryStore) Update(ctx context.Context, mem *store.Memory, embedding []float32) error {
	if mem == nil {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "memory is required")
	}

	existing, err := s.Get(ctx, mem.ID)
	if err != nil {
		return err
	}
	mem.CreatedAt = existing.CreatedAt
	mem.UpdatedAt = time.Now()
	return s.Store(ctx, mem, embedding)
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "memory id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "beginning delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "deleting memory %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "checking rows affected for memory %s: %w", id, err)
	}
	if rows == 0 {
		return strataerr.New(strataerr.CodeMemoryNotFound, "memory "+id+" not found")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_vectors WHERE id = ?`, id); err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "deleting vector %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "committing memory delete: %w", err)
	}
	return nil
}

// Search performs a k-nearest-neighbour search over the space. Results are
// ordered by distance, lower first. Archived memories are excluded unless
// includeArchived is set. The KNN probe over-fetches so that space and
// archive filtering applied after the vector match can still fill k.
func (s *MemoryStore) Search(ctx context.Context, spaceID string, query []float32, k int, includeArchived bool) ([]*store.MemoryResult, error) {
	if spaceID == "" {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "space id is required")
	}
	if len(query) != s.dimensions {
		return nil, strataerr.Errorf(strataerr.CodeStoreInvalidInput,
			"query has %d dimensions, store expects %d", len(query), s.dimensions)
	}
	if k <= 0 {
		k = 10
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreInvalidInput, "serializing query vector: %w", err)
	}

	// vec0 MATCH cannot be combined with outer-table predicates, so the
	// KNN runs in a subquery and the join filters afterwards.
	probe := k * 4
	const q = `SELECT m.id, m.space_id, m.content, m.metadata, m.archived, m.created_at, m.updated_at, v.distance
FROM (
	SELECT id, distance FROM memory_vectors WHERE embedding MATCH ? AND k = ?
) v
JOIN memories m ON m.id = v.id
WHERE m.space_id = ? AND (? OR m.archived = 0)
ORDER BY v.distance
LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, blob, probe, spaceID, boolToInt(includeArchived), k)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "searching memories in %s: %w", spaceID, err)
	}
	defer func() { _ = rows.Close() }()

	var results []*store.MemoryResult
	for rows.Next() {
		var (
			mem                  store.Memory
			metaJSON             string
			archived             int
			createdAt, updatedAt string
			score                float64
		)
		if err := rows.Scan(&mem.ID, &mem.SpaceID, &mem.Content, &metaJSON,
			&archived, &createdAt, &updatedAt, &score); err != nil {
			return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "scanning search result: %w", err)
		}
		mem.Archived = archived != 0
		if metaJSON != "" && metaJSON != "{}" {
			if err := json.Unmarshal([]byte(metaJSON), &mem.Metadata); err != nil {
				return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "unmarshalling memory metadata: %w", err)
			}
		}
		if mem.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "parsing created_at: %w", err)
		}
		if mem.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "parsing updated_at: %w", err)
		}
		results = append(results, &store.MemoryResult{Memory: &mem, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "iterating search results: %w", err)
	}
	return results, nil
}

func (s *MemoryStore) List(ctx context.Context, filter store.MemoryFilter) ([]*store.Memory, error) {
	where, args, err := buildMemoryWhere(filter)
	if err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	q := `SELECT id, space_id, content, metadata, archived, created_at, updated_at
FROM memories ` + where + ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "listing memories in %s: %w", filter.SpaceID, err)
	}
	defer func() { _ = rows.Close() }()

	var mems []*store.Memory
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "scanning memory row: %w", err)
		}
		mems = append(mems, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "iterating memories: %w", err)
	}
	return mems, nil
}

func (s *MemoryStore) Count(ctx context.Context, filter store.MemoryFilter) (int64, error) {
	where, args, err := buildMemoryWhere(filter)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories `+where, args...).Scan(&n); err != nil {
		return 0, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "counting memories in %s: %w", filter.SpaceID, err)
	}
	return n, nil
}

func (s *MemoryStore) SetArchived(ctx context.Context, id string, archived bool) error {
	if id == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "memory id is required")
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE memories SET archived = ?, updated_at = ? WHERE id = ?`,
		boolToInt(archived), formatTime(time.Now()), id)
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "archiving memory %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "checking rows affected for memory %s: %w", id, err)
	}
	if rows == 0 {
		return strataerr.New(strataerr.CodeMemoryNotFound, "memory "+id+" not found")
	}
	return nil
}

// buildMemoryWhere assembles the WHERE clause shared by List and Count.
func buildMemoryWhere(filter store.MemoryFilter) (string, []any, error) {
	if filter.SpaceID == "" {
		return "", nil, strataerr.New(strataerr.CodeStoreInvalidInput, "space id is required")
	}
	if filter.Limit < 0 || filter.Limit > store.MaxListLimit {
		return "", nil, strataerr.Errorf(strataerr.CodeStoreInvalidInput,
			"limit must be between 0 and %d", store.MaxListLimit)
	}

	var qb strings.Builder
	qb.WriteString(`WHERE space_id = ?`)
	args := []any{filter.SpaceID}

	if !filter.IncludeArchived {
		qb.WriteString(` AND archived = 0`)
	}
	return qb.String(), args, nil
}

func scanMemory(row rowScanner) (*store.Memory, error) {
	var (
		mem                  store.Memory
		metaJSON             string
		archived             int
		createdAt, updatedAt string
	)
	if err := row.Scan(&mem.ID, &mem.SpaceID, &mem.Content, &metaJSON,
		&archived, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	mem.Archived = archived != 0

	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &mem.Metadata); err != nil {
			return nil, err
		}
	}

	var err error
	mem.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	mem.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &mem, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
