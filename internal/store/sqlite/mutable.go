// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// Compile-time interface check.
var _ store.MutableStore = (*MutableStore)(nil)

// MutableStore implements store.MutableStore backed by SQLite. Entries are
// last-write-wins: no history is kept, and each mutation is a single
// statement or single transaction on one row.
type MutableStore struct {
	db            *sql.DB
	maxValueBytes int
	txMode        store.TxMode
	logger        *slog.Logger
}

// NewMutableStore opens (or creates) a SQLite database at dbPath and
// initialises the mutable entries table.
func NewMutableStore(dbPath string, maxValueBytes int, txMode store.TxMode) (*MutableStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrateMutable(db); err != nil {
		_ = db.Close()
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "migrating mutable table: %w", err)
	}

	return newMutableStore(db, maxValueBytes, txMode), nil
}

// NewMutableStoreWithDB wraps an already-open database handle.
func NewMutableStoreWithDB(db *sql.DB, maxValueBytes int, txMode store.TxMode) (*MutableStore, error) {
	if err := migrateMutable(db); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "migrating mutable table: %w", err)
	}
	return newMutableStore(db, maxValueBytes, txMode), nil
}

func newMutableStore(db *sql.DB, maxValueBytes int, txMode store.TxMode) *MutableStore {
	if maxValueBytes <= 0 {
		maxValueBytes = store.DefaultMaxValueBytes
	}
	if txMode == "" {
		txMode = store.TxModeSequential
	}
	return &MutableStore{
		db:            db,
		maxValueBytes: maxValueBytes,
		txMode:        txMode,
		logger:        slog.Default(),
	}
}

func migrateMutable(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS mutable_entries (
	namespace    TEXT NOT NULL,
	key          TEXT NOT NULL,
	value        TEXT NOT NULL DEFAULT 'null',
	user_id      TEXT NOT NULL DEFAULT '',
	metadata     TEXT NOT NULL DEFAULT '{}',
	access_count INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	PRIMARY KEY (namespace, key)
);

CREATE INDEX IF NOT EXISTS idx_mutable_ns_updated ON mutable_entries(namespace, updated_at);
CREATE INDEX IF NOT EXISTS idx_mutable_ns_user ON mutable_entries(namespace, user_id);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *MutableStore) Close() error {
	return s.db.Close()
}

func (s *MutableStore) Set(ctx context.Context, ns, key string, value json.RawMessage, opts store.SetOpts) (*store.MutableEntry, error) {
	if err := store.ValidateKeyPair(ns, key); err != nil {
		return nil, err
	}
	value, err := s.normalizeValue(ns, key, value)
	if err != nil {
		return nil, err
	}

	metaJSON := []byte("{}")
	if len(opts.Metadata) > 0 {
		metaJSON, err = json.Marshal(opts.Metadata)
		if err != nil {
			return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "marshalling entry metadata: %w", err)
		}
	}

	now := formatTime(time.Now())
	const q = `INSERT INTO mutable_entries (namespace, key, value, user_id, metadata, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(namespace, key) DO UPDATE SET
	value = excluded.value,
	user_id = excluded.user_id,
	metadata = excluded.metadata,
	updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, q, ns, key, string(value), opts.UserID, string(metaJSON), now, now); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "setting %s/%s: %w", ns, key, err)
	}

	return s.getEntry(ctx, s.db, ns, key)
}

// Get returns the value for a key, or nil when the key is absent. A stored
// JSON null also surfaces as nil: Get cannot distinguish the two, GetRecord
// can. Reading bumps the entry's access count best-effort.
func (s *MutableStore) Get(ctx context.Context, ns, key string) (json.RawMessage, error) {
	if err := store.ValidateKeyPair(ns, key); err != nil {
		return nil, err
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM mutable_entries WHERE namespace = ? AND key = ?`, ns, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "getting %s/%s: %w", ns, key, err)
	}

	s.bumpAccessCount(ctx, ns, key)

	if value == "null" {
		return nil, nil
	}
	return json.RawMessage(value), nil
}

// GetRecord is the authority on existence: it fails with a not-found code
// for an absent key, and returns the full entry (including a null value)
// for a present one.
func (s *MutableStore) GetRecord(ctx context.Context, ns, key string) (*store.MutableEntry, error) {
	if err := store.ValidateKeyPair(ns, key); err != nil {
		return nil, err
	}

	entry, err := s.getEntry(ctx, s.db, ns, key)
	if err != nil {
		return nil, err
	}

	s.bumpAccessCount(ctx, ns, key)
	return entry, nil
}

// bumpAccessCount increments the read metric without blocking the read
// path: failures are logged, never returned.
func (s *MutableStore) bumpAccessCount(ctx context.Context, ns, key string) {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE mutable_entries SET access_count = access_count + 1 WHERE namespace = ? AND key = ?`,
		ns, key,
	); err != nil {
		s.logger.WarnContext(ctx, "failed to bump access count",
			"namespace", ns, "key", key, "error", err)
	}
}

func (s *MutableStore) Update(ctx context.Context, ns, key string, fn func(json.RawMessage) (json.RawMessage, error)) (*store.MutableEntry, error) {
	if err := store.ValidateKeyPair(ns, key); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "update function is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "beginning update transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	entry, err := s.updateInTx(ctx, tx, ns, key, fn)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "committing update for %s/%s: %w", ns, key, err)
	}
	return entry, nil
}

// updateInTx applies fn to the present value of (ns, key) within tx. The
// updater is only ever invoked for a present key.
func (s *MutableStore) updateInTx(ctx context.Context, tx *sql.Tx, ns, key string, fn func(json.RawMessage) (json.RawMessage, error)) (*store.MutableEntry, error) {
	var value string
	err := tx.QueryRowContext(ctx, `SELECT value FROM mutable_entries WHERE namespace = ? AND key = ?`, ns, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, keyNotFound(ns, key)
	}
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "reading %s/%s: %w", ns, key, err)
	}

	next, err := fn(json.RawMessage(value))
	if err != nil {
		return nil, err
	}
	next, err = s.normalizeValue(ns, key, next)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE mutable_entries SET value = ?, updated_at = ? WHERE namespace = ? AND key = ?`,
		string(next), formatTime(time.Now()), ns, key,
	); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "updating %s/%s: %w", ns, key, err)
	}

	return s.getEntry(ctx, tx, ns, key)
}

func (s *MutableStore) Increment(ctx context.Context, ns, key string, amount float64) (*store.MutableEntry, error) {
	if err := store.ValidateKeyPair(ns, key); err != nil {
		return nil, err
	}
	if amount == 0 {
		amount = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "beginning increment transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	entry, err := s.incrementInTx(ctx, tx, ns, key, amount)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "committing increment for %s/%s: %w", ns, key, err)
	}
	return entry, nil
}

func (s *MutableStore) Decrement(ctx context.Context, ns, key string, amount float64) (*store.MutableEntry, error) {
	if amount == 0 {
		amount = 1
	}
	return s.Increment(ctx, ns, key, -amount)
}

// incrementInTx adds amount to the numeric value of (ns, key) within tx.
// A stored JSON null counts as zero; results may go negative.
func (s *MutableStore) incrementInTx(ctx context.Context, tx *sql.Tx, ns, key string, amount float64) (*store.MutableEntry, error) {
	var value string
	err := tx.QueryRowContext(ctx, `SELECT value FROM mutable_entries WHERE namespace = ? AND key = ?`, ns, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, keyNotFound(ns, key)
	}
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "reading %s/%s: %w", ns, key, err)
	}

	var current float64
	if value != "null" {
		current, err = strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, strataerr.Errorf(strataerr.CodeStoreInvalidInput,
				"value at %s/%s is not numeric: %s", ns, key, value)
		}
	}

	next, err := json.Marshal(current + amount)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "marshalling incremented value: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE mutable_entries SET value = ?, updated_at = ? WHERE namespace = ? AND key = ?`,
		string(next), formatTime(time.Now()), ns, key,
	); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "incrementing %s/%s: %w", ns, key, err)
	}

	return s.getEntry(ctx, tx, ns, key)
}

func (s *MutableStore) Exists(ctx context.Context, ns, key string) (bool, error) {
	if err := store.ValidateKeyPair(ns, key); err != nil {
		return false, err
	}

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM mutable_entries WHERE namespace = ? AND key = ?`, ns, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "checking %s/%s: %w", ns, key, err)
	}
	return true, nil
}

func (s *MutableStore) Delete(ctx context.Context, ns, key string) error {
	if err := store.ValidateKeyPair(ns, key); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM mutable_entries WHERE namespace = ? AND key = ?`, ns, key)
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "deleting %s/%s: %w", ns, key, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "checking rows affected for %s/%s: %w", ns, key, err)
	}
	if rows == 0 {
		return keyNotFound(ns, key)
	}
	return nil
}

// Purge is a pure alias of Delete: identical contract, identical error.
func (s *MutableStore) Purge(ctx context.Context, ns, key string) error {
	return s.Delete(ctx, ns, key)
}

func (s *MutableStore) List(ctx context.Context, filter store.MutableFilter) ([]*store.MutableEntry, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	where, args := buildMutableWhere(filter)

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "key"
	}
	order := "ASC"
	if filter.SortOrder == store.SortDesc {
		order = "DESC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	q := `SELECT namespace, key, value, user_id, metadata, access_count, created_at, updated_at
FROM mutable_entries ` + where + ` ORDER BY ` + sortBy + ` ` + order + ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "listing namespace %s: %w", filter.Namespace, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*store.MutableEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "scanning entry row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "iterating entries: %w", err)
	}
	return entries, nil
}

func (s *MutableStore) Count(ctx context.Context, filter store.MutableFilter) (int64, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	where, args := buildMutableWhere(filter)
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutable_entries `+where, args...).Scan(&n); err != nil {
		return 0, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "counting namespace %s: %w", filter.Namespace, err)
	}
	return n, nil
}

// buildMutableWhere assembles the WHERE clause shared by List, Count and
// PurgeMany so that count(filter) is always len(list(filter)). An
// impossible time range simply selects nothing.
func buildMutableWhere(filter store.MutableFilter) (string, []any) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`WHERE namespace = ?`)
	args = append(args, filter.Namespace)

	if filter.KeyPrefix != "" {
		qb.WriteString(` AND key LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(filter.KeyPrefix)+"%")
	}
	if filter.UserID != "" {
		qb.WriteString(` AND user_id = ?`)
		args = append(args, filter.UserID)
	}
	if !filter.UpdatedAfter.IsZero() {
		qb.WriteString(` AND updated_at > ?`)
		args = append(args, formatTime(filter.UpdatedAfter))
	}
	if !filter.UpdatedBefore.IsZero() {
		qb.WriteString(` AND updated_at < ?`)
		args = append(args, formatTime(filter.UpdatedBefore))
	}
	return qb.String(), args
}

// escapeLike escapes LIKE wildcards in a literal prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func (s *MutableStore) PurgeMany(ctx context.Context, filter store.MutableFilter) (*store.PurgeManyResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	where, args := buildMutableWhere(filter)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "beginning purge transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT key FROM mutable_entries `+where+` ORDER BY key ASC`, args...)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "selecting keys to purge: %w", err)
	}

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			_ = rows.Close()
			return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "iterating keys: %w", err)
	}
	_ = rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mutable_entries `+where, args...); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "purging namespace %s: %w", filter.Namespace, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "committing purge: %w", err)
	}
	return &store.PurgeManyResult{Deleted: len(keys), Keys: keys}, nil
}

func (s *MutableStore) PurgeNamespace(ctx context.Context, ns string) (int64, error) {
	if err := store.ValidateIdentifier("namespace", ns); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM mutable_entries WHERE namespace = ?`, ns)
	if err != nil {
		return 0, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "purging namespace %s: %w", ns, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "checking rows purged from %s: %w", ns, err)
	}
	return deleted, nil
}

// Transaction executes the batch according to the store's TxMode. In
// sequential mode the first failure stops execution and earlier operations
// stay applied. In prevalidate mode the whole batch is checked against a
// snapshot (plus the batch's own earlier effects) before anything runs, so
// a batch that would fail applies nothing.
func (s *MutableStore) Transaction(ctx context.Context, ops []store.TxOp) (*store.TxOutcome, error) {
	if len(ops) == 0 {
		return &store.TxOutcome{Success: true, Results: []store.TxResult{}}, nil
	}
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return nil, err
		}
	}

	if s.txMode == store.TxModePrevalidate {
		if err := s.prevalidate(ctx, ops); err != nil {
			return nil, err
		}
	}

	outcome := &store.TxOutcome{Results: make([]store.TxResult, 0, len(ops))}
	for _, op := range ops {
		entry, err := s.applyOp(ctx, op)
		if err != nil {
			return nil, err
		}
		outcome.Results = append(outcome.Results, store.TxResult{
			Op: op.Op, Namespace: op.Namespace, Key: op.Key, Entry: entry,
		})
		outcome.OperationsExecuted++
	}
	outcome.Success = true
	return outcome, nil
}

func (s *MutableStore) applyOp(ctx context.Context, op store.TxOp) (*store.MutableEntry, error) {
	switch op.Op {
	case store.TxOpSet:
		return s.Set(ctx, op.Namespace, op.Key, op.Value, store.SetOpts{UserID: op.UserID})
	case store.TxOpUpdate:
		return s.Update(ctx, op.Namespace, op.Key, func(json.RawMessage) (json.RawMessage, error) {
			return op.Value, nil
		})
	case store.TxOpIncrement:
		return s.Increment(ctx, op.Namespace, op.Key, op.Amount)
	case store.TxOpDecrement:
		return s.Decrement(ctx, op.Namespace, op.Key, op.Amount)
	case store.TxOpDelete:
		return nil, s.Delete(ctx, op.Namespace, op.Key)
	default:
		return nil, strataerr.Errorf(strataerr.CodeStoreInvalidInput, "unknown batch op %q", op.Op)
	}
}

// prevalidate checks every operation against current state overlaid with
// the effects of earlier operations in the same batch.
func (s *MutableStore) prevalidate(ctx context.Context, ops []store.TxOp) error {
	// nil means unknown (fall back to the store); true/false are batch-local.
	overlay := make(map[string]bool)
	present := func(ns, key string) (bool, error) {
		if p, ok := overlay[ns+"\x00"+key]; ok {
			return p, nil
		}
		return s.Exists(ctx, ns, key)
	}

	for i, op := range ops {
		switch op.Op {
		case store.TxOpSet:
			if err := s.checkValueSize(op.Namespace, op.Key, op.Value); err != nil {
				return err
			}
			overlay[op.Namespace+"\x00"+op.Key] = true
		case store.TxOpUpdate, store.TxOpIncrement, store.TxOpDecrement:
			ok, err := present(op.Namespace, op.Key)
			if err != nil {
				return err
			}
			if !ok {
				return strataerr.With(keyNotFound(op.Namespace, op.Key), strataerr.Field("batch_index", i))
			}
			if op.Op == store.TxOpUpdate {
				if err := s.checkValueSize(op.Namespace, op.Key, op.Value); err != nil {
					return err
				}
			}
			overlay[op.Namespace+"\x00"+op.Key] = true
		case store.TxOpDelete:
			ok, err := present(op.Namespace, op.Key)
			if err != nil {
				return err
			}
			if !ok {
				return strataerr.With(keyNotFound(op.Namespace, op.Key), strataerr.Field("batch_index", i))
			}
			overlay[op.Namespace+"\x00"+op.Key] = false
		}
	}
	return nil
}

// normalizeValue defaults an empty payload to JSON null, validates JSON
// shape, and enforces the size cap.
func (s *MutableStore) normalizeValue(ns, key string, value json.RawMessage) (json.RawMessage, error) {
	if len(value) == 0 {
		return json.RawMessage("null"), nil
	}
	value = bytes.TrimSpace(value)
	if !json.Valid(value) {
		return nil, strataerr.Errorf(strataerr.CodeStoreInvalidInput, "value for %s/%s must be valid JSON", ns, key)
	}
	if err := s.checkValueSize(ns, key, value); err != nil {
		return nil, err
	}
	return value, nil
}

func (s *MutableStore) checkValueSize(ns, key string, value json.RawMessage) error {
	if len(value) > s.maxValueBytes {
		return strataerr.New(strataerr.CodeMutableValueTooLarge,
			"value exceeds size cap",
			strataerr.FieldNamespace(ns),
			strataerr.FieldKey(key),
			strataerr.Field("size_bytes", len(value)),
			strataerr.Field("max_bytes", s.maxValueBytes),
		)
	}
	return nil
}

// querier abstracts *sql.DB and *sql.Tx for single-row entry reads.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *MutableStore) getEntry(ctx context.Context, q querier, ns, key string) (*store.MutableEntry, error) {
	entry, err := scanEntry(q.QueryRowContext(ctx,
		`SELECT namespace, key, value, user_id, metadata, access_count, created_at, updated_at
FROM mutable_entries WHERE namespace = ? AND key = ?`, ns, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, keyNotFound(ns, key)
	}
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "reading %s/%s: %w", ns, key, err)
	}
	return entry, nil
}

func scanEntry(row rowScanner) (*store.MutableEntry, error) {
	var (
		entry                store.MutableEntry
		value, metaJSON      string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&entry.Namespace, &entry.Key, &value, &entry.UserID, &metaJSON,
		&entry.AccessCount, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	entry.Value = json.RawMessage(value)

	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &entry.Metadata); err != nil {
			return nil, err
		}
	}

	var err error
	entry.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	entry.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func keyNotFound(ns, key string) error {
	return strataerr.New(strataerr.CodeMutableKeyNotFound, "key "+ns+"/"+key+" not found")
}
