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
var _ store.VersionStore = (*VersionStore)(nil)

// VersionStore implements store.VersionStore backed by SQLite. Each record
// row holds the current version plus its archived history as a JSON array;
// an append is a single read-modify-write transaction on that row, which is
// what makes the version chain atomic per (type, id).
type VersionStore struct {
	db *sql.DB
}

// NewVersionStore opens (or creates) a SQLite database at dbPath and
// initialises the records table.
func NewVersionStore(dbPath string) (*VersionStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrateVersion(db); err != nil {
		_ = db.Close()
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "migrating records table: %w", err)
	}

	return &VersionStore{db: db}, nil
}

// NewVersionStoreWithDB wraps an already-open database handle.
func NewVersionStoreWithDB(db *sql.DB) (*VersionStore, error) {
	if err := migrateVersion(db); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "migrating records table: %w", err)
	}
	return &VersionStore{db: db}, nil
}

func migrateVersion(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS records (
	type       TEXT NOT NULL,
	id         TEXT NOT NULL,
	version    INTEGER NOT NULL,
	data       TEXT NOT NULL,
	history    TEXT NOT NULL DEFAULT '[]',
	metadata   TEXT NOT NULL DEFAULT '{}',
	user_id    TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (type, id)
);

CREATE INDEX IF NOT EXISTS idx_records_type_created ON records(type, created_at);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *VersionStore) Close() error {
	return s.db.Close()
}

func (s *VersionStore) Append(ctx context.Context, typ, id string, data json.RawMessage, opts store.AppendOpts) (*store.VersionedRecord, error) {
	if err := store.ValidateRecordRef(typ, id); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "record data is required")
	}
	if !json.Valid(data) {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "record data must be valid JSON")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "beginning append transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT type, id, version, data, history, metadata, user_id, created_at, updated_at
FROM records WHERE type = ? AND id = ?`, typ, id))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "reading record %s/%s: %w", typ, id, err)
	}

	now := time.Now()
	var rec *store.VersionedRecord

	if cur == nil {
		rec = &store.VersionedRecord{
			Type:      typ,
			ID:        id,
			Version:   1,
			Data:      data,
			Metadata:  opts.Metadata,
			UserID:    opts.UserID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		historyJSON, metaJSON, err := marshalChain(rec.History, rec.Metadata)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (type, id, version, data, history, metadata, user_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			typ, id, rec.Version, string(data), historyJSON, metaJSON, rec.UserID,
			formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
		); err != nil {
			return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "inserting record %s/%s: %w", typ, id, err)
		}
	} else {
		// Move the current version into history. UpdatedAt is the moment the
		// current version was installed, which is exactly the snapshot time
		// GetAtTimestamp needs.
		cur.History = append(cur.History, store.VersionSnapshot{
			Version:   cur.Version,
			Data:      cur.Data,
			Timestamp: cur.UpdatedAt,
		})

		merged := cur.Metadata
		if len(opts.Metadata) > 0 {
			if merged == nil {
				merged = make(map[string]any, len(opts.Metadata))
			}
			for k, v := range opts.Metadata {
				merged[k] = v
			}
		}

		userID := cur.UserID
		if opts.UserID != "" {
			userID = opts.UserID
		}

		rec = &store.VersionedRecord{
			Type:      typ,
			ID:        id,
			Version:   cur.Version + 1,
			Data:      data,
			History:   cur.History,
			Metadata:  merged,
			UserID:    userID,
			CreatedAt: cur.CreatedAt,
			UpdatedAt: now,
		}
		historyJSON, metaJSON, err := marshalChain(rec.History, rec.Metadata)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE records SET version = ?, data = ?, history = ?, metadata = ?, user_id = ?, updated_at = ?
WHERE type = ? AND id = ?`,
			rec.Version, string(data), historyJSON, metaJSON, userID, formatTime(now), typ, id,
		); err != nil {
			return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "appending version to %s/%s: %w", typ, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "committing append for %s/%s: %w", typ, id, err)
	}
	return rec, nil
}

func (s *VersionStore) GetCurrent(ctx context.Context, typ, id string) (*store.VersionedRecord, error) {
	if err := store.ValidateRecordRef(typ, id); err != nil {
		return nil, err
	}

	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT type, id, version, data, history, metadata, user_id, created_at, updated_at
FROM records WHERE type = ? AND id = ?`, typ, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "getting record %s/%s: %w", typ, id, err)
	}
	return rec, nil
}

func (s *VersionStore) GetVersion(ctx context.Context, typ, id string, n int) (*store.VersionSnapshot, error) {
	rec, err := s.GetCurrent(ctx, typ, id)
	if err != nil || rec == nil {
		return nil, err
	}

	if n == rec.Version {
		return &store.VersionSnapshot{Version: n, Data: rec.Data, Timestamp: rec.UpdatedAt}, nil
	}
	for i := range rec.History {
		if rec.History[i].Version == n {
			snap := rec.History[i]
			return &snap, nil
		}
	}
	return nil, nil
}

func (s *VersionStore) GetAtTimestamp(ctx context.Context, typ, id string, t time.Time) (*store.VersionSnapshot, error) {
	rec, err := s.GetCurrent(ctx, typ, id)
	if err != nil || rec == nil {
		return nil, err
	}

	// Walk newest to oldest; a version owns the interval from its creation
	// until the next version's creation, open-ended for the current one.
	if !t.Before(rec.UpdatedAt) {
		return &store.VersionSnapshot{Version: rec.Version, Data: rec.Data, Timestamp: rec.UpdatedAt}, nil
	}
	for i := len(rec.History) - 1; i >= 0; i-- {
		if !t.Before(rec.History[i].Timestamp) {
			snap := rec.History[i]
			return &snap, nil
		}
	}
	return nil, nil
}

func (s *VersionStore) GetHistory(ctx context.Context, typ, id string) ([]store.VersionSnapshot, error) {
	rec, err := s.GetCurrent(ctx, typ, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return []store.VersionSnapshot{}, nil
	}

	all := make([]store.VersionSnapshot, 0, len(rec.History)+1)
	all = append(all, rec.History...)
	all = append(all, store.VersionSnapshot{Version: rec.Version, Data: rec.Data, Timestamp: rec.UpdatedAt})
	return all, nil
}

func (s *VersionStore) List(ctx context.Context, filter store.RecordFilter) ([]*store.VersionedRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	where, args := buildRecordWhere(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	q := `SELECT type, id, version, data, history, metadata, user_id, created_at, updated_at
FROM records ` + where + ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "listing %s records: %w", filter.Type, err)
	}
	defer func() { _ = rows.Close() }()

	var recs []*store.VersionedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "scanning record row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "iterating records: %w", err)
	}
	return recs, nil
}

func (s *VersionStore) Count(ctx context.Context, filter store.RecordFilter) (int64, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	where, args := buildRecordWhere(filter)
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records `+where, args...).Scan(&n); err != nil {
		return 0, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "counting %s records: %w", filter.Type, err)
	}
	return n, nil
}

// buildRecordWhere assembles the WHERE clause shared by List and Count so
// the two can never disagree on a filter.
func buildRecordWhere(filter store.RecordFilter) (string, []any) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`WHERE type = ?`)
	args = append(args, filter.Type)

	if filter.UserID != "" {
		qb.WriteString(` AND user_id = ?`)
		args = append(args, filter.UserID)
	}
	if !filter.CreatedAfter.IsZero() {
		qb.WriteString(` AND created_at > ?`)
		args = append(args, formatTime(filter.CreatedAfter))
	}
	if !filter.CreatedBefore.IsZero() {
		qb.WriteString(` AND created_at < ?`)
		args = append(args, formatTime(filter.CreatedBefore))
	}
	return qb.String(), args
}

func (s *VersionStore) PurgeVersions(ctx context.Context, typ, id string, keepLatestN int) (*store.PurgeVersionsResult, error) {
	if err := store.ValidateRecordRef(typ, id); err != nil {
		return nil, err
	}
	if keepLatestN < 1 {
		return nil, strataerr.Errorf(strataerr.CodeStoreInvalidInput, "keepLatestN must be >= 1, got %d", keepLatestN)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "beginning purge transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT type, id, version, data, history, metadata, user_id, created_at, updated_at
FROM records WHERE type = ? AND id = ?`, typ, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, strataerr.Errorf(strataerr.CodeRecordNotFound, "record %s/%s not found", typ, id)
	}
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "reading record %s/%s: %w", typ, id, err)
	}

	total := len(rec.History) + 1
	if total <= keepLatestN {
		return &store.PurgeVersionsResult{VersionsPurged: 0, VersionsRemaining: total}, nil
	}

	// Drop the oldest history entries; the current version is never purged.
	drop := total - keepLatestN
	rec.History = rec.History[drop:]

	historyJSON, err := json.Marshal(rec.History)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "marshalling pruned history: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET history = ? WHERE type = ? AND id = ?`,
		string(historyJSON), typ, id,
	); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "pruning record %s/%s: %w", typ, id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "committing purge for %s/%s: %w", typ, id, err)
	}
	return &store.PurgeVersionsResult{VersionsPurged: drop, VersionsRemaining: keepLatestN}, nil
}

func (s *VersionStore) Purge(ctx context.Context, typ, id string) (*store.PurgeResult, error) {
	if err := store.ValidateRecordRef(typ, id); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "beginning purge transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var historyJSON string
	err = tx.QueryRowContext(ctx, `SELECT history FROM records WHERE type = ? AND id = ?`, typ, id).Scan(&historyJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, strataerr.Errorf(strataerr.CodeRecordNotFound, "record %s/%s not found", typ, id)
	}
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "reading record %s/%s: %w", typ, id, err)
	}

	var history []store.VersionSnapshot
	if err := json.Unmarshal([]byte(historyJSON), &history); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "unmarshalling history for %s/%s: %w", typ, id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE type = ? AND id = ?`, typ, id); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "deleting record %s/%s: %w", typ, id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "committing delete for %s/%s: %w", typ, id, err)
	}
	return &store.PurgeResult{Deleted: true, VersionsDeleted: len(history) + 1}, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanRecord.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*store.VersionedRecord, error) {
	var (
		rec                  store.VersionedRecord
		data                 string
		historyJSON          string
		metaJSON             string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&rec.Type, &rec.ID, &rec.Version, &data, &historyJSON, &metaJSON,
		&rec.UserID, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	rec.Data = json.RawMessage(data)

	if err := json.Unmarshal([]byte(historyJSON), &rec.History); err != nil {
		return nil, err
	}
	if len(rec.History) == 0 {
		rec.History = nil
	}

	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &rec.Metadata); err != nil {
			return nil, err
		}
	}

	var err error
	rec.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	rec.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// marshalChain serialises a record's history and metadata columns.
func marshalChain(history []store.VersionSnapshot, metadata map[string]any) (string, string, error) {
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return "", "", strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "marshalling history: %w", err)
	}
	if history == nil {
		historyJSON = []byte("[]")
	}

	metaJSON := []byte("{}")
	if len(metadata) > 0 {
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return "", "", strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "marshalling metadata: %w", err)
		}
	}
	return string(historyJSON), string(metaJSON), nil
}
