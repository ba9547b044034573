// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// Compile-time interface check.
var _ store.ConversationStore = (*ConversationStore)(nil)

// ConversationStore implements store.ConversationStore backed by SQLite.
// Messages are append-only; the conversation row tracks only lifecycle
// status and touch time.
type ConversationStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewConversationStore opens (or creates) a SQLite database at dbPath and
// initialises the conversation tables.
func NewConversationStore(dbPath string) (*ConversationStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrateConversations(db); err != nil {
		_ = db.Close()
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "migrating conversation tables: %w", err)
	}

	return newConversationStore(db), nil
}

// NewConversationStoreWithDB wraps an already-open database handle.
func NewConversationStoreWithDB(db *sql.DB) (*ConversationStore, error) {
	if err := migrateConversations(db); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "migrating conversation tables: %w", err)
	}
	return newConversationStore(db), nil
}

func newConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func migrateConversations(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	space_id   TEXT NOT NULL,
	context_id TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'active',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_space ON conversations(space_id, updated_at);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	space_id        TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	metadata        TEXT NOT NULL DEFAULT '{}',
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
CREATE INDEX IF NOT EXISTS idx_messages_space ON messages(space_id);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *ConversationStore) Close() error {
	return s.db.Close()
}

// newMessageID mints a monotonic ULID so lexical order matches append order
// even for messages created in the same millisecond.
func (s *ConversationStore) newMessageID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), s.entropy)
	if err != nil {
		return "", strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "generating message id: %w", err)
	}
	return id.String(), nil
}

func (s *ConversationStore) Create(ctx context.Context, conv *store.Conversation) error {
	if conv == nil {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "conversation is required")
	}
	if conv.Status == "" {
		conv.Status = store.ConversationStatusActive
	}
	if err := conv.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}

	const q = `INSERT INTO conversations (id, space_id, context_id, title, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		conv.ID, conv.SpaceID, conv.ContextID, conv.Title, string(conv.Status),
		formatTime(conv.CreatedAt), formatTime(conv.UpdatedAt),
	); err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "creating conversation %s: %w", conv.ID, err)
	}
	return nil
}

func (s *ConversationStore) Get(ctx context.Context, id string) (*store.Conversation, error) {
	if id == "" {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "conversation id is required")
	}

	conv, err := scanConversation(s.db.QueryRowContext(ctx,
		`SELECT id, space_id, context_id, title, status, created_at, updated_at
FROM conversations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, strataerr.New(strataerr.CodeConversationNotFound, "conversation "+id+" not found")
	}
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "getting conversation %s: %w", id, err)
	}
	return conv, nil
}

func (s *ConversationStore) List(ctx context.Context, spaceID string, opts store.ListOpts) ([]*store.Conversation, error) {
	if spaceID == "" {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "space id is required")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	const q = `SELECT id, space_id, context_id, title, status, created_at, updated_at
FROM conversations WHERE space_id = ? ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, q, spaceID, limit, offset)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "listing conversations in %s: %w", spaceID, err)
	}
	defer func() { _ = rows.Close() }()

	var convs []*store.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "scanning conversation row: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "iterating conversations: %w", err)
	}
	return convs, nil
}

func (s *ConversationStore) SetStatus(ctx context.Context, id string, status store.ConversationStatus) error {
	if id == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "conversation id is required")
	}
	if !status.Valid() {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput, "unknown conversation status %q", status)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id)
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "setting status on conversation %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "checking rows affected for conversation %s: %w", id, err)
	}
	if rows == 0 {
		return strataerr.New(strataerr.CodeConversationNotFound, "conversation "+id+" not found")
	}
	return nil
}

func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "conversation id is required")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "deleting conversation %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "checking rows affected for conversation %s: %w", id, err)
	}
	if rows == 0 {
		return strataerr.New(strataerr.CodeConversationNotFound, "conversation "+id+" not found")
	}
	return nil
}

func (s *ConversationStore) AppendMessage(ctx context.Context, conversationID string, msg *store.Message) error {
	if conversationID == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "conversation id is required")
	}
	if msg == nil {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "message is required")
	}

	if msg.ID == "" {
		id, err := s.newMessageID()
		if err != nil {
			return err
		}
		msg.ID = id
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.ConversationID = conversationID

	if err := msg.Validate(); err != nil {
		return err
	}

	metaJSON := []byte("{}")
	if len(msg.Metadata) > 0 {
		var err error
		metaJSON, err = json.Marshal(msg.Metadata)
		if err != nil {
			return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "marshalling message metadata: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "beginning append transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var spaceID string
	err = tx.QueryRowContext(ctx, `SELECT space_id FROM conversations WHERE id = ?`, conversationID).Scan(&spaceID)
	if errors.Is(err, sql.ErrNoRows) {
		return strataerr.New(strataerr.CodeConversationNotFound, "conversation "+conversationID+" not found")
	}
	if err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "reading conversation %s: %w", conversationID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, space_id, role, content, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, conversationID, spaceID, string(msg.Role), msg.Content,
		string(metaJSON), formatTime(msg.CreatedAt),
	); err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure,
			"appending message to conversation %s: %w", conversationID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		formatTime(msg.CreatedAt), conversationID,
	); err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure,
			"touching conversation %s: %w", conversationID, err)
	}

	if err := tx.Commit(); err != nil {
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure,
			"committing message append for %s: %w", conversationID, err)
	}
	return nil
}

// GetMessages returns the most recent limit messages in chronological
// order. The tail is selected by descending ULID, then reversed.
func (s *ConversationStore) GetMessages(ctx context.Context, conversationID string, limit int) ([]*store.Message, error) {
	if conversationID == "" {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "conversation id is required")
	}
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	const q = `SELECT id, conversation_id, role, content, metadata, created_at
FROM messages WHERE conversation_id = ? ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, conversationID, limit)
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure,
			"listing messages for %s: %w", conversationID, err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "scanning message row: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "iterating messages: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *ConversationStore) Count(ctx context.Context, spaceID string) (int64, error) {
	if spaceID == "" {
		return 0, strataerr.New(strataerr.CodeStoreInvalidInput, "space id is required")
	}

	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE space_id = ?`, spaceID).Scan(&n); err != nil {
		return 0, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "counting conversations in %s: %w", spaceID, err)
	}
	return n, nil
}

func (s *ConversationStore) CountMessages(ctx context.Context, spaceID string) (int64, error) {
	if spaceID == "" {
		return 0, strataerr.New(strataerr.CodeStoreInvalidInput, "space id is required")
	}

	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE space_id = ?`, spaceID).Scan(&n); err != nil {
		return 0, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "counting messages in %s: %w", spaceID, err)
	}
	return n, nil
}

func scanConversation(row rowScanner) (*store.Conversation, error) {
	var (
		conv                 store.Conversation
		status               string
		createdAt, updatedAt string
	)
	if err := row.Scan(&conv.ID, &conv.SpaceID, &conv.ContextID, &conv.Title,
		&status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	conv.Status = store.ConversationStatus(status)

	var err error
	conv.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	conv.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var (
		msg       store.Message
		role      string
		metaJSON  string
		createdAt string
	)
	if err := row.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content,
		&metaJSON, &createdAt); err != nil {
		return nil, err
	}

	msg.Role = store.MessageRole(role)

	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &msg.Metadata); err != nil {
			return nil, err
		}
	}

	var err error
	msg.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
