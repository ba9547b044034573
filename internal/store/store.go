// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package store

import (
	"context"
	"encoding/json"
	"time"
)

// VersionStore manages append-only version chains for (type, id) pairs.
//
// Absence is a valid result for the read operations: GetCurrent, GetVersion
// and GetAtTimestamp return (nil, nil) when no matching version exists, and
// GetHistory returns an empty slice for an unknown id. PurgeVersions and
// Purge require existence and fail with a record-not-found code otherwise.
type VersionStore interface {
	// Append creates version 1 if no record exists, otherwise moves the
	// current version into history and installs data as the new current
	// version. Metadata in opts is merged over retained metadata. Atomic
	// per (type, id).
	Append(ctx context.Context, typ, id string, data json.RawMessage, opts AppendOpts) (*VersionedRecord, error)
	GetCurrent(ctx context.Context, typ, id string) (*VersionedRecord, error)
	// GetVersion returns the snapshot for version n, or nil if n never
	// existed for this id or was pruned.
	GetVersion(ctx context.Context, typ, id string, n int) (*VersionSnapshot, error)
	// GetAtTimestamp returns the version whose lifetime interval contains t.
	// The current version's interval is open-ended. Returns nil when t
	// precedes the record's creation.
	GetAtTimestamp(ctx context.Context, typ, id string, t time.Time) (*VersionSnapshot, error)
	// GetHistory returns every retained version, earliest first, the
	// current version last.
	GetHistory(ctx context.Context, typ, id string) ([]VersionSnapshot, error)
	List(ctx context.Context, filter RecordFilter) ([]*VersionedRecord, error)
	Count(ctx context.Context, filter RecordFilter) (int64, error)
	// PurgeVersions drops the oldest history entries so that at most
	// keepLatestN versions remain (the current version is always kept).
	PurgeVersions(ctx context.Context, typ, id string, keepLatestN int) (*PurgeVersionsResult, error)
	// Purge deletes the entire chain and reports how many versions it held.
	Purge(ctx context.Context, typ, id string) (*PurgeResult, error)
	Close() error
}

// MutableStore manages last-write-wins entries for (namespace, key) pairs.
//
// Get returns nil both for an absent key and for a key whose stored value
// is JSON null; GetRecord is the authority on existence. Update, Increment,
// Decrement, Delete and Purge require existence.
type MutableStore interface {
	Set(ctx context.Context, ns, key string, value json.RawMessage, opts SetOpts) (*MutableEntry, error)
	Get(ctx context.Context, ns, key string) (json.RawMessage, error)
	GetRecord(ctx context.Context, ns, key string) (*MutableEntry, error)
	// Update applies fn to the present value. fn is never invoked for an
	// absent key.
	Update(ctx context.Context, ns, key string, fn func(json.RawMessage) (json.RawMessage, error)) (*MutableEntry, error)
	// Increment adds amount to a numeric value. A stored JSON null counts
	// as zero; negative results are allowed.
	Increment(ctx context.Context, ns, key string, amount float64) (*MutableEntry, error)
	Decrement(ctx context.Context, ns, key string, amount float64) (*MutableEntry, error)
	Exists(ctx context.Context, ns, key string) (bool, error)
	Delete(ctx context.Context, ns, key string) error
	// Purge is a pure alias of Delete: identical contract, identical error.
	Purge(ctx context.Context, ns, key string) error
	List(ctx context.Context, filter MutableFilter) ([]*MutableEntry, error)
	Count(ctx context.Context, filter MutableFilter) (int64, error)
	PurgeMany(ctx context.Context, filter MutableFilter) (*PurgeManyResult, error)
	PurgeNamespace(ctx context.Context, ns string) (int64, error)
	// Transaction executes ops in order according to the store's TxMode.
	// The first failing operation's error is returned; later operations do
	// not run.
	Transaction(ctx context.Context, ops []TxOp) (*TxOutcome, error)
	Close() error
}

// FactStore persists facts with per-fact version chains. The belief
// revision engine is the only writer on the supersede/append paths.
type FactStore interface {
	// Put inserts a new fact as version 1.
	Put(ctx context.Context, fact *Fact) error
	Get(ctx context.Context, id string) (*Fact, error)
	// GetActive returns not-yet-superseded facts for (subject, predicate),
	// most recent first.
	GetActive(ctx context.Context, spaceID, subject, predicate string) ([]*Fact, error)
	// AppendVersion appends content as a new version on the same fact
	// identity.
	AppendVersion(ctx context.Context, id string, content FactContent) (*Fact, error)
	// Supersede marks the fact invalid as of at. The fact drops out of
	// active listings but keeps its history.
	Supersede(ctx context.Context, id string, at time.Time) error
	// History returns all versions of the fact, earliest first, the
	// current version last.
	History(ctx context.Context, id string) ([]VersionSnapshot, error)
	List(ctx context.Context, filter FactFilter) ([]*Fact, error)
	Count(ctx context.Context, filter FactFilter) (int64, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// ConversationStore manages conversation logs and their messages.
type ConversationStore interface {
	Create(ctx context.Context, conv *Conversation) error
	Get(ctx context.Context, id string) (*Conversation, error)
	List(ctx context.Context, spaceID string, opts ListOpts) ([]*Conversation, error)
	SetStatus(ctx context.Context, id string, status ConversationStatus) error
	Delete(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, conversationID string, msg *Message) error
	// GetMessages returns the most recent limit messages in chronological order.
	GetMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	Count(ctx context.Context, spaceID string) (int64, error)
	CountMessages(ctx context.Context, spaceID string) (int64, error)
	Close() error
}

// MemoryStore manages semantic memories and their embedding vectors.
type MemoryStore interface {
	// Store inserts or replaces a memory. A nil embedding stores the
	// memory without a vector.
	Store(ctx context.Context, mem *Memory, embedding []float32) error
	Get(ctx context.Context, id string) (*Memory, error)
	Update(ctx context.Context, mem *Memory, embedding []float32) error
	Delete(ctx context.Context, id string) error
	// Search performs a k-nearest-neighbour search over the space.
	Search(ctx context.Context, spaceID string, query []float32, k int, includeArchived bool) ([]*MemoryResult, error)
	List(ctx context.Context, filter MemoryFilter) ([]*Memory, error)
	Count(ctx context.Context, filter MemoryFilter) (int64, error)
	SetArchived(ctx context.Context, id string, archived bool) error
	Close() error
}

// EntityStore manages stateful entities (contexts, spaces, agents) and
// their status transitions.
type EntityStore interface {
	Create(ctx context.Context, e *StatefulEntity) error
	Get(ctx context.Context, id string) (*StatefulEntity, error)
	// Transition moves the entity to status per the lifecycle rules:
	// unknown status values fail, no-op transitions succeed idempotently,
	// reaching "completed" stamps CompletedAt, and all non-status fields
	// are preserved verbatim. Never cascades to children.
	Transition(ctx context.Context, id string, to EntityStatus) (*StatefulEntity, error)
	List(ctx context.Context, filter EntityFilter) ([]*StatefulEntity, error)
	Count(ctx context.Context, filter EntityFilter) (int64, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
