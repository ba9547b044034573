// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package store

import (
	"encoding/json"
	"time"
)

// --- Versioned record types ---

// VersionSnapshot is one archived version of a record. Timestamp is the
// moment the version was created (for version 1, the record's CreatedAt).
type VersionSnapshot struct {
	Version   int             `json:"version"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// VersionedRecord is an append-only version chain for a (type, id) pair.
// Data holds the current version; History holds superseded versions in
// strictly increasing version order, earliest first.
//
// Invariants (pre-pruning): Version == len(History)+1 and
// History[i].Version == i+1. History entries are never mutated once
// written; pruning may drop the oldest entries but never the current
// version, and never renumbers survivors.
type VersionedRecord struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Version   int             `json:"version"`
	Data      json.RawMessage `json:"data"`
	History   []VersionSnapshot `json:"history,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// AppendOpts carries optional fields for VersionStore.Append.
// Metadata keys are merged over the retained metadata of the previous
// version; keys not mentioned are preserved, not nulled.
type AppendOpts struct {
	Metadata map[string]any
	UserID   string
}

// RecordFilter selects versioned records of a single type.
type RecordFilter struct {
	Type          string // required
	UserID        string
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Limit         int
}

// PurgeVersionsResult reports the outcome of a history pruning pass.
type PurgeVersionsResult struct {
	VersionsPurged    int `json:"versionsPurged"`
	VersionsRemaining int `json:"versionsRemaining"`
}

// PurgeResult reports the outcome of deleting an entire version chain.
type PurgeResult struct {
	Deleted         bool `json:"deleted"`
	VersionsDeleted int  `json:"versionsDeleted"`
}

// --- Mutable key-value types ---

// MutableEntry is a single-current-value entry for a (namespace, key) pair.
// There is no history: writes overwrite in place. AccessCount is a
// best-effort read metric and must not be relied on for correctness.
type MutableEntry struct {
	Namespace   string          `json:"namespace"`
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	UserID      string          `json:"userId,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	AccessCount int64           `json:"accessCount"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// SetOpts carries optional fields for MutableStore.Set.
type SetOpts struct {
	UserID   string
	Metadata map[string]any
}

// SortOrder controls list ordering direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// MutableFilter selects mutable entries within a namespace. Count and List
// share this shape so count(filter) always equals len(list(filter)) modulo
// the Limit, which Count ignores. An impossible time range (UpdatedAfter
// after UpdatedBefore) selects nothing; it is not an error.
type MutableFilter struct {
	Namespace     string // required
	KeyPrefix     string
	UserID        string
	UpdatedAfter  time.Time
	UpdatedBefore time.Time
	Limit         int    // <= MaxListLimit; 0 uses the default
	SortBy        string // "key", "created_at", "updated_at"
	SortOrder     SortOrder
}

// PurgeManyResult reports a filtered bulk deletion.
type PurgeManyResult struct {
	Deleted int      `json:"deleted"`
	Keys    []string `json:"keys"`
}

// --- Batch operation types ---

// TxOpKind identifies one operation in a mutable-store batch.
type TxOpKind string

const (
	TxOpSet       TxOpKind = "set"
	TxOpUpdate    TxOpKind = "update" // set requiring prior existence
	TxOpIncrement TxOpKind = "increment"
	TxOpDecrement TxOpKind = "decrement"
	TxOpDelete    TxOpKind = "delete"
)

// TxOp is one operation in a Transaction batch. Value applies to set/update;
// Amount applies to increment/decrement (zero means 1).
type TxOp struct {
	Op        TxOpKind        `json:"op"`
	Namespace string          `json:"namespace"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value,omitempty"`
	Amount    float64         `json:"amount,omitempty"`
	UserID    string          `json:"userId,omitempty"`
}

// TxResult is the outcome of one executed batch operation.
type TxResult struct {
	Op        TxOpKind      `json:"op"`
	Namespace string        `json:"namespace"`
	Key       string        `json:"key"`
	Entry     *MutableEntry `json:"entry,omitempty"` // nil for delete
}

// TxOutcome summarises a Transaction batch. In sequential mode, operations
// executed before a failure are not rolled back; OperationsExecuted reports
// how many were applied.
type TxOutcome struct {
	Success            bool       `json:"success"`
	OperationsExecuted int        `json:"operationsExecuted"`
	Results            []TxResult `json:"results"`
}

// TxMode selects the batch execution guarantee.
type TxMode string

const (
	// TxModeSequential executes operations in order and stops at the first
	// failure, leaving earlier operations applied. This is the compatible
	// default.
	TxModeSequential TxMode = "sequential"
	// TxModePrevalidate checks every operation against a snapshot of the
	// store (plus the effects of earlier operations in the same batch)
	// before applying any of them, so a batch that would fail applies
	// nothing.
	TxModePrevalidate TxMode = "prevalidate"
)

// --- Fact types ---

// FactType classifies an extracted fact.
type FactType string

const (
	FactTypeIdentity     FactType = "identity"
	FactTypePreference   FactType = "preference"
	FactTypeKnowledge    FactType = "knowledge"
	FactTypeObservation  FactType = "observation"
	FactTypeEvent        FactType = "event"
	FactTypeRelationship FactType = "relationship"
)

// Fact is a subject-predicate-object assertion with its own version chain.
// A fact with ValidUntil set has been superseded: it is excluded from
// active listings and counts but remains reachable through explicit
// history access.
type Fact struct {
	ID         string         `json:"id"`
	SpaceID    string         `json:"spaceId"`
	Subject    string         `json:"subject"`
	Predicate  string         `json:"predicate"`
	Object     string         `json:"object"`
	FactType   FactType       `json:"factType"`
	Confidence float64        `json:"confidence"` // 0..100
	Tags       []string       `json:"tags,omitempty"`
	SourceType string         `json:"sourceType,omitempty"`
	ValidUntil *time.Time     `json:"validUntil,omitempty"`
	Version    int            `json:"version"`
	History    []VersionSnapshot `json:"history,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// FactContent is the mutable portion of a fact, appended as a new version
// on an UPDATE revision.
type FactContent struct {
	Object     string   `json:"object"`
	FactType   FactType `json:"factType"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags,omitempty"`
	SourceType string   `json:"sourceType,omitempty"`
}

// CandidateFact is a newly extracted fact awaiting a belief-revision
// decision. FactID, when set, names an existing fact the caller is
// explicitly correcting.
type CandidateFact struct {
	FactID     string   `json:"factId,omitempty"`
	Subject    string   `json:"subject"`
	Predicate  string   `json:"predicate"`
	Object     string   `json:"object"`
	FactType   FactType `json:"factType"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags,omitempty"`
	SourceType string   `json:"sourceType,omitempty"`
}

// FactFilter selects facts in a space. Superseded facts are excluded
// unless IncludeInactive is set.
type FactFilter struct {
	SpaceID         string // required
	Subject         string
	Predicate       string
	FactType        FactType
	Tag             string
	IncludeInactive bool
	Limit           int
}

// RevisionAction is the belief-revision decision for one candidate fact.
type RevisionAction string

const (
	RevisionAdd       RevisionAction = "ADD"
	RevisionUpdate    RevisionAction = "UPDATE"
	RevisionSupersede RevisionAction = "SUPERSEDE"
	RevisionNone      RevisionAction = "NONE"
)

// Revision records one belief-revision decision and its resulting fact.
// SupersededID is set for SUPERSEDE; PreviousID is set for UPDATE.
type Revision struct {
	Action       RevisionAction `json:"action"`
	Fact         *Fact          `json:"fact"`
	SupersededID string         `json:"supersededFactId,omitempty"`
	PreviousID   string         `json:"previousFactId,omitempty"`
}

// --- Conversation types ---

// ConversationStatus is the lifecycle state of a conversation log.
type ConversationStatus string

const (
	ConversationStatusActive   ConversationStatus = "active"
	ConversationStatusArchived ConversationStatus = "archived"
)

// Conversation is an append-only log of user/agent exchanges in a space.
type Conversation struct {
	ID        string             `json:"id"`
	SpaceID   string             `json:"spaceId"`
	ContextID string             `json:"contextId,omitempty"`
	Title     string             `json:"title,omitempty"`
	Status    ConversationStatus `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// MessageRole identifies the speaker of one conversation message.
type MessageRole string

const (
	MessageRoleUser  MessageRole = "user"
	MessageRoleAgent MessageRole = "agent"
)

// Message is a single conversation turn half. IDs are ULIDs so that
// lexical order matches creation order.
type Message struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversationId"`
	Role           MessageRole       `json:"role"`
	Content        string            `json:"content"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// --- Semantic memory types ---

// Memory is a semantic memory entry, optionally backed by an embedding
// vector. A memory stored without an embedding is still listable and
// retrievable but does not participate in similarity search.
type Memory struct {
	ID        string         `json:"id"`
	SpaceID   string         `json:"spaceId"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Archived  bool           `json:"archived"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// MemoryResult is one similarity-search hit. Score is a distance metric:
// lower is more similar, 0.0 is an exact match.
type MemoryResult struct {
	Memory *Memory `json:"memory"`
	Score  float64 `json:"score"`
}

// MemoryFilter selects memories in a space. Archived memories are excluded
// unless IncludeArchived is set.
type MemoryFilter struct {
	SpaceID         string // required
	IncludeArchived bool
	Limit           int
}

// --- Stateful entity types ---

// EntityKind identifies a stateful entity family, each with its own
// status enum.
type EntityKind string

const (
	EntityKindContext EntityKind = "context"
	EntityKindSpace   EntityKind = "space"
	EntityKindAgent   EntityKind = "agent"
)

// EntityStatus is a lifecycle state drawn from the owning kind's enum.
type EntityStatus string

const (
	StatusActive    EntityStatus = "active"
	StatusBlocked   EntityStatus = "blocked"
	StatusCompleted EntityStatus = "completed"
	StatusCancelled EntityStatus = "cancelled"
	StatusArchived  EntityStatus = "archived"
	StatusInactive  EntityStatus = "inactive"
	StatusRetired   EntityStatus = "retired"
)

// StatefulEntity is a context, memory space, or agent. Data and Metadata
// are preserved verbatim across status transitions. Contexts reference
// their parent by ID only; parents never hold inline child references.
type StatefulEntity struct {
	ID          string         `json:"id"`
	Kind        EntityKind     `json:"kind"`
	Name        string         `json:"name"`
	Status      EntityStatus   `json:"status"`
	Data        map[string]any `json:"data,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ParentID    string         `json:"parentId,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// EntityFilter selects stateful entities.
type EntityFilter struct {
	Kind     EntityKind // required
	Status   EntityStatus
	ParentID string
	Limit    int
}

// --- Aggregate statistics ---

// SpaceStats are live per-space counts. Every field is computed by the same
// filter its list operation uses — there is no persisted counter to drift.
type SpaceStats struct {
	Conversations int64 `json:"conversations"`
	Messages      int64 `json:"messages"`
	Memories      int64 `json:"memories"`
	Facts         int64 `json:"facts"` // active facts only
	Total         int64 `json:"total"`
}

// --- Query options ---

// ListOpts provides pagination parameters for list operations.
type ListOpts struct {
	Limit  int
	Offset int
}
