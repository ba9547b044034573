// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package store

import (
	"regexp"

	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// MaxListLimit bounds every list operation's page size.
const MaxListLimit = 1000

// DefaultListLimit applies when a filter leaves Limit at zero.
const DefaultListLimit = 100

// DefaultMaxValueBytes caps mutable value payloads when the config does not
// override it.
const DefaultMaxValueBytes = 1 << 20 // 1 MiB

// identifierRe matches namespaces, keys, record types, and ids. Structural
// validation happens here, before any backend call.
var identifierRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,127}$`)

// ValidIdentifier reports whether s is a well-formed namespace, key, type,
// or id.
func ValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// ValidateIdentifier fails fast with a descriptive message naming the field.
func ValidateIdentifier(field, s string) error {
	if s == "" {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput, "%s is required", field)
	}
	if !ValidIdentifier(s) {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput,
			"%s %q is malformed: must match %s", field, s, identifierRe.String())
	}
	return nil
}

// ValidateKeyPair validates a (namespace, key) pair.
func ValidateKeyPair(ns, key string) error {
	if err := ValidateIdentifier("namespace", ns); err != nil {
		return err
	}
	return ValidateIdentifier("key", key)
}

// ValidateRecordRef validates a (type, id) pair.
func ValidateRecordRef(typ, id string) error {
	if err := ValidateIdentifier("type", typ); err != nil {
		return err
	}
	return ValidateIdentifier("id", id)
}

// Valid reports whether the sort order is recognised. Empty is valid and
// means ascending.
func (o SortOrder) Valid() bool {
	switch o {
	case "", SortAsc, SortDesc:
		return true
	default:
		return false
	}
}

// Validate checks filter shape; the limit ceiling applies to List only, so
// Count accepts the same filter.
func (f MutableFilter) Validate() error {
	if err := ValidateIdentifier("namespace", f.Namespace); err != nil {
		return err
	}
	if f.Limit < 0 || f.Limit > MaxListLimit {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput,
			"limit must be between 0 and %d, got %d", MaxListLimit, f.Limit)
	}
	switch f.SortBy {
	case "", "key", "created_at", "updated_at":
	default:
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput, "sortBy %q is not a sortable column", f.SortBy)
	}
	if !f.SortOrder.Valid() {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput, "sortOrder %q must be asc or desc", f.SortOrder)
	}
	return nil
}

// Validate checks filter shape for versioned record listings.
func (f RecordFilter) Validate() error {
	if err := ValidateIdentifier("type", f.Type); err != nil {
		return err
	}
	if f.Limit < 0 || f.Limit > MaxListLimit {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput,
			"limit must be between 0 and %d, got %d", MaxListLimit, f.Limit)
	}
	return nil
}

// Valid reports whether the fact type is a known classification.
func (t FactType) Valid() bool {
	switch t {
	case FactTypeIdentity, FactTypePreference, FactTypeKnowledge,
		FactTypeObservation, FactTypeEvent, FactTypeRelationship:
		return true
	default:
		return false
	}
}

// Validate checks that a candidate fact is structurally complete before the
// revision engine touches the backend.
func (c CandidateFact) Validate() error {
	if c.Subject == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "candidate fact: subject is required")
	}
	if c.Predicate == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "candidate fact: predicate is required")
	}
	if c.Object == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "candidate fact: object is required")
	}
	if !c.FactType.Valid() {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput, "candidate fact: unknown factType %q", c.FactType)
	}
	if c.Confidence < 0 || c.Confidence > 100 {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput,
			"candidate fact: confidence must be in [0,100], got %g", c.Confidence)
	}
	return nil
}

// Validate checks that the Fact has all required fields set correctly.
func (f Fact) Validate() error {
	if f.ID == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "fact: ID is required")
	}
	if err := ValidateIdentifier("spaceId", f.SpaceID); err != nil {
		return err
	}
	if f.Subject == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "fact: subject is required")
	}
	if f.Predicate == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "fact: predicate is required")
	}
	if !f.FactType.Valid() {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput, "fact: unknown factType %q", f.FactType)
	}
	if f.Confidence < 0 || f.Confidence > 100 {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput,
			"fact: confidence must be in [0,100], got %g", f.Confidence)
	}
	return nil
}

// Valid reports whether the role is a known message role.
func (r MessageRole) Valid() bool {
	switch r {
	case MessageRoleUser, MessageRoleAgent:
		return true
	default:
		return false
	}
}

// Valid reports whether the status is a known conversation state.
func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationStatusActive, ConversationStatusArchived:
		return true
	default:
		return false
	}
}

// Validate checks that the Conversation has all required fields set.
func (c Conversation) Validate() error {
	if c.ID == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "conversation: ID is required")
	}
	if err := ValidateIdentifier("spaceId", c.SpaceID); err != nil {
		return err
	}
	if !c.Status.Valid() {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput, "conversation: invalid status %q", c.Status)
	}
	return nil
}

// Validate checks that the Message has all required fields set.
func (m Message) Validate() error {
	if m.ID == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "message: ID is required")
	}
	if m.ConversationID == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "message: ConversationID is required")
	}
	if !m.Role.Valid() {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput, "message: invalid role %q", m.Role)
	}
	if m.Content == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "message: Content is required")
	}
	return nil
}

// Validate checks that a Memory has all required fields set.
func (m Memory) Validate() error {
	if m.ID == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "memory: ID is required")
	}
	if err := ValidateIdentifier("spaceId", m.SpaceID); err != nil {
		return err
	}
	if m.Content == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "memory: Content is required")
	}
	return nil
}

// Validate checks one batch operation's shape. Existence requirements are
// checked at execution (or prevalidation) time, not here.
func (op TxOp) Validate() error {
	switch op.Op {
	case TxOpSet, TxOpUpdate:
		if len(op.Value) == 0 {
			return strataerr.Errorf(strataerr.CodeStoreInvalidInput, "%s %s/%s: value is required", op.Op, op.Namespace, op.Key)
		}
	case TxOpIncrement, TxOpDecrement, TxOpDelete:
	default:
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput, "unknown batch op %q", op.Op)
	}
	return ValidateKeyPair(op.Namespace, op.Key)
}
