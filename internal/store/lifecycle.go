// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package store

import (
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// statusesByKind is the authoritative status enum per entity kind. A
// transition to a status outside the kind's enum always fails.
var statusesByKind = map[EntityKind][]EntityStatus{
	EntityKindContext: {StatusActive, StatusBlocked, StatusCompleted, StatusCancelled},
	EntityKindSpace:   {StatusActive, StatusArchived},
	EntityKindAgent:   {StatusActive, StatusInactive, StatusRetired},
}

// declaredEdges documents the expected transition graph per kind. The
// validator is deliberately permissive: an undeclared edge between two
// valid statuses is accepted, matching long-observed caller behaviour.
// KnownEdge exposes the declared graph for callers that want to warn on
// unusual transitions.
var declaredEdges = map[EntityKind]map[EntityStatus][]EntityStatus{
	EntityKindContext: {
		StatusActive:    {StatusBlocked, StatusCompleted, StatusCancelled},
		StatusBlocked:   {StatusActive, StatusCancelled},
		StatusCompleted: {StatusActive},
		// no edges originate from cancelled
	},
	EntityKindSpace: {
		StatusActive:   {StatusArchived},
		StatusArchived: {StatusActive},
	},
	EntityKindAgent: {
		StatusActive:   {StatusInactive, StatusRetired},
		StatusInactive: {StatusActive, StatusRetired},
	},
}

// Valid reports whether the kind is a known entity family.
func (k EntityKind) Valid() bool {
	_, ok := statusesByKind[k]
	return ok
}

// ValidStatus reports whether status belongs to the kind's enum.
func ValidStatus(kind EntityKind, status EntityStatus) bool {
	for _, s := range statusesByKind[kind] {
		if s == status {
			return true
		}
	}
	return false
}

// KnownEdge reports whether (from, to) is in the kind's declared transition
// graph. No-op transitions are always known.
func KnownEdge(kind EntityKind, from, to EntityStatus) bool {
	if from == to {
		return true
	}
	for _, s := range declaredEdges[kind][from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition validates a requested status change. It rejects unknown
// target statuses and accepts everything else, including no-op transitions
// and edges outside the declared graph.
func CheckTransition(kind EntityKind, from, to EntityStatus) error {
	if !kind.Valid() {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput, "unknown entity kind %q", kind)
	}
	if !ValidStatus(kind, to) {
		return strataerr.Errorf(strataerr.CodeStatusInvalidValue,
			"status %q is not valid for %s entities", to, kind)
	}
	if !ValidStatus(kind, from) {
		// A stored status outside the enum means corrupt data, not bad input.
		return strataerr.Errorf(strataerr.CodeStoreDatabaseFailure,
			"stored status %q is not valid for %s entities", from, kind)
	}
	return nil
}

// InitialStatus returns the creation-time status for a kind.
func InitialStatus(kind EntityKind) EntityStatus {
	return StatusActive
}

// Validate checks that a StatefulEntity has all required fields set.
func (e StatefulEntity) Validate() error {
	if e.ID == "" {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "entity: ID is required")
	}
	if !e.Kind.Valid() {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput, "entity: unknown kind %q", e.Kind)
	}
	if !ValidStatus(e.Kind, e.Status) {
		return strataerr.Errorf(strataerr.CodeStatusInvalidValue,
			"entity: status %q is not valid for %s entities", e.Status, e.Kind)
	}
	if e.ParentID != "" && e.Kind != EntityKindContext {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput,
			"entity: only contexts may reference a parent, not %s", e.Kind)
	}
	return nil
}
