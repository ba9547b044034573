// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-dev/strata/internal/store"
	"github.com/strata-dev/strata/internal/store/sqlite"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func newEntityStore(t *testing.T) *sqlite.EntityStore {
	t.Helper()
	es, err := sqlite.NewEntityStore(testDBPath(t, "entities"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = es.Close() })
	return es
}

func TestEntityStore_CreateDefaultsStatus(t *testing.T) {
	ctx := context.Background()
	es := newEntityStore(t)

	require.NoError(t, es.Create(ctx, &store.StatefulEntity{
		ID:   "ctx-1",
		Kind: store.EntityKindContext,
		Name: "Q3 planning",
		Data: map[string]any{"owner": "ada"},
	}))

	got, err := es.Get(ctx, "ctx-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusActive, got.Status)
	assert.Equal(t, "ada", got.Data["owner"])
	assert.Nil(t, got.CompletedAt)
}

func TestEntityStore_TransitionStampsCompletedAt(t *testing.T) {
	ctx := context.Background()
	es := newEntityStore(t)

	require.NoError(t, es.Create(ctx, &store.StatefulEntity{
		ID:   "ctx-1",
		Kind: store.EntityKindContext,
		Name: "task",
		Data: map[string]any{"priority": "high"},
	}))

	got, err := es.Transition(ctx, "ctx-1", store.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	// Non-status fields survive the transition untouched.
	assert.Equal(t, "high", got.Data["priority"])
	assert.Equal(t, "task", got.Name)
}

func TestEntityStore_TransitionIdempotentNoOp(t *testing.T) {
	ctx := context.Background()
	es := newEntityStore(t)

	require.NoError(t, es.Create(ctx, &store.StatefulEntity{
		ID:   "ctx-1",
		Kind: store.EntityKindContext,
		Name: "task",
	}))

	first, err := es.Get(ctx, "ctx-1")
	require.NoError(t, err)

	got, err := es.Transition(ctx, "ctx-1", store.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, store.StatusActive, got.Status)
	// A no-op transition does not touch the row.
	assert.Equal(t, first.UpdatedAt.UnixNano(), got.UpdatedAt.UnixNano())
}

func TestEntityStore_TransitionRejectsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	es := newEntityStore(t)

	require.NoError(t, es.Create(ctx, &store.StatefulEntity{
		ID:   "space-1",
		Kind: store.EntityKindSpace,
		Name: "work",
	}))

	// "blocked" belongs to contexts, not spaces.
	_, err := es.Transition(ctx, "space-1", store.StatusBlocked)
	require.Error(t, err)
	assert.Equal(t, strataerr.CodeStatusInvalidValue, strataerr.CodeOf(err))

	// Within the enum, undeclared edges are still allowed.
	got, err := es.Transition(ctx, "space-1", store.StatusArchived)
	require.NoError(t, err)
	assert.Equal(t, store.StatusArchived, got.Status)
}

func TestEntityStore_TransitionNeverCascades(t *testing.T) {
	ctx := context.Background()
	es := newEntityStore(t)

	require.NoError(t, es.Create(ctx, &store.StatefulEntity{
		ID:   "parent",
		Kind: store.EntityKindContext,
		Name: "epic",
	}))
	require.NoError(t, es.Create(ctx, &store.StatefulEntity{
		ID:       "child",
		Kind:     store.EntityKindContext,
		Name:     "subtask",
		ParentID: "parent",
	}))

	_, err := es.Transition(ctx, "parent", store.StatusCancelled)
	require.NoError(t, err)

	child, err := es.Get(ctx, "child")
	require.NoError(t, err)
	assert.Equal(t, store.StatusActive, child.Status)
	assert.Equal(t, "parent", child.ParentID)
}

func TestEntityStore_ListCountParity(t *testing.T) {
	ctx := context.Background()
	es := newEntityStore(t)

	for _, e := range []*store.StatefulEntity{
		{ID: "a-1", Kind: store.EntityKindAgent, Name: "helper"},
		{ID: "a-2", Kind: store.EntityKindAgent, Name: "scribe"},
		{ID: "c-1", Kind: store.EntityKindContext, Name: "task", ParentID: "root"},
	} {
		require.NoError(t, es.Create(ctx, e))
	}
	_, err := es.Transition(ctx, "a-2", store.StatusRetired)
	require.NoError(t, err)

	filter := store.EntityFilter{Kind: store.EntityKindAgent, Status: store.StatusActive}
	list, err := es.List(ctx, filter)
	require.NoError(t, err)
	n, err := es.Count(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(len(list)), n)
	assert.Len(t, list, 1)

	byParent, err := es.List(ctx, store.EntityFilter{Kind: store.EntityKindContext, ParentID: "root"})
	require.NoError(t, err)
	require.Len(t, byParent, 1)
	assert.Equal(t, "c-1", byParent[0].ID)
}

func TestEntityStore_Delete(t *testing.T) {
	ctx := context.Background()
	es := newEntityStore(t)

	require.NoError(t, es.Create(ctx, &store.StatefulEntity{
		ID:   "ctx-1",
		Kind: store.EntityKindContext,
		Name: "task",
	}))
	require.NoError(t, es.Delete(ctx, "ctx-1"))

	_, err := es.Get(ctx, "ctx-1")
	require.Error(t, err)
	assert.Equal(t, strataerr.CodeEntityNotFound, strataerr.CodeOf(err))

	err = es.Delete(ctx, "ctx-1")
	require.Error(t, err)
	assert.True(t, strataerr.IsNotFound(err))
}
