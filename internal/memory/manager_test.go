// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package memory_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-dev/strata/internal/graphsync"
	"github.com/strata-dev/strata/internal/memory"
	"github.com/strata-dev/strata/internal/store"
	_ "github.com/strata-dev/strata/internal/store/sqlite"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func testStores(t *testing.T) *store.Stores {
	t.Helper()
	dir, err := os.MkdirTemp("", "strata-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	stores, err := store.NewStores(&store.StorageConfig{VectorDimensions: 4}, dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })
	return stores
}

// testEmbed maps text deterministically onto four dimensions.
func testEmbed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 4)
	for i, r := range text {
		v[i%4] += float32(r%13) / 13
	}
	return v, nil
}

func TestManager_RememberLogsConversation(t *testing.T) {
	ctx := context.Background()
	stores := testStores(t)
	mgr := memory.NewManager(stores, memory.Hooks{}, nil)

	result, err := mgr.Remember(ctx, memory.RememberRequest{
		SpaceID:   "space-1",
		UserText:  "my favorite color is blue",
		AgentText: "noted",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.ConversationID)
	require.Len(t, result.MessageIDs, 2)
	assert.Nil(t, result.FactRevisions)

	msgs, err := stores.Conversations.GetMessages(ctx, result.ConversationID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, store.MessageRoleAgent, msgs[1].Role)

	// A second turn reuses the conversation.
	again, err := mgr.Remember(ctx, memory.RememberRequest{
		SpaceID:        "space-1",
		ConversationID: result.ConversationID,
		UserText:       "thanks",
	})
	require.NoError(t, err)
	assert.Equal(t, result.ConversationID, again.ConversationID)
	assert.Len(t, again.MessageIDs, 1)

	_, err = mgr.Remember(ctx, memory.RememberRequest{
		SpaceID:        "space-1",
		ConversationID: "ghost",
		UserText:       "hi",
	})
	require.Error(t, err)
	assert.True(t, strataerr.IsNotFound(err))
}

func TestManager_RememberStoresSearchableMemory(t *testing.T) {
	ctx := context.Background()
	stores := testStores(t)
	mgr := memory.NewManager(stores, memory.Hooks{Embed: testEmbed}, nil)

	result, err := mgr.Remember(ctx, memory.RememberRequest{
		SpaceID:  "space-1",
		UserText: "I work on compilers",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.MemoryID)

	hits, err := mgr.Search(ctx, "space-1", "I work on compilers", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, result.MemoryID, hits[0].Memory.ID)
	assert.InDelta(t, 0.0, hits[0].Score, 0.001)
}

func TestManager_ExtractContentHookReducesMemory(t *testing.T) {
	ctx := context.Background()
	stores := testStores(t)

	hooks := memory.Hooks{
		ExtractContent: func(_ context.Context, userText, _ string) (string, error) {
			if strings.Contains(userText, "nothing") {
				return "", nil
			}
			return "summary: " + userText, nil
		},
	}
	mgr := memory.NewManager(stores, hooks, nil)

	result, err := mgr.Remember(ctx, memory.RememberRequest{SpaceID: "space-1", UserText: "big decision made"})
	require.NoError(t, err)
	require.NotEmpty(t, result.MemoryID)

	mem, err := mgr.Get(ctx, result.MemoryID)
	require.NoError(t, err)
	assert.Equal(t, "summary: big decision made", mem.Content)

	// An empty extraction skips the memory layer for the turn.
	result, err = mgr.Remember(ctx, memory.RememberRequest{SpaceID: "space-1", UserText: "nothing important"})
	require.NoError(t, err)
	assert.Empty(t, result.MemoryID)
}

func TestManager_FactRevisionsOnlyWhenRevisionRan(t *testing.T) {
	ctx := context.Background()
	stores := testStores(t)

	extract := func(_ context.Context, userText, _ string) ([]store.CandidateFact, error) {
		return []store.CandidateFact{{
			Subject:    "user",
			Predicate:  "favorite_color",
			Object:     userText,
			FactType:   store.FactTypePreference,
			Confidence: 80,
		}}, nil
	}
	mgr := memory.NewManager(stores, memory.Hooks{ExtractFacts: extract}, nil)

	// Revision on: the result reports what happened.
	result, err := mgr.Remember(ctx, memory.RememberRequest{
		SpaceID:        "space-1",
		UserText:       "blue",
		BeliefRevision: true,
	})
	require.NoError(t, err)
	require.Len(t, result.FactRevisions, 1)
	assert.Equal(t, store.RevisionAdd, result.FactRevisions[0].Action)

	// A contradicting turn supersedes.
	result, err = mgr.Remember(ctx, memory.RememberRequest{
		SpaceID:        "space-1",
		UserText:       "green",
		BeliefRevision: true,
	})
	require.NoError(t, err)
	require.Len(t, result.FactRevisions, 1)
	assert.Equal(t, store.RevisionSupersede, result.FactRevisions[0].Action)

	// Revision off: facts still dedup-stored, but the field stays absent.
	result, err = mgr.Remember(ctx, memory.RememberRequest{
		SpaceID:  "space-1",
		UserText: "red",
	})
	require.NoError(t, err)
	assert.Nil(t, result.FactRevisions)

	facts, err := stores.Facts.List(ctx, store.FactFilter{SpaceID: "space-1"})
	require.NoError(t, err)
	// green (active after supersede) + red (dedup add); blue superseded.
	assert.Len(t, facts, 2)
}

func TestManager_SearchFallsBackToRecency(t *testing.T) {
	ctx := context.Background()
	stores := testStores(t)
	mgr := memory.NewManager(stores, memory.Hooks{}, nil)

	for _, content := range []string{"first", "second", "third"} {
		require.NoError(t, mgr.Store(ctx, &store.Memory{SpaceID: "space-1", Content: content}))
	}

	hits, err := mgr.Search(ctx, "space-1", "anything", 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	// Without an embedder the order is recency, newest first.
	assert.Equal(t, "third", hits[0].Memory.Content)
}

func TestManager_ArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	stores := testStores(t)
	mgr := memory.NewManager(stores, memory.Hooks{Embed: testEmbed}, graphsync.Noop())

	result, err := mgr.Remember(ctx, memory.RememberRequest{
		SpaceID:  "space-1",
		UserText: "remember this",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.MemoryID)

	require.NoError(t, mgr.Archive(ctx, result.ConversationID))

	conv, err := stores.Conversations.Get(ctx, result.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, store.ConversationStatusArchived, conv.Status)

	// Archived memories drop out of default search.
	hits, err := mgr.Search(ctx, "space-1", "remember this", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	mem, err := mgr.Get(ctx, result.MemoryID)
	require.NoError(t, err)
	assert.True(t, mem.Archived)

	require.NoError(t, mgr.RestoreFromArchive(ctx, result.ConversationID))

	hits, err = mgr.Search(ctx, "space-1", "remember this", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, result.MemoryID, hits[0].Memory.ID)
}

func TestManager_ForgetDeletes(t *testing.T) {
	ctx := context.Background()
	stores := testStores(t)
	mgr := memory.NewManager(stores, memory.Hooks{}, nil)

	mem := &store.Memory{SpaceID: "space-1", Content: "ephemeral"}
	require.NoError(t, mgr.Store(ctx, mem))
	require.NotEmpty(t, mem.ID)

	require.NoError(t, mgr.Forget(ctx, mem.ID))

	_, err := mgr.Get(ctx, mem.ID)
	require.Error(t, err)
	assert.Equal(t, strataerr.CodeMemoryNotFound, strataerr.CodeOf(err))
}
