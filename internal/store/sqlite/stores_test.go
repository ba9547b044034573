// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-dev/strata/internal/store"
	_ "github.com/strata-dev/strata/internal/store/sqlite"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func TestNewStores_SqliteBackend(t *testing.T) {
	ctx := context.Background()
	dir := testDir(t)

	stores, err := store.NewStores(&store.StorageConfig{VectorDimensions: 4}, dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })

	// Every store is wired and usable.
	_, err = stores.Versions.Append(ctx, "doc", "d-1", json.RawMessage(`{}`), store.AppendOpts{})
	require.NoError(t, err)

	_, err = stores.Mutable.Set(ctx, "ns", "k", json.RawMessage(`1`), store.SetOpts{})
	require.NoError(t, err)

	require.NoError(t, stores.Facts.Put(ctx, &store.Fact{
		ID: "f-1", SpaceID: "space-1", Subject: "user", Predicate: "name",
		Object: "Ada", FactType: store.FactTypeIdentity, Confidence: 90,
	}))

	require.NoError(t, stores.Conversations.Create(ctx, &store.Conversation{ID: "c-1", SpaceID: "space-1"}))

	require.NoError(t, stores.Memories.Store(ctx, &store.Memory{
		ID: "m-1", SpaceID: "space-1", Content: "hello",
	}, []float32{1, 0, 0, 0}))

	require.NoError(t, stores.Entities.Create(ctx, &store.StatefulEntity{
		ID: "e-1", Kind: store.EntityKindContext, Name: "task",
	}))
}

func TestNewStores_UnknownBackend(t *testing.T) {
	_, err := store.NewStores(&store.StorageConfig{Backend: "etherpad"}, testDir(t))
	require.Error(t, err)
	assert.Equal(t, strataerr.CodeStoreBackendUnsupported, strataerr.CodeOf(err))
}
