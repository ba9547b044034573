// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-dev/strata/internal/store"
	"github.com/strata-dev/strata/internal/store/sqlite"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func newVersionStore(t *testing.T) *sqlite.VersionStore {
	t.Helper()
	vs, err := sqlite.NewVersionStore(testDBPath(t, "records"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vs.Close() })
	return vs
}

func TestVersionStore_AppendBuildsChain(t *testing.T) {
	ctx := context.Background()
	vs := newVersionStore(t)

	rec, err := vs.Append(ctx, "profile", "user-1", json.RawMessage(`{"name":"Ada"}`), store.AppendOpts{})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)
	assert.Empty(t, rec.History)

	rec, err = vs.Append(ctx, "profile", "user-1", json.RawMessage(`{"name":"Ada L"}`), store.AppendOpts{})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
	require.Len(t, rec.History, 1)
	assert.Equal(t, 1, rec.History[0].Version)
	assert.JSONEq(t, `{"name":"Ada"}`, string(rec.History[0].Data))

	// CreatedAt is pinned to version 1; UpdatedAt tracks the latest append.
	assert.False(t, rec.UpdatedAt.Before(rec.CreatedAt))
}

func TestVersionStore_ChainInvariantsOverManyAppends(t *testing.T) {
	ctx := context.Background()
	vs := newVersionStore(t)

	const versions = 25
	for i := 1; i <= versions; i++ {
		data := json.RawMessage(fmt.Sprintf(`{"rev":%d}`, i))
		rec, err := vs.Append(ctx, "doc", "d-1", data, store.AppendOpts{})
		require.NoError(t, err)
		assert.Equal(t, i, rec.Version)
		assert.Len(t, rec.History, i-1)
	}

	rec, err := vs.GetCurrent(ctx, "doc", "d-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, versions, rec.Version)
	for i, snap := range rec.History {
		assert.Equal(t, i+1, snap.Version)
	}

	history, err := vs.GetHistory(ctx, "doc", "d-1")
	require.NoError(t, err)
	require.Len(t, history, versions)
	assert.Equal(t, versions, history[versions-1].Version)
}

func TestVersionStore_GetCurrentAbsentIsNil(t *testing.T) {
	ctx := context.Background()
	vs := newVersionStore(t)

	rec, err := vs.GetCurrent(ctx, "profile", "nobody")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestVersionStore_GetVersion(t *testing.T) {
	ctx := context.Background()
	vs := newVersionStore(t)

	for i := 1; i <= 3; i++ {
		_, err := vs.Append(ctx, "doc", "d-1", json.RawMessage(fmt.Sprintf(`{"rev":%d}`, i)), store.AppendOpts{})
		require.NoError(t, err)
	}

	snap, err := vs.GetVersion(ctx, "doc", "d-1", 2)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.JSONEq(t, `{"rev":2}`, string(snap.Data))

	// Current version is reachable the same way.
	snap, err = vs.GetVersion(ctx, "doc", "d-1", 3)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.JSONEq(t, `{"rev":3}`, string(snap.Data))

	// A version that never existed is nil, not an error.
	snap, err = vs.GetVersion(ctx, "doc", "d-1", 9)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestVersionStore_GetAtTimestamp(t *testing.T) {
	ctx := context.Background()
	vs := newVersionStore(t)

	before := time.Now().Add(-time.Second)

	_, err := vs.Append(ctx, "doc", "d-1", json.RawMessage(`{"rev":1}`), store.AppendOpts{})
	require.NoError(t, err)
	afterV1 := time.Now()
	time.Sleep(5 * time.Millisecond)

	_, err = vs.Append(ctx, "doc", "d-1", json.RawMessage(`{"rev":2}`), store.AppendOpts{})
	require.NoError(t, err)

	// Before the record existed: nil.
	snap, err := vs.GetAtTimestamp(ctx, "doc", "d-1", before)
	require.NoError(t, err)
	assert.Nil(t, snap)

	// Between v1 and v2: v1 was current.
	snap, err = vs.GetAtTimestamp(ctx, "doc", "d-1", afterV1)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.JSONEq(t, `{"rev":1}`, string(snap.Data))

	// Now: current version.
	snap, err = vs.GetAtTimestamp(ctx, "doc", "d-1", time.Now())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.JSONEq(t, `{"rev":2}`, string(snap.Data))
}

func TestVersionStore_MetadataMergesAcrossAppends(t *testing.T) {
	ctx := context.Background()
	vs := newVersionStore(t)

	_, err := vs.Append(ctx, "doc", "d-1", json.RawMessage(`{}`), store.AppendOpts{
		Metadata: map[string]any{"source": "import", "batch": "a"},
	})
	require.NoError(t, err)

	rec, err := vs.Append(ctx, "doc", "d-1", json.RawMessage(`{}`), store.AppendOpts{
		Metadata: map[string]any{"batch": "b"},
	})
	require.NoError(t, err)

	assert.Equal(t, "import", rec.Metadata["source"])
	assert.Equal(t, "b", rec.Metadata["batch"])
}

func TestVersionStore_ListCountParity(t *testing.T) {
	ctx := context.Background()
	vs := newVersionStore(t)

	for i := range 5 {
		id := fmt.Sprintf("u-%d", i)
		opts := store.AppendOpts{}
		if i%2 == 0 {
			opts.UserID = "alice"
		}
		_, err := vs.Append(ctx, "profile", id, json.RawMessage(`{}`), opts)
		require.NoError(t, err)
	}

	filter := store.RecordFilter{Type: "profile", UserID: "alice"}
	recs, err := vs.List(ctx, filter)
	require.NoError(t, err)
	n, err := vs.Count(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(len(recs)), n)
	assert.Len(t, recs, 3)

	// An impossible time range selects nothing rather than erroring.
	impossible := store.RecordFilter{
		Type:          "profile",
		CreatedAfter:  time.Now().Add(time.Hour),
		CreatedBefore: time.Now().Add(-time.Hour),
	}
	recs, err = vs.List(ctx, impossible)
	require.NoError(t, err)
	assert.Empty(t, recs)
	n, err = vs.Count(ctx, impossible)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVersionStore_PurgeVersions(t *testing.T) {
	ctx := context.Background()
	vs := newVersionStore(t)

	for i := 1; i <= 10; i++ {
		_, err := vs.Append(ctx, "doc", "d-1", json.RawMessage(fmt.Sprintf(`{"rev":%d}`, i)), store.AppendOpts{})
		require.NoError(t, err)
	}

	result, err := vs.PurgeVersions(ctx, "doc", "d-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 7, result.VersionsPurged)
	assert.Equal(t, 3, result.VersionsRemaining)

	history, err := vs.GetHistory(ctx, "doc", "d-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	// The current version survives pruning; the oldest entries are dropped.
	assert.Equal(t, 8, history[0].Version)
	assert.Equal(t, 10, history[2].Version)

	// Pruned versions are gone; retained ones still resolve.
	snap, err := vs.GetVersion(ctx, "doc", "d-1", 2)
	require.NoError(t, err)
	assert.Nil(t, snap)
	snap, err = vs.GetVersion(ctx, "doc", "d-1", 9)
	require.NoError(t, err)
	require.NotNil(t, snap)

	// Keeping more than exists is a no-op.
	result, err = vs.PurgeVersions(ctx, "doc", "d-1", 50)
	require.NoError(t, err)
	assert.Zero(t, result.VersionsPurged)
	assert.Equal(t, 3, result.VersionsRemaining)
}

func TestVersionStore_PurgeVersionsUnknownRecord(t *testing.T) {
	ctx := context.Background()
	vs := newVersionStore(t)

	_, err := vs.PurgeVersions(ctx, "doc", "ghost", 1)
	require.Error(t, err)
	assert.Equal(t, strataerr.CodeRecordNotFound, strataerr.CodeOf(err))
}

func TestVersionStore_Purge(t *testing.T) {
	ctx := context.Background()
	vs := newVersionStore(t)

	for i := 1; i <= 4; i++ {
		_, err := vs.Append(ctx, "doc", "d-1", json.RawMessage(`{}`), store.AppendOpts{})
		require.NoError(t, err)
	}

	result, err := vs.Purge(ctx, "doc", "d-1")
	require.NoError(t, err)
	assert.True(t, result.Deleted)
	assert.Equal(t, 4, result.VersionsDeleted)

	rec, err := vs.GetCurrent(ctx, "doc", "d-1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = vs.Purge(ctx, "doc", "d-1")
	require.Error(t, err)
	assert.True(t, strataerr.IsNotFound(err))
}
