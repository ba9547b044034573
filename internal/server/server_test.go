// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-dev/strata/internal/server"
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

func newTestServer(t *testing.T) (*server.Server, *store.Stores) {
	t.Helper()
	stores := testStores(t)
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, stores)
	require.NoError(t, err)
	return srv, stores
}

func doGet(t *testing.T, srv *server.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_New_EmptyListenAddr(t *testing.T) {
	_, err := server.New(server.Config{}, testStores(t))
	require.Error(t, err)
	assert.True(t, strataerr.HasCode(err, strataerr.CodeServerStartFailure))
	assert.Contains(t, err.Error(), "listen address is required")
}

func TestServer_New_NilStores(t *testing.T) {
	_, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stores are required")
}

func TestServer_HealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doGet(t, srv, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestServer_OpenAPISpec(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doGet(t, srv, "/openapi.json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "get-kv")
	assert.Contains(t, w.Body.String(), "space-stats")
}

func TestServer_GetKV(t *testing.T) {
	ctx := context.Background()
	srv, stores := newTestServer(t)

	_, err := stores.Mutable.Set(ctx, "prefs", "theme", json.RawMessage(`"dark"`), store.SetOpts{})
	require.NoError(t, err)

	w := doGet(t, srv, "/api/v1/kv/prefs/theme")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"dark"`)

	w = doGet(t, srv, "/api/v1/kv/prefs/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_ListKV(t *testing.T) {
	ctx := context.Background()
	srv, stores := newTestServer(t)

	for _, key := range []string{"a:1", "a:2", "b:1"} {
		_, err := stores.Mutable.Set(ctx, "ns", key, json.RawMessage(`1`), store.SetOpts{})
		require.NoError(t, err)
	}

	w := doGet(t, srv, "/api/v1/kv/ns?prefix=a:")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Entries []store.MutableEntry `json:"entries"`
		Total   int64                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Entries, 2)
	assert.EqualValues(t, 2, body.Total)
}

func TestServer_GetRecordAndHistory(t *testing.T) {
	ctx := context.Background()
	srv, stores := newTestServer(t)

	w := doGet(t, srv, "/api/v1/records/note/n-1")
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, err := stores.Versions.Append(ctx, "note", "n-1", json.RawMessage(`{"v":1}`), store.AppendOpts{})
	require.NoError(t, err)
	_, err = stores.Versions.Append(ctx, "note", "n-1", json.RawMessage(`{"v":2}`), store.AppendOpts{})
	require.NoError(t, err)

	w = doGet(t, srv, "/api/v1/records/note/n-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rec store.VersionedRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, 2, rec.Version)

	w = doGet(t, srv, "/api/v1/records/note/n-1/history")
	require.Equal(t, http.StatusOK, w.Code)

	var hist struct {
		Versions []store.VersionSnapshot `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist.Versions, 2)
	assert.Equal(t, 1, hist.Versions[0].Version)
	assert.Equal(t, 2, hist.Versions[1].Version)
}

func TestServer_ListFacts(t *testing.T) {
	ctx := context.Background()
	srv, stores := newTestServer(t)

	require.NoError(t, stores.Facts.Put(ctx, &store.Fact{
		ID:         "f-1",
		SpaceID:    "space-1",
		Subject:    "user",
		Predicate:  "prefers",
		Object:     "tea",
		FactType:   store.FactTypePreference,
		Confidence: 80,
	}))

	w := doGet(t, srv, "/api/v1/spaces/space-1/facts")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Facts []store.Fact `json:"facts"`
		Total int64        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Facts, 1)
	assert.Equal(t, "tea", body.Facts[0].Object)
	assert.EqualValues(t, 1, body.Total)
}

func TestServer_SpaceStats(t *testing.T) {
	ctx := context.Background()
	srv, stores := newTestServer(t)

	conv := &store.Conversation{ID: "c-1", SpaceID: "space-1"}
	require.NoError(t, stores.Conversations.Create(ctx, conv))
	require.NoError(t, stores.Conversations.AppendMessage(ctx, "c-1", &store.Message{
		Role:    store.MessageRoleUser,
		Content: "hello",
	}))

	w := doGet(t, srv, "/api/v1/spaces/space-1/stats")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stats store.SpaceStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats.Conversations)
	assert.EqualValues(t, 1, stats.Messages)
	assert.EqualValues(t, 2, stats.Total)
}

func TestServer_SpaceStats_BadSpaceID(t *testing.T) {
	srv, _ := newTestServer(t)

	// Spaces with characters outside the identifier alphabet are rejected.
	w := doGet(t, srv, "/api/v1/spaces/bad%20space/stats")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_GetConversation(t *testing.T) {
	ctx := context.Background()
	srv, stores := newTestServer(t)

	conv := &store.Conversation{ID: "c-1", SpaceID: "space-1", Title: "greetings"}
	require.NoError(t, stores.Conversations.Create(ctx, conv))
	for _, content := range []string{"hi", "hello"} {
		require.NoError(t, stores.Conversations.AppendMessage(ctx, "c-1", &store.Message{
			Role:    store.MessageRoleUser,
			Content: content,
		}))
	}

	w := doGet(t, srv, "/api/v1/conversations/c-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Conversation store.Conversation `json:"conversation"`
		Messages     []store.Message    `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "greetings", body.Conversation.Title)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "hi", body.Messages[0].Content)

	w = doGet(t, srv, "/api/v1/conversations/ghost")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_CORSHeaders(t *testing.T) {
	stores := testStores(t)
	srv, err := server.New(server.Config{
		ListenAddr:  "127.0.0.1:0",
		CORSOrigins: []string{"http://localhost:5173"},
	}, stores)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/kv/ns", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_GracefulShutdown(t *testing.T) {
	srv, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	<-ctx.Done()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down within timeout")
	}
}
