// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package graphsync_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-dev/strata/internal/graphsync"
	"github.com/strata-dev/strata/internal/store"
)

func TestNew_TwoGateResolution(t *testing.T) {
	tests := []struct {
		name     string
		cfg      graphsync.Config
		wantWarn bool
	}{
		{name: "disabled without creds", cfg: graphsync.Config{}},
		{name: "disabled with creds", cfg: graphsync.Config{Endpoint: "http://x", APIKey: "k"}},
		{
			name:     "enabled without creds warns",
			cfg:      graphsync.Config{Enabled: true},
			wantWarn: true,
		},
		{
			name:     "enabled with partial creds warns",
			cfg:      graphsync.Config{Enabled: true, Endpoint: "http://x"},
			wantWarn: true,
		},
		{name: "enabled with creds", cfg: graphsync.Config{Enabled: true, Endpoint: "http://x", APIKey: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			syncer := graphsync.NewWithLogger(tt.cfg, logger)
			require.NotNil(t, syncer)

			// The only configuration that says anything at construction is
			// an explicit opt-in without credentials.
			if tt.wantWarn {
				assert.Contains(t, buf.String(), "credentials are missing")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestSyncRevisions_PostsAppliedOnly(t *testing.T) {
	var got *struct {
		SpaceID   string           `json:"spaceId"`
		Revisions []store.Revision `json:"revisions"`
	}
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		got = &struct {
			SpaceID   string           `json:"spaceId"`
			Revisions []store.Revision `json:"revisions"`
		}{}
		require.NoError(t, json.Unmarshal(body, got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	syncer := graphsync.New(graphsync.Config{Enabled: true, Endpoint: srv.URL, APIKey: "secret"})

	syncer.SyncRevisions(context.Background(), "space-1", []store.Revision{
		{Action: store.RevisionAdd, Fact: &store.Fact{ID: "f-1"}},
		{Action: store.RevisionNone, Fact: &store.Fact{ID: "f-2"}},
		{Action: store.RevisionSupersede, Fact: &store.Fact{ID: "f-3"}, SupersededID: "f-0"},
	})

	require.NotNil(t, got)
	assert.Equal(t, "space-1", got.SpaceID)
	// The NONE revision is filtered out before posting.
	require.Len(t, got.Revisions, 2)
	assert.Equal(t, store.RevisionAdd, got.Revisions[0].Action)
	assert.Equal(t, store.RevisionSupersede, got.Revisions[1].Action)
	assert.Equal(t, "Bearer secret", auth)
}

func TestSyncRevisions_AllNoneSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	syncer := graphsync.New(graphsync.Config{Enabled: true, Endpoint: srv.URL, APIKey: "k"})
	syncer.SyncRevisions(context.Background(), "space-1", []store.Revision{
		{Action: store.RevisionNone},
	})
	assert.False(t, called)
}

func TestSyncRevisions_FailureIsLoggedNotReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	syncer := graphsync.NewWithLogger(graphsync.Config{Enabled: true, Endpoint: srv.URL, APIKey: "k"}, logger)

	// No panic, no error surfaced; the failure is only a warning.
	syncer.SyncRevisions(context.Background(), "space-1", []store.Revision{
		{Action: store.RevisionAdd, Fact: &store.Fact{ID: "f-1"}},
	})
	assert.Contains(t, buf.String(), "graph sync failed")
}
