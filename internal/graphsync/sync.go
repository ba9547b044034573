// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package graphsync is the optional best-effort secondary sync path:
// applied fact revisions are mirrored to an external graph endpoint.
// Failures are logged and swallowed; the primary write path never depends
// on this package succeeding.
package graphsync

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// Config is resolved once at construction. The sync path activates only
// when both gates hold: Enabled is set AND credentials are present. The
// core never reads environment variables itself.
type Config struct {
	Endpoint string
	APIKey   string
	Enabled  bool
}

// credentialsPresent reports whether the connection half of the gate holds.
func (c Config) credentialsPresent() bool {
	return c.Endpoint != "" && c.APIKey != ""
}

// Syncer forwards applied fact revisions to a secondary destination.
// Implementations are best-effort and never return errors.
type Syncer interface {
	SyncRevisions(ctx context.Context, spaceID string, revisions []store.Revision)
}

type noopSyncer struct{}

func (noopSyncer) SyncRevisions(context.Context, string, []store.Revision) {}

// Noop returns a Syncer that does nothing.
func Noop() Syncer { return noopSyncer{} }

// New resolves the two-gate config. Disabled or unconfigured setups get the
// noop syncer silently; the only warned misconfiguration is an explicit
// opt-in without credentials.
func New(cfg Config) Syncer {
	return NewWithLogger(cfg, slog.Default())
}

// NewWithLogger is New with an explicit logger.
func NewWithLogger(cfg Config, logger *slog.Logger) Syncer {
	if !cfg.Enabled {
		return Noop()
	}
	if !cfg.credentialsPresent() {
		logger.Warn("graph sync enabled but credentials are missing; sync disabled")
		return Noop()
	}
	return &httpSyncer{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// httpSyncer posts revision batches as JSON.
type httpSyncer struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

type syncPayload struct {
	SpaceID   string           `json:"spaceId"`
	Revisions []store.Revision `json:"revisions"`
}

func (s *httpSyncer) SyncRevisions(ctx context.Context, spaceID string, revisions []store.Revision) {
	// Only applied revisions are worth mirroring.
	applied := make([]store.Revision, 0, len(revisions))
	for _, rev := range revisions {
		if rev.Action != store.RevisionNone {
			applied = append(applied, rev)
		}
	}
	if len(applied) == 0 {
		return
	}

	if err := s.post(ctx, syncPayload{SpaceID: spaceID, Revisions: applied}); err != nil {
		s.logger.WarnContext(ctx, "graph sync failed",
			"space_id", spaceID,
			"revisions", len(applied),
			"error", err,
		)
	}
}

func (s *httpSyncer) post(ctx context.Context, payload syncPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return strataerr.Errorf(strataerr.CodeGraphSyncConnectionFailure, "marshalling sync payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return strataerr.Errorf(strataerr.CodeGraphSyncConnectionFailure, "building sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return strataerr.Errorf(strataerr.CodeGraphSyncConnectionFailure, "posting revisions: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return strataerr.Errorf(strataerr.CodeGraphSyncConnectionFailure,
			"graph endpoint returned %s", resp.Status)
	}
	return nil
}
