// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/strata-dev/strata/internal/store"
)

func (s *Server) registerRoutes() {
	// Mutable key-value endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "get-kv",
		Method:      http.MethodGet,
		Path:        "/api/v1/kv/{namespace}/{key}",
		Summary:     "Get a mutable entry",
		Tags:        []string{"kv"},
	}, s.handleGetKV)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-kv",
		Method:      http.MethodGet,
		Path:        "/api/v1/kv/{namespace}",
		Summary:     "List mutable entries in a namespace",
		Tags:        []string{"kv"},
	}, s.handleListKV)

	// Versioned record endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "get-record",
		Method:      http.MethodGet,
		Path:        "/api/v1/records/{type}/{id}",
		Summary:     "Get the current version of a record",
		Tags:        []string{"records"},
	}, s.handleGetRecord)

	huma.Register(s.api, huma.Operation{
		OperationID: "record-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/records/{type}/{id}/history",
		Summary:     "Get every retained version of a record",
		Tags:        []string{"records"},
	}, s.handleRecordHistory)

	// Space endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "list-facts",
		Method:      http.MethodGet,
		Path:        "/api/v1/spaces/{spaceId}/facts",
		Summary:     "List facts in a space",
		Tags:        []string{"spaces"},
	}, s.handleListFacts)

	huma.Register(s.api, huma.Operation{
		OperationID: "space-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/spaces/{spaceId}/stats",
		Summary:     "Live per-space counts",
		Tags:        []string{"spaces"},
	}, s.handleSpaceStats)

	// Conversation endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "get-conversation",
		Method:      http.MethodGet,
		Path:        "/api/v1/conversations/{id}",
		Summary:     "Get a conversation and its recent messages",
		Tags:        []string{"conversations"},
	}, s.handleGetConversation)
}

// --- Request/Response types for huma ---

type getKVInput struct {
	Namespace string `path:"namespace"`
	Key       string `path:"key"`
}
type getKVOutput struct {
	Body store.MutableEntry
}

type listKVInput struct {
	Namespace string `path:"namespace"`
	Prefix    string `query:"prefix" required:"false"`
	UserID    string `query:"userId" required:"false"`
	Limit     int    `query:"limit" required:"false"`
}
type listKVOutput struct {
	Body struct {
		Entries []*store.MutableEntry `json:"entries"`
		Total   int64                 `json:"total"`
	}
}

type recordInput struct {
	Type string `path:"type"`
	ID   string `path:"id"`
}
type getRecordOutput struct {
	Body store.VersionedRecord
}
type recordHistoryOutput struct {
	Body struct {
		Versions []store.VersionSnapshot `json:"versions"`
	}
}

type listFactsInput struct {
	SpaceID         string `path:"spaceId"`
	FactType        string `query:"factType" required:"false"`
	IncludeInactive bool   `query:"includeInactive" required:"false"`
	Limit           int    `query:"limit" required:"false"`
}
type listFactsOutput struct {
	Body struct {
		Facts []*store.Fact `json:"facts"`
		Total int64         `json:"total"`
	}
}

type spaceStatsInput struct {
	SpaceID string `path:"spaceId"`
}
type spaceStatsOutput struct {
	Body store.SpaceStats
}

type getConversationInput struct {
	ID    string `path:"id"`
	Limit int    `query:"limit" required:"false"`
}
type getConversationOutput struct {
	Body struct {
		Conversation *store.Conversation `json:"conversation"`
		Messages     []*store.Message    `json:"messages"`
	}
}

// --- Handlers ---

func (s *Server) handleGetKV(ctx context.Context, in *getKVInput) (*getKVOutput, error) {
	entry, err := s.stores.Mutable.GetRecord(ctx, in.Namespace, in.Key)
	if err != nil {
		return nil, apiError(err)
	}
	return &getKVOutput{Body: *entry}, nil
}

func (s *Server) handleListKV(ctx context.Context, in *listKVInput) (*listKVOutput, error) {
	filter := store.MutableFilter{
		Namespace: in.Namespace,
		KeyPrefix: in.Prefix,
		UserID:    in.UserID,
		Limit:     in.Limit,
	}

	entries, err := s.stores.Mutable.List(ctx, filter)
	if err != nil {
		return nil, apiError(err)
	}
	total, err := s.stores.Mutable.Count(ctx, filter)
	if err != nil {
		return nil, apiError(err)
	}

	out := &listKVOutput{}
	out.Body.Entries = entries
	out.Body.Total = total
	return out, nil
}

func (s *Server) handleGetRecord(ctx context.Context, in *recordInput) (*getRecordOutput, error) {
	rec, err := s.stores.Versions.GetCurrent(ctx, in.Type, in.ID)
	if err != nil {
		return nil, apiError(err)
	}
	if rec == nil {
		return nil, huma.Error404NotFound("record not found")
	}
	return &getRecordOutput{Body: *rec}, nil
}

func (s *Server) handleRecordHistory(ctx context.Context, in *recordInput) (*recordHistoryOutput, error) {
	versions, err := s.stores.Versions.GetHistory(ctx, in.Type, in.ID)
	if err != nil {
		return nil, apiError(err)
	}

	out := &recordHistoryOutput{}
	out.Body.Versions = versions
	return out, nil
}

func (s *Server) handleListFacts(ctx context.Context, in *listFactsInput) (*listFactsOutput, error) {
	filter := store.FactFilter{
		SpaceID:         in.SpaceID,
		FactType:        store.FactType(in.FactType),
		IncludeInactive: in.IncludeInactive,
		Limit:           in.Limit,
	}

	facts, err := s.stores.Facts.List(ctx, filter)
	if err != nil {
		return nil, apiError(err)
	}
	total, err := s.stores.Facts.Count(ctx, filter)
	if err != nil {
		return nil, apiError(err)
	}

	out := &listFactsOutput{}
	out.Body.Facts = facts
	out.Body.Total = total
	return out, nil
}

func (s *Server) handleSpaceStats(ctx context.Context, in *spaceStatsInput) (*spaceStatsOutput, error) {
	stats, err := s.stats.SpaceStats(ctx, in.SpaceID)
	if err != nil {
		return nil, apiError(err)
	}
	return &spaceStatsOutput{Body: *stats}, nil
}

func (s *Server) handleGetConversation(ctx context.Context, in *getConversationInput) (*getConversationOutput, error) {
	conv, err := s.stores.Conversations.Get(ctx, in.ID)
	if err != nil {
		return nil, apiError(err)
	}

	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}
	msgs, err := s.stores.Conversations.GetMessages(ctx, in.ID, limit)
	if err != nil {
		return nil, apiError(err)
	}

	out := &getConversationOutput{}
	out.Body.Conversation = conv
	out.Body.Messages = msgs
	return out, nil
}
