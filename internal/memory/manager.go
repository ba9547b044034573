// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package memory is the orchestration layer over the individual stores: it
// combines conversation logging, optional embedding, and optional fact
// extraction with belief revision behind a single Remember call, and ties
// conversation archival to the vector memories it produced.
package memory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/strata-dev/strata/internal/graphsync"
	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// EmbedFunc turns text into an embedding vector. Absence means memories are
// stored without vectors and Search falls back to recency order.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// ExtractContentFunc optionally reduces a conversation turn to the content
// worth remembering. Returning an empty string skips the memory layer for
// this turn.
type ExtractContentFunc func(ctx context.Context, userText, agentText string) (string, error)

// ExtractFactsFunc extracts candidate facts from a conversation turn.
// Absence skips the fact layer entirely.
type ExtractFactsFunc func(ctx context.Context, userText, agentText string) ([]store.CandidateFact, error)

// Hooks are the caller-supplied collaborators. All are optional.
type Hooks struct {
	Embed          EmbedFunc
	ExtractContent ExtractContentFunc
	ExtractFacts   ExtractFactsFunc
}

// Manager orchestrates the stores for the remember/forget/search surface.
type Manager struct {
	stores *store.Stores
	belief *store.BeliefEngine
	hooks  Hooks
	graph  graphsync.Syncer
	logger *slog.Logger
}

// NewManager creates a Manager. graph may be nil, in which case revisions
// are not forwarded anywhere.
func NewManager(stores *store.Stores, hooks Hooks, graph graphsync.Syncer) *Manager {
	if graph == nil {
		graph = graphsync.Noop()
	}
	return &Manager{
		stores: stores,
		belief: store.NewBeliefEngine(stores.Facts),
		hooks:  hooks,
		graph:  graph,
		logger: slog.Default(),
	}
}

// RememberRequest is one conversation turn to be remembered.
type RememberRequest struct {
	SpaceID        string            `json:"spaceId"`
	ConversationID string            `json:"conversationId,omitempty"` // created when empty
	UserText       string            `json:"userText"`
	AgentText      string            `json:"agentText"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	// BeliefRevision selects full revision over plain dedup for any
	// extracted facts.
	BeliefRevision bool `json:"beliefRevision"`
}

// RememberResult reports what a Remember call persisted. FactRevisions is
// populated only when belief revision actually ran; the dedup path leaves
// it nil.
type RememberResult struct {
	ConversationID string           `json:"conversationId"`
	MessageIDs     []string         `json:"messageIds"`
	MemoryID       string           `json:"memoryId,omitempty"`
	FactRevisions  []store.Revision `json:"factRevisions,omitempty"`
}

// Remember logs a conversation turn and feeds it through the optional
// embedding and fact-extraction hooks.
func (m *Manager) Remember(ctx context.Context, req RememberRequest) (*RememberResult, error) {
	if err := store.ValidateIdentifier("spaceId", req.SpaceID); err != nil {
		return nil, err
	}
	if req.UserText == "" && req.AgentText == "" {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "remember: at least one of userText or agentText is required")
	}

	convID, err := m.ensureConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &RememberResult{ConversationID: convID}

	for _, turn := range []struct {
		role store.MessageRole
		text string
	}{
		{store.MessageRoleUser, req.UserText},
		{store.MessageRoleAgent, req.AgentText},
	} {
		if turn.text == "" {
			continue
		}
		msg := &store.Message{Role: turn.role, Content: turn.text, Metadata: req.Metadata}
		if err := m.stores.Conversations.AppendMessage(ctx, convID, msg); err != nil {
			return nil, err
		}
		result.MessageIDs = append(result.MessageIDs, msg.ID)
	}

	content, err := m.extractContent(ctx, req)
	if err != nil {
		return nil, err
	}
	if content != "" {
		memoryID, err := m.storeMemory(ctx, req.SpaceID, convID, content)
		if err != nil {
			return nil, err
		}
		result.MemoryID = memoryID
	}

	if m.hooks.ExtractFacts != nil {
		revisions, err := m.reviseFacts(ctx, req)
		if err != nil {
			return nil, err
		}
		if req.BeliefRevision {
			result.FactRevisions = revisions
		}
		m.graph.SyncRevisions(ctx, req.SpaceID, revisions)
	}

	return result, nil
}

func (m *Manager) ensureConversation(ctx context.Context, req RememberRequest) (string, error) {
	if req.ConversationID != "" {
		if _, err := m.stores.Conversations.Get(ctx, req.ConversationID); err != nil {
			return "", err
		}
		return req.ConversationID, nil
	}

	conv := &store.Conversation{ID: uuid.NewString(), SpaceID: req.SpaceID}
	if err := m.stores.Conversations.Create(ctx, conv); err != nil {
		return "", err
	}
	return conv.ID, nil
}

func (m *Manager) extractContent(ctx context.Context, req RememberRequest) (string, error) {
	if m.hooks.ExtractContent != nil {
		return m.hooks.ExtractContent(ctx, req.UserText, req.AgentText)
	}

	parts := make([]string, 0, 2)
	if req.UserText != "" {
		parts = append(parts, req.UserText)
	}
	if req.AgentText != "" {
		parts = append(parts, req.AgentText)
	}
	return strings.Join(parts, "\n"), nil
}

func (m *Manager) storeMemory(ctx context.Context, spaceID, convID, content string) (string, error) {
	var embedding []float32
	if m.hooks.Embed != nil {
		var err error
		embedding, err = m.hooks.Embed(ctx, content)
		if err != nil {
			return "", err
		}
	}

	mem := &store.Memory{
		ID:       uuid.NewString(),
		SpaceID:  spaceID,
		Content:  content,
		Metadata: map[string]any{"conversationId": convID},
	}
	if err := m.stores.Memories.Store(ctx, mem, embedding); err != nil {
		return "", err
	}
	return mem.ID, nil
}

func (m *Manager) reviseFacts(ctx context.Context, req RememberRequest) ([]store.Revision, error) {
	candidates, err := m.hooks.ExtractFacts(ctx, req.UserText, req.AgentText)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	if req.BeliefRevision {
		return m.belief.Revise(ctx, req.SpaceID, candidates)
	}
	return m.belief.Dedup(ctx, req.SpaceID, candidates)
}

// Forget deletes a single memory by id.
func (m *Manager) Forget(ctx context.Context, memoryID string) error {
	return m.stores.Memories.Delete(ctx, memoryID)
}

// Get returns a memory by id.
func (m *Manager) Get(ctx context.Context, memoryID string) (*store.Memory, error) {
	return m.stores.Memories.Get(ctx, memoryID)
}

// Search finds memories relevant to query. With an Embed hook it is a KNN
// search over the space; without one it degrades to recency order.
func (m *Manager) Search(ctx context.Context, spaceID, query string, k int) ([]*store.MemoryResult, error) {
	if err := store.ValidateIdentifier("spaceId", spaceID); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 10
	}

	if m.hooks.Embed != nil && query != "" {
		embedding, err := m.hooks.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		return m.stores.Memories.Search(ctx, spaceID, embedding, k, false)
	}

	mems, err := m.stores.Memories.List(ctx, store.MemoryFilter{SpaceID: spaceID, Limit: k})
	if err != nil {
		return nil, err
	}
	results := make([]*store.MemoryResult, 0, len(mems))
	for _, mem := range mems {
		results = append(results, &store.MemoryResult{Memory: mem})
	}
	return results, nil
}

// Store persists a standalone memory outside any conversation.
func (m *Manager) Store(ctx context.Context, mem *store.Memory) error {
	if mem != nil && mem.ID == "" {
		mem.ID = uuid.NewString()
	}

	var embedding []float32
	if m.hooks.Embed != nil && mem != nil && mem.Content != "" {
		var err error
		embedding, err = m.hooks.Embed(ctx, mem.Content)
		if err != nil {
			return err
		}
	}
	return m.stores.Memories.Store(ctx, mem, embedding)
}

// Update replaces a memory's content and re-embeds it when possible.
func (m *Manager) Update(ctx context.Context, mem *store.Memory) error {
	var embedding []float32
	if m.hooks.Embed != nil && mem != nil && mem.Content != "" {
		var err error
		embedding, err = m.hooks.Embed(ctx, mem.Content)
		if err != nil {
			return err
		}
	}
	return m.stores.Memories.Update(ctx, mem, embedding)
}

// Delete removes a memory by id.
func (m *Manager) Delete(ctx context.Context, memoryID string) error {
	return m.stores.Memories.Delete(ctx, memoryID)
}

// Archive marks a conversation archived and flags every memory it produced,
// dropping them out of default search and list results. Nothing is deleted.
func (m *Manager) Archive(ctx context.Context, conversationID string) error {
	return m.setArchived(ctx, conversationID, true)
}

// RestoreFromArchive reverses Archive.
func (m *Manager) RestoreFromArchive(ctx context.Context, conversationID string) error {
	return m.setArchived(ctx, conversationID, false)
}

func (m *Manager) setArchived(ctx context.Context, conversationID string, archived bool) error {
	conv, err := m.stores.Conversations.Get(ctx, conversationID)
	if err != nil {
		return err
	}

	status := store.ConversationStatusActive
	if archived {
		status = store.ConversationStatusArchived
	}
	if err := m.stores.Conversations.SetStatus(ctx, conversationID, status); err != nil {
		return err
	}

	// Memories carry their source conversation in metadata; flip the flag on
	// every one of them, including already-archived entries.
	mems, err := m.stores.Memories.List(ctx, store.MemoryFilter{
		SpaceID:         conv.SpaceID,
		IncludeArchived: true,
		Limit:           store.MaxListLimit,
	})
	if err != nil {
		return err
	}
	for _, mem := range mems {
		if mem.Metadata["conversationId"] != conversationID {
			continue
		}
		if mem.Archived == archived {
			continue
		}
		if err := m.stores.Memories.SetArchived(ctx, mem.ID, archived); err != nil {
			return err
		}
	}
	return nil
}
