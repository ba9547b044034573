// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package store

import (
	"context"
)

// Aggregator computes live statistics by counting underlying records. No
// counter is persisted anywhere: every call re-runs the same filters the
// corresponding list operations use, so count and list can never disagree.
// Staleness is bounded only by the backend's read-after-write consistency.
type Aggregator struct {
	conversations ConversationStore
	memories      MemoryStore
	facts         FactStore
}

// NewAggregator creates an Aggregator over the given stores.
func NewAggregator(convs ConversationStore, mems MemoryStore, facts FactStore) *Aggregator {
	return &Aggregator{
		conversations: convs,
		memories:      mems,
		facts:         facts,
	}
}

// SpaceStats sums independent per-collection counts for a memory space.
// Facts count active facts only; memories exclude archived entries,
// matching each collection's default list behaviour.
func (a *Aggregator) SpaceStats(ctx context.Context, spaceID string) (*SpaceStats, error) {
	if err := ValidateIdentifier("spaceId", spaceID); err != nil {
		return nil, err
	}

	convs, err := a.conversations.Count(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	msgs, err := a.conversations.CountMessages(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	mems, err := a.memories.Count(ctx, MemoryFilter{SpaceID: spaceID})
	if err != nil {
		return nil, err
	}

	facts, err := a.facts.Count(ctx, FactFilter{SpaceID: spaceID})
	if err != nil {
		return nil, err
	}

	return &SpaceStats{
		Conversations: convs,
		Messages:      msgs,
		Memories:      mems,
		Facts:         facts,
		Total:         convs + msgs + mems + facts,
	}, nil
}
