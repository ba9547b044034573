// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package store

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BeliefEngine decides, for each newly extracted candidate fact, whether to
// ADD it, UPDATE an existing fact in place, SUPERSEDE a conflicting fact, or
// do nothing (NONE). All writes go through the FactStore; the engine never
// touches version chains directly.
//
// The set of active facts for a (subject, predicate) is the contended
// resource: the engine re-fetches it immediately before deciding on each
// candidate rather than holding a snapshot across the batch, keeping the
// race window to a single decide+apply step.
type BeliefEngine struct {
	facts  FactStore
	now    func() time.Time
	logger *slog.Logger
}

// NewBeliefEngine creates an engine over the given fact store.
func NewBeliefEngine(facts FactStore) *BeliefEngine {
	return &BeliefEngine{
		facts:  facts,
		now:    time.Now,
		logger: slog.Default(),
	}
}

// Revise runs full belief revision for each candidate in order and returns
// one Revision per candidate.
//
// Decision table per candidate:
//   - FactID set: explicit correction — append a version on that identity (UPDATE).
//   - no active fact for (subject, predicate): create one (ADD).
//   - active fact with the same object: no write (NONE, existing fact returned).
//   - active fact with a different object: the newer candidate wins when its
//     confidence is not lower than the incumbent's — the old fact's
//     ValidUntil is stamped and a new identity becomes current (SUPERSEDE).
//     A lower-confidence contradiction is discarded (NONE).
func (e *BeliefEngine) Revise(ctx context.Context, spaceID string, candidates []CandidateFact) ([]Revision, error) {
	if err := ValidateIdentifier("spaceId", spaceID); err != nil {
		return nil, err
	}

	revisions := make([]Revision, 0, len(candidates))
	for _, c := range candidates {
		if err := c.Validate(); err != nil {
			return nil, err
		}

		rev, err := e.reviseOne(ctx, spaceID, c)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, *rev)
	}
	return revisions, nil
}

func (e *BeliefEngine) reviseOne(ctx context.Context, spaceID string, c CandidateFact) (*Revision, error) {
	if c.FactID != "" {
		return e.applyUpdate(ctx, c)
	}

	// Fresh active-fact state per candidate; earlier candidates in the same
	// batch may have changed it.
	active, err := e.facts.GetActive(ctx, spaceID, c.Subject, c.Predicate)
	if err != nil {
		return nil, err
	}

	if len(active) == 0 {
		return e.applyAdd(ctx, spaceID, c)
	}

	for _, f := range active {
		if sameObject(f.Object, c.Object) {
			return &Revision{Action: RevisionNone, Fact: f}, nil
		}
	}

	// Conflicting object. GetActive orders most recent first.
	incumbent := active[0]
	if c.Confidence < incumbent.Confidence {
		e.logger.DebugContext(ctx, "belief revision kept incumbent fact",
			"subject", c.Subject,
			"predicate", c.Predicate,
			"incumbent_confidence", incumbent.Confidence,
			"candidate_confidence", c.Confidence,
		)
		return &Revision{Action: RevisionNone, Fact: incumbent}, nil
	}

	return e.applySupersede(ctx, spaceID, c, active)
}

// Dedup is the disabled-revision path: a candidate is stored as ADD unless
// an exact (subject, predicate, object) string match is already active, in
// which case it is NONE. No UPDATE or SUPERSEDE reasoning is attempted.
func (e *BeliefEngine) Dedup(ctx context.Context, spaceID string, candidates []CandidateFact) ([]Revision, error) {
	if err := ValidateIdentifier("spaceId", spaceID); err != nil {
		return nil, err
	}

	revisions := make([]Revision, 0, len(candidates))
	for _, c := range candidates {
		if err := c.Validate(); err != nil {
			return nil, err
		}

		active, err := e.facts.GetActive(ctx, spaceID, c.Subject, c.Predicate)
		if err != nil {
			return nil, err
		}

		var dup *Fact
		for _, f := range active {
			if f.Object == c.Object {
				dup = f
				break
			}
		}
		if dup != nil {
			revisions = append(revisions, Revision{Action: RevisionNone, Fact: dup})
			continue
		}

		rev, err := e.applyAdd(ctx, spaceID, c)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, *rev)
	}
	return revisions, nil
}

func (e *BeliefEngine) applyAdd(ctx context.Context, spaceID string, c CandidateFact) (*Revision, error) {
	now := e.now()
	fact := &Fact{
		ID:         uuid.NewString(),
		SpaceID:    spaceID,
		Subject:    c.Subject,
		Predicate:  c.Predicate,
		Object:     c.Object,
		FactType:   c.FactType,
		Confidence: c.Confidence,
		Tags:       c.Tags,
		SourceType: c.SourceType,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.facts.Put(ctx, fact); err != nil {
		return nil, err
	}
	return &Revision{Action: RevisionAdd, Fact: fact}, nil
}

func (e *BeliefEngine) applyUpdate(ctx context.Context, c CandidateFact) (*Revision, error) {
	if _, err := e.facts.Get(ctx, c.FactID); err != nil {
		return nil, err
	}

	updated, err := e.facts.AppendVersion(ctx, c.FactID, FactContent{
		Object:     c.Object,
		FactType:   c.FactType,
		Confidence: c.Confidence,
		Tags:       c.Tags,
		SourceType: c.SourceType,
	})
	if err != nil {
		return nil, err
	}
	return &Revision{Action: RevisionUpdate, Fact: updated, PreviousID: c.FactID}, nil
}

func (e *BeliefEngine) applySupersede(ctx context.Context, spaceID string, c CandidateFact, active []*Fact) (*Revision, error) {
	now := e.now()

	// Supersede every active fact on this (subject, predicate): default
	// policy allows at most one active fact per pair, and any extras from
	// earlier policies are retired along with the incumbent.
	for _, f := range active {
		if err := e.facts.Supersede(ctx, f.ID, now); err != nil {
			return nil, err
		}
	}

	fact := &Fact{
		ID:         uuid.NewString(),
		SpaceID:    spaceID,
		Subject:    c.Subject,
		Predicate:  c.Predicate,
		Object:     c.Object,
		FactType:   c.FactType,
		Confidence: c.Confidence,
		Tags:       c.Tags,
		SourceType: c.SourceType,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.facts.Put(ctx, fact); err != nil {
		return nil, err
	}

	return &Revision{Action: RevisionSupersede, Fact: fact, SupersededID: active[0].ID}, nil
}

// sameObject compares fact objects ignoring case and surrounding whitespace.
func sameObject(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
