// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/strata-dev/strata/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", newStores)
}

func newStores(dataPath string, cfg *store.StorageConfig) (*store.Stores, error) {
	// Track opened stores for cleanup on partial failure.
	var closers []interface{ Close() error }
	cleanup := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	vs, err := NewVersionStore(filepath.Join(dataPath, "records.db"))
	if err != nil {
		return nil, fmt.Errorf("creating version store: %w", err)
	}
	closers = append(closers, vs)

	ms, err := NewMutableStore(filepath.Join(dataPath, "mutable.db"), cfg.MaxValueBytes, cfg.TxMode)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("creating mutable store: %w", err)
	}
	closers = append(closers, ms)

	// Open beliefs.db once and share between FactStore and EntityStore to
	// avoid connection waste and WAL contention.
	beliefDB, err := sql.Open("sqlite3", filepath.Join(dataPath, "beliefs.db")+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("opening beliefs db: %w", err)
	}
	// Note: beliefDB is not added to closers twice; it's closed via fs.Close().

	fs, err := NewFactStoreWithDB(beliefDB)
	if err != nil {
		_ = beliefDB.Close()
		cleanup()
		return nil, fmt.Errorf("creating fact store: %w", err)
	}
	closers = append(closers, fs)

	es, err := NewEntityStoreWithDB(beliefDB)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("creating entity store: %w", err)
	}

	cs, err := NewConversationStore(filepath.Join(dataPath, "conversations.db"))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("creating conversation store: %w", err)
	}
	closers = append(closers, cs)

	mems, err := NewMemoryStore(filepath.Join(dataPath, "memories.db"), cfg.VectorDimensions)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("creating memory store: %w", err)
	}

	return &store.Stores{
		Versions:      vs,
		Mutable:       ms,
		Facts:         fs,
		Conversations: cs,
		Memories:      mems,
		Entities:      es,
	}, nil
}
