// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package store

import (
	"sync"

	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// defaultVectorDimensions is the default embedding dimension (matches OpenAI text-embedding-ada-002).
const defaultVectorDimensions = 1536

// Stores bundles every store a Strata deployment needs.
type Stores struct {
	Versions      VersionStore
	Mutable       MutableStore
	Facts         FactStore
	Conversations ConversationStore
	Memories      MemoryStore
	Entities      EntityStore
}

// Close closes all stores and joins any errors.
func (s *Stores) Close() error {
	var errs []error
	for _, c := range []interface{ Close() error }{
		s.Versions, s.Mutable, s.Facts, s.Conversations, s.Memories, s.Entities,
	} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return strataerr.Join(errs...)
	}
	return nil
}

// Factory creates all stores for a data directory.
type Factory func(dataPath string, cfg *StorageConfig) (*Stores, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// NewStores creates all stores under the given data directory.
func NewStores(cfg *StorageConfig, dataPath string) (*Stores, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, strataerr.Errorf(strataerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	resolved := *cfg
	if resolved.VectorDimensions <= 0 {
		resolved.VectorDimensions = defaultVectorDimensions
	}
	if resolved.MaxValueBytes <= 0 {
		resolved.MaxValueBytes = DefaultMaxValueBytes
	}
	if resolved.TxMode == "" {
		resolved.TxMode = TxModeSequential
	}

	return factory(dataPath, &resolved)
}
