// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package store

// StorageConfig controls which backend the store factory uses and the
// boundary limits it enforces.
type StorageConfig struct {
	Backend          string // "sqlite" is the only supported backend for now.
	VectorDimensions int    // Embedding dimensions; 0 uses the default (1536).
	MaxValueBytes    int    // Mutable value size cap; 0 uses the default (1 MiB).
	TxMode           TxMode // Batch execution guarantee; empty means sequential.
}
