// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package store

import "errors"

// Sentinel errors for store operations.
// These errors can be checked using errors.Is() for classification; the
// coded variants in pkg/errors carry the stable machine-readable tokens.
var (
	// ErrNotFound indicates the requested record, key, or entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input parameters are invalid or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValueTooLarge indicates a mutable value exceeds the configured size cap.
	ErrValueTooLarge = errors.New("value too large")

	// ErrDatabase indicates a general database error occurred.
	// This is a catch-all for unexpected backend failures.
	ErrDatabase = errors.New("database error")
)
