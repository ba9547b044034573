// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package provider adapts external model APIs to the hook signatures the
// memory manager consumes: OpenAI embeddings for vector search and
// Anthropic messages for fact and content extraction.
package provider

// Config holds credentials and model selection for a single provider.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
	Model   string // optional, provider-specific default applies when empty
}
