// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package provider

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/strata-dev/strata/internal/memory"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// DefaultEmbeddingModel is used when Config.Model is empty.
const DefaultEmbeddingModel = "text-embedding-3-small"

// Embedder turns text into embedding vectors via the OpenAI Embeddings API.
type Embedder struct {
	client openaisdk.Client
	model  string
}

// NewEmbedder creates an OpenAI-backed embedder. Returns an error if the
// API key is missing.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "openai: missing api_key in config")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	return &Embedder{
		client: openaisdk.NewClient(opts...),
		model:  model,
	}, nil
}

// Embed returns the embedding vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: openaisdk.String(text),
		},
		Model: openaisdk.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeProviderUpstreamFailure, "openai: embedding request")
	}
	if len(resp.Data) == 0 {
		return nil, strataerr.New(strataerr.CodeProviderResponseInvalid, "openai: embedding response has no data")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// EmbedFunc adapts the embedder to the memory manager's hook signature.
func (e *Embedder) EmbedFunc() memory.EmbedFunc {
	return e.Embed
}
