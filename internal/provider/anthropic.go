// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package provider

import (
	"context"
	"encoding/json"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/strata-dev/strata/internal/memory"
	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// DefaultExtractionModel is used when Config.Model is empty.
const DefaultExtractionModel = "claude-haiku-4-5"

const factsSystemPrompt = `You extract durable facts from a conversation turn.
Respond with a JSON array only, no prose. Each element:
{"subject": string, "predicate": string, "object": string,
 "factType": "preference"|"identity"|"knowledge"|"event",
 "confidence": number 0-100, "tags": [string]}
Return [] when the turn contains nothing worth keeping.`

const contentSystemPrompt = `You condense a conversation turn into the single
statement worth remembering, written in third person. Respond with that
statement only. Respond with an empty string when nothing is worth keeping.`

// Extractor derives candidate facts and memory content from conversation
// turns via the Anthropic Messages API.
type Extractor struct {
	client anthropicsdk.Client
	model  string
}

// NewExtractor creates an Anthropic-backed extractor. Returns an error if
// the API key is missing.
func NewExtractor(cfg Config) (*Extractor, error) {
	if cfg.APIKey == "" {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "anthropic: missing api_key in config")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultExtractionModel
	}

	return &Extractor{
		client: anthropicsdk.NewClient(opts...),
		model:  model,
	}, nil
}

// ExtractFacts returns candidate facts found in the turn. An empty slice
// means the turn carried nothing durable.
func (e *Extractor) ExtractFacts(ctx context.Context, userText, agentText string) ([]store.CandidateFact, error) {
	raw, err := e.complete(ctx, factsSystemPrompt, turnPrompt(userText, agentText))
	if err != nil {
		return nil, err
	}
	return parseCandidates(raw)
}

// ExtractContent reduces the turn to the content worth storing as a memory.
// An empty return skips the memory layer for this turn.
func (e *Extractor) ExtractContent(ctx context.Context, userText, agentText string) (string, error) {
	raw, err := e.complete(ctx, contentSystemPrompt, turnPrompt(userText, agentText))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// FactsFunc adapts the extractor to the memory manager's hook signature.
func (e *Extractor) FactsFunc() memory.ExtractFactsFunc {
	return e.ExtractFacts
}

// ContentFunc adapts the extractor to the memory manager's hook signature.
func (e *Extractor) ContentFunc() memory.ExtractContentFunc {
	return e.ExtractContent
}

func (e *Extractor) complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := e.client.Messages.New(ctx, anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(e.model),
		MaxTokens: 2048,
		System: []anthropicsdk.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", strataerr.Wrapf(err, strataerr.CodeProviderUpstreamFailure, "anthropic: messages request")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func turnPrompt(userText, agentText string) string {
	var sb strings.Builder
	if userText != "" {
		sb.WriteString("User: ")
		sb.WriteString(userText)
		sb.WriteString("\n")
	}
	if agentText != "" {
		sb.WriteString("Agent: ")
		sb.WriteString(agentText)
		sb.WriteString("\n")
	}
	return sb.String()
}

// parseCandidates decodes the model's JSON array, tolerating markdown code
// fences and surrounding prose. Candidates that fail validation are dropped
// rather than failing the whole batch.
func parseCandidates(raw string) ([]store.CandidateFact, error) {
	payload := extractJSONArray(raw)
	if payload == "" {
		return nil, strataerr.New(strataerr.CodeProviderResponseInvalid,
			"anthropic: extraction response contains no JSON array")
	}

	var decoded []store.CandidateFact
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeProviderResponseInvalid,
			"anthropic: decoding extraction response")
	}

	candidates := make([]store.CandidateFact, 0, len(decoded))
	for _, c := range decoded {
		if err := c.Validate(); err != nil {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// extractJSONArray returns the outermost [...] span in raw, or "".
func extractJSONArray(raw string) string {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return raw[start : end+1]
}
