package usage

import (
	"encoding/json"

	"prompt_trace/internal/models"
)

// Provider names recognized by the normalizer. Adding a provider means
// adding a case to Normalize; callers never switch on shape themselves.
const (
	ProviderOpenAI   = "openai"
	ProviderVertexAI = "vertexai"
)

// Normalize converts a provider-reported usage payload into the flat
// token-count record stored on the execution log. It returns ok=false
// for unknown providers, unparsable JSON, or a payload with no token
// counts in it; enrichment is best-effort and absence is not an error.
func Normalize(provider string, raw json.RawMessage) (models.JSONB, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	switch provider {
	case ProviderOpenAI:
		return normalizeOpenAI(raw)
	case ProviderVertexAI:
		return normalizeVertexAI(raw)
	default:
		return nil, false
	}
}

type openAIUsage struct {
	InputTokens        int64 `json:"input_tokens"`
	OutputTokens       int64 `json:"output_tokens"`
	TotalTokens        int64 `json:"total_tokens"`
	InputTokensDetails struct {
		CachedTokens int64 `json:"cached_tokens"`
	} `json:"input_tokens_details"`
	OutputTokensDetails struct {
		ReasoningTokens int64 `json:"reasoning_tokens"`
	} `json:"output_tokens_details"`
}

func normalizeOpenAI(raw json.RawMessage) (models.JSONB, bool) {
	var u openAIUsage
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, false
	}

	// An all-zero record is indistinguishable from a missing one.
	if u.InputTokens == 0 && u.OutputTokens == 0 && u.TotalTokens == 0 {
		return nil, false
	}

	return models.JSONB{
		"input_tokens":     u.InputTokens,
		"cached_tokens":    u.InputTokensDetails.CachedTokens,
		"output_tokens":    u.OutputTokens,
		"reasoning_tokens": u.OutputTokensDetails.ReasoningTokens,
		"total_tokens":     u.TotalTokens,
	}, true
}

type vertexAIUsage struct {
	PromptTokenCount        int64 `json:"promptTokenCount"`
	CachedContentTokenCount int64 `json:"cachedContentTokenCount"`
	CandidatesTokenCount    int64 `json:"candidatesTokenCount"`
	ThoughtsTokenCount      int64 `json:"thoughtsTokenCount"`
	ToolUsePromptTokenCount int64 `json:"toolUsePromptTokenCount"`
	TotalTokenCount         int64 `json:"totalTokenCount"`
}

type vertexAIChunk struct {
	UsageMetadata *vertexAIUsage `json:"usageMetadata"`
}

// normalizeVertexAI accepts either a single response object or the
// ordered chunk list a streaming call produces. Token counts in the
// stream are cumulative, so the last chunk carrying usageMetadata wins.
func normalizeVertexAI(raw json.RawMessage) (models.JSONB, bool) {
	var u *vertexAIUsage

	var chunks []vertexAIChunk
	if err := json.Unmarshal(raw, &chunks); err == nil {
		for i := len(chunks) - 1; i >= 0; i-- {
			if chunks[i].UsageMetadata != nil {
				u = chunks[i].UsageMetadata
				break
			}
		}
	} else {
		var chunk vertexAIChunk
		if err := json.Unmarshal(raw, &chunk); err != nil {
			return nil, false
		}
		if chunk.UsageMetadata != nil {
			u = chunk.UsageMetadata
		} else {
			var direct vertexAIUsage
			if err := json.Unmarshal(raw, &direct); err != nil {
				return nil, false
			}
			u = &direct
		}
	}

	if u == nil || (u.PromptTokenCount == 0 && u.CandidatesTokenCount == 0 && u.TotalTokenCount == 0) {
		return nil, false
	}

	return models.JSONB{
		"prompt_tokens":          u.PromptTokenCount,
		"cached_tokens":          u.CachedContentTokenCount,
		"response_tokens":        u.CandidatesTokenCount,
		"thoughts_tokens":        u.ThoughtsTokenCount,
		"tool_use_prompt_tokens": u.ToolUsePromptTokenCount,
		"total_tokens":           u.TotalTokenCount,
	}, true
}
