package usage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_OpenAI(t *testing.T) {
	raw := json.RawMessage(`{
		"input_tokens": 100,
		"input_tokens_details": {"cached_tokens": 20},
		"output_tokens": 40,
		"output_tokens_details": {"reasoning_tokens": 5},
		"total_tokens": 140
	}`)

	u, ok := Normalize(ProviderOpenAI, raw)
	require.True(t, ok)
	assert.Equal(t, int64(100), u["input_tokens"])
	assert.Equal(t, int64(20), u["cached_tokens"])
	assert.Equal(t, int64(40), u["output_tokens"])
	assert.Equal(t, int64(5), u["reasoning_tokens"])
	assert.Equal(t, int64(140), u["total_tokens"])
}

func TestNormalize_OpenAI_MissingDetails(t *testing.T) {
	raw := json.RawMessage(`{"input_tokens": 10, "output_tokens": 5, "total_tokens": 15}`)

	u, ok := Normalize(ProviderOpenAI, raw)
	require.True(t, ok)
	assert.Equal(t, int64(0), u["cached_tokens"])
	assert.Equal(t, int64(0), u["reasoning_tokens"])
}

func TestNormalize_VertexAI_Object(t *testing.T) {
	raw := json.RawMessage(`{
		"promptTokenCount": 50,
		"cachedContentTokenCount": 10,
		"candidatesTokenCount": 30,
		"thoughtsTokenCount": 4,
		"toolUsePromptTokenCount": 2,
		"totalTokenCount": 80
	}`)

	u, ok := Normalize(ProviderVertexAI, raw)
	require.True(t, ok)
	assert.Equal(t, int64(50), u["prompt_tokens"])
	assert.Equal(t, int64(10), u["cached_tokens"])
	assert.Equal(t, int64(30), u["response_tokens"])
	assert.Equal(t, int64(4), u["thoughts_tokens"])
	assert.Equal(t, int64(2), u["tool_use_prompt_tokens"])
	assert.Equal(t, int64(80), u["total_tokens"])
}

func TestNormalize_VertexAI_UsageMetadataWrapper(t *testing.T) {
	raw := json.RawMessage(`{"usageMetadata": {"promptTokenCount": 7, "candidatesTokenCount": 3, "totalTokenCount": 10}}`)

	u, ok := Normalize(ProviderVertexAI, raw)
	require.True(t, ok)
	assert.Equal(t, int64(10), u["total_tokens"])
}

func TestNormalize_VertexAI_ChunkList(t *testing.T) {
	// Streaming counts are cumulative; the last chunk with metadata wins.
	raw := json.RawMessage(`[
		{"candidates": [{"content": "a"}]},
		{"usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 2, "totalTokenCount": 7}},
		{"usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 9, "totalTokenCount": 14}},
		{"candidates": [{"content": "b"}]}
	]`)

	u, ok := Normalize(ProviderVertexAI, raw)
	require.True(t, ok)
	assert.Equal(t, int64(5), u["prompt_tokens"])
	assert.Equal(t, int64(9), u["response_tokens"])
	assert.Equal(t, int64(14), u["total_tokens"])
}

func TestNormalize_VertexAI_ChunkListWithoutUsage(t *testing.T) {
	raw := json.RawMessage(`[{"candidates": []}, {"candidates": []}]`)

	_, ok := Normalize(ProviderVertexAI, raw)
	assert.False(t, ok)
}

func TestNormalize_Absent(t *testing.T) {
	cases := []struct {
		name     string
		provider string
		raw      string
	}{
		{"unknown provider", "anthropic", `{"input_tokens": 5}`},
		{"unparsable", ProviderOpenAI, `{not json`},
		{"empty payload", ProviderOpenAI, ``},
		{"all-zero openai", ProviderOpenAI, `{}`},
		{"all-zero vertexai", ProviderVertexAI, `{}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := Normalize(tc.provider, json.RawMessage(tc.raw))
			assert.False(t, ok)
		})
	}
}

func TestExtractResponse(t *testing.T) {
	raw := []byte(`{"provider": "openai", "model": "gpt-4o", "usage": {"input_tokens": 1, "total_tokens": 2}}`)

	provider, model, payload, ok := ExtractResponse(raw)
	require.True(t, ok)
	assert.Equal(t, "openai", provider)
	assert.Equal(t, "gpt-4o", model)
	assert.JSONEq(t, `{"input_tokens": 1, "total_tokens": 2}`, string(payload))
}

func TestExtractResponse_Chunks(t *testing.T) {
	raw := []byte(`{"provider": "vertexai", "model": "gemini-pro", "chunks": [{"usageMetadata": {"totalTokenCount": 9, "promptTokenCount": 4}}]}`)

	provider, model, payload, ok := ExtractResponse(raw)
	require.True(t, ok)
	assert.Equal(t, "vertexai", provider)
	assert.Equal(t, "gemini-pro", model)

	u, ok := Normalize(provider, payload)
	require.True(t, ok)
	assert.Equal(t, int64(9), u["total_tokens"])
}

func TestExtractResponse_Absent(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `hello`},
		{"no provider", `{"model": "gpt-4o", "usage": {"total_tokens": 1}}`},
		{"no model", `{"provider": "openai", "usage": {"total_tokens": 1}}`},
		{"no usage", `{"provider": "openai", "model": "gpt-4o"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, ok := ExtractResponse([]byte(tc.raw))
			assert.False(t, ok)
		})
	}
}
