package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopopti/extension-gateway/internal/gateway"
)

func TestAIOptimizeTitle(t *testing.T) {
	ai := &scriptedAI{response: `"Premium Wireless Earbuds - 2025 Edition"`}
	svc := newTestService(t, ai)

	data, err := svc.aiHandler("title")(context.Background(), handlerReq(t, map[string]any{
		"product": map[string]any{"title": "earbuds"},
	}))
	require.NoError(t, err)

	out := data.(map[string]any)
	assert.Equal(t, "title", out["type"])
	assert.Equal(t, map[string]any{"title": "Premium Wireless Earbuds - 2025 Edition"}, out["optimized"])
	assert.Contains(t, ai.prompt, "earbuds")
	assert.Contains(t, ai.system, "Respond in fr", "default language not applied")
}

func TestAILanguageOverride(t *testing.T) {
	ai := &scriptedAI{response: "ok"}
	svc := newTestService(t, ai)

	_, err := svc.aiHandler("title")(context.Background(), handlerReq(t, map[string]any{
		"product":  map[string]any{"title": "earbuds"},
		"language": "en",
	}))
	require.NoError(t, err)
	assert.Contains(t, ai.system, "Respond in en")

	_, err = svc.aiHandler("title")(context.Background(), handlerReq(t, map[string]any{
		"product":  map[string]any{"title": "earbuds"},
		"language": "not a language!",
	}))
	assert.True(t, gateway.IsCode(err, gateway.CodeInvalidPayload), "err = %v", err)
}

func TestAIGenerateSEOParsesJSON(t *testing.T) {
	ai := &scriptedAI{response: "Here you go:\n{\"seo_title\":\"Best Earbuds\",\"seo_description\":\"Great sound.\"}"}
	svc := newTestService(t, ai)

	data, err := svc.aiHandler("seo")(context.Background(), handlerReq(t, map[string]any{
		"product": map[string]any{"title": "earbuds"},
	}))
	require.NoError(t, err)

	out := data.(map[string]any)
	assert.Equal(t, map[string]any{
		"seo_title":       "Best Earbuds",
		"seo_description": "Great sound.",
	}, out["optimized"])
}

func TestAIUnconfigured(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.aiHandler("title")(context.Background(), handlerReq(t, map[string]any{
		"product": map[string]any{"title": "earbuds"},
	}))
	assert.True(t, gateway.IsCode(err, gateway.CodeHandlerError), "err = %v", err)
}

func TestAIUpstreamFailure(t *testing.T) {
	svc := newTestService(t, &scriptedAI{err: errors.New("upstream 503")})

	_, err := svc.aiHandler("title")(context.Background(), handlerReq(t, map[string]any{
		"product": map[string]any{"title": "earbuds"},
	}))
	assert.True(t, gateway.IsCode(err, gateway.CodeHandlerError), "err = %v", err)
}

func TestParseAIContent(t *testing.T) {
	assert.Equal(t,
		map[string]any{"title": "Clean Title"},
		parseAIContent("title", "  'Clean Title'  "))

	assert.Equal(t,
		map[string]any{"description": "Long form text."},
		parseAIContent("description", "\nLong form text.\n"))

	assert.Equal(t,
		[]any{"tag1", "tag2"},
		parseAIContent("tags", `Sure! ["tag1","tag2"]`))

	// Unparseable structured output falls back to raw.
	assert.Equal(t,
		map[string]any{"raw": "no json here"},
		parseAIContent("seo", "no json here"))
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON(`prefix {"a":1} suffix`))
	assert.Equal(t, `[1,2]`, extractJSON(`tags: [1,2]`))
	assert.Equal(t, "", extractJSON("plain text"))
}
