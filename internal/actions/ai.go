package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/shopopti/extension-gateway/internal/gateway"
)

// AIClient generates text for the AI actions. The production implementation
// talks to an OpenAI-compatible chat completions endpoint.
type AIClient interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// HTTPAIClient is the HTTP-backed AIClient.
type HTTPAIClient struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewHTTPAIClient builds an AIClient for an OpenAI-compatible endpoint.
func NewHTTPAIClient(endpoint, apiKey, model string) *HTTPAIClient {
	return &HTTPAIClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete sends one chat completion request and returns the first choice.
func (c *HTTPAIClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		"temperature": 0.7,
		"max_tokens":  1500,
	})
	if err != nil {
		return "", fmt.Errorf("ai: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ai: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai: upstream returned %d", resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ai: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("ai: empty response")
	}
	return out.Choices[0].Message.Content, nil
}

// aiPrompts keys the user prompt template by generation kind.
var aiPrompts = map[string]string{
	"title":       `Optimize this product title for e-commerce SEO: %q. Respond with the optimized title only.`,
	"description": `Rewrite this product description to maximize conversions: %q. 150-300 words, engaging tone.`,
	"full":        `Optimize this product. Title: %q. Description: %q. Respond as JSON: {"title":"..","description":"..","seo_title":"..","seo_description":"..","tags":[]}`,
	"seo":         `Generate SEO metadata for: %q. Respond as JSON: {"seo_title":"max 60 chars","seo_description":"max 160 chars"}`,
	"tags":        `Generate 5-10 relevant tags for: %q. Respond as JSON: ["tag1","tag2",...]`,
}

// aiHandler builds the handler for one generation kind. All five AI actions
// share the same payload shape and differ only in prompt and response parsing.
func (s *Service) aiHandler(kind string) gateway.Handler {
	return func(ctx context.Context, req gateway.HandlerRequest) (any, error) {
		if s.ai == nil {
			return nil, gateway.NewError(gateway.CodeHandlerError, "AI service not configured")
		}

		var p struct {
			Product struct {
				Title       string `json:"title"`
				Description string `json:"description"`
			} `json:"product"`
			Language string `json:"language"`
		}
		if err := decodePayload(aiPayloadSchema, req.Payload, &p); err != nil {
			return nil, err
		}
		tag, err := language.Parse(p.Language)
		if err != nil {
			return nil, gateway.NewError(gateway.CodeInvalidPayload, "language must be a BCP 47 tag").
				WithDetail("received", p.Language)
		}

		var prompt string
		switch kind {
		case "description":
			text := p.Product.Description
			if text == "" {
				text = p.Product.Title
			}
			prompt = fmt.Sprintf(aiPrompts[kind], text)
		case "full":
			prompt = fmt.Sprintf(aiPrompts[kind], p.Product.Title, p.Product.Description)
		default:
			prompt = fmt.Sprintf(aiPrompts[kind], p.Product.Title)
		}
		system := fmt.Sprintf("You are an e-commerce SEO expert. Respond in %s.", tag.String())

		content, err := s.ai.Complete(ctx, system, prompt)
		if err != nil {
			s.log.Error("ai completion failed", "kind", kind, "error", err)
			return nil, gateway.Errorf(gateway.CodeHandlerError, "AI processing failed")
		}

		return map[string]any{
			"optimized": parseAIContent(kind, content),
			"type":      kind,
		}, nil
	}
}

// parseAIContent shapes raw model output per generation kind. Structured kinds
// expect a JSON blob somewhere in the output; anything unparseable is returned
// raw rather than dropped.
func parseAIContent(kind, content string) any {
	switch kind {
	case "title":
		return map[string]any{"title": strings.Trim(strings.TrimSpace(content), `"'`)}
	case "description":
		return map[string]any{"description": strings.TrimSpace(content)}
	default:
		if blob := extractJSON(content); blob != "" {
			var parsed any
			if err := json.Unmarshal([]byte(blob), &parsed); err == nil {
				return parsed
			}
		}
		return map[string]any{"raw": content}
	}
}

// extractJSON returns the first {...} or [...] region of s, or "".
func extractJSON(s string) string {
	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(s, pair[0])
		end := strings.LastIndexByte(s, pair[1])
		if start >= 0 && end > start {
			return s[start : end+1]
		}
	}
	return ""
}
