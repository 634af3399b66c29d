package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ChatProvider talks to any OpenAI-compatible chat completions endpoint.
type ChatProvider struct {
	name    string
	keyName string
	apiKey  string
	model   string
	client  *resty.Client
}

func NewOpenAIProvider(keyName string) *ChatProvider {
	return newChatProvider("openai", "https://api.openai.com/v1", envOr("LEARNFLOW_OPENAI_MODEL", "gpt-4o-mini"), keyName,
		resolveKey("LEARNFLOW_OPENAI_KEY_", keyName, "OPENAI_API_KEY"))
}

func NewGroqProvider(keyName string) *ChatProvider {
	return newChatProvider("groq", "https://api.groq.com/openai/v1", envOr("LEARNFLOW_GROQ_MODEL", "llama-3.1-8b-instant"), keyName,
		resolveKey("LEARNFLOW_GROQ_KEY_", keyName, "GROQ_API_KEY"))
}

func newChatProvider(name, baseURL, model, keyName, apiKey string) *ChatProvider {
	return &ChatProvider{
		name:    name,
		keyName: keyName,
		apiKey:  apiKey,
		model:   model,
		client:  resty.New().SetBaseURL(baseURL).SetTimeout(60 * time.Second),
	}
}

func (c *ChatProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: c.name, Model: c.model, Key: c.keyName}
	if c.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("%s key missing for alias %q: %w", c.name, c.keyName, ErrProviderUnconfigured)
	}
	prompt := req.Prompt
	if len(req.Context) > 0 {
		prompt += "\n\nContext:\n" + strings.Join(req.Context, "\n\n")
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(map[string]any{
			"model": c.model,
			"messages": []map[string]string{
				{"role": "system", "content": systemPrompt(req.Language)},
				{"role": "user", "content": prompt},
			},
		}).
		SetResult(&parsed).
		Post("/chat/completions")
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("%s generate request failed: %w", c.name, err)
	}
	if resp.IsError() {
		return GenerateResponse{}, info, fmt.Errorf("%s generate error %d: %s", c.name, resp.StatusCode(), resp.String())
	}
	if len(parsed.Choices) == 0 {
		return GenerateResponse{}, info, fmt.Errorf("%s returned empty choices", c.name)
	}
	return GenerateResponse{Text: parsed.Choices[0].Message.Content}, info, nil
}

func systemPrompt(language string) string {
	if language == "zh" {
		return "You are a teaching assistant preparing study material. Answer in Simplified Chinese, in Markdown, grounded in the provided context."
	}
	return "You are a teaching assistant preparing study material. Answer in English, in Markdown, grounded in the provided context."
}

func resolveKey(prefix, alias, fallback string) string {
	if alias != "" {
		if v := os.Getenv(prefix + strings.ToUpper(alias)); v != "" {
			return v
		}
	}
	return os.Getenv(fallback)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
