package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// OllamaProvider generates text with a local Ollama model.
type OllamaProvider struct {
	alias  string
	model  string
	client *resty.Client
}

func NewOllamaProvider(alias string) *OllamaProvider {
	baseURL := strings.TrimSpace(os.Getenv("LEARNFLOW_OLLAMA_BASE_URL"))
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		alias:  alias,
		model:  resolveOllamaModel(alias),
		client: resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")).SetTimeout(120 * time.Second),
	}
}

func (o *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.model, Key: o.alias}
	prompt := systemPrompt(req.Language) + "\n\n" + req.Prompt
	if len(req.Context) > 0 {
		prompt += "\n\nContext:\n" + strings.Join(req.Context, "\n\n")
	}
	var parsed struct {
		Response string `json:"response"`
	}
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"model": o.model, "prompt": prompt, "stream": false}).
		SetResult(&parsed).
		Post("/api/generate")
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("ollama generate request failed: %w", err)
	}
	if resp.IsError() {
		return GenerateResponse{}, info, fmt.Errorf("ollama generate error %d: %s", resp.StatusCode(), resp.String())
	}
	if strings.TrimSpace(parsed.Response) == "" {
		return GenerateResponse{}, info, fmt.Errorf("ollama returned empty response")
	}
	return GenerateResponse{Text: parsed.Response}, info, nil
}

// resolveOllamaModel accepts a model name directly in the provider list, e.g. ollama:qwen2.5:7b.
func resolveOllamaModel(alias string) string {
	alias = strings.TrimSpace(alias)
	if alias != "" {
		key := "LEARNFLOW_OLLAMA_MODEL_" + sanitizeEnvToken(alias)
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		if strings.ContainsAny(alias, "-/.:") {
			return alias
		}
	}
	return envOr("LEARNFLOW_OLLAMA_MODEL", "qwen2.5:7b")
}

func sanitizeEnvToken(s string) string {
	return strings.NewReplacer("-", "_", ".", "_", "/", "_", ":", "_").Replace(strings.ToUpper(s))
}
