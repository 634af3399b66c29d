package providers

import "context"

// Operations a stage can ask a provider for.
const (
	OpSummary = "summary"
	OpSlides  = "slides"
)

// ProviderInfo identifies which backend answered, for logs and audit rows.
type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

// GenerateRequest carries one stage's prompt plus the chunk texts it is grounded on.
type GenerateRequest struct {
	Operation string   `json:"operation"`
	Prompt    string   `json:"prompt"`
	Context   []string `json:"context"`
	Language  string   `json:"language"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

// LLMProvider is one text-generation backend. Implementations must honor ctx
// cancellation so a superseded run stops promptly.
type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}
