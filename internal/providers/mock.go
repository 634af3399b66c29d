package providers

import (
	"context"
	"fmt"
	"strings"

	"learnflow/internal/util"
)

const mockMaxPoints = 5

// MockProvider produces deterministic Markdown built from the request context.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	if err := ctx.Err(); err != nil {
		return GenerateResponse{}, info, err
	}
	zh := req.Language == "zh"
	var b strings.Builder
	switch strings.ToLower(req.Operation) {
	case OpSummary:
		if zh {
			b.WriteString("## 摘要\n\n")
		} else {
			b.WriteString("## Summary\n\n")
		}
		writePoints(&b, req)
	case OpSlides:
		writePoints(&b, req)
	default:
		b.WriteString("Mock response.")
	}
	return GenerateResponse{Text: strings.TrimSpace(b.String())}, info, nil
}

func writePoints(b *strings.Builder, req GenerateRequest) {
	n := 0
	for _, c := range req.Context {
		if n == mockMaxPoints {
			break
		}
		point := util.KeySentence(c, req.Prompt, 200)
		if point == "" {
			continue
		}
		fmt.Fprintf(b, "- %s\n", point)
		n++
	}
	if n == 0 {
		b.WriteString("- No source material was provided.\n")
	}
}
