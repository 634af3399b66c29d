package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"learnflow/internal/config"

	log "github.com/sirupsen/logrus"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type Manager struct {
	llmProviders []NamedLLMProvider
}

func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{}
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		p, err := buildProvider(ref)
		if err != nil {
			return nil, err
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: p})
	}
	return m, nil
}

// NewStaticManager wraps already built providers, in order.
func NewStaticManager(ps ...NamedLLMProvider) *Manager {
	return &Manager{llmProviders: ps}
}

func (m *Manager) LLMCount() int {
	return len(m.llmProviders)
}

// PreferredLLMOrder puts real providers before the mock one.
func (m *Manager) PreferredLLMOrder() []int {
	out := make([]int, 0, len(m.llmProviders))
	for i := range m.llmProviders {
		if m.llmProviders[i].Ref.Name != "mock" {
			out = append(out, i)
		}
	}
	for i := range m.llmProviders {
		if m.llmProviders[i].Ref.Name == "mock" {
			out = append(out, i)
		}
	}
	return out
}

func (m *Manager) FindLLMProviderByName(name string) (LLMProvider, ProviderRef, bool) {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return nil, ProviderRef{}, false
	}
	for i := range m.llmProviders {
		if m.llmProviders[i].Ref.Name == target {
			return m.llmProviders[i].Provider, m.llmProviders[i].Ref, true
		}
	}
	return nil, ProviderRef{}, false
}

// Generate tries providers in preferred order and moves on when a provider fails
// with a quota, rate or transient error. Other errors stop the search.
func (m *Manager) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	order := m.PreferredLLMOrder()
	if len(order) == 0 {
		return NewMockProvider().Generate(ctx, req)
	}
	var errs []error
	for _, i := range order {
		np := m.llmProviders[i]
		resp, info, err := np.Provider.Generate(ctx, req)
		if err == nil {
			return resp, info, nil
		}
		kind := ClassifyError(err)
		errs = append(errs, fmt.Errorf("%s: %w", np.Ref.Raw, err))
		log.WithFields(log.Fields{
			"provider":   np.Ref.Raw,
			"operation":  req.Operation,
			"error_type": kind,
		}).WithError(err).Warn("providers: generate failed")
		if !Failover(kind) || ctx.Err() != nil {
			return GenerateResponse{}, info, errors.Join(errs...)
		}
	}
	return GenerateResponse{}, ProviderInfo{}, errors.Join(errs...)
}

func buildProvider(ref ProviderRef) (LLMProvider, error) {
	switch ref.Name {
	case "mock":
		return NewMockProvider(), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias), nil
	case "ollama":
		return NewOllamaProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
