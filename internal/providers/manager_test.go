package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"learnflow/internal/config"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	args := m.Called(req.Operation)
	return args.Get(0).(GenerateResponse), args.Get(1).(ProviderInfo), args.Error(2)
}

func TestNewManager(t *testing.T) {
	m, err := NewManager(config.Config{LLMProviders: "mock|openai:k1"})
	require.NoError(t, err)
	require.Equal(t, 2, m.LLMCount())
	require.Equal(t, []int{1, 0}, m.PreferredLLMOrder())
	_, ref, ok := m.FindLLMProviderByName("OpenAI")
	require.True(t, ok)
	require.Equal(t, "k1", ref.KeyAlias)

	_, err = NewManager(config.Config{LLMProviders: "claude-on-fax"})
	require.Error(t, err)
}

func TestManagerFailsOverOnRateLimit(t *testing.T) {
	limited := &mockLLM{}
	limited.On("Generate", OpSummary).Return(GenerateResponse{}, ProviderInfo{Name: "openai"}, errors.New("openai generate error 429: rate limited"))
	m := NewStaticManager(
		NamedLLMProvider{Ref: ProviderRef{Raw: "openai", Name: "openai"}, Provider: limited},
		NamedLLMProvider{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider()},
	)
	resp, info, err := m.Generate(context.Background(), GenerateRequest{Operation: OpSummary, Context: []string{"Cells divide by mitosis."}, Language: "en"})
	require.NoError(t, err)
	require.Equal(t, "mock", info.Name)
	require.Contains(t, resp.Text, "mitosis")
	limited.AssertExpectations(t)
}

func TestManagerFailsOverWhenKeyMissing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LEARNFLOW_OPENAI_KEY_NOPE", "")
	m, err := NewManager(config.Config{LLMProviders: "openai:nope,mock"})
	require.NoError(t, err)

	resp, info, err := m.Generate(context.Background(), GenerateRequest{Operation: OpSummary, Context: []string{"Leaves contain chloroplasts."}, Language: "en"})
	require.NoError(t, err)
	require.Equal(t, "mock", info.Name)
	require.NotEmpty(t, resp.Text)
}

func TestManagerStopsOnPermanentError(t *testing.T) {
	bad := &mockLLM{}
	bad.On("Generate", OpSummary).Return(GenerateResponse{}, ProviderInfo{Name: "openai"}, errors.New("invalid api key"))
	fallback := &mockLLM{}
	m := NewStaticManager(
		NamedLLMProvider{Ref: ProviderRef{Raw: "openai", Name: "openai"}, Provider: bad},
		NamedLLMProvider{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: fallback},
	)
	_, _, err := m.Generate(context.Background(), GenerateRequest{Operation: OpSummary})
	require.Error(t, err)
	require.Equal(t, ErrorPermanent, ClassifyError(err))
	fallback.AssertNotCalled(t, "Generate", mock.Anything)
}

func TestMockProviderSummary(t *testing.T) {
	resp, info, err := NewMockProvider().Generate(context.Background(), GenerateRequest{
		Operation: OpSummary,
		Language:  "zh",
		Context:   []string{"Photosynthesis converts light. It happens in leaves.", ""},
	})
	require.NoError(t, err)
	require.Equal(t, "mock", info.Name)
	require.True(t, strings.HasPrefix(resp.Text, "## 摘要"))
	require.Contains(t, resp.Text, "- Photosynthesis converts light.")
}

func TestChatProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"## Summary\n- ok"}}]}`))
	}))
	defer srv.Close()

	p := newChatProvider("openai", srv.URL, "gpt-test", "k1", "secret")
	resp, info, err := p.Generate(context.Background(), GenerateRequest{Operation: OpSummary, Prompt: "Summarize"})
	require.NoError(t, err)
	require.Equal(t, "## Summary\n- ok", resp.Text)
	require.Equal(t, "gpt-test", info.Model)

	_, _, err = newChatProvider("groq", srv.URL, "m", "k2", "").Generate(context.Background(), GenerateRequest{})
	require.ErrorContains(t, err, "key missing")
}

func TestChatProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	_, _, err := newChatProvider("openai", srv.URL, "m", "k", "secret").Generate(context.Background(), GenerateRequest{})
	require.Error(t, err)
	require.Equal(t, ErrorRate, ClassifyError(err))
}

func TestResolveOllamaModel(t *testing.T) {
	t.Setenv("LEARNFLOW_OLLAMA_MODEL", "")
	require.Equal(t, "qwen2.5:7b", resolveOllamaModel(""))
	require.Equal(t, "llama3.1:8b", resolveOllamaModel("llama3.1:8b"))
	t.Setenv("LEARNFLOW_OLLAMA_MODEL_FAST", "phi3")
	require.Equal(t, "phi3", resolveOllamaModel("fast"))
}
