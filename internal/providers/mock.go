package providers

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"model_gateway/internal/identifier"
	"model_gateway/internal/models"
)

// MockAdapter is the terminal backend of every fallback chain. It does
// no I/O and never fails, so a chat request can always be answered even
// when every real backend is down.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

func (m *MockAdapter) Kind() string {
	return "mock"
}

func (m *MockAdapter) ListModels(_ context.Context) ([]models.ModelInfo, error) {
	return []models.ModelInfo{
		{
			ID:          identifier.Mock.String(),
			DisplayName: "Mock Echo",
			Provider:    "mock",
		},
	}, nil
}

func (m *MockAdapter) Generate(_ context.Context, req GenerateRequest) (*Completion, error) {
	start := time.Now()
	content := mockResponse(req.Prompt)
	return &Completion{
		Content:      content,
		Model:        identifier.Mock.String(),
		InputTokens:  approxTokens(req.Prompt),
		OutputTokens: approxTokens(content),
		Latency:      time.Since(start),
	}, nil
}

func (m *MockAdapter) Stream(ctx context.Context, req GenerateRequest) (<-chan Chunk, error) {
	out := make(chan Chunk)
	words := strings.Fields(mockResponse(req.Prompt))
	go func() {
		defer close(out)
		for i, w := range words {
			chunk := Chunk{Content: w, Done: i == len(words)-1}
			if i > 0 {
				chunk.Content = " " + chunk.Content
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (m *MockAdapter) Embeddings(_ context.Context, text string) ([]float64, error) {
	// Deterministic pseudo-embedding so downstream code has a stable
	// vector to work with during development.
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	vec := make([]float64, 16)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float64(int64(seed>>11))/float64(1<<52) - 1
	}
	return vec, nil
}

func mockResponse(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "This is a mock response. No upstream model was available to answer."
	}
	return fmt.Sprintf("This is a mock response to: %q. No upstream model was available to answer.", prompt)
}

func approxTokens(s string) int {
	return len(strings.Fields(s))
}
