package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"model_gateway/internal/identifier"
	"model_gateway/internal/models"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com"
	anthropicAPIVersion = "2023-06-01"

	// The messages API rejects requests without max_tokens, so an
	// explicit ceiling is applied when the caller does not set one.
	anthropicDefaultMaxTokens = 4096
)

// AnthropicAdapter serves anthropic:* identifiers through the messages
// API. There is no official Go SDK in our stack, so it speaks the REST
// protocol directly.
type AnthropicAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewAnthropicAdapter(apiKey string, timeout time.Duration) *AnthropicAdapter {
	return &AnthropicAdapter{
		apiKey:  apiKey,
		baseURL: anthropicBaseURL,
		client:  newHTTPClient(timeout),
	}
}

func (a *AnthropicAdapter) Kind() string {
	return identifier.ProviderAnthropic
}

func (a *AnthropicAdapter) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

type anthropicModelsResponse struct {
	Data []struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"data"`
}

func (a *AnthropicAdapter) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	req, err := a.newRequest(ctx, http.MethodGet, "/v1/models", nil)
	if err != nil {
		return nil, Fail(identifier.ProviderAnthropic, FailureInvalidResponse, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, classifyTransport(identifier.ProviderAnthropic, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(identifier.ProviderAnthropic, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(identifier.ProviderAnthropic, resp.StatusCode, body)
	}

	var list anthropicModelsResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, Fail(identifier.ProviderAnthropic, FailureInvalidResponse, fmt.Errorf("decoding models response: %w", err))
	}

	out := make([]models.ModelInfo, 0, len(list.Data))
	for _, m := range list.Data {
		out = append(out, models.ModelInfo{
			ID:          identifier.Cloud(identifier.ProviderAnthropic, m.ID).String(),
			DisplayName: m.DisplayName,
			Provider:    identifier.ProviderAnthropic,
		})
	}
	return out, nil
}

type anthropicMessagesRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type anthropicMessagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *AnthropicAdapter) messagesRequest(req GenerateRequest, stream bool) anthropicMessagesRequest {
	maxTokens := req.Params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	return anthropicMessagesRequest{
		Model:       req.Model,
		Messages:    historyWithPrompt(req),
		MaxTokens:   maxTokens,
		Temperature: req.Params.Temperature,
		Stream:      stream,
	}
}

func (a *AnthropicAdapter) Generate(ctx context.Context, req GenerateRequest) (*Completion, error) {
	start := time.Now()

	payload, err := json.Marshal(a.messagesRequest(req, false))
	if err != nil {
		return nil, Fail(identifier.ProviderAnthropic, FailureInvalidResponse, err)
	}

	httpReq, err := a.newRequest(ctx, http.MethodPost, "/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, Fail(identifier.ProviderAnthropic, FailureInvalidResponse, err)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(identifier.ProviderAnthropic, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(identifier.ProviderAnthropic, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(identifier.ProviderAnthropic, resp.StatusCode, body)
	}

	var msg anthropicMessagesResponse
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, Fail(identifier.ProviderAnthropic, FailureInvalidResponse, fmt.Errorf("decoding messages response: %w", err))
	}

	var content string
	for _, block := range msg.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &Completion{
		Content:      content,
		Model:        identifier.Cloud(identifier.ProviderAnthropic, msg.Model).String(),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
		Latency:      time.Since(start),
	}, nil
}

// anthropicStreamEvent covers the subset of SSE event payloads the
// gateway consumes. Delta carries text for content_block_delta events.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

func (a *AnthropicAdapter) Stream(ctx context.Context, req GenerateRequest) (<-chan Chunk, error) {
	payload, err := json.Marshal(a.messagesRequest(req, true))
	if err != nil {
		return nil, Fail(identifier.ProviderAnthropic, FailureInvalidResponse, err)
	}

	httpReq, err := a.newRequest(ctx, http.MethodPost, "/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, Fail(identifier.ProviderAnthropic, FailureInvalidResponse, err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(identifier.ProviderAnthropic, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, classifyStatus(identifier.ProviderAnthropic, resp.StatusCode, body)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			data := bytes.TrimPrefix(line, []byte("data: "))

			var event anthropicStreamEvent
			if err := json.Unmarshal(data, &event); err != nil {
				continue
			}

			switch event.Type {
			case "content_block_delta":
				select {
				case out <- Chunk{Content: event.Delta.Text}:
				case <-ctx.Done():
					return
				}
			case "message_stop":
				select {
				case out <- Chunk{Done: true}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()
	return out, nil
}
