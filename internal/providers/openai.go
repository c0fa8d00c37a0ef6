package providers

import (
	"context"
	"errors"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"model_gateway/internal/identifier"
	"model_gateway/internal/models"
)

// OpenAIAdapter serves openai:* identifiers through the official REST
// API via the go-openai client.
type OpenAIAdapter struct {
	client *openai.Client
}

func NewOpenAIAdapter(apiKey string, timeout time.Duration) *OpenAIAdapter {
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = newHTTPClient(timeout)
	return &OpenAIAdapter{client: openai.NewClientWithConfig(cfg)}
}

func (o *OpenAIAdapter) Kind() string {
	return identifier.ProviderOpenAI
}

// classifyOpenAI maps go-openai error types onto the normalized kinds.
func classifyOpenAI(err error) *AdapterError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(identifier.ProviderOpenAI, apiErr.HTTPStatusCode, []byte(apiErr.Message))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(identifier.ProviderOpenAI, reqErr.HTTPStatusCode, nil)
	}
	return classifyTransport(identifier.ProviderOpenAI, err)
}

func (o *OpenAIAdapter) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	list, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, classifyOpenAI(err)
	}

	out := make([]models.ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		out = append(out, models.ModelInfo{
			ID:          identifier.Cloud(identifier.ProviderOpenAI, m.ID).String(),
			DisplayName: m.ID,
			Provider:    identifier.ProviderOpenAI,
		})
	}
	return out, nil
}

func (o *OpenAIAdapter) chatRequest(req GenerateRequest, stream bool) openai.ChatCompletionRequest {
	msgs := historyWithPrompt(req)
	oaMsgs := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		oaMsgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    oaMsgs,
		Temperature: float32(req.Params.Temperature),
		MaxTokens:   req.Params.MaxTokens,
		Stream:      stream,
	}
}

func (o *OpenAIAdapter) Generate(ctx context.Context, req GenerateRequest) (*Completion, error) {
	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, o.chatRequest(req, false))
	if err != nil {
		return nil, classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return nil, Fail(identifier.ProviderOpenAI, FailureInvalidResponse, errors.New("response contained no choices"))
	}

	return &Completion{
		Content:      resp.Choices[0].Message.Content,
		Model:        identifier.Cloud(identifier.ProviderOpenAI, resp.Model).String(),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Latency:      time.Since(start),
	}, nil
}

func (o *OpenAIAdapter) Stream(ctx context.Context, req GenerateRequest) (<-chan Chunk, error) {
	stream, err := o.client.CreateChatCompletionStream(ctx, o.chatRequest(req, true))
	if err != nil {
		return nil, classifyOpenAI(err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				select {
				case out <- Chunk{Done: true}:
				case <-ctx.Done():
				}
				return
			}
			if err != nil {
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			select {
			case out <- Chunk{Content: resp.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (o *OpenAIAdapter) Embeddings(ctx context.Context, text string) ([]float64, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.SmallEmbedding3,
	})
	if err != nil {
		return nil, classifyOpenAI(err)
	}
	if len(resp.Data) == 0 {
		return nil, Fail(identifier.ProviderOpenAI, FailureInvalidResponse, errors.New("embedding response contained no data"))
	}

	vec := make([]float64, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float64(v)
	}
	return vec, nil
}
