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

// NodeAdapter speaks the Ollama wire protocol to a self-hosted engine:
// a registered client node or the gateway's co-located local engine.
type NodeAdapter struct {
	kind     string
	baseURL  string
	nodeID   int64 // 0 for the local engine
	nodeName string
	client   *http.Client
}

// NewNodeAdapter builds an adapter for a registered client node.
func NewNodeAdapter(node *models.ClientNode, timeout time.Duration) *NodeAdapter {
	return &NodeAdapter{
		kind:     "node",
		baseURL:  "http://" + node.Address(),
		nodeID:   node.ID,
		nodeName: node.Name,
		client:   newHTTPClient(timeout),
	}
}

// NewLocalAdapter builds an adapter for the engine running next to the
// gateway itself.
func NewLocalAdapter(addr string, timeout time.Duration) *NodeAdapter {
	return &NodeAdapter{
		kind:    "local",
		baseURL: "http://" + addr,
		client:  newHTTPClient(timeout),
	}
}

func (n *NodeAdapter) Kind() string {
	return n.kind
}

// qualify turns an engine-local model name into a routable identifier.
func (n *NodeAdapter) qualify(model string) string {
	if n.kind == "local" {
		return identifier.Local(model).String()
	}
	return identifier.Node(n.nodeID, model).String()
}

type ollamaTagsResponse struct {
	Models []struct {
		Name       string    `json:"name"`
		Size       int64     `json:"size"`
		ModifiedAt time.Time `json:"modified_at"`
	} `json:"models"`
}

func (n *NodeAdapter) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, Fail(n.kind, FailureInvalidResponse, err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, classifyTransport(n.kind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(n.kind, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(n.kind, resp.StatusCode, body)
	}

	var tags ollamaTagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, Fail(n.kind, FailureInvalidResponse, fmt.Errorf("decoding tags response: %w", err))
	}

	out := make([]models.ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		out = append(out, models.ModelInfo{
			ID:          n.qualify(m.Name),
			DisplayName: m.Name,
			Provider:    n.kind,
			NodeID:      n.nodeID,
			NodeName:    n.nodeName,
			SizeBytes:   m.Size,
		})
	}
	return out, nil
}

type ollamaChatRequest struct {
	Model    string             `json:"model"`
	Messages []Message          `json:"messages"`
	Stream   bool               `json:"stream"`
	Options  *ollamaChatOptions `json:"options,omitempty"`
}

type ollamaChatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool  `json:"done"`
	PromptEvalCount int   `json:"prompt_eval_count"`
	EvalCount       int   `json:"eval_count"`
	TotalDuration   int64 `json:"total_duration"`
}

func (n *NodeAdapter) chatRequest(req GenerateRequest, stream bool) ollamaChatRequest {
	body := ollamaChatRequest{
		Model:    req.Model,
		Messages: historyWithPrompt(req),
		Stream:   stream,
	}
	if req.Params.Temperature != 0 || req.Params.MaxTokens != 0 {
		body.Options = &ollamaChatOptions{
			Temperature: req.Params.Temperature,
			NumPredict:  req.Params.MaxTokens,
		}
	}
	return body
}

func (n *NodeAdapter) Generate(ctx context.Context, req GenerateRequest) (*Completion, error) {
	start := time.Now()

	payload, err := json.Marshal(n.chatRequest(req, false))
	if err != nil {
		return nil, Fail(n.kind, FailureInvalidResponse, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, Fail(n.kind, FailureInvalidResponse, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(n.kind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(n.kind, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(n.kind, resp.StatusCode, body)
	}

	var chat ollamaChatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, Fail(n.kind, FailureInvalidResponse, fmt.Errorf("decoding chat response: %w", err))
	}

	return &Completion{
		Content:      chat.Message.Content,
		Model:        n.qualify(req.Model),
		InputTokens:  chat.PromptEvalCount,
		OutputTokens: chat.EvalCount,
		Latency:      time.Since(start),
	}, nil
}

func (n *NodeAdapter) Stream(ctx context.Context, req GenerateRequest) (<-chan Chunk, error) {
	payload, err := json.Marshal(n.chatRequest(req, true))
	if err != nil {
		return nil, Fail(n.kind, FailureInvalidResponse, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, Fail(n.kind, FailureInvalidResponse, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(n.kind, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, classifyStatus(n.kind, resp.StatusCode, body)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		// Engine streams newline-delimited JSON objects, one per token
		// batch, with done=true on the last.
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var chat ollamaChatResponse
			if err := json.Unmarshal(line, &chat); err != nil {
				continue
			}
			select {
			case out <- Chunk{Content: chat.Message.Content, Done: chat.Done}:
			case <-ctx.Done():
				return
			}
			if chat.Done {
				return
			}
		}
	}()
	return out, nil
}

type ollamaEmbeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingsResponse struct {
	Embedding []float64 `json:"embedding"`
}

// EmbeddingsModel asks the engine for an embedding vector using an
// explicit model name.
func (n *NodeAdapter) EmbeddingsModel(ctx context.Context, model, text string) ([]float64, error) {
	payload, err := json.Marshal(ollamaEmbeddingsRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, Fail(n.kind, FailureInvalidResponse, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, Fail(n.kind, FailureInvalidResponse, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(n.kind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(n.kind, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(n.kind, resp.StatusCode, body)
	}

	var emb ollamaEmbeddingsResponse
	if err := json.Unmarshal(body, &emb); err != nil {
		return nil, Fail(n.kind, FailureInvalidResponse, fmt.Errorf("decoding embeddings response: %w", err))
	}
	return emb.Embedding, nil
}
