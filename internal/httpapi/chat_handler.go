package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"model_gateway/internal/identifier"
	"model_gateway/internal/logging"
	"model_gateway/internal/middleware"
	"model_gateway/internal/models"
	"model_gateway/internal/providers"
	"model_gateway/internal/router"
	"model_gateway/internal/utils"
)

type chatRequestBody struct {
	Model             string              `json:"model,omitempty"`
	ConversationModel string              `json:"conversation_model,omitempty"`
	Prompt            string              `json:"prompt"`
	History           []providers.Message `json:"history,omitempty"`
	Stream            bool                `json:"stream,omitempty"`
	Temperature       float64             `json:"temperature,omitempty"`
	MaxTokens         int                 `json:"max_tokens,omitempty"`
}

type chatResponseBody struct {
	RequestID string               `json:"request_id"`
	Content   string               `json:"content"`
	Model     string               `json:"model"`
	Routing   router.RouteDecision `json:"routing"`
}

type chatStreamEvent struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
}

// handleChat serves POST /v1/chat. Whatever the state of the backends,
// a well-formed request gets a 200: the fallback chain absorbs every
// backend failure and bottoms out at the mock adapter.
func (d *Dependencies) handleChat(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
		return
	}

	var body chatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Prompt == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Field 'prompt' is required")
		return
	}

	req := router.ChatRequest{
		RequestID:         uuid.New(),
		Model:             body.Model,
		ConversationModel: body.ConversationModel,
		Prompt:            body.Prompt,
		History:           body.History,
		Params: providers.Params{
			Temperature: body.Temperature,
			MaxTokens:   body.MaxTokens,
		},
	}

	if body.Stream {
		d.streamChat(w, r, req)
		return
	}

	result, err := d.Router.Generate(r.Context(), req, user)
	if err != nil {
		// Only context cancellation reaches here; the client is gone.
		logging.Debugf("chat request %s abandoned: %v", req.RequestID, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, chatResponseBody{
		RequestID: req.RequestID.String(),
		Content:   result.Completion.Content,
		Model:     result.Decision.Resolved,
		Routing:   result.Decision,
	})
}

// streamChat relays chunks as server-sent events. The routing decision
// goes out as the first event so clients know where the answer comes
// from before the first token.
func (d *Dependencies) streamChat(w http.ResponseWriter, r *http.Request, req router.ChatRequest) {
	user, _ := middleware.GetUser(r.Context())

	flusher, ok := utils.PrepareSSE(w)
	if !ok {
		utils.RespondWithError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	result, err := d.Router.Stream(r.Context(), req, user)
	if err != nil {
		logging.Debugf("chat stream %s abandoned: %v", req.RequestID, err)
		return
	}

	if err := utils.WriteSSEData(w, flusher, map[string]any{
		"request_id": req.RequestID.String(),
		"routing":    result.Decision,
	}); err != nil {
		return
	}

	for chunk := range result.Chunks {
		event := chatStreamEvent{Content: chunk.Content, Done: chunk.Done}
		if err := utils.WriteSSEData(w, flusher, event); err != nil {
			// Client disconnected; the request context cancels the
			// upstream stream.
			return
		}
	}

	utils.WriteSSEDone(w, flusher)
}

type embeddingsRequestBody struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

type embeddingsResponseBody struct {
	Model     string    `json:"model"`
	Embedding []float64 `json:"embedding"`
}

// handleEmbeddings serves POST /v1/embeddings. Unlike chat, embeddings
// do not fall back: a caller comparing vectors needs them all from the
// same model, so a failed backend is surfaced as an error.
func (d *Dependencies) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
		return
	}

	var body embeddingsRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Input == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Field 'input' is required")
		return
	}

	id, ok := identifier.Resolve(body.Model)
	if !ok {
		id = d.Router.SystemDefault(r.Context())
	}

	vector, err := d.embeddingsFor(r, id, user.ID, body.Input)
	if err != nil {
		kind, _ := providers.FailureOf(err)
		switch kind {
		case providers.FailureAuth:
			utils.RespondWithError(w, http.StatusBadGateway, "Provider rejected the stored credential")
		case providers.FailureRateLimited:
			utils.RespondWithError(w, http.StatusTooManyRequests, "Provider rate limit hit")
		default:
			utils.RespondWithError(w, http.StatusBadGateway, "Embedding backend unavailable")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, embeddingsResponseBody{
		Model:     id.String(),
		Embedding: vector,
	})
}

func (d *Dependencies) embeddingsFor(r *http.Request, id identifier.Identifier, userID uuid.UUID, input string) ([]float64, error) {
	ctx := r.Context()

	var node *models.ClientNode
	if id.Kind == identifier.KindNode {
		n, err := d.Registry.RoutableNode(ctx, id.NodeID, userID)
		if err != nil {
			return nil, providers.Fail("node", providers.FailureUnreachable, err)
		}
		node = n
	}

	adapter, err := d.Factory.ForIdentifier(ctx, id, node)
	if err != nil {
		return nil, err
	}

	// Self-hosted engines need the model name on the embeddings call.
	if na, ok := adapter.(*providers.NodeAdapter); ok {
		return na.EmbeddingsModel(ctx, id.Model, input)
	}
	if embedder, ok := adapter.(providers.Embedder); ok {
		return embedder.Embeddings(ctx, input)
	}
	return nil, providers.Fail(adapter.Kind(), providers.FailureInvalidResponse,
		errors.New("backend does not support embeddings"))
}
