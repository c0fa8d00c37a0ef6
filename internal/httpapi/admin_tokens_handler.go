package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"model_gateway/internal/auth"
	"model_gateway/internal/logging"
	"model_gateway/internal/models"
	"model_gateway/internal/queue"
	"model_gateway/internal/utils"
)

type createTokenBody struct {
	ServiceName string   `json:"service_name"`
	Roles       []string `json:"roles"`
	ExpiresIn   string   `json:"expires_in,omitempty"` // Go duration, e.g. "720h"
}

// handleAdminCreateToken serves POST /admin/tokens. The plaintext token
// appears in this response and nowhere else; only its hash is stored.
func (d *Dependencies) handleAdminCreateToken(w http.ResponseWriter, r *http.Request) {
	var body createTokenBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.ServiceName == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Field 'service_name' is required")
		return
	}
	if len(body.Roles) == 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Field 'roles' is required")
		return
	}
	for _, role := range body.Roles {
		if !auth.Role(role).IsValid() {
			utils.RespondWithError(w, http.StatusBadRequest, "Unknown role: "+role)
			return
		}
	}

	var expiresAt *time.Time
	if body.ExpiresIn != "" {
		dur, err := time.ParseDuration(body.ExpiresIn)
		if err != nil || dur <= 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Field 'expires_in' must be a positive duration")
			return
		}
		t := time.Now().Add(dur)
		expiresAt = &t
	}

	plaintext, err := auth.GenerateToken()
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	token := &models.ServiceToken{
		ID:          uuid.New(),
		ServiceName: body.ServiceName,
		TokenHash:   auth.HashToken(plaintext),
		Roles:       pq.StringArray(body.Roles),
		Enabled:     true,
		ExpiresAt:   expiresAt,
	}
	if err := d.Tokens.Create(r.Context(), token); err != nil {
		logging.Errorf("failed to create service token: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create token")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, map[string]any{
		"id":           token.ID,
		"service_name": token.ServiceName,
		"token":        plaintext,
		"token_hash":   token.TokenHash,
		"roles":        body.Roles,
		"expires_at":   expiresAt,
	})
}

// handleAdminDisableToken serves DELETE /admin/tokens/{hash}. Tokens
// are disabled rather than deleted so the audit trail survives.
func (d *Dependencies) handleAdminDisableToken(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if err := d.Tokens.Disable(r.Context(), hash); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Token not found")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"disabled": hash})
}

// handleAdminListDeadLetters serves GET /admin/dlq: usage records that
// exhausted their delivery retries.
func (d *Dependencies) handleAdminListDeadLetters(w http.ResponseWriter, r *http.Request) {
	items, err := d.UsageWorker.DeadLetterItems(r.Context(), 100)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list dead letters")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

// handleAdminRetryDeadLetter serves POST /admin/dlq/{id}/retry.
func (d *Dependencies) handleAdminRetryDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := d.UsageWorker.RetryDeadLetterItem(r.Context(), id); err != nil {
		if errors.Is(err, queue.ErrItemNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Dead letter item not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to retry dead letter item")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"requeued": id})
}
