package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"model_gateway/internal/identifier"
	"model_gateway/internal/logging"
	"model_gateway/internal/models"
	"model_gateway/internal/storage"
	"model_gateway/internal/utils"
)

type credentialView struct {
	Provider     string `json:"provider"`
	MaskedKey    string `json:"masked_key"`
	DefaultModel string `json:"default_model"`
}

// handleAdminListCredentials serves GET /admin/credentials. Keys are
// decrypted only to compute the masked form; plaintext never leaves
// the process.
func (d *Dependencies) handleAdminListCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := d.Credentials.List(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list credentials")
		return
	}

	views := make([]credentialView, 0, len(creds))
	for _, cred := range creds {
		view := credentialView{
			Provider:     cred.Provider,
			DefaultModel: cred.DefaultModel,
		}
		decrypted, err := d.Credentials.GetByProvider(r.Context(), cred.Provider)
		if err != nil {
			logging.Warningf("failed to decrypt credential for %s: %v", cred.Provider, err)
			view.MaskedKey = "<undecryptable>"
		} else {
			view.MaskedKey = models.MaskKey(decrypted.APIKey)
		}
		views = append(views, view)
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"credentials": views,
		"count":       len(views),
	})
}

type upsertCredentialBody struct {
	APIKey       string `json:"api_key"`
	DefaultModel string `json:"default_model"`
}

// handleAdminUpsertCredential serves PUT /admin/credentials/{provider}.
func (d *Dependencies) handleAdminUpsertCredential(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	if !identifier.IsKnownProvider(provider) {
		utils.RespondWithError(w, http.StatusBadRequest, "Unknown provider")
		return
	}

	var body upsertCredentialBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.APIKey == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Field 'api_key' is required")
		return
	}

	cred := &models.ProviderCredential{
		Provider:     provider,
		DefaultModel: body.DefaultModel,
	}
	if err := d.Credentials.Upsert(r.Context(), cred, body.APIKey); err != nil {
		logging.Errorf("failed to store credential for %s: %v", provider, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to store credential")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, credentialView{
		Provider:     provider,
		MaskedKey:    models.MaskKey(body.APIKey),
		DefaultModel: body.DefaultModel,
	})
}

// handleAdminDeleteCredential serves DELETE /admin/credentials/{provider}.
func (d *Dependencies) handleAdminDeleteCredential(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	if err := d.Credentials.Delete(r.Context(), provider); err != nil {
		if errors.Is(err, storage.ErrCredentialNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Credential not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete credential")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"deleted": provider})
}
