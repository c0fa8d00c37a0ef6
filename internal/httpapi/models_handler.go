package httpapi

import (
	"net/http"
	"strconv"

	"model_gateway/internal/middleware"
	"model_gateway/internal/utils"
)

// handleListModels serves GET /v1/models: the aggregate listing of
// everything the caller can route to, in canonical identifier form.
func (d *Dependencies) handleListModels(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
		return
	}

	listing, err := d.Catalog.ListModels(r.Context(), user.ID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list models")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"models": listing,
		"count":  len(listing),
	})
}

// handleListVisibleNodes serves GET /v1/nodes: the nodes the caller may
// target, with their last probed health.
func (d *Dependencies) handleListVisibleNodes(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
		return
	}

	nodes, err := d.Registry.ListVisible(r.Context(), user.ID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list nodes")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"count": len(nodes),
	})
}

// handleListUsage serves GET /v1/usage: the caller's own request
// history, most recent first.
func (d *Dependencies) handleListUsage(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	records, err := d.UsageRepo.ListByCaller(r.Context(), user.ID, limit)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list usage")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"usage": records,
		"count": len(records),
	})
}
