package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"model_gateway/internal/logging"
	"model_gateway/internal/models"
	"model_gateway/internal/storage"
	"model_gateway/internal/utils"
)

func nodeIDFromPath(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// handleAdminListNodes serves GET /admin/nodes: every registration,
// active or not, with health attached.
func (d *Dependencies) handleAdminListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := d.Registry.ListAllWithHealth(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list nodes")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"count": len(nodes),
	})
}

type createNodeBody struct {
	Name     string          `json:"name"`
	Kind     models.NodeKind `json:"kind,omitempty"`
	Hostname string          `json:"hostname"`
	Port     int             `json:"port"`
	IsPublic bool            `json:"is_public"`
	OwnerID  string          `json:"owner_id"`
	Metadata models.JSONB    `json:"metadata,omitempty"`
}

// handleAdminCreateNode serves POST /admin/nodes.
func (d *Dependencies) handleAdminCreateNode(w http.ResponseWriter, r *http.Request) {
	var body createNodeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Name == "" || body.Hostname == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Fields 'name' and 'hostname' are required")
		return
	}
	if body.Port < 1 || body.Port > 65535 {
		utils.RespondWithError(w, http.StatusBadRequest, "Field 'port' must be a valid TCP port")
		return
	}
	ownerID, err := uuid.Parse(body.OwnerID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Field 'owner_id' must be a UUID")
		return
	}
	if body.Kind == "" {
		body.Kind = models.NodeKindRemote
	}

	node := &models.ClientNode{
		Name:     body.Name,
		Kind:     body.Kind,
		Hostname: body.Hostname,
		Port:     body.Port,
		IsPublic: body.IsPublic,
		OwnerID:  ownerID,
		IsActive: true,
		Metadata: body.Metadata,
	}
	if err := d.Nodes.Create(r.Context(), node); err != nil {
		logging.Errorf("failed to create node: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create node")
		return
	}

	// Probe immediately so the new node shows real health on the next
	// listing instead of sitting at unknown until the sweep.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		d.Prober.ProbeNode(ctx, node)
	}()

	node.Status = models.NodeStatusUnknown
	utils.RespondWithJSON(w, http.StatusCreated, node)
}

// handleAdminGetNode serves GET /admin/nodes/{id}.
func (d *Dependencies) handleAdminGetNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeIDFromPath(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid node ID")
		return
	}

	node, err := d.Registry.GetNode(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNodeNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Node not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get node")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, node)
}

type updateNodeBody struct {
	Name     *string         `json:"name,omitempty"`
	Kind     *models.NodeKind `json:"kind,omitempty"`
	Hostname *string         `json:"hostname,omitempty"`
	Port     *int            `json:"port,omitempty"`
	IsPublic *bool           `json:"is_public,omitempty"`
	IsActive *bool           `json:"is_active,omitempty"`
	Metadata models.JSONB    `json:"metadata,omitempty"`
}

// handleAdminUpdateNode serves PUT /admin/nodes/{id}. Only supplied
// fields change.
func (d *Dependencies) handleAdminUpdateNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeIDFromPath(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid node ID")
		return
	}

	node, err := d.Nodes.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNodeNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Node not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get node")
		return
	}

	var body updateNodeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if body.Name != nil {
		node.Name = *body.Name
	}
	if body.Kind != nil {
		node.Kind = *body.Kind
	}
	if body.Hostname != nil {
		node.Hostname = *body.Hostname
	}
	if body.Port != nil {
		if *body.Port < 1 || *body.Port > 65535 {
			utils.RespondWithError(w, http.StatusBadRequest, "Field 'port' must be a valid TCP port")
			return
		}
		node.Port = *body.Port
	}
	if body.IsPublic != nil {
		node.IsPublic = *body.IsPublic
	}
	if body.IsActive != nil {
		node.IsActive = *body.IsActive
	}
	if body.Metadata != nil {
		node.Metadata = body.Metadata
	}

	if err := d.Nodes.Update(r.Context(), node); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update node")
		return
	}

	if body.IsActive != nil && !*body.IsActive {
		d.Registry.Forget(node.ID)
	}

	utils.RespondWithJSON(w, http.StatusOK, node)
}

// handleAdminDeactivateNode serves DELETE /admin/nodes/{id}. The row
// survives for audit; the node just stops being routable or visible.
func (d *Dependencies) handleAdminDeactivateNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeIDFromPath(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid node ID")
		return
	}

	if err := d.Nodes.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNodeNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Node not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to deactivate node")
		return
	}

	d.Registry.Forget(id)
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"deactivated": id})
}

// handleAdminProbeNode serves POST /admin/nodes/{id}/probe: a
// synchronous on-demand health check.
func (d *Dependencies) handleAdminProbeNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeIDFromPath(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid node ID")
		return
	}

	node, err := d.Nodes.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNodeNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Node not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get node")
		return
	}

	snap := d.Prober.ProbeNode(r.Context(), node)
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"node_id":    node.ID,
		"status":     snap.Status,
		"latency_ms": snap.LatencyMs,
		"models":     snap.Models,
		"checked_at": snap.CheckedAt,
	})
}

// handleAdminProbeAll serves POST /admin/probe: a full synchronous
// sweep of every active node plus the local engine.
func (d *Dependencies) handleAdminProbeAll(w http.ResponseWriter, r *http.Request) {
	probed, err := d.Prober.ProbeAll(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Probe sweep failed")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"probed": probed})
}
