package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"model_gateway/internal/identifier"
	"model_gateway/internal/models"
)

// CredentialLister yields the stored cloud credentials. Satisfied by
// storage.CredentialRepository.
type CredentialLister interface {
	List(ctx context.Context) ([]*models.ProviderCredential, error)
}

// Catalog assembles the aggregate model listing a user sees: cloud
// providers with stored credentials, cached models of visible nodes,
// the local engine, and the mock backend only when nothing real is
// available.
type Catalog struct {
	registry    *Registry
	credentials CredentialLister
	defaultID   func(ctx context.Context) identifier.Identifier
}

// NewCatalog wires the catalog. defaultID reports the current system
// default so its entry can be flagged in listings.
func NewCatalog(registry *Registry, credentials CredentialLister, defaultID func(ctx context.Context) identifier.Identifier) *Catalog {
	return &Catalog{
		registry:    registry,
		credentials: credentials,
		defaultID:   defaultID,
	}
}

// ListModels builds the listing for one user. Cloud entries come from
// stored credentials (one entry per provider default model), node
// entries from the cached health snapshots of nodes visible to the
// user. Backends are never probed live here; the listing reflects the
// registry's last known state.
func (c *Catalog) ListModels(ctx context.Context, userID uuid.UUID) ([]models.ModelInfo, error) {
	var out []models.ModelInfo

	creds, err := c.credentials.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	for _, cred := range creds {
		if cred.DefaultModel == "" {
			continue
		}
		out = append(out, models.ModelInfo{
			ID:          identifier.Cloud(cred.Provider, cred.DefaultModel).String(),
			DisplayName: cred.DefaultModel,
			Provider:    cred.Provider,
		})
	}

	if snap, ok := c.registry.Snapshot(LocalNodeID); ok && snap.Status != models.NodeStatusOffline {
		out = append(out, snap.Models...)
	}

	nodes, err := c.registry.ListVisible(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, node := range nodes {
		if node.Status == models.NodeStatusOffline {
			continue
		}
		out = append(out, node.CachedModels...)
	}

	// The mock backend only appears when the gateway has nothing real
	// to offer, so an empty deployment still lists something routable.
	if len(out) == 0 {
		out = append(out, models.ModelInfo{
			ID:          identifier.Mock.String(),
			DisplayName: "Mock Echo",
			Provider:    "mock",
		})
	}

	defaultID := c.defaultID(ctx).String()
	for i := range out {
		out[i].IsDefault = out[i].ID == defaultID
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out, nil
}
