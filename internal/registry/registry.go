// Package registry tracks registered client nodes together with their
// last probed health. Node identity lives in Postgres; health snapshots
// live only in memory and are replaced whole, so a reader never sees a
// half-updated view of a node.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"model_gateway/internal/models"
)

// LocalNodeID keys the co-located engine's health snapshot. Registered
// nodes always have positive IDs.
const LocalNodeID int64 = 0

var (
	// ErrNodeNotVisible is returned for lookups of nodes the caller may
	// not see. Handlers translate it the same way as a missing node so
	// existence is not leaked.
	ErrNodeNotVisible = errors.New("node is not visible to caller")
)

// HealthSnapshot is one probe's view of a node. Snapshots are immutable
// once applied.
type HealthSnapshot struct {
	Status    models.NodeStatus
	LatencyMs int64
	Models    []models.ModelInfo
	CheckedAt time.Time
}

// NodeSource is the persistence surface the registry needs. Satisfied
// by storage.NodeRepository.
type NodeSource interface {
	GetByID(ctx context.Context, id int64) (*models.ClientNode, error)
	ListActive(ctx context.Context) ([]*models.ClientNode, error)
	ListAll(ctx context.Context) ([]*models.ClientNode, error)
}

// Registry is the authoritative in-process view of node health.
type Registry struct {
	nodes NodeSource

	mu     sync.RWMutex
	health map[int64]HealthSnapshot
}

func New(nodes NodeSource) *Registry {
	return &Registry{
		nodes:  nodes,
		health: make(map[int64]HealthSnapshot),
	}
}

// ApplyProbeResult replaces a node's health snapshot atomically.
func (r *Registry) ApplyProbeResult(nodeID int64, snap HealthSnapshot) {
	if snap.CheckedAt.IsZero() {
		snap.CheckedAt = time.Now()
	}
	r.mu.Lock()
	r.health[nodeID] = snap
	r.mu.Unlock()
}

// Forget drops a node's health snapshot, e.g. after deactivation.
func (r *Registry) Forget(nodeID int64) {
	r.mu.Lock()
	delete(r.health, nodeID)
	r.mu.Unlock()
}

// Snapshot returns the last applied snapshot for a node. ok is false
// when the node has never been probed.
func (r *Registry) Snapshot(nodeID int64) (HealthSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.health[nodeID]
	return snap, ok
}

// attachHealth copies the cached snapshot onto a node record. Nodes
// never probed report status unknown.
func (r *Registry) attachHealth(node *models.ClientNode) {
	snap, ok := r.Snapshot(node.ID)
	if !ok {
		node.Status = models.NodeStatusUnknown
		return
	}
	node.Status = snap.Status
	node.LatencyMs = snap.LatencyMs
	node.CachedModels = snap.Models
	checkedAt := snap.CheckedAt
	node.LastSeenAt = &checkedAt
}

// GetNode fetches a node by ID with health attached, without any
// visibility filtering. Admin surfaces and the prober use this.
func (r *Registry) GetNode(ctx context.Context, id int64) (*models.ClientNode, error) {
	node, err := r.nodes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.attachHealth(node)
	return node, nil
}

// VisibleNode fetches a node by ID and enforces the visibility rule for
// the given user. A node that exists but is hidden reports
// ErrNodeNotVisible.
func (r *Registry) VisibleNode(ctx context.Context, id int64, userID uuid.UUID) (*models.ClientNode, error) {
	node, err := r.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if !node.VisibleTo(userID) {
		return nil, fmt.Errorf("node %d: %w", id, ErrNodeNotVisible)
	}
	return node, nil
}

// RoutableNode is VisibleNode restricted to nodes worth dialing: a node
// last seen offline is skipped by the router without an attempt.
func (r *Registry) RoutableNode(ctx context.Context, id int64, userID uuid.UUID) (*models.ClientNode, error) {
	node, err := r.VisibleNode(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if node.Status == models.NodeStatusOffline {
		return nil, fmt.Errorf("node %d is offline: %w", id, ErrNodeNotVisible)
	}
	return node, nil
}

// ListVisible returns all active nodes visible to the user, each with
// health attached.
func (r *Registry) ListVisible(ctx context.Context, userID uuid.UUID) ([]*models.ClientNode, error) {
	nodes, err := r.nodes.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}

	visible := make([]*models.ClientNode, 0, len(nodes))
	for _, node := range nodes {
		if !node.VisibleTo(userID) {
			continue
		}
		r.attachHealth(node)
		visible = append(visible, node)
	}
	return visible, nil
}

// ListAllWithHealth returns every node regardless of visibility, for
// admin surfaces.
func (r *Registry) ListAllWithHealth(ctx context.Context) ([]*models.ClientNode, error) {
	nodes, err := r.nodes.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	for _, node := range nodes {
		r.attachHealth(node)
	}
	return nodes, nil
}
