package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NodeKind enumerates the transport flavors a registered node can have.
type NodeKind string

const (
	NodeKindRemote NodeKind = "remote"
	NodeKindLocal  NodeKind = "local"
)

// NodeStatus is the last probed health state of a node.
type NodeStatus string

const (
	NodeStatusOnline   NodeStatus = "online"
	NodeStatusOffline  NodeStatus = "offline"
	NodeStatusDegraded NodeStatus = "degraded"
	NodeStatusUnknown  NodeStatus = "unknown"
)

// ClientNode is a user-registered compute endpoint capable of serving one
// or more models. Identity and admin-managed fields live in Postgres;
// Status/LatencyMs/CachedModels/LastSeenAt are written only by the health
// prober through the registry.
type ClientNode struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Kind      NodeKind  `db:"kind" json:"kind"`
	Hostname  string    `db:"hostname" json:"hostname"`
	Port      int       `db:"port" json:"port"`
	IsPublic  bool      `db:"is_public" json:"is_public"`
	OwnerID   uuid.UUID `db:"owner_id" json:"owner_id"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	Metadata  JSONB     `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Health snapshot, populated from the registry cache, not the node row.
	Status       NodeStatus  `db:"-" json:"status"`
	LatencyMs    int64       `db:"-" json:"latency_ms,omitempty"`
	LastSeenAt   *time.Time  `db:"-" json:"last_seen_at,omitempty"`
	CachedModels []ModelInfo `db:"-" json:"cached_models,omitempty"`
}

// Address returns the host:port dial target for the node.
func (n *ClientNode) Address() string {
	return n.Hostname + ":" + strconv.Itoa(n.Port)
}

// VisibleTo implements the listing visibility rule: active, and either
// public or owned by the user. Inactive nodes are invisible even to their
// owner; admin status does not widen listings.
func (n *ClientNode) VisibleTo(userID uuid.UUID) bool {
	if !n.IsActive {
		return false
	}
	return n.IsPublic || n.OwnerID == userID
}
