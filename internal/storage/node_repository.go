package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"model_gateway/internal/models"
)

// NodeRepository handles client node persistence. Health fields
// (status, latency, cached models) are not stored here; they live in the
// registry's in-memory snapshot and are repopulated by probing.
type NodeRepository struct {
	db *DB
}

// NewNodeRepository creates a new node repository
func NewNodeRepository(db *DB) *NodeRepository {
	return &NodeRepository{db: db}
}

const nodeColumns = `id, name, kind, hostname, port, is_public, owner_id, is_active, metadata, created_at, updated_at`

// GetByID retrieves a node by ID
func (r *NodeRepository) GetByID(ctx context.Context, id int64) (*models.ClientNode, error) {
	var node models.ClientNode
	query := `SELECT ` + nodeColumns + ` FROM client_nodes WHERE id = $1`

	err := r.db.conn.GetContext(ctx, &node, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	return &node, nil
}

// ListActive returns all active nodes, regardless of visibility. The
// registry applies per-user visibility on top of this.
func (r *NodeRepository) ListActive(ctx context.Context) ([]*models.ClientNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM client_nodes WHERE is_active = true ORDER BY id`

	var nodes []*models.ClientNode
	if err := r.db.conn.SelectContext(ctx, &nodes, query); err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	return nodes, nil
}

// ListAll returns every node including deactivated ones, for admin views
func (r *NodeRepository) ListAll(ctx context.Context) ([]*models.ClientNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM client_nodes ORDER BY id`

	var nodes []*models.ClientNode
	if err := r.db.conn.SelectContext(ctx, &nodes, query); err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	return nodes, nil
}

// Create inserts a new node and returns it with its assigned ID
func (r *NodeRepository) Create(ctx context.Context, node *models.ClientNode) error {
	query := `
		INSERT INTO client_nodes (name, kind, hostname, port, is_public, owner_id, is_active, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING id, created_at, updated_at
	`

	row := r.db.conn.QueryRowxContext(ctx, query,
		node.Name, node.Kind, node.Hostname, node.Port,
		node.IsPublic, node.OwnerID, node.IsActive, node.Metadata,
	)
	if err := row.Scan(&node.ID, &node.CreatedAt, &node.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	return nil
}

// Update persists admin-mutable fields (name, public flag, endpoint,
// active flag, metadata)
func (r *NodeRepository) Update(ctx context.Context, node *models.ClientNode) error {
	query := `
		UPDATE client_nodes
		SET name = $2, hostname = $3, port = $4, is_public = $5, is_active = $6, metadata = $7, updated_at = now()
		WHERE id = $1
	`

	result, err := r.db.conn.ExecContext(ctx, query,
		node.ID, node.Name, node.Hostname, node.Port,
		node.IsPublic, node.IsActive, node.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}

	return nil
}

// Deactivate soft-deletes a node: it disappears from all listings and
// routing, while in-flight requests already bound to it run to
// completion.
func (r *NodeRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE client_nodes SET is_active = false, updated_at = now() WHERE id = $1`

	result, err := r.db.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate node: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deactivate result: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}

	return nil
}

// Delete removes a node permanently
func (r *NodeRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM client_nodes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}

	return nil
}

// CountOwnedBy returns the number of nodes registered by a user
func (r *NodeRepository) CountOwnedBy(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var count int
	err := r.db.conn.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM client_nodes WHERE owner_id = $1 AND is_active = true`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to count nodes: %w", err)
	}
	return count, nil
}
