// ABOUTME: Proxy configuration lookup keyed by proxy id
// ABOUTME: Configs are opaque JSON documents consumed by the proxy connector
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/callbridge/models"
)

// ProxyConfigRepository provides access to the proxy_configs table.
type ProxyConfigRepository struct {
	db *sql.DB
}

// NewProxyConfigRepository creates a new proxy config repository.
func NewProxyConfigRepository(db *sql.DB) *ProxyConfigRepository {
	return &ProxyConfigRepository{db: db}
}

// Get returns the proxy config with id, or nil.
func (r *ProxyConfigRepository) Get(ctx context.Context, id string) (*models.ProxyConfig, error) {
	if id == "" {
		return nil, nil
	}
	var pc models.ProxyConfig
	var raw string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, config, created_at, updated_at FROM proxy_configs WHERE id = ?
	`, id).Scan(&pc.ID, &raw, &pc.CreatedAt, &pc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proxy config: %w", err)
	}
	pc.Config = json.RawMessage(raw)
	return &pc, nil
}

// Save inserts or replaces a proxy config.
func (r *ProxyConfigRepository) Save(ctx context.Context, pc *models.ProxyConfig) error {
	if !json.Valid(pc.Config) {
		return fmt.Errorf("proxy config %s is not valid json", pc.ID)
	}
	now := time.Now().UTC()
	if pc.CreatedAt.IsZero() {
		pc.CreatedAt = now
	}
	pc.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO proxy_configs (id, config, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at
	`, pc.ID, string(pc.Config), pc.CreatedAt, pc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save proxy config: %w", err)
	}
	return nil
}
