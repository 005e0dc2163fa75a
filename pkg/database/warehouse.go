package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kuncy7/toolid/pkg/models"
)

// GetWarehouseConfig returns the warehouse configuration, or nil when none is stored
func (dm *DatabaseManager) GetWarehouseConfig(ctx context.Context) (*models.WarehouseConfig, error) {
	query := `SELECT id, provider, options, updated_at FROM warehouse_config ORDER BY id LIMIT 1`

	var cfg models.WarehouseConfig
	var optionsJSON []byte

	err := dm.QueryRowWithHealthCheck(ctx, query).Scan(&cfg.ID, &cfg.Provider, &optionsJSON, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get warehouse config: %w", err)
	}

	cfg.Options = make(map[string]interface{})
	if err := json.Unmarshal(optionsJSON, &cfg.Options); err != nil {
		return nil, fmt.Errorf("failed to parse warehouse options: %w", err)
	}

	return &cfg, nil
}

// SaveWarehouseConfig overwrites the single warehouse configuration row
func (dm *DatabaseManager) SaveWarehouseConfig(ctx context.Context, provider string, options map[string]interface{}) (*models.WarehouseConfig, error) {
	if provider == "" {
		return nil, forbidden("warehouse provider must not be empty")
	}

	optionsJSON, err := marshalJSONColumn(options, "{}")
	if err != nil {
		return nil, err
	}

	current, err := dm.GetWarehouseConfig(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var id int64
	if current == nil {
		err = dm.QueryRowWithHealthCheck(ctx,
			`INSERT INTO warehouse_config (provider, options, updated_at) VALUES ($1, $2, $3) RETURNING id`,
			provider, optionsJSON, now,
		).Scan(&id)
	} else {
		id = current.ID
		_, err = dm.ExecWithHealthCheck(ctx,
			`UPDATE warehouse_config SET provider = $1, options = $2, updated_at = $3 WHERE id = $4`,
			provider, optionsJSON, now, id,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save warehouse config: %w", err)
	}

	if options == nil {
		options = map[string]interface{}{}
	}

	return &models.WarehouseConfig{ID: id, Provider: provider, Options: options, UpdatedAt: now}, nil
}

// ListToolOrders returns all warehouse orders, newest first
func (dm *DatabaseManager) ListToolOrders(ctx context.Context) ([]models.ToolOrder, error) {
	query := `SELECT id, external_id, items, status, ordered_at FROM tool_orders ORDER BY ordered_at DESC, id DESC`

	rows, err := dm.QueryWithHealthCheck(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []models.ToolOrder{}
	for rows.Next() {
		var order models.ToolOrder
		var itemsJSON []byte
		if err := rows.Scan(&order.ID, &order.ExternalID, &itemsJSON, &order.Status, &order.OrderedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		order.Items = []interface{}{}
		if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
			return nil, fmt.Errorf("failed to parse items of order %d: %w", order.ID, err)
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// CreateToolOrder stores a pending warehouse order
func (dm *DatabaseManager) CreateToolOrder(ctx context.Context, externalID *string, items []interface{}) (*models.ToolOrder, error) {
	if items == nil {
		items = []interface{}{}
	}

	itemsJSON, err := marshalJSONColumn(items, "[]")
	if err != nil {
		return nil, err
	}

	order := models.ToolOrder{
		ExternalID: externalID,
		Items:      items,
		Status:     "pending",
		OrderedAt:  time.Now().UTC(),
	}

	err = dm.QueryRowWithHealthCheck(ctx,
		`INSERT INTO tool_orders (external_id, items, status, ordered_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		externalID, itemsJSON, order.Status, order.OrderedAt,
	).Scan(&order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	return &order, nil
}

// ListToolMappings returns all external tool mappings
func (dm *DatabaseManager) ListToolMappings(ctx context.Context) ([]models.ToolMapping, error) {
	rows, err := dm.QueryWithHealthCheck(ctx,
		`SELECT id, external_tool_id, internal_tool_id FROM tool_id_mapping ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool mappings: %w", err)
	}
	defer rows.Close()

	mappings := []models.ToolMapping{}
	for rows.Next() {
		var m models.ToolMapping
		if err := rows.Scan(&m.ID, &m.ExternalToolID, &m.InternalToolID); err != nil {
			return nil, fmt.Errorf("failed to scan tool mapping: %w", err)
		}
		mappings = append(mappings, m)
	}

	return mappings, rows.Err()
}

// CreateToolMapping maps an external tool id onto an existing tool
func (dm *DatabaseManager) CreateToolMapping(ctx context.Context, externalToolID string, internalToolID int64) (*models.ToolMapping, error) {
	if externalToolID == "" {
		return nil, forbidden("external_tool_id must not be empty")
	}

	if _, err := dm.GetTool(ctx, internalToolID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound("Internal tool", internalToolID)
		}
		return nil, err
	}

	m := models.ToolMapping{ExternalToolID: externalToolID, InternalToolID: internalToolID}
	err := dm.QueryRowWithHealthCheck(ctx,
		`INSERT INTO tool_id_mapping (external_tool_id, internal_tool_id) VALUES ($1, $2) RETURNING id`,
		externalToolID, internalToolID,
	).Scan(&m.ID)

	if isUniqueViolation(err) {
		return nil, forbidden("External tool ID '%s' is already mapped.", externalToolID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create tool mapping: %w", err)
	}

	return &m, nil
}

// DeleteToolMapping removes a mapping; unknown ids are ignored
func (dm *DatabaseManager) DeleteToolMapping(ctx context.Context, id int64) error {
	if _, err := dm.ExecWithHealthCheck(ctx, `DELETE FROM tool_id_mapping WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete tool mapping: %w", err)
	}
	return nil
}
