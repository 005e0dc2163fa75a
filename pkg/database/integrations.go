package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kuncy7/toolid/pkg/models"
)

const integrationColumns = `id, name, type, config, is_active, created_at, updated_at`

func scanIntegration(row rowScanner) (*models.ExternalIntegration, error) {
	var integration models.ExternalIntegration
	var configJSON []byte

	err := row.Scan(
		&integration.ID,
		&integration.Name,
		&integration.Type,
		&configJSON,
		&integration.IsActive,
		&integration.CreatedAt,
		&integration.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	integration.Config = make(map[string]interface{})
	if err := json.Unmarshal(configJSON, &integration.Config); err != nil {
		return nil, fmt.Errorf("failed to parse config of integration %s: %w", integration.ID, err)
	}

	return &integration, nil
}

func marshalJSONColumn(v interface{}, empty string) ([]byte, error) {
	if v == nil {
		return []byte(empty), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json column: %w", err)
	}
	if string(data) == "null" {
		return []byte(empty), nil
	}
	return data, nil
}

// ListIntegrations returns all integrations
func (dm *DatabaseManager) ListIntegrations(ctx context.Context) ([]models.ExternalIntegration, error) {
	query := `SELECT ` + integrationColumns + ` FROM external_integrations ORDER BY created_at`

	rows, err := dm.QueryWithHealthCheck(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query integrations: %w", err)
	}
	defer rows.Close()

	integrations := []models.ExternalIntegration{}
	for rows.Next() {
		integration, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		integrations = append(integrations, *integration)
	}

	return integrations, rows.Err()
}

// CreateIntegration inserts a new active integration
func (dm *DatabaseManager) CreateIntegration(ctx context.Context, name, integrationType string, config map[string]interface{}) (*models.ExternalIntegration, error) {
	if name == "" || integrationType == "" {
		return nil, forbidden("integration name and type must not be empty")
	}

	configJSON, err := marshalJSONColumn(config, "{}")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	query := `
        INSERT INTO external_integrations (id, name, type, config, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, TRUE, $5, $5)
        RETURNING ` + integrationColumns

	integration, err := scanIntegration(dm.QueryRowWithHealthCheck(ctx, query,
		uuid.New(), name, integrationType, configJSON, now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create integration: %w", err)
	}

	return integration, nil
}

// GetIntegration returns the integration with the given id
func (dm *DatabaseManager) GetIntegration(ctx context.Context, id uuid.UUID) (*models.ExternalIntegration, error) {
	query := `SELECT ` + integrationColumns + ` FROM external_integrations WHERE id = $1`

	integration, err := scanIntegration(dm.QueryRowWithHealthCheck(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("Integration", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	return integration, nil
}

// UpdateIntegration applies the set fields of upd
func (dm *DatabaseManager) UpdateIntegration(ctx context.Context, id uuid.UUID, upd models.IntegrationUpdate) (*models.ExternalIntegration, error) {
	integration, err := dm.GetIntegration(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		integration.Name = *upd.Name
	}
	if upd.Type != nil {
		integration.Type = *upd.Type
	}
	if upd.Config != nil {
		integration.Config = upd.Config
	}
	if upd.IsActive != nil {
		integration.IsActive = *upd.IsActive
	}

	configJSON, err := marshalJSONColumn(integration.Config, "{}")
	if err != nil {
		return nil, err
	}

	query := `
        UPDATE external_integrations
        SET name = $1, type = $2, config = $3, is_active = $4, updated_at = $5
        WHERE id = $6
        RETURNING ` + integrationColumns

	updated, err := scanIntegration(dm.QueryRowWithHealthCheck(ctx, query,
		integration.Name, integration.Type, configJSON, integration.IsActive, time.Now().UTC(), id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("Integration", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update integration: %w", err)
	}

	return updated, nil
}

// DeleteIntegration removes an integration and its logs; unknown ids are ignored
func (dm *DatabaseManager) DeleteIntegration(ctx context.Context, id uuid.UUID) error {
	if _, err := dm.ExecWithHealthCheck(ctx, `DELETE FROM external_integrations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete integration: %w", err)
	}
	return nil
}

// AddIntegrationLog records an event for an integration
func (dm *DatabaseManager) AddIntegrationLog(ctx context.Context, integrationID uuid.UUID, eventType, status, message string) (*models.IntegrationLog, error) {
	query := `
        INSERT INTO integration_logs (integration_id, event_type, message, status, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, integration_id, event_type, message, status, created_at
    `

	var entry models.IntegrationLog
	err := dm.QueryRowWithHealthCheck(ctx, query, integrationID, eventType, message, status, time.Now().UTC()).
		Scan(&entry.ID, &entry.IntegrationID, &entry.EventType, &entry.Message, &entry.Status, &entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add integration log: %w", err)
	}

	return &entry, nil
}

// ListIntegrationLogs returns the events of an integration, oldest first
func (dm *DatabaseManager) ListIntegrationLogs(ctx context.Context, integrationID uuid.UUID) ([]models.IntegrationLog, error) {
	if _, err := dm.GetIntegration(ctx, integrationID); err != nil {
		return nil, err
	}

	query := `
        SELECT id, integration_id, event_type, message, status, created_at
        FROM integration_logs
        WHERE integration_id = $1
        ORDER BY created_at, id
    `

	rows, err := dm.QueryWithHealthCheck(ctx, query, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query integration logs: %w", err)
	}
	defer rows.Close()

	entries := []models.IntegrationLog{}
	for rows.Next() {
		var entry models.IntegrationLog
		if err := rows.Scan(&entry.ID, &entry.IntegrationID, &entry.EventType, &entry.Message, &entry.Status, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan integration log: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
