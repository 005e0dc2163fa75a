package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kuncy7/toolid/pkg/models"
)

// ListUserPermissions returns the permissions of a user
func (dm *DatabaseManager) ListUserPermissions(ctx context.Context, userID uuid.UUID) ([]models.UserPermission, error) {
	if _, err := dm.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	query := `
        SELECT id, user_id, module, permission, granted
        FROM user_permissions
        WHERE user_id = $1
        ORDER BY module, permission
    `

	rows, err := dm.QueryWithHealthCheck(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	permissions := []models.UserPermission{}
	for rows.Next() {
		var p models.UserPermission
		if err := rows.Scan(&p.ID, &p.UserID, &p.Module, &p.Permission, &p.Granted); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}

	return permissions, rows.Err()
}

// UpsertUserPermission sets the granted flag of a module permission
func (dm *DatabaseManager) UpsertUserPermission(ctx context.Context, userID uuid.UUID, module, permission string, granted bool) (*models.UserPermission, error) {
	if _, err := dm.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	query := `
        INSERT INTO user_permissions (user_id, module, permission, granted)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id, module, permission) DO UPDATE
        SET granted = EXCLUDED.granted
        RETURNING id, user_id, module, permission, granted
    `

	var p models.UserPermission
	err := dm.QueryRowWithHealthCheck(ctx, query, userID, module, permission, granted).
		Scan(&p.ID, &p.UserID, &p.Module, &p.Permission, &p.Granted)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert permission: %w", err)
	}

	return &p, nil
}
