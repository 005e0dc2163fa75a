package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kuncy7/toolid/pkg/models"
)

// AddToolWeight records a manual weight measurement of a tool
func (dm *DatabaseManager) AddToolWeight(ctx context.Context, toolID int64, weight float64, measuredBy *uuid.UUID) (*models.ToolWeight, error) {
	if _, err := dm.GetTool(ctx, toolID); err != nil {
		return nil, err
	}

	query := `
        INSERT INTO tool_weights (tool_id, weight_value, measured_at, measured_by)
        VALUES ($1, $2, $3, $4)
        RETURNING id, tool_id, weight_value, measured_at, measured_by
    `

	var w models.ToolWeight
	err := dm.QueryRowWithHealthCheck(ctx, query, toolID, weight, time.Now().UTC(), measuredBy).
		Scan(&w.ID, &w.ToolID, &w.WeightValue, &w.MeasuredAt, &w.MeasuredBy)
	if err != nil {
		return nil, fmt.Errorf("failed to add tool weight: %w", err)
	}

	return &w, nil
}

// ListToolWeights returns the measurement history of a tool, oldest first
func (dm *DatabaseManager) ListToolWeights(ctx context.Context, toolID int64) ([]models.ToolWeight, error) {
	query := `
        SELECT id, tool_id, weight_value, measured_at, measured_by
        FROM tool_weights
        WHERE tool_id = $1
        ORDER BY measured_at, id
    `

	rows, err := dm.QueryWithHealthCheck(ctx, query, toolID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool weights: %w", err)
	}
	defer rows.Close()

	weights := []models.ToolWeight{}
	for rows.Next() {
		var w models.ToolWeight
		if err := rows.Scan(&w.ID, &w.ToolID, &w.WeightValue, &w.MeasuredAt, &w.MeasuredBy); err != nil {
			return nil, fmt.Errorf("failed to scan tool weight: %w", err)
		}
		weights = append(weights, w)
	}

	return weights, rows.Err()
}
