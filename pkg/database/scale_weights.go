package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kuncy7/toolid/pkg/models"
)

// RecordWeight appends one reading for a scale in its own short transaction
func (dm *DatabaseManager) RecordWeight(ctx context.Context, scaleID int64, weight float64) (*models.ScaleWeight, error) {
	tx, err := dm.BeginTxWithHealthCheck(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	reading := models.ScaleWeight{
		ScaleID:   scaleID,
		Weight:    weight,
		CreatedAt: time.Now().UTC(),
	}

	query := `
        INSERT INTO scale_weights (scale_id, weight, created_at)
        VALUES ($1, $2, $3)
        RETURNING id
    `

	if err := tx.QueryRowContext(ctx, query, scaleID, weight, reading.CreatedAt).Scan(&reading.ID); err != nil {
		return nil, fmt.Errorf("failed to insert weight: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit weight: %w", err)
	}

	return &reading, nil
}

// GetLatestScaleWeight returns the most recent reading of a scale
func (dm *DatabaseManager) GetLatestScaleWeight(ctx context.Context, scaleID int64) (*models.ScaleWeight, error) {
	query := `
        SELECT id, scale_id, weight, created_at
        FROM scale_weights
        WHERE scale_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT 1
    `

	var reading models.ScaleWeight
	err := dm.QueryRowWithHealthCheck(ctx, query, scaleID).
		Scan(&reading.ID, &reading.ScaleID, &reading.Weight, &reading.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("Weight reading for scale", scaleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest weight: %w", err)
	}

	return &reading, nil
}

// GetScaleWeightHistory returns up to limit readings of a scale, newest first
func (dm *DatabaseManager) GetScaleWeightHistory(ctx context.Context, scaleID int64, limit int) ([]models.ScaleWeight, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
        SELECT id, scale_id, weight, created_at
        FROM scale_weights
        WHERE scale_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2
    `

	rows, err := dm.QueryWithHealthCheck(ctx, query, scaleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query weights: %w", err)
	}
	defer rows.Close()

	var readings []models.ScaleWeight
	for rows.Next() {
		var reading models.ScaleWeight
		if err := rows.Scan(&reading.ID, &reading.ScaleID, &reading.Weight, &reading.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan weight: %w", err)
		}
		readings = append(readings, reading)
	}

	return readings, rows.Err()
}
