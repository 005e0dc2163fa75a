package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kuncy7/toolid/pkg/models"
)

const scaleConfigColumns = `id, port, baudrate, parity, data_bits, stop_bits, timeout, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScaleConfig(row rowScanner) (*models.ScaleConfig, error) {
	var cfg models.ScaleConfig
	err := row.Scan(
		&cfg.ID,
		&cfg.Port,
		&cfg.BaudRate,
		&cfg.Parity,
		&cfg.DataBits,
		&cfg.StopBits,
		&cfg.TimeoutMs,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadScaleConfigs loads all scale configurations ordered by id
func (dm *DatabaseManager) LoadScaleConfigs(ctx context.Context) ([]models.ScaleConfig, error) {
	query := `SELECT ` + scaleConfigColumns + ` FROM scale_configs ORDER BY id`

	rows, err := dm.QueryWithHealthCheck(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query scale configs: %w", err)
	}
	defer rows.Close()

	var configs []models.ScaleConfig
	for rows.Next() {
		cfg, err := scanScaleConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scale config: %w", err)
		}
		configs = append(configs, *cfg)
	}

	return configs, rows.Err()
}

// CreateScaleConfig inserts cfg and fills in its id and timestamp
func (dm *DatabaseManager) CreateScaleConfig(ctx context.Context, cfg *models.ScaleConfig) error {
	query := `
        INSERT INTO scale_configs (port, baudrate, parity, data_bits, stop_bits, timeout, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, updated_at
    `

	err := dm.QueryRowWithHealthCheck(ctx, query,
		cfg.Port,
		cfg.BaudRate,
		cfg.Parity,
		cfg.DataBits,
		cfg.StopBits,
		cfg.TimeoutMs,
		time.Now().UTC(),
	).Scan(&cfg.ID, &cfg.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create scale config: %w", err)
	}

	return nil
}

// GetScaleConfig returns the scale configuration with the given id
func (dm *DatabaseManager) GetScaleConfig(ctx context.Context, id int64) (*models.ScaleConfig, error) {
	query := `SELECT ` + scaleConfigColumns + ` FROM scale_configs WHERE id = $1`

	cfg, err := scanScaleConfig(dm.QueryRowWithHealthCheck(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("Scale", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scale config: %w", err)
	}

	return cfg, nil
}

// GetFirstScaleConfig returns the lowest-id scale configuration
func (dm *DatabaseManager) GetFirstScaleConfig(ctx context.Context) (*models.ScaleConfig, error) {
	query := `SELECT ` + scaleConfigColumns + ` FROM scale_configs ORDER BY id LIMIT 1`

	cfg, err := scanScaleConfig(dm.QueryRowWithHealthCheck(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("Scale config", "first")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scale config: %w", err)
	}

	return cfg, nil
}

// EnsureScaleConfig returns the first scale configuration, creating the default one if none exists
func (dm *DatabaseManager) EnsureScaleConfig(ctx context.Context) (*models.ScaleConfig, error) {
	cfg, err := dm.GetFirstScaleConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	defaults := models.DefaultScaleConfig()
	if err := dm.CreateScaleConfig(ctx, &defaults); err != nil {
		return nil, err
	}

	return &defaults, nil
}

// SaveFirstScaleConfig overwrites the first scale configuration or creates it
func (dm *DatabaseManager) SaveFirstScaleConfig(ctx context.Context, cfg *models.ScaleConfig) error {
	current, err := dm.GetFirstScaleConfig(ctx)
	if errors.Is(err, ErrNotFound) {
		return dm.CreateScaleConfig(ctx, cfg)
	}
	if err != nil {
		return err
	}

	cfg.ID = current.ID
	return dm.UpdateScaleConfig(ctx, cfg)
}

// UpdateScaleConfig overwrites the configuration identified by cfg.ID
func (dm *DatabaseManager) UpdateScaleConfig(ctx context.Context, cfg *models.ScaleConfig) error {
	query := `
        UPDATE scale_configs
        SET port = $1, baudrate = $2, parity = $3, data_bits = $4, stop_bits = $5, timeout = $6, updated_at = $7
        WHERE id = $8
        RETURNING updated_at
    `

	err := dm.QueryRowWithHealthCheck(ctx, query,
		cfg.Port,
		cfg.BaudRate,
		cfg.Parity,
		cfg.DataBits,
		cfg.StopBits,
		cfg.TimeoutMs,
		time.Now().UTC(),
		cfg.ID,
	).Scan(&cfg.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return notFound("Scale", cfg.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update scale config: %w", err)
	}

	return nil
}
