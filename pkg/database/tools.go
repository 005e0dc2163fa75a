package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kuncy7/toolid/pkg/models"
)

const toolColumns = `id, name, quantity_total, quantity_available, weight_value, weight_unit,
        width, height, area, diameter, type, condition, image_url, icons_url, created_at, updated_at`

func scanTool(row rowScanner) (*models.Tool, error) {
	var tool models.Tool
	err := row.Scan(
		&tool.ID,
		&tool.Name,
		&tool.QuantityTotal,
		&tool.QuantityAvailable,
		&tool.WeightValue,
		&tool.WeightUnit,
		&tool.Width,
		&tool.Height,
		&tool.Area,
		&tool.Diameter,
		&tool.Type,
		&tool.Condition,
		&tool.ImageURL,
		&tool.IconsURL,
		&tool.CreatedAt,
		&tool.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tool, nil
}

// ListTools returns all tools ordered by id
func (dm *DatabaseManager) ListTools(ctx context.Context) ([]models.Tool, error) {
	query := `SELECT ` + toolColumns + ` FROM tools ORDER BY id`

	rows, err := dm.QueryWithHealthCheck(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tools: %w", err)
	}
	defer rows.Close()

	tools := []models.Tool{}
	for rows.Next() {
		tool, err := scanTool(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tool: %w", err)
		}
		tools = append(tools, *tool)
	}

	return tools, rows.Err()
}

// GetTool returns the tool with the given id
func (dm *DatabaseManager) GetTool(ctx context.Context, id int64) (*models.Tool, error) {
	query := `SELECT ` + toolColumns + ` FROM tools WHERE id = $1`

	tool, err := scanTool(dm.QueryRowWithHealthCheck(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("Tool", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tool: %w", err)
	}

	return tool, nil
}

// getToolForUpdate locks the tool row inside tx
func getToolForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.Tool, error) {
	query := `SELECT ` + toolColumns + ` FROM tools WHERE id = $1 FOR UPDATE`

	tool, err := scanTool(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("Tool", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tool: %w", err)
	}

	return tool, nil
}

// CreateTool inserts a tool with all items available
func (dm *DatabaseManager) CreateTool(ctx context.Context, payload models.ToolCreate) (*models.Tool, error) {
	if payload.Name == "" {
		return nil, forbidden("tool name must not be empty")
	}

	total := 1
	if payload.QuantityTotal != nil {
		total = *payload.QuantityTotal
	}
	if total < 0 {
		return nil, forbidden("quantity_total must not be negative, got %d", total)
	}

	unit := payload.WeightUnit
	if unit == "" {
		unit = "g"
	}

	now := time.Now().UTC()
	query := `
        INSERT INTO tools (name, quantity_total, quantity_available, weight_value, weight_unit,
            width, height, area, diameter, type, condition, image_url, icons_url, created_at, updated_at)
        VALUES ($1, $2, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
        RETURNING ` + toolColumns

	tool, err := scanTool(dm.QueryRowWithHealthCheck(ctx, query,
		payload.Name,
		total,
		payload.WeightValue,
		unit,
		payload.Width,
		payload.Height,
		payload.Area,
		payload.Diameter,
		payload.Type,
		payload.Condition,
		payload.ImageURL,
		payload.IconsURL,
		now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create tool: %w", err)
	}

	return tool, nil
}

// ApplyToolUpdate merges upd into tool. Changing the total keeps the number
// of loaned items and is rejected when fewer items than are on loan would remain.
func ApplyToolUpdate(tool *models.Tool, upd models.ToolUpdate) error {
	if upd.QuantityTotal != nil {
		newTotal := *upd.QuantityTotal
		loaned := tool.Loaned()
		if newTotal < loaned {
			return forbidden("Cannot set total quantity to %d, because %d items are currently on loan.", newTotal, loaned)
		}
		tool.QuantityTotal = newTotal
		tool.QuantityAvailable = newTotal - loaned
	}

	if upd.Name != nil {
		tool.Name = *upd.Name
	}
	if upd.WeightValue != nil {
		tool.WeightValue = upd.WeightValue
	}
	if upd.WeightUnit != nil {
		tool.WeightUnit = *upd.WeightUnit
	}
	if upd.Width != nil {
		tool.Width = upd.Width
	}
	if upd.Height != nil {
		tool.Height = upd.Height
	}
	if upd.Area != nil {
		tool.Area = upd.Area
	}
	if upd.Diameter != nil {
		tool.Diameter = upd.Diameter
	}
	if upd.Type != nil {
		tool.Type = upd.Type
	}
	if upd.Condition != nil {
		tool.Condition = upd.Condition
	}
	if upd.ImageURL != nil {
		tool.ImageURL = upd.ImageURL
	}
	if upd.IconsURL != nil {
		tool.IconsURL = upd.IconsURL
	}

	return nil
}

// UpdateTool applies upd to the tool while holding its row lock
func (dm *DatabaseManager) UpdateTool(ctx context.Context, id int64, upd models.ToolUpdate) (*models.Tool, error) {
	tx, err := dm.BeginTxWithHealthCheck(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	tool, err := getToolForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := ApplyToolUpdate(tool, upd); err != nil {
		return nil, err
	}

	updated, err := saveTool(ctx, tx, tool)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tool: %w", err)
	}

	return updated, nil
}

// saveTool writes every mutable column of tool and bumps updated_at
func saveTool(ctx context.Context, tx *sql.Tx, tool *models.Tool) (*models.Tool, error) {
	query := `
        UPDATE tools
        SET name = $1, quantity_total = $2, quantity_available = $3, weight_value = $4, weight_unit = $5,
            width = $6, height = $7, area = $8, diameter = $9, type = $10, condition = $11,
            image_url = $12, icons_url = $13, updated_at = $14
        WHERE id = $15
        RETURNING ` + toolColumns

	updated, err := scanTool(tx.QueryRowContext(ctx, query,
		tool.Name,
		tool.QuantityTotal,
		tool.QuantityAvailable,
		tool.WeightValue,
		tool.WeightUnit,
		tool.Width,
		tool.Height,
		tool.Area,
		tool.Diameter,
		tool.Type,
		tool.Condition,
		tool.ImageURL,
		tool.IconsURL,
		time.Now().UTC(),
		tool.ID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update tool: %w", err)
	}

	return updated, nil
}

// SetToolImages stores the image and icon URLs of a tool
func (dm *DatabaseManager) SetToolImages(ctx context.Context, id int64, imageURL, iconsURL string) (*models.Tool, error) {
	return dm.UpdateTool(ctx, id, models.ToolUpdate{ImageURL: &imageURL, IconsURL: &iconsURL})
}

// DeleteTool removes a tool that has no open loans
func (dm *DatabaseManager) DeleteTool(ctx context.Context, id int64) error {
	tx, err := dm.BeginTxWithHealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	if _, err := getToolForUpdate(ctx, tx, id); err != nil {
		return err
	}

	var activeLoans int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tool_loans WHERE tool_id = $1 AND NOT returned`, id,
	).Scan(&activeLoans)
	if err != nil {
		return fmt.Errorf("failed to count active loans: %w", err)
	}

	if activeLoans > 0 {
		return forbidden("Cannot delete tool. There are %d active loans.", activeLoans)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tools WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete tool: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tool deletion: %w", err)
	}

	return nil
}
