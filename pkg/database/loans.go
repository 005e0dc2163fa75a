package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kuncy7/toolid/pkg/models"
)

const loanColumns = `id, tool_id, user_id, loan_date, return_date, returned`

func scanLoan(row rowScanner) (*models.ToolLoan, error) {
	var loan models.ToolLoan
	var returnDate sql.NullTime

	err := row.Scan(&loan.ID, &loan.ToolID, &loan.UserID, &loan.LoanDate, &returnDate, &loan.Returned)
	if err != nil {
		return nil, err
	}

	if returnDate.Valid {
		loan.ReturnDate = &returnDate.Time
	}

	return &loan, nil
}

// CreateLoan lends one item of a tool to a user
func (dm *DatabaseManager) CreateLoan(ctx context.Context, toolID int64, userID uuid.UUID) (*models.ToolLoan, error) {
	tx, err := dm.BeginTxWithHealthCheck(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	tool, err := getToolForUpdate(ctx, tx, toolID)
	if err != nil {
		return nil, err
	}

	var userExists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&userExists); err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if !userExists {
		return nil, notFound("User", userID)
	}

	if tool.QuantityAvailable <= 0 {
		return nil, forbidden("No available items for this tool.")
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE tools SET quantity_available = quantity_available - 1, updated_at = $1 WHERE id = $2`,
		now, toolID,
	); err != nil {
		return nil, fmt.Errorf("failed to update tool quantity: %w", err)
	}

	query := `
        INSERT INTO tool_loans (tool_id, user_id, loan_date, returned)
        VALUES ($1, $2, $3, FALSE)
        RETURNING ` + loanColumns

	loan, err := scanLoan(tx.QueryRowContext(ctx, query, toolID, userID, now))
	if err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit loan: %w", err)
	}

	return loan, nil
}

// ReturnTool closes the oldest open loan of a tool
func (dm *DatabaseManager) ReturnTool(ctx context.Context, toolID int64) (*models.ToolLoan, error) {
	tx, err := dm.BeginTxWithHealthCheck(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	tool, err := getToolForUpdate(ctx, tx, toolID)
	if err != nil {
		return nil, err
	}

	if tool.QuantityAvailable >= tool.QuantityTotal {
		return nil, forbidden("Cannot return tool: all items are already in stock.")
	}

	query := `
        SELECT ` + loanColumns + `
        FROM tool_loans
        WHERE tool_id = $1 AND NOT returned
        ORDER BY loan_date, id
        LIMIT 1
        FOR UPDATE
    `

	loan, err := scanLoan(tx.QueryRowContext(ctx, query, toolID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("Active loan for this tool", toolID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open loan: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE tool_loans SET returned = TRUE, return_date = $1 WHERE id = $2`, now, loan.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to close loan: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE tools SET quantity_available = quantity_available + 1, updated_at = $1 WHERE id = $2`,
		now, toolID,
	); err != nil {
		return nil, fmt.Errorf("failed to update tool quantity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit return: %w", err)
	}

	loan.Returned = true
	loan.ReturnDate = &now

	return loan, nil
}

// ListToolLoans returns every loan of a tool, oldest first
func (dm *DatabaseManager) ListToolLoans(ctx context.Context, toolID int64) ([]models.ToolLoan, error) {
	query := `SELECT ` + loanColumns + ` FROM tool_loans WHERE tool_id = $1 ORDER BY loan_date, id`

	rows, err := dm.QueryWithHealthCheck(ctx, query, toolID)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	loans := []models.ToolLoan{}
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, *loan)
	}

	return loans, rows.Err()
}

// ListUnreturnedLoanDetails joins every open loan with the dimensions of its tool
func (dm *DatabaseManager) ListUnreturnedLoanDetails(ctx context.Context) ([]models.UnreturnedLoanDetail, error) {
	query := `
        SELECT t.id, l.id, t.width, t.height, t.area, t.weight_value
        FROM tool_loans l
        JOIN tools t ON t.id = l.tool_id
        WHERE NOT l.returned
        ORDER BY l.loan_date, l.id
    `

	rows, err := dm.QueryWithHealthCheck(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open loans: %w", err)
	}
	defer rows.Close()

	details := []models.UnreturnedLoanDetail{}
	for rows.Next() {
		var d models.UnreturnedLoanDetail
		if err := rows.Scan(&d.ToolID, &d.LoanID, &d.Width, &d.Height, &d.Area, &d.Mass); err != nil {
			return nil, fmt.Errorf("failed to scan open loan: %w", err)
		}
		details = append(details, d)
	}

	return details, rows.Err()
}
