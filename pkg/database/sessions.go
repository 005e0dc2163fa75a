package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kuncy7/toolid/pkg/models"
)

// CreateSession stores the session behind a freshly issued token and
// records the login time of its user
func (dm *DatabaseManager) CreateSession(ctx context.Context, sessionID, userID uuid.UUID, expiresAt time.Time) (*models.UserSession, error) {
	tx, err := dm.BeginTxWithHealthCheck(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	now := time.Now().UTC()
	session := models.UserSession{
		ID:        sessionID,
		UserID:    userID,
		IsActive:  true,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_sessions (id, user_id, is_active, expires_at, created_at) VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.UserID, session.IsActive, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	result, err := tx.ExecContext(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, now, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}
	if err := expectAffected(result, "User", userID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session: %w", err)
	}

	return &session, nil
}

// IsSessionActive reports whether the session exists, is active and has not expired
func (dm *DatabaseManager) IsSessionActive(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM user_sessions
            WHERE id = $1 AND is_active AND expires_at > $2
        )
    `

	var active bool
	if err := dm.QueryRowWithHealthCheck(ctx, query, sessionID, time.Now().UTC()).Scan(&active); err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}

	return active, nil
}

// DeactivateSession invalidates a session; unknown ids are ignored
func (dm *DatabaseManager) DeactivateSession(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := dm.ExecWithHealthCheck(ctx, `UPDATE user_sessions SET is_active = FALSE WHERE id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}
	return nil
}
