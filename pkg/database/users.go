package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kuncy7/toolid/pkg/models"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by ValidateUser for unknown emails and wrong passwords
var ErrInvalidCredentials = errors.New("invalid credentials")

const userColumns = `id, first_name, last_name, email, role, status, created_at, updated_at, last_login`

// hashPassword creates a SHA-256 hash of the password to handle passwords longer than 72 bytes
func hashPassword(password string) string {
	hash := sha256.Sum256([]byte(password))
	return hex.EncodeToString(hash[:])
}

// encodePassword returns the stored form of a password
func encodePassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(hashPassword(password)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	// Mark as new format with prefix
	return "v2:" + string(hashed), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var lastLogin sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLogin,
	)
	if err != nil {
		return nil, err
	}

	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}

	return &user, nil
}

// CreateUser creates a new user with hashed password
func (dm *DatabaseManager) CreateUser(ctx context.Context, payload models.UserCreate) (*models.User, error) {
	if payload.Email == "" || payload.Password == "" {
		return nil, forbidden("email and password must not be empty")
	}

	role := payload.Role
	if role == "" {
		role = models.RoleUser
	}
	if !models.ValidRole(role) {
		return nil, forbidden("invalid role: %s", role)
	}

	status := payload.Status
	if status == "" {
		status = models.StatusActive
	}
	if status != models.StatusActive && status != models.StatusInactive {
		return nil, forbidden("invalid status: %s", status)
	}

	passwordHash, err := encodePassword(payload.Password)
	if err != nil {
		return nil, err
	}

	query := `
        INSERT INTO users (id, first_name, last_name, email, password_hash, role, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING ` + userColumns

	user, err := scanUser(dm.QueryRowWithHealthCheck(ctx, query,
		uuid.New(),
		payload.FirstName,
		payload.LastName,
		payload.Email,
		passwordHash,
		role,
		status,
	))

	if isUniqueViolation(err) {
		return nil, forbidden("User with email '%s' already exists", payload.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// ValidateUser checks email and password
func (dm *DatabaseManager) ValidateUser(ctx context.Context, email, password string) (*models.User, error) {
	query := `SELECT ` + userColumns + `, password_hash FROM users WHERE email = $1`

	var user models.User
	var lastLogin sql.NullTime
	var passwordHash string

	err := dm.QueryRowWithHealthCheck(ctx, query, email).Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLogin,
		&passwordHash,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}

	// Check if this is a new format hash (v2) or a plain bcrypt hash
	var compareErr error
	if strings.HasPrefix(passwordHash, "v2:") {
		actualHash := strings.TrimPrefix(passwordHash, "v2:")
		compareErr = bcrypt.CompareHashAndPassword([]byte(actualHash), []byte(hashPassword(password)))
	} else {
		compareErr = bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password))

		// If password is correct, migrate to new format
		if compareErr == nil {
			if err := dm.SetUserPassword(ctx, user.ID, password); err != nil {
				// Log error but don't fail login
				fmt.Printf("Warning: failed to migrate password for user %s: %v\n", user.ID, err)
			}
		}
	}

	if compareErr != nil {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

// ListUsers returns all users ordered by creation time
func (dm *DatabaseManager) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`

	rows, err := dm.QueryWithHealthCheck(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}

	return users, rows.Err()
}

// GetUser returns the user with the given id
func (dm *DatabaseManager) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(dm.QueryRowWithHealthCheck(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("User", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetUserByEmail returns the user registered with email
func (dm *DatabaseManager) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(dm.QueryRowWithHealthCheck(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("User", email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// UpdateUser applies the set fields of upd
func (dm *DatabaseManager) UpdateUser(ctx context.Context, id uuid.UUID, upd models.UserUpdate) (*models.User, error) {
	user, err := dm.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.FirstName != nil {
		user.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		user.LastName = *upd.LastName
	}
	if upd.Email != nil {
		user.Email = *upd.Email
	}
	if upd.Role != nil {
		if !models.ValidRole(*upd.Role) {
			return nil, forbidden("invalid role: %s", *upd.Role)
		}
		user.Role = *upd.Role
	}
	if upd.Status != nil {
		if *upd.Status != models.StatusActive && *upd.Status != models.StatusInactive {
			return nil, forbidden("invalid status: %s", *upd.Status)
		}
		user.Status = *upd.Status
	}

	query := `
        UPDATE users
        SET first_name = $1, last_name = $2, email = $3, role = $4, status = $5, updated_at = $6
        WHERE id = $7
        RETURNING ` + userColumns

	updated, err := scanUser(dm.QueryRowWithHealthCheck(ctx, query,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Role,
		user.Status,
		time.Now().UTC(),
		id,
	))
	if isUniqueViolation(err) {
		return nil, forbidden("User with email '%s' already exists", user.Email)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("User", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if upd.Password != nil && *upd.Password != "" {
		if err := dm.SetUserPassword(ctx, id, *upd.Password); err != nil {
			return nil, err
		}
	}

	return updated, nil
}

// SetUserPassword replaces the password of a user
func (dm *DatabaseManager) SetUserPassword(ctx context.Context, id uuid.UUID, password string) error {
	if password == "" {
		return forbidden("password must not be empty")
	}

	passwordHash, err := encodePassword(password)
	if err != nil {
		return err
	}

	result, err := dm.ExecWithHealthCheck(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return expectAffected(result, "User", id)
}

// DeleteUser removes a user; deleting an unknown id is not an error
func (dm *DatabaseManager) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := dm.ExecWithHealthCheck(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// expectAffected turns a zero-row update into a NotFoundError
func expectAffected(result sql.Result, resource string, id interface{}) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return notFound(resource, id)
	}
	return nil
}
