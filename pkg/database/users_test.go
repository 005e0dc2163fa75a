package database

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kuncy7/toolid/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// generateRandomString creates a random string of specified length
func generateRandomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)[:length]
}

func createTestUser(t *testing.T, dm *DatabaseManager, role string) *models.User {
	t.Helper()

	user, err := dm.CreateUser(context.Background(), models.UserCreate{
		FirstName: "Jan",
		LastName:  "Kowalski",
		Email:     "user_" + generateRandomString(8) + "@example.com",
		Password:  "SecurePassword123!",
		Role:      role,
	})
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

func TestEncodePassword(t *testing.T) {
	encoded, err := encodePassword("secret")
	if err != nil {
		t.Fatalf("Failed to encode password: %v", err)
	}

	if !strings.HasPrefix(encoded, "v2:") {
		t.Fatalf("Expected v2 prefix, got %q", encoded)
	}

	hash := strings.TrimPrefix(encoded, "v2:")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(hashPassword("secret"))); err != nil {
		t.Errorf("Expected encoded password to verify: %v", err)
	}
}

func TestCreateUser_AndValidate(t *testing.T) {
	dm := setupTestDatabaseManager(t)
	if dm == nil {
		t.Skip("Skipping test that requires real database connection")
	}
	defer dm.Close()

	ctx := context.Background()
	user := createTestUser(t, dm, "")

	if user.ID == uuid.Nil {
		t.Error("Expected user ID to be set")
	}
	if user.Role != models.RoleUser || user.Status != models.StatusActive {
		t.Errorf("Expected default role and status, got %s/%s", user.Role, user.Status)
	}
	if user.LastLogin != nil {
		t.Error("Expected last_login to be empty for a new user")
	}

	validated, err := dm.ValidateUser(ctx, user.Email, "SecurePassword123!")
	if err != nil {
		t.Fatalf("Failed to validate user: %v", err)
	}
	if validated.ID != user.ID {
		t.Errorf("Expected validated user ID=%s, got %s", user.ID, validated.ID)
	}

	if _, err := dm.ValidateUser(ctx, user.Email, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := dm.ValidateUser(ctx, "nobody@example.com", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	byEmail, err := dm.GetUserByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("Failed to get user by email: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Errorf("Expected user ID=%s by email, got %s", user.ID, byEmail.ID)
	}

	if _, err := dm.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown email, got %v", err)
	}
}

func TestCreateUser_Rejects(t *testing.T) {
	dm := setupTestDatabaseManager(t)
	if dm == nil {
		t.Skip("Skipping test that requires real database connection")
	}
	defer dm.Close()

	ctx := context.Background()
	existing := createTestUser(t, dm, models.RoleAdmin)

	tests := []struct {
		name    string
		payload models.UserCreate
	}{
		{"duplicate email", models.UserCreate{FirstName: "A", LastName: "B", Email: existing.Email, Password: "x"}},
		{"invalid role", models.UserCreate{FirstName: "A", LastName: "B", Email: "r@example.com", Password: "x", Role: "root"}},
		{"empty password", models.UserCreate{FirstName: "A", LastName: "B", Email: "p@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := dm.CreateUser(ctx, tt.payload); !errors.Is(err, ErrForbidden) {
				t.Errorf("Expected ErrForbidden, got %v", err)
			}
		})
	}
}

func TestValidateUser_MigratesPlainBcryptHash(t *testing.T) {
	dm := setupTestDatabaseManager(t)
	if dm == nil {
		t.Skip("Skipping test that requires real database connection")
	}
	defer dm.Close()

	ctx := context.Background()
	user := createTestUser(t, dm, "")

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if _, err := dm.ExecWithHealthCheck(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, string(legacy), user.ID); err != nil {
		t.Fatalf("Failed to set legacy hash: %v", err)
	}

	if _, err := dm.ValidateUser(ctx, user.Email, "legacy-pass"); err != nil {
		t.Fatalf("Expected legacy hash to validate: %v", err)
	}

	var stored string
	if err := dm.QueryRowWithHealthCheck(ctx, `SELECT password_hash FROM users WHERE id = $1`, user.ID).Scan(&stored); err != nil {
		t.Fatalf("Failed to read hash: %v", err)
	}
	if !strings.HasPrefix(stored, "v2:") {
		t.Error("Expected password hash to be migrated to v2")
	}
}

func TestUpdateUser(t *testing.T) {
	dm := setupTestDatabaseManager(t)
	if dm == nil {
		t.Skip("Skipping test that requires real database connection")
	}
	defer dm.Close()

	ctx := context.Background()
	user := createTestUser(t, dm, "")

	role := models.RoleModerator
	name := "Anna"
	password := "NewPassword456!"
	updated, err := dm.UpdateUser(ctx, user.ID, models.UserUpdate{FirstName: &name, Role: &role, Password: &password})
	if err != nil {
		t.Fatalf("Failed to update user: %v", err)
	}

	if updated.FirstName != "Anna" || updated.Role != models.RoleModerator || updated.LastName != user.LastName {
		t.Errorf("Unexpected updated user: %+v", updated)
	}

	if _, err := dm.ValidateUser(ctx, user.Email, password); err != nil {
		t.Errorf("Expected new password to validate: %v", err)
	}

	bad := "superuser"
	if _, err := dm.UpdateUser(ctx, user.ID, models.UserUpdate{Role: &bad}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden for invalid role, got %v", err)
	}

	if _, err := dm.UpdateUser(ctx, uuid.New(), models.UserUpdate{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestSessions(t *testing.T) {
	dm := setupTestDatabaseManager(t)
	if dm == nil {
		t.Skip("Skipping test that requires real database connection")
	}
	defer dm.Close()

	ctx := context.Background()
	user := createTestUser(t, dm, "")

	sessionID := uuid.New()
	if _, err := dm.CreateSession(ctx, sessionID, user.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	active, err := dm.IsSessionActive(ctx, sessionID)
	if err != nil || !active {
		t.Fatalf("Expected session to be active, got %v (%v)", active, err)
	}

	reloaded, err := dm.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("Failed to reload user: %v", err)
	}
	if reloaded.LastLogin == nil {
		t.Error("Expected last_login to be set by login")
	}

	if err := dm.DeactivateSession(ctx, sessionID); err != nil {
		t.Fatalf("Failed to deactivate session: %v", err)
	}

	active, err = dm.IsSessionActive(ctx, sessionID)
	if err != nil || active {
		t.Errorf("Expected session to be inactive after logout, got %v (%v)", active, err)
	}

	expired := uuid.New()
	if _, err := dm.CreateSession(ctx, expired, user.ID, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if active, _ := dm.IsSessionActive(ctx, expired); active {
		t.Error("Expected expired session to be inactive")
	}
}

func TestUserPermissions(t *testing.T) {
	dm := setupTestDatabaseManager(t)
	if dm == nil {
		t.Skip("Skipping test that requires real database connection")
	}
	defer dm.Close()

	ctx := context.Background()
	user := createTestUser(t, dm, "")

	first, err := dm.UpsertUserPermission(ctx, user.ID, "tools", "write", true)
	if err != nil {
		t.Fatalf("Failed to upsert permission: %v", err)
	}

	second, err := dm.UpsertUserPermission(ctx, user.ID, "tools", "write", false)
	if err != nil {
		t.Fatalf("Failed to upsert permission: %v", err)
	}

	if first.ID != second.ID {
		t.Error("Expected upsert to update the existing permission")
	}
	if second.Granted {
		t.Error("Expected permission to be revoked")
	}

	permissions, err := dm.ListUserPermissions(ctx, user.ID)
	if err != nil {
		t.Fatalf("Failed to list permissions: %v", err)
	}
	if len(permissions) != 1 {
		t.Errorf("Expected 1 permission, got %d", len(permissions))
	}

	if _, err := dm.ListUserPermissions(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown user, got %v", err)
	}
}
