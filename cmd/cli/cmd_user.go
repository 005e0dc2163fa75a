package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/kuncy7/toolid/pkg/database"
	"github.com/kuncy7/toolid/pkg/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management commands",
	Long:  `Commands for managing users in ToolID.`,
}

var createUserCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	Long:  `Create a new user interactively.`,
	RunE:  runCreateUser,
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the initial admin user",
	Long:  `Create the admin user from ADMIN_EMAIL and ADMIN_PASS unless it already exists.`,
	RunE:  runSeedAdmin,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(createUserCmd)
	userCmd.AddCommand(seedAdminCmd)

	createUserCmd.Flags().String("role", models.RoleAdmin, "role of the new user (admin, moderator, user)")
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	dbManager := cmd.Context().Value("dbManager").(*database.DatabaseManager)

	role, _ := cmd.Flags().GetString("role")
	if !models.ValidRole(role) {
		return fmt.Errorf("invalid role: %s", role)
	}

	reader := bufio.NewReader(os.Stdin)

	// Get email
	fmt.Print("Enter email: ")
	email, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}
	email = strings.TrimSpace(email)

	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	fmt.Print("Enter first name: ")
	firstName, _ := reader.ReadString('\n')
	fmt.Print("Enter last name: ")
	lastName, _ := reader.ReadString('\n')

	// Get password
	fmt.Print("Enter password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println() // New line after password input

	password := string(passwordBytes)
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	// Confirm password
	fmt.Print("Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("failed to read password confirmation: %w", err)
	}
	fmt.Println() // New line after password input

	if password != string(confirmBytes) {
		return fmt.Errorf("passwords do not match")
	}

	// Create user
	user, err := dbManager.CreateUser(cmd.Context(), models.UserCreate{
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Email:     email,
		Password:  password,
		Role:      role,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	printUser(user)
	return nil
}

func runSeedAdmin(cmd *cobra.Command, args []string) error {
	dbManager := cmd.Context().Value("dbManager").(*database.DatabaseManager)
	settings := settingsFromContext(cmd.Context())

	if err := dbManager.Init(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	existing, err := dbManager.GetUserByEmail(cmd.Context(), settings.AdminEmail)
	if err == nil {
		fmt.Printf("Admin %s already exists (ID: %s)\n", existing.Email, existing.ID)
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	user, err := dbManager.CreateUser(cmd.Context(), models.UserCreate{
		FirstName: "Admin",
		LastName:  "User",
		Email:     settings.AdminEmail,
		Password:  settings.AdminPassword,
		Role:      models.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	printUser(user)
	return nil
}

func printUser(user *models.User) {
	fmt.Printf("User created successfully!\n")
	fmt.Printf("ID: %s\n", user.ID)
	fmt.Printf("Email: %s\n", user.Email)
	fmt.Printf("Role: %s\n", user.Role)
	fmt.Printf("Created: %s\n", user.CreatedAt.Format("2006-01-02 15:04:05"))
}
