package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/kuncy7/toolid/pkg/api"
	"github.com/kuncy7/toolid/pkg/database"
	"github.com/kuncy7/toolid/pkg/models"
	"github.com/spf13/cobra"
)

var scaleCmd = &cobra.Command{
	Use:   "scale",
	Short: "Manage serial scales",
	Long:  `Add and list scales and inspect their latest readings.`,
}

var scaleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new scale",
	Long:  `Interactively add a new serial scale. A running server picks it up on its next reconcile.`,
	RunE:  runScaleAdd,
}

var scaleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all scales",
	Long:  `Display all configured scales.`,
	RunE:  runScaleList,
}

var scaleLastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the latest reading of a scale",
	Long:  `Print the most recent net weight stored for a scale.`,
	RunE:  runScaleLast,
}

var scaleWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the readings of a scale through the API",
	Long:  `Poll a running ToolID server and print every new reading of a scale.`,
	RunE:  runScaleWatch,
	Annotations: map[string]string{
		skipDatabase: "true",
	},
}

func init() {
	rootCmd.AddCommand(scaleCmd)
	scaleCmd.AddCommand(scaleAddCmd)
	scaleCmd.AddCommand(scaleListCmd)
	scaleCmd.AddCommand(scaleLastCmd)
	scaleCmd.AddCommand(scaleWatchCmd)

	scaleLastCmd.Flags().Int64("id", 0, "scale id")
	_ = scaleLastCmd.MarkFlagRequired("id")

	scaleWatchCmd.Flags().Int64("id", 0, "scale id")
	scaleWatchCmd.Flags().String("server", "http://localhost:8059", "ToolID server URL")
	scaleWatchCmd.Flags().String("token", "", "access token (or TOOLID_TOKEN)")
	scaleWatchCmd.Flags().Duration("interval", time.Second, "poll interval")
	_ = scaleWatchCmd.MarkFlagRequired("id")
}

func runScaleAdd(cmd *cobra.Command, args []string) error {
	dbManager := cmd.Context().Value("dbManager").(*database.DatabaseManager)
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("Add New Scale")
	fmt.Println(strings.Repeat("=", 60))

	cfg := models.DefaultScaleConfig()

	cfg.Port = prompt(reader, "Port", cfg.Port)

	var err error
	if cfg.BaudRate, err = strconv.Atoi(prompt(reader, "Baud rate", strconv.Itoa(cfg.BaudRate))); err != nil {
		return fmt.Errorf("invalid baud rate: %w", err)
	}

	parity, err := models.ParseParity(prompt(reader, "Parity (N/E/O)", cfg.Parity))
	if err != nil {
		return err
	}
	cfg.Parity = string(parity)

	if cfg.DataBits, err = strconv.Atoi(prompt(reader, "Data bits", strconv.Itoa(cfg.DataBits))); err != nil {
		return fmt.Errorf("invalid data bits: %w", err)
	}
	if cfg.StopBits, err = strconv.ParseFloat(prompt(reader, "Stop bits", strconv.FormatFloat(cfg.StopBits, 'f', -1, 64)), 64); err != nil {
		return fmt.Errorf("invalid stop bits: %w", err)
	}
	if cfg.TimeoutMs, err = strconv.Atoi(prompt(reader, "Timeout (ms)", strconv.Itoa(cfg.TimeoutMs))); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := dbManager.CreateScaleConfig(cmd.Context(), &cfg); err != nil {
		return fmt.Errorf("failed to save scale: %w", err)
	}

	fmt.Printf("\n✓ Scale created with ID: %d\n", cfg.ID)
	fmt.Println(strings.Repeat("=", 60) + "\n")

	return nil
}

func runScaleList(cmd *cobra.Command, args []string) error {
	dbManager := cmd.Context().Value("dbManager").(*database.DatabaseManager)

	configs, err := dbManager.LoadScaleConfigs(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch scales: %w", err)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("Configured Scales")
	fmt.Println(strings.Repeat("=", 80))

	for _, cfg := range configs {
		fmt.Printf("\n[%d] %s\n", cfg.ID, cfg.Port)
		fmt.Printf("    Mode: %d %d%s%v\n", cfg.BaudRate, cfg.DataBits, cfg.Parity, cfg.StopBits)
		fmt.Printf("    Timeout: %dms\n", cfg.TimeoutMs)
		fmt.Printf("    Last Updated: %s\n", cfg.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	if len(configs) == 0 {
		fmt.Println("No scales configured yet. `toolid serve` creates a default one.")
	}

	fmt.Println("\n" + strings.Repeat("=", 80) + "\n")

	return nil
}

func runScaleLast(cmd *cobra.Command, args []string) error {
	dbManager := cmd.Context().Value("dbManager").(*database.DatabaseManager)
	scaleID, _ := cmd.Flags().GetInt64("id")

	weight, err := dbManager.GetLatestScaleWeight(cmd.Context(), scaleID)
	if errors.Is(err, database.ErrNotFound) {
		fmt.Printf("No readings for scale %d yet.\n", scaleID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch latest reading: %w", err)
	}

	printWeight(weight)
	return nil
}

func runScaleWatch(cmd *cobra.Command, args []string) error {
	scaleID, _ := cmd.Flags().GetInt64("id")
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	interval, _ := cmd.Flags().GetDuration("interval")

	if token == "" {
		token = os.Getenv("TOOLID_TOKEN")
	}
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	client := api.NewClient(server, api.WithToken(token), api.WithTimeout(10*time.Second))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching scale %d on %s (Ctrl+C to stop)\n", scaleID, server)
	return watchWeights(ctx, client, scaleID, interval, printWeight)
}

// watchWeights polls the latest reading and calls onNew for each one not seen before
func watchWeights(ctx context.Context, client *api.Client, scaleID int64, interval time.Duration, onNew func(*models.ScaleWeight)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastID int64
	for {
		weight, err := client.LatestWeight(ctx, scaleID)
		var apiErr *api.APIError
		switch {
		case err == nil:
			if weight.ID != lastID {
				lastID = weight.ID
				onNew(weight)
			}
		case errors.As(err, &apiErr) && apiErr.StatusCode == 404:
		case errors.As(err, &apiErr) && apiErr.StatusCode == 401:
			return err
		case ctx.Err() != nil:
			return nil
		default:
			fmt.Printf("⚠ %v\n", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printWeight(weight *models.ScaleWeight) {
	fmt.Printf("[%s] scale %d: %.1f g\n", weight.CreatedAt.Local().Format("2006-01-02 15:04:05"), weight.ScaleID, weight.Weight)
}

// prompt reads one line, returning def when the input is empty
func prompt(reader *bufio.Reader, label, def string) string {
	fmt.Printf("%s [%s]: ", label, def)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}
