package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuncy7/toolid/pkg/database"
	"github.com/kuncy7/toolid/pkg/scale"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ToolID server",
	Long:  `Start the ToolID HTTP API together with one listener per configured scale.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	settings := settingsFromContext(cmd.Context())
	if err := settings.ValidateServe(); err != nil {
		return err
	}

	dbManager := cmd.Context().Value("dbManager").(*database.DatabaseManager)

	// Run migrations
	if err := dbManager.Init(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Start one listener per configured scale
	var supervisor *scale.Supervisor
	if settings.ScaleListenerEnabled {
		supervisor = scale.NewSupervisor(dbManager, scale.SerialOpener{}, dbManager,
			scale.WithListenerBackoff(settings.ScaleBackoff),
			scale.WithShutdownGrace(settings.ScaleShutdownGrace),
			scale.WithReconcileInterval(settings.ScaleReconcileInterval),
		)
		if err := supervisor.Start(cmd.Context()); err != nil {
			return fmt.Errorf("failed to start scale listeners: %w", err)
		}
	} else {
		log.Println("⚠ Scale listeners disabled (SCALE_LISTENER_ENABLED=false)")
	}

	// Setup Router
	routeManager := NewRouteManager(dbManager, settings, supervisor)
	routeManager.Setup()

	addr := ":" + settings.ServerPort

	// Start server
	server := &http.Server{
		Handler:      routeManager.Router,
		Addr:         addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutdown signal received")

		if supervisor != nil {
			if err := supervisor.Stop(); err != nil {
				log.Printf("⚠ %v", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Starting ToolID server on %s...", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if supervisor != nil {
			_ = supervisor.Stop()
		}
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
