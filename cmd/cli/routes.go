package main

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/kuncy7/toolid/pkg/config"
	"github.com/kuncy7/toolid/pkg/database"
	"github.com/kuncy7/toolid/pkg/models"
	"github.com/kuncy7/toolid/pkg/scale"
)

// RouteManager handles all API routes
type RouteManager struct {
	dbManager  *database.DatabaseManager
	settings   *config.Settings
	supervisor *scale.Supervisor
	opener     scale.Opener
	upgrader   websocket.Upgrader
	Router     *mux.Router

	// sessionActive reports whether the session behind a token is still valid
	sessionActive func(ctx context.Context, sessionID uuid.UUID) (bool, error)

	latestWeight func(ctx context.Context, scaleID int64) (*models.ScaleWeight, error)
	scaleConfig  func(ctx context.Context, id int64) (*models.ScaleConfig, error)
	dbHealthy    func() bool

	// wsPollInterval is how often the websocket stream checks for a newer reading
	wsPollInterval time.Duration
}

// NewRouteManager creates a new RouteManager instance. supervisor may be nil
// when scale listeners are disabled.
func NewRouteManager(dbManager *database.DatabaseManager, settings *config.Settings, supervisor *scale.Supervisor) *RouteManager {
	rm := &RouteManager{
		dbManager:      dbManager,
		settings:       settings,
		supervisor:     supervisor,
		opener:         scale.SerialOpener{},
		Router:         mux.NewRouter(),
		wsPollInterval: time.Second,
	}
	rm.upgrader = websocket.Upgrader{CheckOrigin: rm.originAllowed}
	if dbManager != nil {
		rm.sessionActive = dbManager.IsSessionActive
		rm.latestWeight = dbManager.GetLatestScaleWeight
		rm.scaleConfig = dbManager.GetScaleConfig
		rm.dbHealthy = dbManager.IsConnectionHealthy
	}
	return rm
}

// Setup configures all API routes
func (rm *RouteManager) Setup() {
	r := rm.Router
	r.Use(rm.corsMiddleware)
	r.Use(rm.contextMiddleware)

	// Global OPTIONS handler - catches all preflight requests
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Health check
	r.HandleFunc("/health", rm.healthHandler).Methods("GET")

	// Uploaded images and thumbnails
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(rm.settings.StaticDir))))

	api := r.PathPrefix("/api").Subrouter()
	rm.setupAPIRoutes(api)
}

// setupAPIRoutes configures all /api routes
func (rm *RouteManager) setupAPIRoutes(api *mux.Router) {
	// Public auth endpoints (no auth required)
	api.HandleFunc("/auth/login", rm.handleLogin).Methods("POST")

	// Protected endpoints (auth required)
	protected := api.PathPrefix("").Subrouter()
	protected.Use(rm.JWTAuthMiddleware)

	staff := []string{models.RoleAdmin, models.RoleModerator}
	admin := []string{models.RoleAdmin}

	// Session
	protected.HandleFunc("/auth/me", rm.handleMe).Methods("GET")
	protected.HandleFunc("/auth/logout", rm.handleLogout).Methods("POST")

	// Users
	protected.HandleFunc("/users", rm.requireRole(admin, rm.handleListUsers)).Methods("GET")
	protected.HandleFunc("/users", rm.requireRole(admin, rm.handleCreateUser)).Methods("POST")
	protected.HandleFunc("/users/{id}", rm.requireRole(staff, rm.handleGetUser)).Methods("GET")
	protected.HandleFunc("/users/{id}", rm.requireRole(admin, rm.handleUpdateUser)).Methods("PUT")
	protected.HandleFunc("/users/{id}", rm.requireRole(admin, rm.handleDeleteUser)).Methods("DELETE")
	protected.HandleFunc("/users/{id}/reset-password", rm.requireRole(admin, rm.handleResetPassword)).Methods("POST")
	protected.HandleFunc("/users/{id}/permissions", rm.requireRole(admin, rm.handleGetPermissions)).Methods("GET")
	protected.HandleFunc("/users/{id}/permissions", rm.requireRole(admin, rm.handleUpdatePermissions)).Methods("PUT")

	// Tools
	protected.HandleFunc("/tools", rm.handleListTools).Methods("GET")
	protected.HandleFunc("/tools", rm.requireRole(staff, rm.handleCreateTool)).Methods("POST")
	protected.HandleFunc("/tools/return", rm.requireRole(staff, rm.handleReturnTool)).Methods("POST")
	protected.HandleFunc("/tools/{id:[0-9]+}", rm.handleGetTool).Methods("GET")
	protected.HandleFunc("/tools/{id:[0-9]+}", rm.requireRole(staff, rm.handleUpdateTool)).Methods("PUT")
	protected.HandleFunc("/tools/{id:[0-9]+}", rm.requireRole(staff, rm.handleDeleteTool)).Methods("DELETE")

	// Loans
	protected.HandleFunc("/tools/{id:[0-9]+}/loans", rm.handleCreateLoan).Methods("POST")
	protected.HandleFunc("/tools/{id:[0-9]+}/loans", rm.requireRole(staff, rm.handleListLoans)).Methods("GET")

	// Manual weights
	protected.HandleFunc("/tools/{id:[0-9]+}/weights", rm.handleListToolWeights).Methods("GET")
	protected.HandleFunc("/tools/{id:[0-9]+}/weights", rm.handleAddToolWeight).Methods("POST")

	// Images
	protected.HandleFunc("/tools/{id:[0-9]+}/upload-base64-image", rm.requireRole(staff, rm.handleUploadBase64Image)).Methods("POST")
	protected.HandleFunc("/tools/{id:[0-9]+}/assign-local-image", rm.requireRole(staff, rm.handleAssignLocalImage)).Methods("POST")

	// Recognition
	protected.HandleFunc("/recognise/loans", rm.requireRole(staff, rm.handleRecogniseLoans)).Methods("GET")

	// Scales
	protected.HandleFunc("/scale/config", rm.requireRole(admin, rm.handleGetScaleConfig)).Methods("GET")
	protected.HandleFunc("/scale/config", rm.requireRole(admin, rm.handleUpdateScaleConfig)).Methods("PUT")
	protected.HandleFunc("/scale/config/{id:[0-9]+}", rm.requireRole(admin, rm.handleGetScaleConfigByID)).Methods("GET")
	protected.HandleFunc("/scale/read", rm.handleReadScale).Methods("GET")
	protected.HandleFunc("/scale/listeners", rm.requireRole(admin, rm.handleListListeners)).Methods("GET")
	protected.HandleFunc("/scale/listeners/reconcile", rm.requireRole(admin, rm.handleReconcileListeners)).Methods("POST")
	protected.HandleFunc("/scale/weight/{scale_id:[0-9]+}/last", rm.handleLastWeight).Methods("GET")
	protected.HandleFunc("/scale/weight/{scale_id:[0-9]+}/history", rm.handleWeightHistory).Methods("GET")
	protected.HandleFunc("/scale/weight/{scale_id:[0-9]+}/ws", rm.handleWeightStream).Methods("GET")

	// Integrations
	protected.HandleFunc("/integrations", rm.requireRole(admin, rm.handleListIntegrations)).Methods("GET")
	protected.HandleFunc("/integrations", rm.requireRole(admin, rm.handleCreateIntegration)).Methods("POST")
	protected.HandleFunc("/integrations/{id}", rm.requireRole(admin, rm.handleGetIntegration)).Methods("GET")
	protected.HandleFunc("/integrations/{id}", rm.requireRole(admin, rm.handleUpdateIntegration)).Methods("PUT")
	protected.HandleFunc("/integrations/{id}", rm.requireRole(admin, rm.handleDeleteIntegration)).Methods("DELETE")
	protected.HandleFunc("/integrations/{id}/test", rm.requireRole(admin, rm.handleTestIntegration)).Methods("POST")
	protected.HandleFunc("/integrations/{id}/logs", rm.requireRole(admin, rm.handleIntegrationLogs)).Methods("GET")

	// Warehouse
	protected.HandleFunc("/warehouse/config", rm.requireRole(admin, rm.handleGetWarehouseConfig)).Methods("GET")
	protected.HandleFunc("/warehouse/config", rm.requireRole(admin, rm.handleSaveWarehouseConfig)).Methods("PUT")
	protected.HandleFunc("/warehouse/orders", rm.requireRole(admin, rm.handleListOrders)).Methods("GET")
	protected.HandleFunc("/warehouse/orders", rm.requireRole(admin, rm.handleCreateOrder)).Methods("POST")
	protected.HandleFunc("/warehouse/tool-mapping", rm.requireRole(admin, rm.handleListMappings)).Methods("GET")
	protected.HandleFunc("/warehouse/tool-mapping", rm.requireRole(admin, rm.handleCreateMapping)).Methods("POST")
	protected.HandleFunc("/warehouse/tool-mapping/{id:[0-9]+}", rm.requireRole(admin, rm.handleDeleteMapping)).Methods("DELETE")
}
