package scale

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kuncy7/toolid/pkg/models"
)

// DefaultShutdownGrace bounds how long Stop waits for listeners
const DefaultShutdownGrace = 2 * time.Second

// ConfigStore provides the scale configurations to monitor
type ConfigStore interface {
	LoadScaleConfigs(ctx context.Context) ([]models.ScaleConfig, error)
	CreateScaleConfig(ctx context.Context, cfg *models.ScaleConfig) error
}

// ListenerHandle tracks one running listener
type ListenerHandle struct {
	ScaleID int64
	Port    string

	cancel context.CancelFunc
	done   chan struct{}
}

// Running reports whether the listener goroutine has not exited yet
func (h *ListenerHandle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Supervisor starts one Listener per configured scale and stops them on shutdown
type Supervisor struct {
	store  ConfigStore
	opener Opener
	sink   Sink
	logger *log.Logger

	backoff           time.Duration
	grace             time.Duration
	reconcileInterval time.Duration

	mu            sync.Mutex
	handles       []*ListenerHandle
	monitored     map[int64]bool
	started       bool
	stopReconcile context.CancelFunc
	reconcileDone chan struct{}
}

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor)

// WithListenerBackoff sets the reconnect backoff of every listener
func WithListenerBackoff(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		if d > 0 {
			s.backoff = d
		}
	}
}

// WithShutdownGrace sets the total time Stop waits for listeners
func WithShutdownGrace(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithReconcileInterval makes the supervisor periodically pick up scales
// added to the store after Start. Zero disables it.
func WithReconcileInterval(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.reconcileInterval = d
	}
}

// WithSupervisorLogger sets the logger; listeners derive a prefixed logger from it
func WithSupervisorLogger(logger *log.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSupervisor creates a new Supervisor
func NewSupervisor(store ConfigStore, opener Opener, sink Sink, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		store:     store,
		opener:    opener,
		sink:      sink,
		logger:    log.Default(),
		backoff:   DefaultBackoff,
		grace:     DefaultShutdownGrace,
		monitored: make(map[int64]bool),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start loads all scale configurations and spawns a listener for each.
// When the store is empty a default configuration is created first.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("scale supervisor already started")
	}

	configs, err := s.store.LoadScaleConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load scale configurations: %w", err)
	}

	if len(configs) == 0 {
		cfg := models.DefaultScaleConfig()
		if err := s.store.CreateScaleConfig(ctx, &cfg); err != nil {
			return fmt.Errorf("failed to create default scale configuration: %w", err)
		}
		s.logger.Println("✓ Created default scale configuration")
		configs = append(configs, cfg)
	}

	s.logger.Printf("Found %d scale(s) to monitor", len(configs))

	for _, cfg := range configs {
		s.spawn(cfg)
	}

	s.started = true

	if s.reconcileInterval > 0 {
		reconcileCtx, cancel := context.WithCancel(context.Background())
		s.stopReconcile = cancel
		s.reconcileDone = make(chan struct{})
		go s.reconcileLoop(reconcileCtx, s.reconcileDone)
	}

	return nil
}

// spawn starts a listener for cfg; callers hold s.mu
func (s *Supervisor) spawn(cfg models.ScaleConfig) {
	if s.monitored[cfg.ID] {
		return
	}

	if err := cfg.Validate(); err != nil {
		s.logger.Printf("❌ Skipping scale %d on %s: %v", cfg.ID, cfg.Port, err)
		return
	}

	listenerLogger := log.New(s.logger.Writer(), fmt.Sprintf("[scale %d] ", cfg.ID), s.logger.Flags())
	listener := NewListener(cfg, s.opener, s.sink, WithBackoff(s.backoff), WithLogger(listenerLogger))

	ctx, cancel := context.WithCancel(context.Background())
	handle := &ListenerHandle{
		ScaleID: cfg.ID,
		Port:    cfg.Port,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(handle.done)
		listener.Run(ctx)
	}()

	s.handles = append(s.handles, handle)
	s.monitored[cfg.ID] = true

	s.logger.Printf("✓ Started listener for scale %d on port %s", cfg.ID, cfg.Port)
}

func (s *Supervisor) reconcileLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reconcile(ctx); err != nil {
				s.logger.Printf("❌ Scale reconciliation failed: %v", err)
			}
		}
	}
}

// Reconcile spawns listeners for configurations that are not monitored yet.
// Changed or deleted configurations keep their current listener.
func (s *Supervisor) Reconcile(ctx context.Context) error {
	configs, err := s.store.LoadScaleConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load scale configurations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	for _, cfg := range configs {
		s.spawn(cfg)
	}

	return nil
}

// Handles returns a snapshot of the running listener handles
func (s *Supervisor) Handles() []*ListenerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := make([]*ListenerHandle, len(s.handles))
	copy(handles, s.handles)
	return handles
}

// Stop signals every listener, then waits for all of them against a single
// deadline. Listeners still running afterwards are abandoned and reported
// through a *ShutdownTimeout.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	stopReconcile, reconcileDone := s.stopReconcile, s.reconcileDone
	s.stopReconcile, s.reconcileDone = nil, nil
	s.mu.Unlock()

	// Reconcile takes s.mu, so the loop is joined before locking again.
	if stopReconcile != nil {
		stopReconcile()
		<-reconcileDone
	}

	// The grace wait runs without s.mu held.
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.monitored = make(map[int64]bool)
	s.mu.Unlock()

	s.logger.Println("Stopping all scale listeners...")

	for _, h := range handles {
		h.cancel()
	}

	deadline := time.NewTimer(s.grace)
	defer deadline.Stop()

	expired := false
	var abandoned []int64

	for _, h := range handles {
		if !expired {
			select {
			case <-h.done:
				continue
			case <-deadline.C:
				expired = true
			}
		}

		if h.Running() {
			s.logger.Printf("⚠ Listener for scale %d did not terminate gracefully", h.ScaleID)
			abandoned = append(abandoned, h.ScaleID)
		}
	}

	s.logger.Println("✓ All scale listeners have been processed")

	if len(abandoned) > 0 {
		return &ShutdownTimeout{ScaleIDs: abandoned}
	}

	return nil
}
