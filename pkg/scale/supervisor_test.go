package scale

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kuncy7/toolid/pkg/models"
)

// idleOpener hands out a fresh idle connection per open
type idleOpener struct {
	readDelay time.Duration

	mu    sync.Mutex
	conns []*MockConnection
}

func (o *idleOpener) Open(cfg models.ScaleConfig) (Connection, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	conn := &MockConnection{readDelay: o.readDelay}
	o.conns = append(o.conns, conn)
	return conn, nil
}

func (o *idleOpener) Connections() []*MockConnection {
	o.mu.Lock()
	defer o.mu.Unlock()
	conns := make([]*MockConnection, len(o.conns))
	copy(conns, o.conns)
	return conns
}

func TestSupervisor_CreatesDefaultConfig(t *testing.T) {
	store := &MockConfigStore{}
	s := NewSupervisor(store, &idleOpener{readDelay: time.Millisecond}, &MockSink{},
		WithSupervisorLogger(discardLogger()))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start supervisor: %v", err)
	}
	defer s.Stop()

	if len(store.configs) != 1 {
		t.Fatalf("Expected default configuration to be created, got %d configs", len(store.configs))
	}

	cfg := store.configs[0]
	if cfg.Port != models.DefaultScalePort || cfg.BaudRate != models.DefaultScaleBaudRate {
		t.Errorf("Unexpected default configuration: %+v", cfg)
	}

	handles := s.Handles()
	if len(handles) != 1 || handles[0].ScaleID != cfg.ID {
		t.Errorf("Expected one listener for scale %d, got %+v", cfg.ID, handles)
	}
}

func TestSupervisor_SkipsInvalidConfig(t *testing.T) {
	invalid := testScaleConfig(2)
	invalid.Parity = "X"

	store := &MockConfigStore{configs: []models.ScaleConfig{testScaleConfig(1), invalid, testScaleConfig(3)}}
	s := NewSupervisor(store, &idleOpener{readDelay: time.Millisecond}, &MockSink{},
		WithSupervisorLogger(discardLogger()))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start supervisor: %v", err)
	}
	defer s.Stop()

	handles := s.Handles()
	if len(handles) != 2 {
		t.Fatalf("Expected 2 listeners, got %d", len(handles))
	}

	for _, h := range handles {
		if h.ScaleID == 2 {
			t.Error("Expected invalid scale 2 to be skipped")
		}
	}
}

func TestSupervisor_StartFailsWhenStoreFails(t *testing.T) {
	store := &MockConfigStore{loadErr: errors.New("connection refused")}
	s := NewSupervisor(store, &idleOpener{}, &MockSink{}, WithSupervisorLogger(discardLogger()))

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("Expected error when configurations cannot be loaded")
	}

	if err := s.Stop(); err != nil {
		t.Errorf("Expected Stop on unstarted supervisor to be a no-op, got %v", err)
	}
}

func TestSupervisor_StartTwice(t *testing.T) {
	store := &MockConfigStore{configs: []models.ScaleConfig{testScaleConfig(1)}}
	s := NewSupervisor(store, &idleOpener{readDelay: time.Millisecond}, &MockSink{},
		WithSupervisorLogger(discardLogger()))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start supervisor: %v", err)
	}
	defer s.Stop()

	if err := s.Start(context.Background()); err == nil {
		t.Error("Expected second Start to fail")
	}
}

func TestSupervisor_StopGraceful(t *testing.T) {
	store := &MockConfigStore{configs: []models.ScaleConfig{testScaleConfig(1), testScaleConfig(2), testScaleConfig(3)}}
	opener := &idleOpener{readDelay: time.Millisecond}
	s := NewSupervisor(store, opener, &MockSink{}, WithSupervisorLogger(discardLogger()))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start supervisor: %v", err)
	}

	if !waitFor(time.Second, func() bool { return len(opener.Connections()) == 3 }) {
		t.Fatalf("Expected 3 connections, got %d", len(opener.Connections()))
	}

	handles := s.Handles()
	if err := s.Stop(); err != nil {
		t.Fatalf("Expected clean shutdown, got %v", err)
	}

	for _, h := range handles {
		if h.Running() {
			t.Errorf("Listener for scale %d still running", h.ScaleID)
		}
	}

	for i, conn := range opener.Connections() {
		if !conn.Closed() {
			t.Errorf("Connection %d was not closed", i)
		}
	}

	if len(s.Handles()) != 0 {
		t.Error("Expected handles to be released after Stop")
	}
}

func TestSupervisor_StopIsBoundedBySharedGrace(t *testing.T) {
	const listeners = 5
	grace := 100 * time.Millisecond

	var configs []models.ScaleConfig
	for i := 1; i <= listeners; i++ {
		configs = append(configs, testScaleConfig(int64(i)))
	}

	// Every read outlasts the grace period, so no listener can stop in time.
	opener := &idleOpener{readDelay: time.Second}
	s := NewSupervisor(&MockConfigStore{configs: configs}, opener, &MockSink{},
		WithShutdownGrace(grace), WithSupervisorLogger(discardLogger()))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start supervisor: %v", err)
	}

	ready := waitFor(time.Second, func() bool {
		conns := opener.Connections()
		if len(conns) != listeners {
			return false
		}
		for _, conn := range conns {
			if conn.Reads() == 0 {
				return false
			}
		}
		return true
	})
	if !ready {
		t.Fatal("Listeners never started reading")
	}

	start := time.Now()
	err := s.Stop()
	elapsed := time.Since(start)

	if elapsed > 3*grace {
		t.Errorf("Expected shutdown within grace bounds, took %v (N x grace = %v)", elapsed, listeners*grace)
	}

	var timeoutErr *ShutdownTimeout
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("Expected *ShutdownTimeout, got %v", err)
	}

	if len(timeoutErr.ScaleIDs) != listeners {
		t.Errorf("Expected %d abandoned listeners, got %v", listeners, timeoutErr.ScaleIDs)
	}
}

func TestSupervisor_HandlesDoesNotBlockDuringStop(t *testing.T) {
	grace := 300 * time.Millisecond
	opener := &idleOpener{readDelay: time.Second}
	s := NewSupervisor(&MockConfigStore{configs: []models.ScaleConfig{testScaleConfig(1)}}, opener, &MockSink{},
		WithShutdownGrace(grace), WithSupervisorLogger(discardLogger()))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start supervisor: %v", err)
	}

	if !waitFor(time.Second, func() bool {
		conns := opener.Connections()
		return len(conns) == 1 && conns[0].Reads() > 0
	}) {
		t.Fatal("Listener never started reading")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop() }()

	// Let Stop reach its grace wait.
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	handles := s.Handles()
	if elapsed := time.Since(start); elapsed > grace/3 {
		t.Errorf("Expected Handles to return during the grace wait, took %v", elapsed)
	}
	if len(handles) != 0 {
		t.Errorf("Expected no handles once Stop began, got %d", len(handles))
	}

	select {
	case err := <-stopped:
		var timeoutErr *ShutdownTimeout
		if !errors.As(err, &timeoutErr) {
			t.Errorf("Expected *ShutdownTimeout, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestSupervisor_Reconcile(t *testing.T) {
	store := &MockConfigStore{configs: []models.ScaleConfig{testScaleConfig(1)}}
	s := NewSupervisor(store, &idleOpener{readDelay: time.Millisecond}, &MockSink{},
		WithSupervisorLogger(discardLogger()))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start supervisor: %v", err)
	}
	defer s.Stop()

	store.Add(testScaleConfig(2))

	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	handles := s.Handles()
	if len(handles) != 2 {
		t.Fatalf("Expected 2 listeners after reconcile, got %d", len(handles))
	}
}

func TestSupervisor_ReconcileLoop(t *testing.T) {
	store := &MockConfigStore{configs: []models.ScaleConfig{testScaleConfig(1)}}
	s := NewSupervisor(store, &idleOpener{readDelay: time.Millisecond}, &MockSink{},
		WithReconcileInterval(10*time.Millisecond), WithSupervisorLogger(discardLogger()))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start supervisor: %v", err)
	}

	store.Add(testScaleConfig(2))

	if !waitFor(time.Second, func() bool { return len(s.Handles()) == 2 }) {
		t.Errorf("Expected reconcile loop to pick up new scale, got %d listeners", len(s.Handles()))
	}

	if err := s.Stop(); err != nil {
		t.Errorf("Unexpected shutdown error: %v", err)
	}
}
