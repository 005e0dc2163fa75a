package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/kuncy7/toolid/pkg/config"
	"github.com/kuncy7/toolid/pkg/database"
	"github.com/kuncy7/toolid/pkg/models"
	"github.com/kuncy7/toolid/pkg/scale"
)

// fakeConnection replays chunks and then reports timeouts
type fakeConnection struct {
	chunks [][]byte
	closed bool
}

func (c *fakeConnection) ReadChunk(buf []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, nil
	}
	n := copy(buf, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

func (c *fakeConnection) Close() error {
	c.closed = true
	return nil
}

type fakeOpener struct {
	conn *fakeConnection
	err  error
}

func (o *fakeOpener) Open(cfg models.ScaleConfig) (scale.Connection, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.conn, nil
}

func TestReadRawLine(t *testing.T) {
	cfg := models.DefaultScaleConfig()

	tests := []struct {
		name   string
		chunks []string
		want   string
	}{
		{"complete line", []string{"ST,GS,Net   00", "594.0 g\r\nNet 1 g\r\n"}, "ST,GS,Net   00594.0 g"},
		{"partial line before timeout", []string{"Net 12"}, "Net 12"},
		{"nothing received", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConnection{}
			for _, chunk := range tt.chunks {
				conn.chunks = append(conn.chunks, []byte(chunk))
			}

			got, err := readRawLine(context.Background(), &fakeOpener{conn: conn}, cfg)
			if err != nil {
				t.Fatalf("readRawLine failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
			if !conn.closed {
				t.Error("Expected connection to be closed")
			}
		})
	}

	busy := &scale.TransportError{Op: "open", Port: cfg.Port, Err: scale.ErrPortBusy}
	if _, err := readRawLine(context.Background(), &fakeOpener{err: busy}, cfg); !errors.Is(err, scale.ErrPortBusy) {
		t.Errorf("Expected port busy error, got %v", err)
	}
}

// weightFeed is a concurrency safe stand-in for the latest stored reading
type weightFeed struct {
	mu     sync.Mutex
	weight *models.ScaleWeight
	err    error
}

func (f *weightFeed) set(w *models.ScaleWeight) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.weight = w
}

func (f *weightFeed) latest(ctx context.Context, scaleID int64) (*models.ScaleWeight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.weight == nil || f.weight.ScaleID != scaleID {
		return nil, &database.NotFoundError{Resource: "Scale weight", ID: scaleID}
	}
	copied := *f.weight
	return &copied, nil
}

func TestHandleLastWeight(t *testing.T) {
	feed := &weightFeed{}
	feed.set(&models.ScaleWeight{ID: 4, ScaleID: 1, Weight: 12.5, CreatedAt: time.Now().UTC()})

	rm := &RouteManager{settings: config.Default(), latestWeight: feed.latest}

	tests := []struct {
		scaleID string
		want    int
	}{
		{"1", http.StatusOK},
		{"2", http.StatusNotFound},
		{"x", http.StatusBadRequest},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/scale/weight/"+tt.scaleID+"/last", nil)
		req = mux.SetURLVars(req, map[string]string{"scale_id": tt.scaleID})
		rec := httptest.NewRecorder()

		rm.handleLastWeight(rec, req)

		if rec.Code != tt.want {
			t.Errorf("scale %s: expected %d, got %d", tt.scaleID, tt.want, rec.Code)
			continue
		}
		if tt.want == http.StatusOK {
			var weight models.ScaleWeight
			if err := json.NewDecoder(rec.Body).Decode(&weight); err != nil {
				t.Fatalf("Failed to decode weight: %v", err)
			}
			if weight.ID != 4 || weight.Weight != 12.5 {
				t.Errorf("Unexpected weight: %+v", weight)
			}
		}
	}
}

func TestHandleLastWeight_DatabaseDown(t *testing.T) {
	feed := &weightFeed{err: fmt.Errorf("failed to get latest weight: %w", database.ErrUnhealthy)}
	rm := &RouteManager{settings: config.Default(), latestWeight: feed.latest}

	req := httptest.NewRequest(http.MethodGet, "/api/scale/weight/1/last", nil)
	req = mux.SetURLVars(req, map[string]string{"scale_id": "1"})
	rec := httptest.NewRecorder()

	rm.handleLastWeight(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected %d while the database is down, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}

func TestHandleGetScaleConfigByID(t *testing.T) {
	stored := models.DefaultScaleConfig()
	stored.ID = 3

	rm := &RouteManager{
		settings: config.Default(),
		scaleConfig: func(ctx context.Context, id int64) (*models.ScaleConfig, error) {
			if id != stored.ID {
				return nil, &database.NotFoundError{Resource: "Scale", ID: id}
			}
			cfg := stored
			return &cfg, nil
		},
	}

	tests := []struct {
		id   string
		want int
	}{
		{"3", http.StatusOK},
		{"9", http.StatusNotFound},
		{"x", http.StatusBadRequest},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/scale/config/"+tt.id, nil)
		req = mux.SetURLVars(req, map[string]string{"id": tt.id})
		rec := httptest.NewRecorder()

		rm.handleGetScaleConfigByID(rec, req)

		if rec.Code != tt.want {
			t.Errorf("config %s: expected %d, got %d", tt.id, tt.want, rec.Code)
			continue
		}
		if tt.want == http.StatusOK {
			var cfg models.ScaleConfig
			if err := json.NewDecoder(rec.Body).Decode(&cfg); err != nil {
				t.Fatalf("Failed to decode config: %v", err)
			}
			if cfg.ID != 3 || cfg.Port != stored.Port {
				t.Errorf("Unexpected config: %+v", cfg)
			}
		}
	}
}

func TestWeightStream(t *testing.T) {
	feed := &weightFeed{}

	rm := &RouteManager{
		settings:       config.Default(),
		latestWeight:   feed.latest,
		wsPollInterval: 10 * time.Millisecond,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rm.handleWeightStream(w, mux.SetURLVars(r, map[string]string{"scale_id": "1"}))
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	readWeight := func() models.ScaleWeight {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var weight models.ScaleWeight
		if err := conn.ReadJSON(&weight); err != nil {
			t.Fatalf("Failed to read weight: %v", err)
		}
		return weight
	}

	// Nothing is pushed while the scale has no readings
	time.Sleep(50 * time.Millisecond)
	feed.set(&models.ScaleWeight{ID: 1, ScaleID: 1, Weight: 100})

	if got := readWeight(); got.ID != 1 || got.Weight != 100 {
		t.Fatalf("Expected first reading, got %+v", got)
	}

	// The same reading is not pushed twice
	time.Sleep(50 * time.Millisecond)
	feed.set(&models.ScaleWeight{ID: 2, ScaleID: 1, Weight: 250})

	if got := readWeight(); got.ID != 2 || got.Weight != 250 {
		t.Fatalf("Expected newer reading, got %+v", got)
	}
}

func TestHandleListListeners_Disabled(t *testing.T) {
	rm := &RouteManager{settings: config.Default()}

	rec := httptest.NewRecorder()
	rm.handleListListeners(rec, httptest.NewRequest(http.MethodGet, "/api/scale/listeners", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("Expected empty list, got %s", body)
	}

	rec = httptest.NewRecorder()
	rm.handleReconcileListeners(rec, httptest.NewRequest(http.MethodPost, "/api/scale/listeners/reconcile", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when listeners are disabled, got %d", rec.Code)
	}
}
