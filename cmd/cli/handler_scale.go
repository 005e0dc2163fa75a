package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kuncy7/toolid/pkg/database"
	"github.com/kuncy7/toolid/pkg/models"
	"github.com/kuncy7/toolid/pkg/scale"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	wsWriteTimeout      = 5 * time.Second
)

type ListenerStatus struct {
	ScaleID int64  `json:"scale_id"`
	Port    string `json:"port"`
	Running bool   `json:"running"`
}

func (rm *RouteManager) handleGetScaleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := rm.dbManager.EnsureScaleConfig(r.Context())
	if err != nil {
		writeError(w, err, "load scale config")
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

func (rm *RouteManager) handleGetScaleConfigByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := rm.scaleConfig(r.Context(), id)
	if err != nil {
		writeError(w, err, "load scale config")
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

func (rm *RouteManager) handleUpdateScaleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := models.DefaultScaleConfig()
	if err := decodeJSON(r, &cfg); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	parity, err := models.ParseParity(cfg.Parity)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg.Parity = string(parity)

	if err := cfg.Validate(); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := rm.dbManager.SaveFirstScaleConfig(r.Context(), &cfg); err != nil {
		writeError(w, err, "save scale config")
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// handleReadScale reads one raw line straight from the first configured scale.
// This fails while a listener holds the port.
func (rm *RouteManager) handleReadScale(w http.ResponseWriter, r *http.Request) {
	cfg, err := rm.dbManager.GetFirstScaleConfig(r.Context())
	if errors.Is(err, database.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "No scale config")
		return
	}
	if err != nil {
		writeError(w, err, "load scale config")
		return
	}

	raw, err := readRawLine(r.Context(), rm.opener, *cfg)
	if err != nil {
		log.Printf("❌ Scale read on %s failed: %v", cfg.Port, err)
		writeDetail(w, http.StatusInternalServerError, "Scale connection error: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"raw": raw})
}

// readRawLine returns the first complete line, or whatever arrived before the
// read timeout expired.
func readRawLine(ctx context.Context, opener scale.Opener, cfg models.ScaleConfig) (string, error) {
	conn, err := opener.Open(cfg)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	var reassembler scale.Reassembler
	buf := make([]byte, 256)
	deadline := time.Now().Add(cfg.ReadTimeout())

	for time.Now().Before(deadline) && ctx.Err() == nil {
		n, err := conn.ReadChunk(buf)
		if err != nil {
			return "", err
		}
		if n == 0 {
			break
		}
		if lines := reassembler.Feed(buf[:n]); len(lines) > 0 {
			return strings.TrimSpace(lines[0]), nil
		}
	}

	return strings.TrimSpace(strings.ToValidUTF8(reassembler.Pending(), "")), nil
}

func (rm *RouteManager) handleLastWeight(w http.ResponseWriter, r *http.Request) {
	scaleID, err := pathInt64(r, "scale_id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	weight, err := rm.latestWeight(r.Context(), scaleID)
	if errors.Is(err, database.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "No weight measurements found for this scale.")
		return
	}
	if err != nil {
		writeError(w, err, "load latest weight")
		return
	}

	writeJSON(w, http.StatusOK, weight)
}

func (rm *RouteManager) handleWeightHistory(w http.ResponseWriter, r *http.Request) {
	scaleID, err := pathInt64(r, "scale_id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxHistoryLimit {
			writeDetail(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
	}

	weights, err := rm.dbManager.GetScaleWeightHistory(r.Context(), scaleID, limit)
	if err != nil {
		writeError(w, err, "load weight history")
		return
	}

	writeJSON(w, http.StatusOK, weights)
}

// handleWeightStream pushes the latest reading of a scale whenever a newer one is stored
func (rm *RouteManager) handleWeightStream(w http.ResponseWriter, r *http.Request) {
	scaleID, err := pathInt64(r, "scale_id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := rm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if err := rm.streamLatestWeight(r.Context(), conn, scaleID); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Printf("⚠ Weight stream for scale %d ended: %v", scaleID, err)
	}
}

func (rm *RouteManager) streamLatestWeight(ctx context.Context, conn *websocket.Conn, scaleID int64) error {
	// Clear the deadline the HTTP server set before the connection was hijacked
	_ = conn.SetReadDeadline(time.Time{})

	// The client never sends data; reading only surfaces close frames
	readErrors := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErrors <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(rm.wsPollInterval)
	defer ticker.Stop()

	var lastID int64
	for {
		weight, err := rm.latestWeight(ctx, scaleID)
		switch {
		case err == nil && weight.ID != lastID:
			lastID = weight.ID
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(weight); err != nil {
				return err
			}
		case err != nil && !errors.Is(err, database.ErrNotFound):
			log.Printf("❌ Failed to load latest weight for scale %d: %v", scaleID, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErrors:
			return err
		case <-ticker.C:
		}
	}
}

func (rm *RouteManager) handleListListeners(w http.ResponseWriter, r *http.Request) {
	statuses := []ListenerStatus{}
	if rm.supervisor != nil {
		for _, h := range rm.supervisor.Handles() {
			statuses = append(statuses, ListenerStatus{
				ScaleID: h.ScaleID,
				Port:    h.Port,
				Running: h.Running(),
			})
		}
	}

	writeJSON(w, http.StatusOK, statuses)
}

// handleReconcileListeners starts listeners for scales configured since startup
func (rm *RouteManager) handleReconcileListeners(w http.ResponseWriter, r *http.Request) {
	if rm.supervisor == nil {
		writeDetail(w, http.StatusServiceUnavailable, "Scale listeners are disabled")
		return
	}

	if err := rm.supervisor.Reconcile(r.Context()); err != nil {
		writeError(w, err, "reconcile scale listeners")
		return
	}

	rm.handleListListeners(w, r)
}
