package main

import (
	"net/http"
)

// healthHandler returns server health status, including the database
// connection when one is configured
func (rm *RouteManager) healthHandler(w http.ResponseWriter, r *http.Request) {
	if rm.dbHealthy == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	if !rm.dbHealthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}
