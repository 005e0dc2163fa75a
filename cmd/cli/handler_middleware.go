package main

import (
	"context"
	"log"
	"net/http"
	"strings"
)

// corsMiddleware handles CORS headers
func (rm *RouteManager) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check if origin is allowed
		origin := r.Header.Get("Origin")
		if origin != "" {
			if rm.originAllowed(r) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			} else {
				log.Printf("Origin '%s' is not within allowed origins: %s", origin, strings.Join(rm.settings.AllowedOrigins, ", "))
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// originAllowed reports whether the request origin is in SERVER_ALLOWED_ORIGINS.
// Requests without an Origin header are allowed.
func (rm *RouteManager) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || rm.settings.AllowsAnyOrigin() {
		return true
	}
	for _, allowed := range rm.settings.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// contextMiddleware adds database context to requests
func (rm *RouteManager) contextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rm.dbManager == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), "dbManager", rm.dbManager)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
