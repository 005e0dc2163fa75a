package main

import (
	"errors"
	"log"
	"net/http"

	"github.com/kuncy7/toolid/pkg/database"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (rm *RouteManager) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Validate credentials
	user, err := rm.dbManager.ValidateUser(r.Context(), req.Email, req.Password)
	if errors.Is(err, database.ErrInvalidCredentials) {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if err != nil {
		writeError(w, err, "validate credentials")
		return
	}

	// Generate JWT token bound to a new session
	token, sessionID, expiresAt, err := generateJWT(rm.settings.JWTSecret, rm.settings.AccessTokenTTL(), user)
	if err != nil {
		log.Printf("❌ Failed to generate token: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	if _, err := rm.dbManager.CreateSession(r.Context(), sessionID, user.ID, expiresAt); err != nil {
		writeError(w, err, "create session")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

func (rm *RouteManager) handleLogout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := GetSessionFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := rm.dbManager.DeactivateSession(r.Context(), sessionID); err != nil {
		writeError(w, err, "log out")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (rm *RouteManager) handleMe(w http.ResponseWriter, r *http.Request) {
	claimed := GetUserFromContext(r.Context())
	if claimed == nil {
		writeDetail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := rm.dbManager.GetUser(r.Context(), claimed.ID)
	if err != nil {
		writeError(w, err, "load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}
