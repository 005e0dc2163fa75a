package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kuncy7/toolid/pkg/models"
)

type contextKey string

const (
	userContextKey    contextKey = "user"
	sessionContextKey contextKey = "session"
)

// JWTClaims represents the JWT token claims. Subject carries the user id
// and ID (jti) the session id.
type JWTClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuthMiddleware validates JWT tokens and their server side session
func (rm *RouteManager) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := parseJWT(rm.settings.JWTSecret, tokenString)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}
		sessionID, err := uuid.Parse(claims.ID)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		active, err := rm.sessionActive(r.Context(), sessionID)
		if err != nil {
			log.Printf("❌ Failed to check session %s: %v", sessionID, err)
			writeDetail(w, http.StatusInternalServerError, "Failed to check session")
			return
		}
		if !active {
			writeDetail(w, http.StatusUnauthorized, "Session expired or logged out")
			return
		}

		// Create user object from claims (no DB lookup needed for every request)
		user := &models.User{
			ID:   userID,
			Role: claims.Role,
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		ctx = context.WithValue(ctx, sessionContextKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from the Authorization header. Browsers
// cannot set headers on websocket upgrades, so those may pass ?token= instead.
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if websocket.IsWebSocketUpgrade(r) {
			if token := r.URL.Query().Get("token"); token != "" {
				return token, nil
			}
		}
		return "", errors.New("Authorization header required")
	}

	// Extract token from "Bearer <token>"
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return "", errors.New("Invalid authorization header format")
	}

	return authHeader[len(prefix):], nil
}

// requireRole rejects users whose role is not one of roles
func (rm *RouteManager) requireRole(roles []string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil {
			writeDetail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		for _, role := range roles {
			if user.Role == role {
				next(w, r)
				return
			}
		}

		writeDetail(w, http.StatusForbidden, "Insufficient permissions")
	}
}

// GetUserFromContext retrieves user from request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetSessionFromContext retrieves the session id of the current token
func GetSessionFromContext(ctx context.Context) (uuid.UUID, bool) {
	sessionID, ok := ctx.Value(sessionContextKey).(uuid.UUID)
	return sessionID, ok
}

// generateJWT creates a signed token for user bound to a new session id
func generateJWT(secret string, ttl time.Duration, user *models.User) (string, uuid.UUID, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	sessionID := uuid.New()

	claims := JWTClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        sessionID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", uuid.Nil, time.Time{}, err
	}

	return tokenString, sessionID, expiresAt, nil
}

// parseJWT validates the signature and expiry of tokenString
func parseJWT(secret, tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}
