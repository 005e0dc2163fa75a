package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings holds the environment driven configuration of toolid
type Settings struct {
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	ServerPort     string
	AllowedOrigins []string

	JWTSecret        string
	AccessTokenHours int

	ScaleListenerEnabled   bool
	ScaleBackoff           time.Duration
	ScaleShutdownGrace     time.Duration
	ScaleReconcileInterval time.Duration

	AllowedLocalPath string
	StaticDir        string

	AdminEmail    string
	AdminPassword string
}

// Default returns the settings used when no environment variable is set
func Default() *Settings {
	return &Settings{
		DBHost:                 "localhost",
		DBPort:                 "5432",
		DBUser:                 "toolid",
		DBPassword:             "toolid",
		DBName:                 "toolid",
		DBSSLMode:              "disable",
		ServerPort:             "8059",
		AllowedOrigins:         []string{"*"},
		AccessTokenHours:       8,
		ScaleListenerEnabled:   true,
		ScaleBackoff:           5 * time.Second,
		ScaleShutdownGrace:     2 * time.Second,
		ScaleReconcileInterval: 0,
		AllowedLocalPath:       "/home/pi",
		StaticDir:              "static",
		AdminEmail:             "admin@example.com",
		AdminPassword:          "admin",
	}
}

// Load reads the settings from the environment
func Load() (*Settings, error) {
	d := Default()
	s := &Settings{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", d.DBHost),
		DBPort:      getEnv("DB_PORT", d.DBPort),
		DBUser:      getEnv("DB_USER", d.DBUser),
		DBPassword:  getEnv("DB_PASSWORD", d.DBPassword),
		DBName:      getEnv("DB_NAME", d.DBName),
		DBSSLMode:   getEnv("DB_SSLMODE", d.DBSSLMode),

		ServerPort:     getEnv("SERVER_PORT", d.ServerPort),
		AllowedOrigins: splitList(getEnv("SERVER_ALLOWED_ORIGINS", strings.Join(d.AllowedOrigins, ","))),

		JWTSecret: getEnv("JWT_SECRET", ""),

		AllowedLocalPath: getEnv("ALLOWED_LOCAL_PATH", d.AllowedLocalPath),
		StaticDir:        getEnv("STATIC_DIR", d.StaticDir),

		AdminEmail:    getEnv("ADMIN_EMAIL", d.AdminEmail),
		AdminPassword: getEnv("ADMIN_PASS", d.AdminPassword),
	}

	var err error
	if s.AccessTokenHours, err = getEnvInt("ACCESS_TOKEN_EXPIRE_HOURS", d.AccessTokenHours); err != nil {
		return nil, err
	}
	if s.AccessTokenHours <= 0 {
		return nil, fmt.Errorf("ACCESS_TOKEN_EXPIRE_HOURS must be positive, got %d", s.AccessTokenHours)
	}
	if s.ScaleListenerEnabled, err = getEnvBool("SCALE_LISTENER_ENABLED", d.ScaleListenerEnabled); err != nil {
		return nil, err
	}
	if s.ScaleBackoff, err = getEnvDuration("SCALE_BACKOFF", d.ScaleBackoff); err != nil {
		return nil, err
	}
	if s.ScaleShutdownGrace, err = getEnvDuration("SCALE_SHUTDOWN_GRACE", d.ScaleShutdownGrace); err != nil {
		return nil, err
	}
	if s.ScaleReconcileInterval, err = getEnvDuration("SCALE_RECONCILE_INTERVAL", d.ScaleReconcileInterval); err != nil {
		return nil, err
	}

	return s, nil
}

// DSN returns the Postgres connection string; DATABASE_URL wins over the DB_* variables
func (s *Settings) DSN() string {
	if s.DatabaseURL != "" {
		return s.DatabaseURL
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.DBUser, s.DBPassword),
		Host:     s.DBHost + ":" + s.DBPort,
		Path:     "/" + s.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(s.DBSSLMode),
	}
	return u.String()
}

// AccessTokenTTL returns how long issued tokens stay valid
func (s *Settings) AccessTokenTTL() time.Duration {
	return time.Duration(s.AccessTokenHours) * time.Hour
}

// ValidateServe checks the settings required to run the HTTP server
func (s *Settings) ValidateServe() error {
	if s.JWTSecret == "" || s.JWTSecret == "change_me_in_production" || s.JWTSecret == "change-me" {
		return errors.New("JWT_SECRET environment variable is not set or has an invalid value")
	}
	return nil
}

// AllowsAnyOrigin reports whether CORS is open to every origin
func (s *Settings) AllowsAnyOrigin() bool {
	for _, origin := range s.AllowedOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// getEnvDuration accepts Go durations ("5s") and bare seconds ("5")
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return v, nil
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
