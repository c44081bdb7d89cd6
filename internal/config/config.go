// Package config loads application configuration from environment
// variables.  A .env file is read by main before Load is called.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // APP_ENV: dev, test or prod
	Port           string // APP_PORT
	DBUser         string // DB_USER
	DBPass         string // DB_PASS (optional)
	DBHost         string // DB_HOST
	DBPort         string // DB_PORT
	DBName         string // DB_NAME
	DBMigrate      bool   // DB_MIGRATE: apply the schema at startup
	JWTSecret      string // JWT_SECRET
	AccessTTLMin   int    // ACCESS_TOKEN_TTL_MIN
	RefreshTTLDays int    // REFRESH_TOKEN_TTL_DAYS
	BcryptCost     int    // BCRYPT_COST
	LogLevel       string // LOG_LEVEL (default info)
	RabbitMQURL    string // RABBITMQ_URL (optional; events are disabled without it)
	EventQueue     string // EVENT_QUEUE (default booking.events)
	AuditLogPath   string // AUDIT_LOG_PATH (default logs/booking-audit.log)
	AdminEmail     string // ADMIN_EMAIL: seeded admin account (optional)
	AdminPassword  string // ADMIN_PASSWORD
}

// Load reads the configuration.  Every missing or malformed required
// variable is reported in the returned error.
func Load() (Config, error) {
	var l loader
	c := Config{
		Env:            l.must("APP_ENV"),
		Port:           l.must("APP_PORT"),
		DBUser:         l.must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         l.must("DB_HOST"),
		DBPort:         l.must("DB_PORT"),
		DBName:         l.must("DB_NAME"),
		DBMigrate:      envBool("DB_MIGRATE", false),
		JWTSecret:      l.must("JWT_SECRET"),
		AccessTTLMin:   l.mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: l.mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     l.mustInt("BCRYPT_COST"),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
		EventQueue:     envStr("EVENT_QUEUE", "booking.events"),
		AuditLogPath:   envStr("AUDIT_LOG_PATH", "logs/booking-audit.log"),
		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
	}
	if c.AdminEmail != "" && c.AdminPassword == "" {
		l.errs = append(l.errs, errors.New("ADMIN_PASSWORD is required when ADMIN_EMAIL is set"))
	}
	if c.AccessTTLMin <= 0 {
		l.errs = append(l.errs, errors.New("ACCESS_TOKEN_TTL_MIN must be positive"))
	}
	if c.RefreshTTLDays <= 0 {
		l.errs = append(l.errs, errors.New("REFRESH_TOKEN_TTL_DAYS must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		l.errs = append(l.errs, fmt.Errorf("BCRYPT_COST %d outside 4..31", c.BcryptCost))
	}
	return c, errors.Join(l.errs...)
}

// IsDev reports whether the app runs in a development or test environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "test", "local":
		return true
	}
	return false
}

type loader struct {
	errs []error
}

func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		l.errs = append(l.errs, fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

func (l *loader) mustInt(key string) int {
	s := l.must(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid int for %s: %q", key, s))
	}
	return n
}
