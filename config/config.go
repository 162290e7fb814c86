// Package config provides configuration management for the users service.
// It handles loading and validation of configuration values from environment variables,
// with support for required variables, default values, and collective error reporting.
// The active environment (APP_ENV) selects which settings object is built, so the same
// binary runs in development, testing and production without code changes.
package config

import (
	"fmt"
	// `os` package provides operating system functionalities, like reading environment variables.
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/user/users-service/apperror"
)

// Environment names accepted in APP_ENV.
const (
	EnvDevelopment = "development"
	EnvTesting     = "testing"
	EnvProduction  = "production"
)

// Database drivers understood by the db package.
// "pgx" is the database/sql name registered by github.com/jackc/pgx/v5/stdlib,
// "sqlite" is the one registered by modernc.org/sqlite.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// bcrypt accepts costs in [4, 31]. Values outside are reported as configuration errors.
const (
	minBcryptCost = 4
	maxBcryptCost = 31
)

// DatabaseConfig describes the single relational store holding user rows.
type DatabaseConfig struct {
	URL            string        // URL as configured (postgres://..., sqlite://..., file:...)
	Driver         string        // database/sql driver name derived from the URL scheme
	DSN            string        // connection string handed to the driver
	MaxOpenConns   int           // upper bound of the connection pool
	ConnectRetries int           // attempts made by db.Connect before giving up
	RetryDelay     time.Duration // pause between connection attempts
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port               string   // Port for the HTTP server
	CORSAllowedOrigins []string // Origins allowed by the CORS middleware
}

// SecurityConfig holds password hashing settings.
type SecurityConfig struct {
	BcryptCost int // Work factor for bcrypt
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string // zap level name: debug, info, warn, error
}

// SeedConfig holds settings of the `seed-db` command.
type SeedConfig struct {
	Password string // Plaintext password given to every seeded user before hashing
}

// AppConfig is the top-level configuration structure for the application.
type AppConfig struct {
	Env      string
	Database *DatabaseConfig
	Server   *ServerConfig
	Security *SecurityConfig
	Log      *LogConfig
	Seed     *SeedConfig
}

// environmentDefaults holds the per-environment values used when a variable is absent.
type environmentDefaults struct {
	urlKey      string
	databaseURL string // empty means the URL is required
	bcryptCost  int
	logLevel    string
}

var defaultsByEnv = map[string]environmentDefaults{
	EnvDevelopment: {urlKey: "DATABASE_URL", databaseURL: "sqlite://users_dev.db", bcryptCost: 13, logLevel: "debug"},
	EnvTesting:     {urlKey: "DATABASE_TEST_URL", databaseURL: "file:users_test?mode=memory&cache=shared", bcryptCost: minBcryptCost, logLevel: "info"},
	EnvProduction:  {urlKey: "DATABASE_URL", bcryptCost: 13, logLevel: "info"},
}

// Helper function to get a required environment variable.
// Appends an error to the errors slice if the variable is not set.
func getRequiredEnv(key string, errors *[]string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		*errors = append(*errors, fmt.Sprintf("missing required environment variable: %s", key))
		return ""
	}
	return value
}

// Helper function to get an optional environment variable with a default string value.
func getOptionalEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// Helper function to get an optional environment variable parsed as an int.
// Uses defaultValue if not set or if parsing fails. Appends an error if parsing fails.
func getOptionalEnvInt(key string, defaultValue int, errors *[]string) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected integer, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueInt
}

// Helper function to get an optional environment variable parsed as time.Duration.
// `time.ParseDuration` expects a string like "500ms", "1s".
func getOptionalEnvDuration(key string, defaultValue time.Duration, errors *[]string) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueDuration, err := time.ParseDuration(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected duration string, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueDuration
}

// getOptionalEnvList splits a comma separated variable, dropping blanks.
func getOptionalEnvList(key string, defaultValue []string) []string {
	raw := getOptionalEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// checkBcryptCost appends an error when cost is outside the range bcrypt accepts.
func checkBcryptCost(cost int, errors *[]string) {
	if cost < minBcryptCost {
		*errors = append(*errors, fmt.Sprintf("BCRYPT_LOG_ROUNDS (%d) is less than minimum %d", cost, minBcryptCost))
	}
	if cost > maxBcryptCost {
		*errors = append(*errors, fmt.Sprintf("BCRYPT_LOG_ROUNDS (%d) is greater than maximum %d", cost, maxBcryptCost))
	}
}

// ParseDatabaseURL derives the database/sql driver and DSN from a configured URL.
//
//	postgres://u:p@host:5432/users   -> pgx,    unchanged
//	sqlite://users_dev.db            -> sqlite, users_dev.db
//	file:users_test?mode=memory      -> sqlite, unchanged
func ParseDatabaseURL(url string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, url, nil
	case strings.HasPrefix(url, "sqlite://"):
		dsn = strings.TrimPrefix(url, "sqlite://")
		if dsn == "" {
			return "", "", fmt.Errorf("sqlite URL %q has no database path", url)
		}
		return DriverSQLite, dsn, nil
	case strings.HasPrefix(url, "file:"):
		return DriverSQLite, url, nil
	default:
		return "", "", fmt.Errorf("unsupported database URL %q: expected postgres://, sqlite:// or file:", url)
	}
}

// LoadConfig creates and returns an AppConfig by reading and validating environment variables.
// It collects all errors encountered during loading and returns them as a single ConfigError.
func LoadConfig() (*AppConfig, error) {
	var errors []string

	env := getOptionalEnv("APP_ENV", EnvDevelopment)
	defaults, ok := defaultsByEnv[env]
	if !ok {
		return nil, apperror.NewConfigError(fmt.Sprintf("configuration errors:\n- unknown APP_ENV %q (want %s, %s or %s)",
			env, EnvDevelopment, EnvTesting, EnvProduction), nil)
	}

	// Database Configuration
	var dbURL string
	if defaults.databaseURL == "" {
		dbURL = getRequiredEnv(defaults.urlKey, &errors)
	} else {
		dbURL = getOptionalEnv(defaults.urlKey, defaults.databaseURL)
	}
	dbConfig := &DatabaseConfig{
		URL:            dbURL,
		MaxOpenConns:   getOptionalEnvInt("DB_MAX_OPEN_CONNS", 10, &errors),
		ConnectRetries: getOptionalEnvInt("DB_CONNECT_RETRIES", 5, &errors),
		RetryDelay:     getOptionalEnvDuration("DB_CONNECT_RETRY_DELAY", time.Second, &errors),
	}
	if dbURL != "" {
		driver, dsn, err := ParseDatabaseURL(dbURL)
		if err != nil {
			errors = append(errors, err.Error())
		}
		dbConfig.Driver, dbConfig.DSN = driver, dsn
	}
	if dbConfig.MaxOpenConns < 1 {
		errors = append(errors, fmt.Sprintf("DB_MAX_OPEN_CONNS must be positive, got %d", dbConfig.MaxOpenConns))
	}
	if dbConfig.ConnectRetries < 1 {
		errors = append(errors, fmt.Sprintf("DB_CONNECT_RETRIES must be positive, got %d", dbConfig.ConnectRetries))
	}

	// Server Configuration
	serverConfig := &ServerConfig{
		Port:               getOptionalEnv("PORT", "5001"),
		CORSAllowedOrigins: getOptionalEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	securityConfig := &SecurityConfig{
		BcryptCost: getOptionalEnvInt("BCRYPT_LOG_ROUNDS", defaults.bcryptCost, &errors),
	}
	checkBcryptCost(securityConfig.BcryptCost, &errors)

	logConfig := &LogConfig{
		Level: getOptionalEnv("LOG_LEVEL", defaults.logLevel),
	}

	seedConfig := &SeedConfig{
		Password: getOptionalEnv("SEED_PASSWORD", "greaterthaneight"),
	}

	if len(errors) > 0 {
		return nil, apperror.NewConfigError(fmt.Sprintf("configuration errors:\n- %s", strings.Join(errors, "\n- ")), nil)
	}

	return &AppConfig{
		Env:      env,
		Database: dbConfig,
		Server:   serverConfig,
		Security: securityConfig,
		Log:      logConfig,
		Seed:     seedConfig,
	}, nil
}
