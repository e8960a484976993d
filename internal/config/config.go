package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds application configuration values.
type Config struct {
	Secret             string
	DatabaseDSN        string
	HTTPPort           string
	CustomerServiceURL string
}

// Load reads configuration from environment variables with reasonable defaults.
func Load() (Config, error) {
	secret := os.Getenv("SECRET")
	if secret == "" {
		secret = "dev_secret"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}
	if _, err := strconv.Atoi(port); err != nil {
		return Config{}, fmt.Errorf("invalid HTTP_PORT value %q: %w", port, err)
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "file:kasirpos.db?_pragma=foreign_keys(1)"
	}

	// Empty URL disables customer verification entirely.
	customerURL := os.Getenv("CUSTOMER_SERVICE_URL")

	return Config{
		Secret:             secret,
		DatabaseDSN:        dsn,
		HTTPPort:           port,
		CustomerServiceURL: customerURL,
	}, nil
}
