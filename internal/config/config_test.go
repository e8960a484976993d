package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SECRET", "")
	t.Setenv("HTTP_PORT", "")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("CUSTOMER_SERVICE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev_secret", cfg.Secret)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "file:kasirpos.db?_pragma=foreign_keys(1)", cfg.DatabaseDSN)
	assert.Empty(t, cfg.CustomerServiceURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SECRET", "hush")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_DSN", ":memory:")
	t.Setenv("CUSTOMER_SERVICE_URL", "http://customers.local")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "hush", cfg.Secret)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, ":memory:", cfg.DatabaseDSN)
	assert.Equal(t, "http://customers.local", cfg.CustomerServiceURL)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_PORT")
}
