package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "paper-ledger.db", cfg.DatabaseURL)
	assert.Equal(t, 3, cfg.LedgerMaxRetries)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_MySQLFromParts(t *testing.T) {
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "ledger")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ledger:pw@tcp(db.internal:3306)/StockDB?charset=utf8mb4&parseTime=True&loc=UTC", cfg.DatabaseURL)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/ledger")
	t.Setenv("APP_ENV", "production")
	t.Setenv("ALLOW_CROSS_SITE_DEV", "true")
	t.Setenv("LEDGER_MAX_RETRIES", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/ledger", cfg.DatabaseURL)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.AllowCrossSiteDev)
	assert.Equal(t, 7, cfg.LedgerMaxRetries)
}
