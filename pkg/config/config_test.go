package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/pkg/config"
)

func TestLoad_ValoresPorDefecto(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "dev", cfg.Fiscal.AppEnv)
	assert.Equal(t, 30*time.Second, cfg.Fiscal.Timeout)
	assert.Equal(t, 5, cfg.Ledger.MaxTxAttempts)
	assert.False(t, cfg.Ledger.AllowNegativeRecount)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestLoad_VariablesDeEntorno(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("FISCAL_TIMEOUT", "5s")
	t.Setenv("FISCAL_LEASE_MARGIN", "3")
	t.Setenv("LEDGER_ALLOW_NEGATIVE_RECOUNT", "true")
	t.Setenv("LEDGER_MAX_TX_ATTEMPTS", "8")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Fiscal.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Fiscal.LeaseMargin)
	assert.True(t, cfg.Ledger.AllowNegativeRecount)
	assert.Equal(t, 8, cfg.Ledger.MaxTxAttempts)
	assert.Equal(t, 9090, cfg.HTTP.Port)
}

func TestLoad_ValoresInvalidos(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("FISCAL_APP_ENV", "staging")
	_, err = config.Load()
	assert.Error(t, err)
}

func TestDBConfig_DSNEscapaPassword(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss:w/rd", DBName: "ledger", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%3Aw%2Frd@db:5432/ledger?sslmode=disable", c.DSN())

	c.DatabaseURL = "postgres://otro"
	assert.Equal(t, "postgres://otro", c.ConnectionString())
}
