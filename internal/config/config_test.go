package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/coopcarga/backend-carga/internal/config"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"JWT_SECRET":   "test-secret",
		"APP_ENV":      "",
		"PORT":         "",
		"DATABASE_URL": "",
		"REDIS_URL":    "",
		"RATE_LIMIT":   "",
	})
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "120-M", cfg.RateLimit)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.True(t, cfg.AuditEnabled)
	require.Empty(t, cfg.DatabaseURL)
	require.Empty(t, cfg.RedisURL)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{"JWT_SECRET": ""})
	require.Error(t, err)
}

func TestLoadRateDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"JWT_SECRET":             "test-secret",
		"RATE_COST_PER_KG":       "",
		"RATE_INSURANCE_DEFAULT": "",
		"RATE_POSTAL":            "",
		"RATE_VAT":               "",
		"RATE_FOREIGN_SURCHARGE": "",
		"RATE_COOP_SHARE":        "",
		"RATE_HANDLING_FEE":      "",
	})
	require.NoError(t, err)

	require.True(t, cfg.Rates.CostPerKg.Equal(decimal.RequireFromString("12")))
	require.True(t, cfg.Rates.InsuranceDefaultRate.Equal(decimal.RequireFromString("0.01")))
	require.True(t, cfg.Rates.PostalRate.Equal(decimal.RequireFromString("0.06")))
	require.True(t, cfg.Rates.VATRate.IsZero())
	require.True(t, cfg.Rates.SurchargeRate.Equal(decimal.RequireFromString("0.03")))
	require.True(t, cfg.Rates.CoopShareRate.Equal(decimal.RequireFromString("0.25")))
	require.True(t, cfg.Rates.HandlingFee.Equal(decimal.RequireFromString("10")))
}

func TestLoadRateOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"JWT_SECRET":       "test-secret",
		"RATE_COST_PER_KG": "15.5",
		"RATE_VAT":         "0.16",
	})
	require.NoError(t, err)

	require.True(t, cfg.Rates.CostPerKg.Equal(decimal.RequireFromString("15.5")))
	require.True(t, cfg.Rates.VATRate.Equal(decimal.RequireFromString("0.16")))
}

func TestLoadRejectsMalformedRate(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"JWT_SECRET":       "test-secret",
		"RATE_COST_PER_KG": "twelve",
	})
	require.Error(t, err)
}

func TestLoadSplitsCORSOrigins(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"JWT_SECRET":           "test-secret",
		"CORS_ALLOWED_ORIGINS": "https://app.example.com, https://admin.example.com ,",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
}

func TestHTTPAddrKeepsExplicitColon(t *testing.T) {
	cfg := &config.Config{Port: ":9090"}
	require.Equal(t, ":9090", cfg.HTTPAddr())
}
