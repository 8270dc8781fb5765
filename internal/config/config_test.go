package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

const secret = "0123456789abcdef0123"

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"JWT_SECRET": secret}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, BackendMemory, cfg.CacheBackend)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "fixture", cfg.ProviderMode)
	assert.Equal(t, 25*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 1, cfg.ScanCreditCost)
	assert.Equal(t, time.Hour, cfg.RescanInterval)
	assert.False(t, cfg.AllowDirectPurchase)
	assert.Empty(t, cfg.PromoCodes)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"JWT_SECRET":            secret,
		"PORT":                  "9000",
		"STORE_BACKEND":         "postgres",
		"CACHE_BACKEND":         "redis",
		"DATABASE_URL":          "postgres://localhost/blogspy",
		"REDIS_URL":             "redis://localhost:6379/0",
		"PROVIDER_MODE":         "live",
		"PROVIDER_TIMEOUT":      "10s",
		"OPENAI_API_KEY":        "sk-test",
		"OPENAI_MODEL":          "gpt-4o-mini",
		"SCAN_CREDIT_COST":      "2",
		"DAILY_SCAN_LIMIT":      "50",
		"ALLOW_DIRECT_PURCHASE": "true",
		"PROMO_CODES":           "launch:10, beta:5",
		"RESCAN_INTERVAL":       "30m",
		"CORS_ORIGINS":          "https://app.example.com, http://localhost:5173",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 2, cfg.ScanCreditCost)
	assert.Equal(t, 50, cfg.DailyScanLimit)
	assert.True(t, cfg.AllowDirectPurchase)
	assert.Equal(t, map[string]int{"LAUNCH": 10, "BETA": 5}, cfg.PromoCodes)
	assert.Equal(t, 30*time.Minute, cfg.RescanInterval)
	assert.Len(t, cfg.CORSOrigins, 2)

	pc := cfg.Providers()
	assert.Equal(t, "live", pc.Mode)
	assert.Equal(t, 10*time.Second, pc.Timeout)
	assert.Equal(t, "sk-test", pc.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o-mini", pc.OpenAI.Model)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":         {},
		"short secret":           {"JWT_SECRET": "short"},
		"bad backend":            {"JWT_SECRET": secret, "STORE_BACKEND": "sqlite"},
		"postgres without url":   {"JWT_SECRET": secret, "STORE_BACKEND": "postgres"},
		"pg cache without url":   {"JWT_SECRET": secret, "CACHE_BACKEND": "postgres"},
		"pg cache on memory":     {"JWT_SECRET": secret, "CACHE_BACKEND": "postgres", "DATABASE_URL": "postgres://localhost/b"},
		"redis without url":      {"JWT_SECRET": secret, "CACHE_BACKEND": "redis"},
		"bad provider mode":      {"JWT_SECRET": secret, "PROVIDER_MODE": "mock"},
		"unparseable int":        {"JWT_SECRET": secret, "SCAN_CREDIT_COST": "one"},
		"zero cost":              {"JWT_SECRET": secret, "SCAN_CREDIT_COST": "0"},
		"unparseable duration":   {"JWT_SECRET": secret, "PROVIDER_TIMEOUT": "soon"},
		"rescan too often":       {"JWT_SECRET": secret, "RESCAN_INTERVAL": "5s"},
		"malformed promo":        {"JWT_SECRET": secret, "PROMO_CODES": "LAUNCH"},
		"non-positive promo":     {"JWT_SECRET": secret, "PROMO_CODES": "LAUNCH:0"},
		"unparseable bool":       {"JWT_SECRET": secret, "ALLOW_DIRECT_PURCHASE": "maybe"},
		"non-numeric port":       {"JWT_SECRET": secret, "PORT": ":80"},
		"negative daily limit":   {"JWT_SECRET": secret, "DAILY_SCAN_LIMIT": "-1"},
		"bad cors origin":        {"JWT_SECRET": secret, "CORS_ORIGINS": "not a url"},
		"non-positive cache ttl": {"JWT_SECRET": secret, "CACHE_TTL": "0s"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(env(kv))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
