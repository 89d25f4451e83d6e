package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/bip")
	t.Setenv("CLERK_SECRET_KEY", "sk_test_123")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3333", cfg.Port)
	assert.Equal(t, time.Hour, cfg.ContributionCacheTTL)
	assert.Equal(t, "UTC", cfg.StreakTimezone)
	assert.Equal(t, "https://api.github.com/graphql", cfg.GitHubGraphQLURL)
	assert.Equal(t, 4, cfg.ActivityWorkers)
	assert.Equal(t, 3, cfg.ActivityMaxAttempts)
	assert.True(t, cfg.AutoMigrate)
	assert.True(t, cfg.PaddleSandbox())
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "8080")
	t.Setenv("CONTRIBUTION_CACHE_TTL", "15m")
	t.Setenv("STREAK_TIMEZONE", "Europe/Berlin")
	t.Setenv("PADDLE_ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.ContributionCacheTTL)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
	assert.False(t, cfg.PaddleSandbox())
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CLERK_SECRET_KEY", "sk_test_123")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{
		DatabaseURL:          "postgres://x",
		ClerkSecretKey:       "sk",
		StreakTimezone:       "UTC",
		ContributionCacheTTL: time.Hour,
		ActivityWorkers:      1,
		ActivityMaxAttempts:  1,
	}
	require.NoError(t, base.Validate())

	badZone := base
	badZone.StreakTimezone = "Mars/Olympus"
	assert.Error(t, badZone.Validate())

	badTTL := base
	badTTL.ContributionCacheTTL = 0
	assert.Error(t, badTTL.Validate())

	badWorkers := base
	badWorkers.ActivityWorkers = 0
	assert.Error(t, badWorkers.Validate())
}

func TestTrustedProxyPrefixes(t *testing.T) {
	cfg := &Config{TrustedProxies: "10.0.0.0/8, 192.0.2.7 ,"}

	prefixes, err := cfg.TrustedProxyPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 2)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.0.2.7/32", prefixes[1].String())

	none, err := (&Config{}).TrustedProxyPrefixes()
	require.NoError(t, err)
	assert.Empty(t, none)

	setRequired(t)
	t.Setenv("TRUSTED_PROXIES", "not-an-ip")
	_, err = Load()
	assert.ErrorContains(t, err, "TRUSTED_PROXIES")
}
