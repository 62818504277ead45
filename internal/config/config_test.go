package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldstream/goldstream/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_KEY", "secret")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, 4, cfg.NeedToDonateNum)
	assert.Equal(t, int64(100), cfg.FinanceRatio)
	assert.Equal(t, 5*time.Minute, cfg.AccessLifetime)
	assert.Equal(t, 72*time.Hour, cfg.DonationLifetime)
	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.IsProd())
}

func TestLoad_RequiresJWTKey(t *testing.T) {
	t.Setenv("JWT_KEY", "")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_KEY", "secret")
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("NEED_TO_DONATE_NUM", "3")
	t.Setenv("REGISTRATION_WINDOW", "1h")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 3, cfg.NeedToDonateNum)
	assert.Equal(t, time.Hour, cfg.RegistrationWindow)
	assert.True(t, cfg.IsProd())
}
