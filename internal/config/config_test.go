package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 400, cfg.CategoryChunkSize)
	assert.Equal(t, "UTC", cfg.StreakTimezone)
	assert.Equal(t, 30*time.Minute, cfg.DBConnMaxLife)
	assert.Equal(t, uint64(5), cfg.StoreRetries)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CATEGORY_CHUNK_SIZE", "50")
	t.Setenv("STREAK_TIMEZONE", "Europe/Berlin")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 50, cfg.CategoryChunkSize)
	assert.Equal(t, "Europe/Berlin", cfg.StreakLocation().String())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "driver", mutate: func(c *Config) { c.StoreDriver = "mongo" }},
		{name: "chunk", mutate: func(c *Config) { c.CategoryChunkSize = 0 }},
		{name: "buffer", mutate: func(c *Config) { c.SubscriptionBuffer = -1 }},
		{name: "timezone", mutate: func(c *Config) { c.StreakTimezone = "Mars/Olympus" }},
		{name: "secret", mutate: func(c *Config) { c.JWTSecret = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				StoreDriver:        "postgres",
				CategoryChunkSize:  400,
				SubscriptionBuffer: 16,
				StreakTimezone:     "UTC",
				JWTSecret:          "s",
			}
			require.NoError(t, cfg.Validate())
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
