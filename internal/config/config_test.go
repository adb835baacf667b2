package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("STORE_DRIVER", "")

	cfg := FromEnv()

	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "gpt-3.5-turbo", cfg.AI.ChatModel)
	assert.Equal(t, 150, cfg.AI.MaxTokens)
	assert.Equal(t, "/media", cfg.Blob.PublicURL)
	assert.Equal(t, 64, cfg.Realtime.SubscriberBuffer)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.Database.AutoMigrate)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("OPENAI_TIMEOUT", "5s")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example.com, https://*.example.org ,")
	t.Setenv("RATE_LIMIT_AI_BURST", "not-a-number")
	t.Setenv("DB_AUTO_MIGRATE", "true")

	cfg := FromEnv()

	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	assert.Equal(t, []string{"https://a.example.com", "https://*.example.org"}, cfg.WebSocket.AllowedOrigins)
	assert.Equal(t, 5, cfg.RateLimit.AIBurst)
	assert.True(t, cfg.Database.AutoMigrate)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StoreDriver: StoreDriverMemory,
			JWT:         JWTConfig{Secret: "secret"},
			Database:    DatabaseConfig{MaxOpenConns: 10, MaxIdleConns: 2},
			Realtime:    RealtimeConfig{SubscriberBuffer: 16},
			AI:          AIConfig{MaxTokens: 150},
			App:         AppConfig{Environment: "development"},
		}
	}

	t.Run("memory store needs no database", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("postgres needs a url", func(t *testing.T) {
		cfg := valid()
		cfg.StoreDriver = StoreDriverPostgres
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := valid()
		cfg.StoreDriver = "sqlite"
		require.ErrorContains(t, cfg.Validate(), "STORE_DRIVER")
	})

	t.Run("production rules are aggregated", func(t *testing.T) {
		cfg := valid()
		cfg.App.Environment = "production"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 32 characters")
		assert.Contains(t, err.Error(), "WS_ALLOWED_ORIGINS")
		assert.Contains(t, err.Error(), "STORE_DRIVER=memory")
	})

	t.Run("idle connections above the pool size", func(t *testing.T) {
		cfg := valid()
		cfg.Database.MaxIdleConns = 20
		require.ErrorContains(t, cfg.Validate(), "DB_MAX_IDLE_CONNS")
	})
}

func TestString_RedactsSecrets(t *testing.T) {
	cfg := &Config{
		StoreDriver: StoreDriverPostgres,
		Database:    DatabaseConfig{URL: "postgres://app:hunter2@db:5432/helpdesk"},
		JWT:         JWTConfig{Secret: "top-secret"},
	}

	out := cfg.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "top-secret")
	assert.Contains(t, out, "@db:5432/helpdesk")
}
