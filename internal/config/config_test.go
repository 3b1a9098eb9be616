package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T) *Config {
	t.Helper()
	// viper 状态是进程级的，测试间需要重置
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadConfig(t)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8092, cfg.Server.Port)
	assert.Equal(t, 9092, cfg.Ops.Port)

	assert.Equal(t, "alias.temp.mail", cfg.Alias.Domain)
	assert.Equal(t, "shop", cfg.Alias.Theme)
	assert.Equal(t, 5*time.Minute, cfg.Alias.CacheTTL)
	assert.Equal(t, 30, cfg.Alias.CreatePerMinute)
	assert.Equal(t, 10, cfg.Alias.CreateBurst)

	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Development)

	// 默认使用内存存储、禁用缓存
	assert.Empty(t, cfg.Database.Type)
	assert.Empty(t, cfg.Redis.Address)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MAILALIAS_SERVER_PORT", "9000")
	t.Setenv("MAILALIAS_ALIAS_DOMAIN", "Mask.Example.ORG")
	t.Setenv("MAILALIAS_ALIAS_THEME", "news")
	t.Setenv("MAILALIAS_ALIAS_CACHE_TTL", "30s")
	t.Setenv("MAILALIAS_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("MAILALIAS_DATABASE_TYPE", "postgres")
	t.Setenv("MAILALIAS_DATABASE_DSN", "postgres://localhost/alias")
	t.Setenv("MAILALIAS_REDIS_ADDRESS", "localhost:6379")

	cfg := loadConfig(t)

	assert.Equal(t, 9000, cfg.Server.Port)

	// 域名归一化为小写
	assert.Equal(t, "mask.example.org", cfg.Alias.Domain)

	assert.Equal(t, "news", cfg.Alias.Theme)
	assert.Equal(t, 30*time.Second, cfg.Alias.CacheTTL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "postgres://localhost/alias", cfg.Database.DSN)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Run("empty alias domain", func(t *testing.T) {
		t.Cleanup(viper.Reset)
		t.Setenv("MAILALIAS_ALIAS_DOMAIN", "  ")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unsupported database type", func(t *testing.T) {
		t.Cleanup(viper.Reset)
		t.Setenv("MAILALIAS_DATABASE_TYPE", "oracle")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("invalid cache ttl", func(t *testing.T) {
		t.Cleanup(viper.Reset)
		t.Setenv("MAILALIAS_ALIAS_CACHE_TTL", "not-a-duration")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoad_NonPositiveLimitsFallBack(t *testing.T) {
	t.Setenv("MAILALIAS_ALIAS_CREATE_PER_MINUTE", "0")
	t.Setenv("MAILALIAS_ALIAS_CREATE_BURST", "-5")

	cfg := loadConfig(t)

	assert.Equal(t, 30, cfg.Alias.CreatePerMinute)
	assert.Equal(t, 10, cfg.Alias.CreateBurst)
}
