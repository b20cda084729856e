package config

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/token-url-service/internal/reputation"
)

func TestLoadTokenURLConfig_Defaults(t *testing.T) {
	for _, k := range []string{"TOKEN_URLS_ACTIVE_PERIOD", "TOKEN_URLS_BLOCKED_DOMAINS", "REPUTATION_BASE_URL",
		"REPUTATION_TIMEOUT", "REPUTATION_CACHE_TTL", "RECAPTCHA_SECRET", "RECAPTCHA_VERIFY_URL"} {
		t.Setenv(k, "")
	}

	cfg := LoadTokenURLConfig()
	assert.Equal(t, 24*time.Hour, cfg.ActivePeriod)
	assert.Empty(t, cfg.BlockedDomains)
	assert.Equal(t, reputation.DefaultBaseURL, cfg.ReputationBaseURL)
	assert.Equal(t, 3*time.Second, cfg.ReputationTimeout)
	assert.Equal(t, time.Hour, cfg.ReputationCacheTTL)
	assert.Empty(t, cfg.RecaptchaSecret)
}

func TestLoadTokenURLConfig_FromEnv(t *testing.T) {
	t.Setenv("TOKEN_URLS_ACTIVE_PERIOD", "600")
	t.Setenv("TOKEN_URLS_BLOCKED_DOMAINS", " Spam.com, ,mailinator.com ")
	t.Setenv("REPUTATION_TIMEOUT", "1500ms")
	t.Setenv("REPUTATION_CACHE_TTL", "not a duration")
	t.Setenv("RECAPTCHA_SECRET", "s3cret")

	cfg := LoadTokenURLConfig()
	assert.Equal(t, 10*time.Minute, cfg.ActivePeriod)
	assert.Equal(t, []string{"spam.com", "mailinator.com"}, cfg.BlockedDomains)
	assert.Equal(t, 1500*time.Millisecond, cfg.ReputationTimeout)
	assert.Equal(t, time.Hour, cfg.ReputationCacheTTL)
	assert.Equal(t, "s3cret", cfg.RecaptchaSecret)
}

func TestEnvList(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,192.0.2.0/24 ")
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.0/24"}, envList("TRUSTED_PROXIES"))

	t.Setenv("TRUSTED_PROXIES", "")
	assert.Empty(t, envList("TRUSTED_PROXIES"))
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "10s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_ENABLED", "off")

	cfg := LoadRateLimitConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 50*time.Second, cfg.TTL)
}

func TestLoadRedisConfig_HostPortWins(t *testing.T) {
	t.Setenv("REDIS_ADDR", "ignored:1")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_TLS", "1")

	cfg := LoadRedisConfig()
	assert.Equal(t, "cache:6380", cfg.Addr)
	assert.Equal(t, 2, cfg.DB)
	assert.True(t, cfg.TLS)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	addr := mr.Addr()
	rdb, err := NewRedisClient(RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer rdb.Close()

	mr.Close()
	_, err = NewRedisClient(RedisConfig{Addr: addr})
	assert.Error(t, err)
}
