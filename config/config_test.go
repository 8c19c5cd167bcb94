package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the loader reads so host environment
// does not leak into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_ENV", "APP_NAME", "APP_DEBUG", "APP_VERSION", "APP_TIMEZONE", "APP_SHUTDOWN_TIMEOUT",
		"HTTP_HOST", "HTTP_PORT", "HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT", "HTTP_IDLE_TIMEOUT",
		"HTTP_ENABLE_CORS", "HTTP_ALLOWED_ORIGINS", "HTTP_RATE_LIMIT_PER_MINUTE", "HTTP_TRUSTED_PROXIES",
		"STORAGE_BACKEND", "DATABASE_URL",
		"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"METRIKA_COUNTER_ID", "METRIKA_SITE_HOST",
		"ENGAGEMENT_SESSION_TTL",
		"SCHEDULER_ENABLED", "SCHEDULER_SWEEP_INTERVAL", "SCHEDULER_DIGEST_HOUR", "SCHEDULER_DIGEST_MINUTE",
		"LOG_LEVEL", "LOG_FORMAT",
		"FEATURE_REFERRAL_BONUS", "FEATURE_ENGAGEMENT_SCORING", "FEATURE_NOTIFY_DAILY_DIGEST",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "remedia-hub", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.True(t, cfg.App.Debug)
	assert.Equal(t, "Europe/Moscow", cfg.App.Timezone)
	assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)

	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.True(t, cfg.HTTP.EnableCORS)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 120, cfg.HTTP.RateLimitPerMinute)
	assert.Empty(t, cfg.HTTP.TrustedProxies)

	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, "localhost", cfg.Storage.Redis.Host)
	assert.Equal(t, 6379, cfg.Storage.Redis.Port)
	assert.Equal(t, 180*24*time.Hour, cfg.Storage.Redis.SessionTTL)

	assert.Empty(t, cfg.Telegram.Token)
	assert.Equal(t, "remedia.ru", cfg.Metrika.SiteHost)
	assert.Equal(t, time.Hour, cfg.Engagement.SessionTTL)

	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.SweepInterval)
	assert.Equal(t, 21, cfg.Scheduler.DailyDigestHour)

	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.Equal(t, "json", cfg.Observability.LogFormat)

	require.NotNil(t, cfg.Features)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "staging")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://remedia.ru, https://www.remedia.ru")
	t.Setenv("HTTP_TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2")
	t.Setenv("STORAGE_BACKEND", "Redis") // case-insensitive
	t.Setenv("ENGAGEMENT_SESSION_TTL", "30m")
	t.Setenv("SCHEDULER_DIGEST_HOUR", "8")
	t.Setenv("SCHEDULER_DIGEST_MINUTE", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvStaging, cfg.App.Environment)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, []string{"https://remedia.ru", "https://www.remedia.ru"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.HTTP.TrustedProxies)
	assert.Equal(t, StorageRedis, cfg.Storage.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Engagement.SessionTTL)
	assert.Equal(t, "30 8 * * *", cfg.Scheduler.DigestCron())
}

func TestLoad_InvalidBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "cassandra")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_BACKEND must be one of")
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestLoad_MemoryForbiddenInProduction(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORAGE_BACKEND", "memory")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed in production")
}

func TestLoad_TelegramTokenRequiresChatID(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_CHAT_ID is required")
}

func TestLoad_InvalidPortAndDigestTime(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_PORT", "70000")
	t.Setenv("SCHEDULER_DIGEST_HOUR", "24")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_PORT must be 1-65535")
	assert.Contains(t, err.Error(), "SCHEDULER_DIGEST_HOUR must be 0-23")
}

func TestSchedulerConfig_DigestCron(t *testing.T) {
	c := SchedulerConfig{DailyDigestHour: 21, DailyDigestMinute: 0}
	assert.Equal(t, "0 21 * * *", c.DigestCron())
}

// ─────────────────────────────────────────────────────────────────────────────
// Feature flags
// ─────────────────────────────────────────────────────────────────────────────

func TestFeatureFlags_Defaults(t *testing.T) {
	clearEnv(t)
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureEngagementEasterEggs, ""))
	assert.True(t, ff.IsEnabled(FeatureNotifyMilestones, ""))
	assert.False(t, ff.IsEnabled(FeatureEngagementScoring, ""), "internal score is hidden by default")
	assert.False(t, ff.IsEnabled("no.such.feature", "visitor-1"))
}

func TestFeatureFlags_EnvBoolOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("FEATURE_NOTIFY_DAILY_DIGEST", "false")
	t.Setenv("FEATURE_ENGAGEMENT_SCORING", "true")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureNotifyDailyDigest, ""))
	assert.True(t, ff.IsEnabled(FeatureEngagementScoring, ""))
}

func TestFeatureFlags_EnvPercentOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("FEATURE_REFERRAL_BONUS", "25")

	ff := LoadFeatureFlags()

	features := ff.GetAllFeatures()
	require.Contains(t, features, FeatureReferralBonus)
	assert.Equal(t, 25, features[FeatureReferralBonus].RolloutPercent)
	assert.True(t, features[FeatureReferralBonus].Enabled)
}

func TestFeatureFlags_RolloutIsDeterministic(t *testing.T) {
	clearEnv(t)
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureReferralBonus, 50))

	first := ff.IsEnabled(FeatureReferralBonus, "visitor-abc")
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureReferralBonus, "visitor-abc"))
	}
}

func TestFeatureFlags_RolloutBoundaries(t *testing.T) {
	clearEnv(t)
	ff := LoadFeatureFlags()

	require.NoError(t, ff.SetRolloutPercent(FeatureReferralBonus, 100))
	assert.True(t, ff.IsEnabled(FeatureReferralBonus, "any-visitor"))

	require.NoError(t, ff.SetRolloutPercent(FeatureReferralBonus, 0))
	assert.False(t, ff.IsEnabled(FeatureReferralBonus, "any-visitor"))

	assert.Error(t, ff.SetRolloutPercent(FeatureReferralBonus, 101))
	assert.Error(t, ff.SetRolloutPercent("no.such.feature", 10))
}

func TestFeatureFlags_VisitorOverride(t *testing.T) {
	clearEnv(t)
	ff := LoadFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureReferralProgram))

	assert.False(t, ff.IsEnabled(FeatureReferralProgram, "visitor-1"))

	ff.SetVisitorOverride("visitor-1", FeatureReferralProgram, true)
	assert.True(t, ff.IsEnabled(FeatureReferralProgram, "visitor-1"))
	assert.False(t, ff.IsEnabled(FeatureReferralProgram, "visitor-2"))

	ff.ClearVisitorOverrides("visitor-1")
	assert.False(t, ff.IsEnabled(FeatureReferralProgram, "visitor-1"))
}

func TestFeatureFlags_NotificationsEnabled(t *testing.T) {
	clearEnv(t)
	ff := LoadFeatureFlags()
	assert.True(t, ff.NotificationsEnabled())

	require.NoError(t, ff.DisableFeature(FeatureNotifyMilestones))
	require.NoError(t, ff.DisableFeature(FeatureNotifyRegistrations))
	require.NoError(t, ff.DisableFeature(FeatureNotifyDailyDigest))
	assert.False(t, ff.NotificationsEnabled())
}
