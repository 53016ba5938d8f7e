package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 7, cfg.Scheduler.ExtensionStepDays)
	assert.Equal(t, 30, cfg.Scheduler.MaxExtensionDays)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.ResultTTL)
	assert.Equal(t, int64(5*1024*1024), cfg.Scheduler.MaxUploadBytes)
	assert.False(t, cfg.JWT.Enabled)
	assert.False(t, cfg.Cache.Enabled)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SCHEDULER_RESULT_TTL", "not-a-duration")
	v.Set("SCHEDULER_MAX_EXTENSION_DAYS", 14)
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	v.Set("ENABLE_RESULT_CACHE", true)
	v.Set("RESULT_CACHE_TTL", "5m")

	cfg := fromViper(v)

	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.ResultTTL)
	assert.Equal(t, 14, cfg.Scheduler.MaxExtensionDays)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}
