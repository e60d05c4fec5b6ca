package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaultValues(t *testing.T) {
	var cfg Config
	setDefaultValues(&cfg)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, EngineWorker, cfg.Session.Engine)
	assert.Equal(t, 14400, cfg.Session.ExpireSeconds)
	assert.Equal(t, 120, cfg.Session.SweepIntervalSeconds)
	assert.Equal(t, 10, cfg.Session.PushTimeoutSeconds)
	assert.Equal(t, 64, cfg.Session.EventBufferSize)
	assert.False(t, cfg.Session.StartEventLoop, "unset toggle means lazy loop startup")
}

func TestValidateRejectsUnknownEngine(t *testing.T) {
	cfg := Config{Session: SessionConfig{Engine: "fibers"}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fibers")
}

func TestDurationAccessors(t *testing.T) {
	cfg := Config{Session: SessionConfig{
		ExpireSeconds:        14400,
		SweepIntervalSeconds: 120,
		PushTimeoutSeconds:   10,
	}}

	assert.Equal(t, 4*time.Hour, cfg.SessionExpiry())
	assert.Equal(t, 2*time.Minute, cfg.SweepInterval())
	assert.Equal(t, 10*time.Second, cfg.PushTimeout())
}

func TestValidateAcceptsBothEngines(t *testing.T) {
	for _, engine := range []string{EngineWorker, EngineEventLoop} {
		cfg := Config{Session: SessionConfig{Engine: engine}}
		assert.NoError(t, cfg.Validate())
	}
}
