package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, int64(2), cfg.Credits.InitialGrant)
	assert.Equal(t, int64(1), cfg.Credits.Costs.Outline)
	assert.Equal(t, 36, cfg.WriterZen.KeywordPollAttempts)
	assert.Equal(t, 5, cfg.WriterZen.KeywordPollSecs)
	assert.Equal(t, 15, cfg.WriterZen.ContentPollAttempts)
	assert.Equal(t, 4, cfg.Outline.MinHeadingRunes)
	assert.Equal(t, 120, cfg.Outline.MaxHeadingRunes)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DRAFTZEN_SERVER_PORT", "9999")
	t.Setenv("DRAFTZEN_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestPollBudgets(t *testing.T) {
	wz := WriterZenConfig{
		KeywordPollAttempts: 36,
		KeywordPollSecs:     5,
		ContentPollAttempts: 15,
		ContentPollSecs:     3,
	}
	budgets := wz.PollBudgets()

	assert.Equal(t, 36, budgets.Keywords.MaxAttempts)
	assert.Equal(t, 5*time.Second, budgets.Keywords.Interval)
	assert.Equal(t, 3*time.Minute, budgets.Keywords.MaxElapsed)
	assert.Equal(t, 15, budgets.IncludeTerms.MaxAttempts)
	assert.Equal(t, 45*time.Second, budgets.IncludeTerms.MaxElapsed)
}

func TestPollBudgets_ZeroFallsBackToDefaults(t *testing.T) {
	budgets := WriterZenConfig{}.PollBudgets()
	assert.Equal(t, 36, budgets.Keywords.MaxAttempts)
	assert.Equal(t, 15, budgets.IncludeTerms.MaxAttempts)
}

func TestInitLogger_RejectsBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}
