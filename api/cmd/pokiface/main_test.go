package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pokiface/api/internal/config"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestPollBackoff(t *testing.T) {
	assert.Zero(t, pollBackoff(nil))

	limited := &tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 7"}
	limited.RetryAfter = 7
	assert.Equal(t, 7*time.Second, pollBackoff(fmt.Errorf("getUpdates: %w", limited)))
	assert.Equal(t, 3*time.Second, pollBackoff(&tgbotapi.Error{Code: 429, Message: "Too Many Requests"}))
	assert.Equal(t, 2*time.Second, pollBackoff(timeoutErr{}))
	assert.Equal(t, time.Second, pollBackoff(errors.New("boom")))
}

func TestClampDelay(t *testing.T) {
	assert.Equal(t, time.Second, clampDelay(0, time.Second, 15*time.Second))
	assert.Equal(t, 15*time.Second, clampDelay(time.Minute, time.Second, 15*time.Second))
	assert.Equal(t, 3*time.Second, clampDelay(3*time.Second, time.Second, 15*time.Second))
}

func TestShortHash(t *testing.T) {
	h := shortHash("123:abc")
	assert.Len(t, h, 16)
	assert.Equal(t, h, shortHash("123:abc"))
	assert.NotEqual(t, h, shortHash("123:abd"))
	assert.NotContains(t, h, "abc")
}

func TestBuildEngines(t *testing.T) {
	cfg := &config.Config{Provider: config.ProviderGemini, GeminiModel: "gemini-1.5-flash"}
	engs := buildEngines(cfg)

	eng, err := engs.GetEngine("")
	require.NoError(t, err)
	assert.Equal(t, "gemini", eng.Name())

	_, err = engs.GetEngine("azure")
	assert.Error(t, err, "azure is not configured without an endpoint")

	cfg.AzureEndpoint = "https://example.openai.azure.com"
	cfg.AzureDeployment = "gpt-4o-mini"
	eng, err = buildEngines(cfg).GetEngine("azure")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", eng.GetModel())
}

func TestNewLoggerLevels(t *testing.T) {
	t.Cleanup(func() { logLevel, verbose = "", false })

	cfg := &config.Config{LogLevel: "info"}
	l, err := newLogger(cfg, "warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel), "terminal default applies")

	logLevel = "error"
	l, err = newLogger(cfg, "")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))

	verbose = true
	l, err = newLogger(cfg, "warn")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestPurgeHistoryWithoutDB(t *testing.T) {
	a := &app{cfg: &config.Config{HistoryRetention: time.Hour}, log: zap.NewNop()}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, a.purgeHistory(ctx))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["bot"])
	assert.True(t, names["match"])
}

func TestMatchRequiresPhoto(t *testing.T) {
	rootCmd.SetArgs([]string{"match"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	assert.Error(t, rootCmd.Execute())
}

func TestUseKeyOnlyForGemini(t *testing.T) {
	matchKey = "AIza-123"
	t.Cleanup(func() { matchKey = "" })

	err := useKey(context.Background(), &config.Config{Provider: config.ProviderAzure}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "azure")
}
