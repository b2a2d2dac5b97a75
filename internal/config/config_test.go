package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		configPathEnv, logLevelEnv, databaseDSNEnv, chatGPTAPIKeyEnv, openAIAPIKeyEnv,
		chatGPTModelEnv, firestoreProjectEnv, googleCredsEnv, redisAddrEnv,
		telegramTokenEnv, telegramChatIDEnv, pushgatewayURLEnv,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8, cfg.Scoring.Threshold)
	require.Equal(t, 8, cfg.Scoring.BatchSize)
	require.Equal(t, "gpt-3.5-turbo-16k", cfg.ChatGPT.Model)
	require.InDelta(t, 0.4, cfg.ChatGPT.Temperature, 1e-9)
	require.Equal(t, map[string]int{"100257": -100}, cfg.ChatGPT.LogitBias)
	require.Equal(t, StorePostgres, cfg.Store.Driver)
	require.Equal(t, "America/New_York", cfg.Scheduler.Location().String())
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
scoring:
  threshold: 7
  batchSize: 4
chatgpt:
  model: gpt-4o-mini
  retryBackoff: 250ms
store:
  driver: Firestore
  projectId: digest-prod
scheduler:
  timezone: UTC
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	t.Setenv(configPathEnv, path)
	t.Setenv(openAIAPIKeyEnv, "sk-test")
	t.Setenv(chatGPTModelEnv, "gpt-4o")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 7, cfg.Scoring.Threshold)
	require.Equal(t, 4, cfg.Scoring.BatchSize)
	require.Equal(t, 4, cfg.Scoring.UserConcurrency)
	require.Equal(t, "gpt-4o", cfg.ChatGPT.Model)
	require.Equal(t, 250*time.Millisecond, cfg.ChatGPT.RetryBackoff)
	require.Equal(t, "sk-test", cfg.ChatGPT.APIKey)
	require.Equal(t, StoreFirestore, cfg.Store.Driver)
	require.Equal(t, "UTC", cfg.Scheduler.Location().String())
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadUnknownTimezone(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  timezone: Mars/Olympus\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.ErrorContains(t, cfg.Validate(), "chatgpt.apiKey")

	cfg.ChatGPT.APIKey = "sk"
	require.NoError(t, cfg.Validate())

	cfg.Scoring.Threshold = 11
	cfg.Scoring.BatchSize = 0
	err = cfg.Validate()
	require.ErrorContains(t, err, "threshold")
	require.ErrorContains(t, err, "batchSize")

	cfg = defaultConfig()
	cfg.ChatGPT.APIKey = "sk"
	cfg.Store.Driver = "mongo"
	require.ErrorContains(t, cfg.Validate(), "unknown store driver")
}
