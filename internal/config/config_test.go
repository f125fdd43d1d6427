package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "arqcashflow.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, int64(8192), cfg.Anthropic.MaxTokens)
	assert.Equal(t, "5m", cfg.Anthropic.CacheTTL)
	assert.Equal(t, "architecture", cfg.Import.BusinessVertical)
	assert.InDelta(t, 0.6, cfg.Import.ResponseRatio, 0.001)
	assert.Equal(t, 500, cfg.Import.ResponseOverhead)
	assert.Equal(t, 24000, cfg.Import.BatchBudget)
	assert.Equal(t, 16000, cfg.Import.LargeThreshold)
	assert.Equal(t, 20, cfg.Import.SampleRows)
	assert.Equal(t, 2, cfg.Import.RetryAttempts)
	assert.Equal(t, 25, cfg.Import.MaxFileMB)
	assert.Equal(t, "textlayer", cfg.OCR.Provider)
	assert.Equal(t, 20000, cfg.OCR.MaxHintChars)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/arq
log:
  level: debug
  format: console
server:
  port: 9090
import:
  business_vertical: engineering
  max_concurrency: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/arq", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "engineering", cfg.Import.BusinessVertical)
	assert.Equal(t, 2, cfg.Import.MaxConcurrency)
	// Defaults still apply for unset values
	assert.Equal(t, 24000, cfg.Import.BatchBudget)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ARQ_STORE_DRIVER", "postgres")
	t.Setenv("ARQ_LOG_LEVEL", "warn")
	t.Setenv("ARQ_ANTHROPIC_KEY", "sk-ant-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-ant-env", cfg.Anthropic.Key)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ARQ_SERVER_PORT", "3000")
	t.Setenv("ARQ_IMPORT_BATCH_BUDGET", "5000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 5000, cfg.Import.BatchBudget)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "arq.db"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Import.ResponseRatio = 0.6
	cfg.Import.BatchBudget = 24000
	cfg.Import.LargeThreshold = 16000
	cfg.Import.SampleRows = 20
	cfg.Import.MaxConcurrency = 4
	cfg.Import.RetryAttempts = 3
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateImport_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("import"))
}

func TestValidateImport_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	cfg.Anthropic.Key = ""

	err := cfg.Validate("import")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidateDryRun_NoStoreNeeded(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	cfg.Store.Driver = ""

	assert.NoError(t, cfg.Validate("dry-run"))
}

func TestValidateMigrate_NoKeyNeeded(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = ""

	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidateStoreDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateImportBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Import.MaxConcurrency = 0
	err := cfg.Validate("import")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import.max_concurrency must be between 1 and 32")

	cfg.Import.MaxConcurrency = 4
	cfg.Import.LargeThreshold = 30000
	err = cfg.Validate("import")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import.large_threshold")

	cfg.Import.LargeThreshold = 16000
	cfg.Import.RetryAttempts = 0
	err = cfg.Validate("import")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import.retry_attempts")

	cfg.Import.RetryAttempts = 2
	assert.NoError(t, cfg.Validate("import"))
}
