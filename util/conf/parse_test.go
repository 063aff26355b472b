package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	Host string `conf:"host" validate:"required"`
	Port int    `conf:"port" validate:"gte=1"`
}

type testConfig struct {
	Level   string        `conf:"level"`
	Timeout time.Duration `conf:"timeout"`
	Server  testServer    `conf:"server"`
}

func defaults() DefaultConfig {
	return MergeDefaults("server", DefaultConfig{
		"host": "localhost",
		"port": 3000,
	})
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse[testConfig](ParseOptions{
		Defaults:  defaults(),
		EnvPrefix: "CONF_TEST",
	})
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestParse_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("CONF_TEST__SERVER__PORT", "8080")
	t.Setenv("CONF_TEST__TIMEOUT", "3s")

	cfg, err := Parse[testConfig](ParseOptions{
		Defaults:  defaults(),
		EnvPrefix: "CONF_TEST",
	})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
}

func TestParse_JSONFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(name, []byte(`{"level":"debug","server":{"host":"0.0.0.0"}}`), 0o644))

	cfg, err := Parse[testConfig](ParseOptions{
		Defaults:  defaults(),
		EnvPrefix: "CONF_TEST",
		FileName:  name,
	})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestParse_DotenvFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "hello.env")
	require.NoError(t, os.WriteFile(name, []byte("LEVEL=warn\nSERVER__HOST=example.com\n"), 0o644))

	cfg, err := Parse[testConfig](ParseOptions{
		Defaults:  defaults(),
		EnvPrefix: "CONF_TEST",
		FileName:  name,
	})
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "example.com", cfg.Server.Host)
}

func TestParse_MissingFile(t *testing.T) {
	_, err := Parse[testConfig](ParseOptions{
		Defaults:  defaults(),
		EnvPrefix: "CONF_TEST",
		FileName:  filepath.Join(t.TempDir(), "missing.json"),
	})
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse[testConfig](ParseOptions{
		Defaults:  MergeDefaults("server", DefaultConfig{"port": 0}),
		EnvPrefix: "CONF_TEST",
	})
	assert.Error(t, err)
}

func TestTransformEnv(t *testing.T) {
	assert.Equal(t, "stack.function.timeout", transformEnv("HELLO_STACK__STACK__FUNCTION__TIMEOUT", "HELLO_STACK"))
	assert.Equal(t, "log_level", transformEnv("LOG_LEVEL", ""))
}
