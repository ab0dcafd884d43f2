package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config directory at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("AppData", dir)
	return dir
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	require.NoError(t, d.Validate())
	assert.Equal(t, ProviderAll, d.Provider)
	assert.Equal(t, 18080, d.Port)
	assert.Equal(t, "drop", d.EmptyPolicy)
	assert.True(t, d.UsesHardware())
	assert.True(t, d.UsesRemote())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_DefaultDirFile(t *testing.T) {
	isolate(t)
	dir := DefaultDir()
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("port: 19000\n"), 0600))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 19000, cfg.Port)
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
provider: hardware
device: "pn532_uart:/dev/ttyUSB0"
port: 9000
mdns: false
empty_policy: report
poll_interval: 500ms
device_timeout: 1m
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderHardware, cfg.Provider)
	assert.Equal(t, "pn532_uart:/dev/ttyUSB0", cfg.Device)
	assert.Equal(t, 9000, cfg.Port)
	assert.False(t, cfg.MDNS)
	assert.Equal(t, "report", cfg.EmptyPolicy)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, time.Minute, cfg.DeviceTimeout)
	assert.False(t, cfg.UsesRemote())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "port: 9000\n")
	t.Setenv("NFCBRIDGE_PORT", "9100")
	t.Setenv("NFCBRIDGE_API_SECRET", "s3cret")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "s3cret", cfg.APISecret)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	isolate(t)
	t.Setenv("NFCBRIDGE_PORT", "9100")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--port", "9200", "--provider", "remote", "--device-timeout", "5s"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Port)
	assert.Equal(t, ProviderRemote, cfg.Provider)
	assert.Equal(t, 5*time.Second, cfg.DeviceTimeout)
	assert.Equal(t, Defaults().PollInterval, cfg.PollInterval, "unset flags keep defaults")
}

func TestLoad_Errors(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorContains(t, err, "reading config")

	_, err = Load(writeConfig(t, "provider: bluetooth\n"), nil)
	assert.ErrorContains(t, err, "invalid config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown provider", func(c *Config) { c.Provider = "nfc" }, "provider must be"},
		{"negative port", func(c *Config) { c.Port = -1 }, "port must be"},
		{"port too large", func(c *Config) { c.Port = 70000 }, "port must be"},
		{"ephemeral port", func(c *Config) { c.Port = 0 }, ""},
		{"bad empty policy", func(c *Config) { c.EmptyPolicy = "ignore" }, "empty_policy"},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, "poll_interval"},
		{"zero device timeout", func(c *Config) { c.DeviceTimeout = 0 }, "device_timeout"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
