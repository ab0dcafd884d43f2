// Package config provides configuration types, defaults and loading for
// the bridge. Values come from, in increasing priority: defaults, the
// config file, NFCBRIDGE_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dotside-studios/davi-nfc-bridge/buildinfo"
	"github.com/dotside-studios/davi-nfc-bridge/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the bridge reads.
const EnvPrefix = "NFCBRIDGE"

// Provider names.
const (
	ProviderHardware = "hardware"
	ProviderRemote   = "remote"
	ProviderAll      = "all"
)

// Config holds all configuration options for the bridge.
type Config struct {
	// Provider selects where discoveries come from: hardware, remote or all.
	Provider string `mapstructure:"provider"`
	// Device is the libnfc connection string. Empty picks the first reader.
	Device    string `mapstructure:"device"`
	Port      int    `mapstructure:"port"`
	MDNS      bool   `mapstructure:"mdns"`
	TLS       bool   `mapstructure:"tls"`
	Tray      bool   `mapstructure:"tray"`
	APISecret string `mapstructure:"api_secret"`
	// ConfigDir holds generated state such as TLS certificates.
	ConfigDir string `mapstructure:"config_dir"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`

	// EmptyPolicy is "drop" or "report".
	EmptyPolicy      string `mapstructure:"empty_policy"`
	RecoverListeners bool   `mapstructure:"recover_listeners"`

	PollInterval  time.Duration `mapstructure:"poll_interval"`
	DeviceTimeout time.Duration `mapstructure:"device_timeout"`
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Provider:      ProviderAll,
		Port:          18080,
		MDNS:          true,
		ConfigDir:     DefaultDir(),
		LogLevel:      "info",
		LogPretty:     true,
		EmptyPolicy:   "drop",
		PollInterval:  250 * time.Millisecond,
		DeviceTimeout: 30 * time.Second,
	}
}

// DefaultDir returns the per-user configuration directory.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "." + buildinfo.Name
	}
	return filepath.Join(dir, buildinfo.Name)
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"provider":          "provider",
	"device":            "device",
	"port":              "port",
	"mdns":              "mdns",
	"tls":               "tls",
	"tray":              "tray",
	"api-secret":        "api_secret",
	"config-dir":        "config_dir",
	"log-level":         "log_level",
	"log-pretty":        "log_pretty",
	"empty-policy":      "empty_policy",
	"recover-listeners": "recover_listeners",
	"poll-interval":     "poll_interval",
	"device-timeout":    "device_timeout",
}

// RegisterFlags defines the configuration flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("provider", d.Provider, "discovery source: hardware, remote or all")
	fs.StringP("device", "d", d.Device, "libnfc device connection string (default: first reader)")
	fs.IntP("port", "p", d.Port, "HTTP/WebSocket port")
	fs.Bool("mdns", d.MDNS, "advertise the bridge over mDNS")
	fs.Bool("tls", d.TLS, "serve over TLS with a locally trusted certificate")
	fs.Bool("tray", d.Tray, "show the system tray icon")
	fs.String("api-secret", d.APISecret, "secret clients must pass as ?secret=")
	fs.String("config-dir", d.ConfigDir, "directory for generated state")
	fs.String("log-level", d.LogLevel, "log level: trace, debug, info, warn, error")
	fs.Bool("log-pretty", d.LogPretty, "human-readable logs instead of JSON")
	fs.String("empty-policy", d.EmptyPolicy, "empty discovery handling: drop or report")
	fs.Bool("recover-listeners", d.RecoverListeners, "recover panicking listeners instead of crashing")
	fs.Duration("poll-interval", d.PollInterval, "hardware reader poll interval")
	fs.Duration("device-timeout", d.DeviceTimeout, "drop remote devices silent for this long")
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("provider", d.Provider)
	v.SetDefault("device", d.Device)
	v.SetDefault("port", d.Port)
	v.SetDefault("mdns", d.MDNS)
	v.SetDefault("tls", d.TLS)
	v.SetDefault("tray", d.Tray)
	v.SetDefault("api_secret", d.APISecret)
	v.SetDefault("config_dir", d.ConfigDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_pretty", d.LogPretty)
	v.SetDefault("empty_policy", d.EmptyPolicy)
	v.SetDefault("recover_listeners", d.RecoverListeners)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("device_timeout", d.DeviceTimeout)
}

// Load reads the configuration. When path is empty, config.yaml in
// DefaultDir is used if it exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(DefaultDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderHardware, ProviderRemote, ProviderAll:
	default:
		return fmt.Errorf("provider must be %q, %q or %q, got %q",
			ProviderHardware, ProviderRemote, ProviderAll, c.Provider)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", c.Port)
	}
	if c.EmptyPolicy != "drop" && c.EmptyPolicy != "report" {
		return fmt.Errorf("empty_policy must be \"drop\" or \"report\", got %q", c.EmptyPolicy)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.DeviceTimeout <= 0 {
		return fmt.Errorf("device_timeout must be positive, got %s", c.DeviceTimeout)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// UsesHardware reports whether the hardware provider is enabled.
func (c Config) UsesHardware() bool {
	return c.Provider == ProviderHardware || c.Provider == ProviderAll
}

// UsesRemote reports whether the remote provider is enabled.
func (c Config) UsesRemote() bool {
	return c.Provider == ProviderRemote || c.Provider == ProviderAll
}
