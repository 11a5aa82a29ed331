// Package config provides YAML-based configuration loading for scarabnet.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
    // AppName optional logical name of the process
    AppName string `mapstructure:"app_name"`

    // Log holds logging configuration
    Log LogConfig `mapstructure:"log"`

    // Net holds transport tuning shared by client and server
    Net NetConfig `mapstructure:"net"`

    // Server holds the listening side settings
    Server ServerConfig `mapstructure:"server"`

    // Metrics controls the optional prometheus endpoint
    Metrics MetricsConfig `mapstructure:"metrics"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    // Level: debug, info, warn, error
    Level string `mapstructure:"level"`
    // Format: console or json
    Format string `mapstructure:"format"`
    // Outputs: list of outputs: stdout, stderr, or file paths
    Outputs []string `mapstructure:"outputs"`

    // Rotation controls file rotation when writing to files
    Rotation RotationConfig `mapstructure:"rotation"`
    // Development toggles development-friendly logging options
    Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// NetConfig contains transport tuning options.
type NetConfig struct {
    // PollTimeoutMS bounds one wait inside the driver loop. A latency/CPU
    // tradeoff, not a correctness knob.
    PollTimeoutMS int `mapstructure:"poll_timeout_ms"`
    // DialTimeoutMS bounds a client connection attempt.
    DialTimeoutMS int `mapstructure:"dial_timeout_ms"`
    // ChannelCount is the number of ordering domains per connection.
    ChannelCount int `mapstructure:"channel_count"`
    // IdleTimeoutMS is how long the transport waits before declaring a
    // silent peer gone.
    IdleTimeoutMS int `mapstructure:"idle_timeout_ms"`
    // KeepAliveMS is the transport keep-alive period.
    KeepAliveMS int `mapstructure:"keep_alive_ms"`
}

// ServerConfig holds the listening side settings.
type ServerConfig struct {
    Listen     string `mapstructure:"listen"`
    MaxClients int    `mapstructure:"max_clients"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
    Enable bool   `mapstructure:"enable"`
    Listen string `mapstructure:"listen"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
    return &Config{
        AppName: "scarabnet",
        Log: LogConfig{
            Level:       "info",
            Format:      "console",
            Outputs:     []string{"stdout"},
            Development: true,
            Rotation: RotationConfig{
                Enable:     false,
                Filename:   "logs/scarabnet.log",
                MaxSizeMB:  50,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        Net: NetConfig{
            PollTimeoutMS: 5,
            DialTimeoutMS: 5000,
            ChannelCount:  2,
            IdleTimeoutMS: 10000,
            KeepAliveMS:   5000,
        },
        Server: ServerConfig{
            Listen:     ":9000",
            MaxClients: 32,
        },
        Metrics: MetricsConfig{
            Enable: false,
            Listen: ":9100",
        },
    }
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix SCARABNET and `.`/`-` are replaced
// with `_`. Example: SCARABNET_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("SCARABNET")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()

    // seed defaults for viper so env-only configs work
    v.SetDefault("app_name", cfg.AppName)
    v.SetDefault("log.level", cfg.Log.Level)
    v.SetDefault("log.format", cfg.Log.Format)
    v.SetDefault("log.outputs", cfg.Log.Outputs)
    v.SetDefault("log.development", cfg.Log.Development)
    v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
    v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
    v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
    v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
    v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
    v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
    v.SetDefault("net.poll_timeout_ms", cfg.Net.PollTimeoutMS)
    v.SetDefault("net.dial_timeout_ms", cfg.Net.DialTimeoutMS)
    v.SetDefault("net.channel_count", cfg.Net.ChannelCount)
    v.SetDefault("net.idle_timeout_ms", cfg.Net.IdleTimeoutMS)
    v.SetDefault("net.keep_alive_ms", cfg.Net.KeepAliveMS)
    v.SetDefault("server.listen", cfg.Server.Listen)
    v.SetDefault("server.max_clients", cfg.Server.MaxClients)
    v.SetDefault("metrics.enable", cfg.Metrics.Enable)
    v.SetDefault("metrics.listen", cfg.Metrics.Listen)

    // Choose config file
    if path == "" {
        if envPath := os.Getenv("SCARABNET_CONFIG"); envPath != "" {
            path = envPath
        }
    }

    if path != "" {
        v.SetConfigFile(path)
    } else {
        v.SetConfigName("scarabnet")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".scarabnet"))
        }
    }

    // Read config file if present; if not found, continue with defaults/env
    if err := v.ReadInConfig(); err != nil {
        var notFound viper.ConfigFileNotFoundError
        if !errors.As(err, &notFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }

    if err := v.Unmarshal(&cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }

    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (c *Config) validate() error {
    lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
    switch lvl {
    case "debug", "info", "warn", "warning", "error":
        // ok
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }

    if c.Log.Format == "" {
        c.Log.Format = "console"
    }
    if len(c.Log.Outputs) == 0 {
        c.Log.Outputs = []string{"stdout"}
    }
    if c.Net.PollTimeoutMS <= 0 {
        c.Net.PollTimeoutMS = 5
    }
    if c.Net.ChannelCount <= 0 {
        c.Net.ChannelCount = 2
    }
    if c.Server.MaxClients <= 0 {
        return fmt.Errorf("invalid server.max_clients: %d", c.Server.MaxClients)
    }
    if strings.TrimSpace(c.Server.Listen) == "" {
        return errors.New("server.listen must not be empty")
    }
    return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
    cfg, err := Load(path)
    if err != nil {
        panic(err)
    }
    return cfg
}
