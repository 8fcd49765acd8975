// Package config loads runtime configuration for the LLRP codec's socket
// framing and logging from environment variables, with struct-tagged defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// globalConfig stores the configuration from the most recent
// Load/LoadWithOverrides call, as returned by GetGlobalConfig.
var (
	globalConfig *Config
	configMutex  sync.Mutex
)

// Config holds the codec's runtime configuration.
type Config struct {
	Transport TransportConfig `json:"transport"`
	Logging   LoggingConfig   `json:"logging"`
}

// LoadOptions holds caller-supplied overrides, applied before environment defaults.
type LoadOptions struct {
	LogLevel string
}

// TransportConfig governs Socket Framing (spec §4.H / §5): the largest
// declared message length accepted and how many consecutive zero-length
// reads are tolerated before a connection is declared broken. ReadTimeout is
// loaded and validated, but no framing code applies it.
type TransportConfig struct {
	ReadTimeout        time.Duration `json:"readTimeout" env:"LLRP_READ_TIMEOUT" default:"30s"`
	MaxMessageBytes    int           `json:"maxMessageBytes" env:"LLRP_MAX_MESSAGE_BYTES" default:"1048576"`
	ZeroReadChunkLimit int           `json:"zeroReadChunkLimit" env:"LLRP_ZERO_READ_CHUNK_LIMIT" default:"2"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `json:"level" env:"LLRP_LOG_LEVEL" default:"info"`
}

// Load loads configuration from environment variables with defaults.
func Load() (*Config, error) {
	return LoadWithOverrides(LoadOptions{})
}

// LoadWithOverrides loads configuration, applying opts ahead of environment lookups.
func LoadWithOverrides(opts LoadOptions) (*Config, error) {
	cfg := &Config{}

	cfg.Transport.ReadTimeout = getDurationWithDefault("LLRP_READ_TIMEOUT", 30*time.Second)
	cfg.Transport.MaxMessageBytes = getIntWithDefault("LLRP_MAX_MESSAGE_BYTES", 1<<20)
	cfg.Transport.ZeroReadChunkLimit = getIntWithDefault("LLRP_ZERO_READ_CHUNK_LIMIT", 2)

	cfg.Logging.Level = getOverrideOrEnv(opts.LogLevel, "LLRP_LOG_LEVEL", "info")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	configMutex.Lock()
	globalConfig = cfg
	configMutex.Unlock()

	return cfg, nil
}

// GetGlobalConfig returns the configuration stored by the most recent Load/LoadWithOverrides call.
func GetGlobalConfig() *Config {
	configMutex.Lock()
	defer configMutex.Unlock()
	return globalConfig
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Transport.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}

	if c.Transport.MaxMessageBytes <= 0 {
		return fmt.Errorf("max message bytes must be positive")
	}

	if c.Transport.ZeroReadChunkLimit <= 0 {
		return fmt.Errorf("zero read chunk limit must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getOverrideOrEnv returns the caller override, the environment value, or the default, in that order.
func getOverrideOrEnv(override, envKey, defaultValue string) string {
	if override != "" {
		return override
	}
	return getEnvWithDefault(envKey, defaultValue)
}
