// Package config loads proxypulse's configuration: viper-backed, with an
// optional YAML file, environment-variable overrides, and a package-level
// singleton populated by Load. There is no database/auth/email surface
// here — this module's configuration is the run pipeline's tuning knobs
// plus the storage and scheduling locations it needs.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// FetchConfig controls the Fetcher.
type FetchConfig struct {
	TimeoutSeconds     int  `mapstructure:"timeout_s"`
	Concurrency        int  `mapstructure:"concurrency"`
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
	MaxRedirects       int  `mapstructure:"max_redirects"`
}

// Timeout returns the fetch timeout as a time.Duration.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ValidationConfig controls the Validator.
type ValidationConfig struct {
	Mode             string  `mapstructure:"mode"`
	TCPTimeoutSeconds int    `mapstructure:"tcp_probe_timeout_s"`
	BatchSize        int     `mapstructure:"batch_size"`
	BatchDelaySeconds float64 `mapstructure:"batch_delay_s"`
	MaxLatencyMs     int     `mapstructure:"max_latency_ms"`
	MaxOutputNodes   int     `mapstructure:"max_output_nodes"`
}

// TCPTimeout returns the per-node probe timeout as a time.Duration.
func (c ValidationConfig) TCPTimeout() time.Duration {
	return time.Duration(c.TCPTimeoutSeconds) * time.Second
}

// BatchDelay returns the inter-batch delay as a time.Duration.
func (c ValidationConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelaySeconds * float64(time.Second))
}

// StoreConfig controls where the file-backed Store keeps its state.
type StoreConfig struct {
	Dir string `mapstructure:"dir"`
}

// EmitConfig controls where output artifacts are written.
type EmitConfig struct {
	Dir        string `mapstructure:"dir"`
	CompactCap int    `mapstructure:"compact_cap"`
}

// GeoCacheConfig selects and configures the IP-geo cache backend.
type GeoCacheConfig struct {
	Backend   string `mapstructure:"backend"` // "file" or "redis"
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ScheduleConfig controls the serve command's recurring run cadence.
type ScheduleConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
	TimeoutMinutes  int `mapstructure:"timeout_minutes"`
}

// Interval returns the scheduled run interval as a time.Duration.
func (c ScheduleConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// Timeout returns the per-run timeout as a time.Duration.
func (c ScheduleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// PruneConfig controls the serve command's background stale-subscription
// sweep, which runs independently of the pipeline's own schedule.
type PruneConfig struct {
	MaxAgeDays      int `mapstructure:"max_age_days"`
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// MaxAge returns the staleness threshold as a time.Duration.
func (c PruneConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeDays) * 24 * time.Hour
}

// Interval returns the sweep interval as a time.Duration.
func (c PruneConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// LoggerConfig controls the structured logger's level, format, and sink.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Config is the root configuration object, unmarshalled from an optional
// YAML file plus environment variables.
type Config struct {
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Validation ValidationConfig `mapstructure:"validation"`
	Store      StoreConfig      `mapstructure:"store"`
	Emit       EmitConfig       `mapstructure:"emit"`
	GeoCache   GeoCacheConfig   `mapstructure:"geo_cache"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Prune      PruneConfig      `mapstructure:"prune"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Timezone   string           `mapstructure:"timezone"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from an optional YAML file plus PROXYPULSE_*
// environment variables. If configPath is provided, it is used exclusively;
// otherwise a small set of default search paths is tried. A missing config
// file is not an error — defaults and environment variables still apply.
func Load(configPath ...string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if len(configPath) > 0 && configPath[0] != "" {
		viper.SetConfigFile(configPath[0])
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("../configs")
	}

	viper.SetEnvPrefix("PROXYPULSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &cfg
	appConfigMu.Unlock()

	return &cfg, nil
}

// Get returns the most recently loaded configuration, or nil if Load has
// never been called.
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func setDefaults() {
	viper.SetDefault("fetch.timeout_s", 45)
	viper.SetDefault("fetch.concurrency", 8)
	viper.SetDefault("fetch.insecure_skip_verify", true)
	viper.SetDefault("fetch.max_redirects", 5)

	viper.SetDefault("validation.mode", "strict")
	viper.SetDefault("validation.tcp_probe_timeout_s", 8)
	viper.SetDefault("validation.batch_size", 20)
	viper.SetDefault("validation.batch_delay_s", 0.5)
	viper.SetDefault("validation.max_latency_ms", 2000)
	viper.SetDefault("validation.max_output_nodes", 100)

	viper.SetDefault("store.dir", "./data")

	viper.SetDefault("emit.dir", "./output")
	viper.SetDefault("emit.compact_cap", 20)

	viper.SetDefault("geo_cache.backend", "file")
	viper.SetDefault("geo_cache.redis_addr", "localhost:6379")
	viper.SetDefault("geo_cache.redis_db", 0)
	viper.SetDefault("geo_cache.key_prefix", "proxypulse:geo:")

	viper.SetDefault("schedule.interval_minutes", 60)
	viper.SetDefault("schedule.timeout_minutes", 30)

	viper.SetDefault("prune.max_age_days", 30)
	viper.SetDefault("prune.interval_minutes", 1440)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")

	viper.SetDefault("timezone", "UTC")
}

// LoadSubscriptionURLs reads a newline-delimited subscription list: blank
// lines and lines starting with "#" are skipped, and surrounding whitespace
// is trimmed. A missing or unreadable file is returned as an error — the
// caller treats this as run-fatal, per the error-handling design.
func LoadSubscriptionURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("subscription list file: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("subscription list file: %w", err)
	}

	return urls, nil
}
