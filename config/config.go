package config

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tcriess/lightspeed-code/globals"
)

const (
	defaultAdminUser         = "admin"
	defaultHeartbeatInterval = 3 * time.Second
	defaultTimeoutFactor     = 3
	defaultDebounceWindow    = 200 * time.Millisecond
	defaultRunnerBaseUrl     = "https://emkc.org/api/v2/piston"
	defaultCompileTimeout    = 10 * time.Second
	defaultRunTimeout        = 3 * time.Second
	defaultTokenExpiry       = time.Hour
)

// Config is the global configuration object which is filled via the
// configuration file, environment (prefix LSCODE_) and command-line flags.
type Config struct {
	HistoryConfig     HistoryConfig     `mapstructure:"history"`
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	AuthConfig        AuthConfig        `mapstructure:"auth"`
	PresenceConfig    PresenceConfig    `mapstructure:"presence"`
	SyncConfig        SyncConfig        `mapstructure:"sync"`
	RunnerConfig      RunnerConfig      `mapstructure:"runner"`
	LogLevel          string            `mapstructure:"log_level"`
	AdminUser         string            `mapstructure:"admin_user"`
}

// HistoryConfig configures the size of the immediate event history that is
// kept in memory in a ring buffer and sent to newly connected sessions.
type HistoryConfig struct {
	HistorySize int `mapstructure:"history_size"`
}

// PersistenceConfig configures the persistence backend. Type is one of
// "buntdb", "sqlite" or "postgres", DSN is the file name resp. connection
// string.
type PersistenceConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// AuthConfig configures token issuing. Secret is the HMAC signing key,
// a missing secret disables signup/signin (useful for tests only).
type AuthConfig struct {
	Secret      string        `mapstructure:"secret"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
}

// PresenceConfig configures the heartbeat liveness detection. A session
// missing heartbeats for TimeoutFactor times the interval is treated as
// disconnected and implicitly leaves its room.
type PresenceConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	TimeoutFactor     int           `mapstructure:"timeout_factor"`
}

// SyncConfig configures the publish-side coalescing of rapid state changes.
type SyncConfig struct {
	DebounceWindow time.Duration `mapstructure:"debounce_window"`
}

// RunnerConfig configures the remote code execution service.
type RunnerConfig struct {
	BaseUrl        string        `mapstructure:"base_url"`
	CompileTimeout time.Duration `mapstructure:"compile_timeout"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
}

func (c *PresenceConfig) Interval() time.Duration {
	if c.HeartbeatInterval <= 0 {
		return defaultHeartbeatInterval
	}
	return c.HeartbeatInterval
}

func (c *PresenceConfig) Timeout() time.Duration {
	factor := c.TimeoutFactor
	if factor <= 0 {
		factor = defaultTimeoutFactor
	}
	return time.Duration(factor) * c.Interval()
}

func (c *SyncConfig) Window() time.Duration {
	if c.DebounceWindow <= 0 {
		return defaultDebounceWindow
	}
	return c.DebounceWindow
}

func (c *RunnerConfig) Defaults() RunnerConfig {
	out := *c
	if out.BaseUrl == "" {
		out.BaseUrl = defaultRunnerBaseUrl
	}
	if out.CompileTimeout <= 0 {
		out.CompileTimeout = defaultCompileTimeout
	}
	if out.RunTimeout <= 0 {
		out.RunTimeout = defaultRunTimeout
	}
	return out
}

func (c *AuthConfig) Expiry() time.Duration {
	if c.TokenExpiry <= 0 {
		return defaultTokenExpiry
	}
	return c.TokenExpiry
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.StringP("admin-user", "a", "", "id of the admin user")
	flagSet.String("log-level", "", "log level (TRACE/DEBUG/INFO/WARN/ERROR)")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	from := "-"
	to := "_"
	name = strings.Replace(name, from, to, -1)
	return pflag.NormalizedName(name)
}

// ReadConfiguration reads and parses the configuration located at configPath,
// which can either point to a single TOML file or to a directory, in which
// case all *.toml files in this directory are concatenated. It returns a
// Config object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("admin_user", defaultAdminUser)
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("LSCODE")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := ioutil.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}

	globals.AppLogger.Debug("config", "cfg", cfg, "all", viper.AllSettings())
	return &cfg, nil
}
