// Package config loads solarnet settings from flags, SOLARNET_* environment
// variables and an optional solarnet.yaml, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dreamware/solarnet/internal/federation"
)

// EnvPrefix prefixes every environment override, e.g. SOLARNET_FEDERATION_TIMEOUT.
const EnvPrefix = "SOLARNET"

type Config struct {
	Federation    FederationConfig    `mapstructure:"federation"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Hub           HubConfig           `mapstructure:"hub"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type FederationConfig struct {
	File           string        `mapstructure:"file"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

type GatewayConfig struct {
	Addr           string        `mapstructure:"addr"`
	HealthInterval time.Duration `mapstructure:"health_interval"`
}

type HubConfig struct {
	Addr          string `mapstructure:"addr"`
	ResourcesFile string `mapstructure:"resources_file"`
}

type ObservabilityConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Defaults holds the values used when nothing overrides them.
var Defaults = Config{
	Federation: FederationConfig{
		File:         "federation.json",
		Timeout:      federation.DefaultTimeout,
		MaxBodyBytes: federation.DefaultMaxBodyBytes,
	},
	Gateway: GatewayConfig{
		Addr:           ":8080",
		HealthInterval: 30 * time.Second,
	},
	Hub: HubConfig{
		Addr:          ":8081",
		ResourcesFile: "resources.json",
	},
	Observability: ObservabilityConfig{
		LogLevel:  "info",
		LogFormat: "text",
	},
}

// SetDefaults registers Defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("federation.file", Defaults.Federation.File)
	v.SetDefault("federation.timeout", Defaults.Federation.Timeout)
	v.SetDefault("federation.max_concurrency", Defaults.Federation.MaxConcurrency)
	v.SetDefault("federation.max_body_bytes", Defaults.Federation.MaxBodyBytes)
	v.SetDefault("gateway.addr", Defaults.Gateway.Addr)
	v.SetDefault("gateway.health_interval", Defaults.Gateway.HealthInterval)
	v.SetDefault("hub.addr", Defaults.Hub.Addr)
	v.SetDefault("hub.resources_file", Defaults.Hub.ResourcesFile)
	v.SetDefault("observability.log_level", Defaults.Observability.LogLevel)
	v.SetDefault("observability.log_format", Defaults.Observability.LogFormat)
}

// AddCommonFlags declares the flags every command shares as persistent
// flags of cmd. LoadCommand binds them.
func AddCommonFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()

	f.String("config", "", "config file (default solarnet.yaml in . or ~/.solarnet)")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (json, text)")
}

// LoadCommand binds the shared flags visible to cmd onto v, then loads the
// config file named by --config, if any.
func LoadCommand(cmd *cobra.Command, v *viper.Viper) (*Config, error) {
	f := cmd.Flags()
	if fl := f.Lookup("log-level"); fl != nil {
		_ = v.BindPFlag("observability.log_level", fl)
	}
	if fl := f.Lookup("log-format"); fl != nil {
		_ = v.BindPFlag("observability.log_format", fl)
	}
	configFile, _ := f.GetString("config")
	return Load(v, configFile)
}

// BindFederationFlags adds the flags of commands that run searches.
func BindFederationFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()

	f.String("federation-file", "", "hub registry file (default federation.json)")
	f.Duration("timeout", 0, "per-hub timeout (default 5s)")
	f.Int("max-concurrency", 0, "maximum hubs queried at once (0 = all)")

	_ = v.BindPFlag("federation.file", f.Lookup("federation-file"))
	_ = v.BindPFlag("federation.timeout", f.Lookup("timeout"))
	_ = v.BindPFlag("federation.max_concurrency", f.Lookup("max-concurrency"))
}

// BindHubFlags adds the flags of the hub server.
func BindHubFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()

	f.String("addr", "", "listen address (default :8081)")
	f.String("resources-file", "", "catalog file (default resources.json)")

	_ = v.BindPFlag("hub.addr", f.Lookup("addr"))
	_ = v.BindPFlag("hub.resources_file", f.Lookup("resources-file"))
}

// BindGatewayFlags adds the flags of the search gateway.
func BindGatewayFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()

	f.String("addr", "", "listen address (default :8080)")
	f.Duration("health-interval", 0, "hub health probe interval (default 30s, 0 keeps the default)")

	_ = v.BindPFlag("gateway.addr", f.Lookup("addr"))
	_ = v.BindPFlag("gateway.health_interval", f.Lookup("health-interval"))
}

// Load reads env and the config file into v and unmarshals the result.
// A missing config file is only an error when configFile names it.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("solarnet")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".solarnet"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch {
	case c.Federation.Timeout < 0:
		return fmt.Errorf("federation.timeout must not be negative")
	case c.Federation.MaxConcurrency < 0:
		return fmt.Errorf("federation.max_concurrency must not be negative")
	case c.Federation.MaxBodyBytes < 0:
		return fmt.Errorf("federation.max_body_bytes must not be negative")
	case c.Federation.MaxBodyBytes > federation.MaxBodyBytesLimit:
		return fmt.Errorf("federation.max_body_bytes must not exceed %d", federation.MaxBodyBytesLimit)
	case c.Gateway.HealthInterval < 0:
		return fmt.Errorf("gateway.health_interval must not be negative")
	}
	return nil
}

// ClientConfig maps the federation settings onto the hub query client.
func (c *Config) ClientConfig() federation.ClientConfig {
	cc := federation.DefaultClientConfig()
	if c.Federation.Timeout > 0 {
		cc.DefaultTimeout = c.Federation.Timeout
	}
	if c.Federation.MaxBodyBytes > 0 {
		cc.MaxBodyBytes = c.Federation.MaxBodyBytes
	}
	return cc
}

// AggregatorConfig maps the federation settings onto the aggregator.
func (c *Config) AggregatorConfig() federation.AggregatorConfig {
	return federation.AggregatorConfig{MaxConcurrency: c.Federation.MaxConcurrency}
}
