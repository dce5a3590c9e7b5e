package main

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/xraph/portcullis/extension"
)

// envPrefix scopes environment overrides: PORTCULLIS_ENGINE_CACHETTL -> engine.cachettl.
const envPrefix = "PORTCULLIS_"

// Config is the process configuration.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	Engine  EngineConfig  `koanf:"engine"`
	Redis   RedisConfig   `koanf:"redis"`
	Audit   AuditConfig   `koanf:"audit"`
	Metrics MetricsConfig `koanf:"metrics"`
	Seed    bool          `koanf:"seed"`
	Routes  bool          `koanf:"routes"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type EngineConfig struct {
	SuperuserRole    string        `koanf:"superuserrole"`
	FetchConcurrency int           `koanf:"fetchconcurrency"`
	CacheTTL         time.Duration `koanf:"cachettl"`
	DisableSnapshot  bool          `koanf:"disablesnapshot"`
}

// RedisConfig enables the shared decision cache when Addr is set.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	DeniedOnly bool `koanf:"deniedonly"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// Load reads defaults, then every readable YAML file in configPaths, then
// the environment.
func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	defaults := extension.DefaultConfig()
	_ = k.Load(confmap.Provider(map[string]any{
		"log.level":               "info",
		"log.format":              "json",
		"engine.superuserrole":    defaults.SuperuserRole,
		"engine.fetchconcurrency": defaults.FetchConcurrency,
		"engine.cachettl":         defaults.CacheTTL.String(),
		"engine.disablesnapshot":  false,
		"redis.prefix":            "portcullis",
		"audit.enabled":           false,
		"audit.deniedonly":        false,
		"metrics.enabled":         true,
		"metrics.addr":            ":9090",
		"seed":                    defaults.SeedDefaults,
		"routes":                  true,
	}, "."), nil)

	for _, path := range configPaths {
		if path == "" {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// Missing files are not an error.
			continue
		}
	}

	_ = k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"_", ".",
		)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Extension maps the process configuration onto the extension's.
func (c *Config) Extension() extension.Config {
	ext := extension.DefaultConfig()
	ext.DisableRoutes = !c.Routes
	ext.SeedDefaults = c.Seed
	ext.SuperuserRole = c.Engine.SuperuserRole
	ext.FetchConcurrency = c.Engine.FetchConcurrency
	ext.CacheTTL = c.Engine.CacheTTL
	ext.DisableSnapshot = c.Engine.DisableSnapshot
	ext.AuditDecisions = c.Audit.Enabled
	ext.AuditDeniedOnly = c.Audit.DeniedOnly
	return ext
}
