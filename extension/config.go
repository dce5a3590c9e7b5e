package extension

import "time"

// Config holds the portcullis extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.portcullis" or "portcullis"
// keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// SeedDefaults installs the default catalog on start. Seeding is
	// idempotent by name.
	SeedDefaults bool `json:"seed_defaults" mapstructure:"seed_defaults" yaml:"seed_defaults"`

	// SuperuserRole is the role name that bypasses evaluation.
	SuperuserRole string `json:"superuser_role" mapstructure:"superuser_role" yaml:"superuser_role"`

	// FetchConcurrency bounds parallel store reads per decision.
	FetchConcurrency int `json:"fetch_concurrency" mapstructure:"fetch_concurrency" yaml:"fetch_concurrency"`

	// CacheTTL enables an in-process decision cache when positive and no
	// cache was supplied with WithCache.
	CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// DisableSnapshot reads live data instead of one snapshot per decision.
	DisableSnapshot bool `json:"disable_snapshot" mapstructure:"disable_snapshot" yaml:"disable_snapshot"`

	// AuditDecisions records every decision in the decision log.
	AuditDecisions bool `json:"audit_decisions" mapstructure:"audit_decisions" yaml:"audit_decisions"`

	// AuditDeniedOnly limits the decision log to denials.
	AuditDeniedOnly bool `json:"audit_denied_only" mapstructure:"audit_denied_only" yaml:"audit_denied_only"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SeedDefaults:     true,
		SuperuserRole:    "super_admin",
		FetchConcurrency: 4,
		CacheTTL:         time.Minute,
	}
}
