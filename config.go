package portcullis

import "time"

// Config holds configuration for the decision engine.
type Config struct {
	// SuperuserRole is the reserved role name that bypasses every check.
	// Defaults to "super_admin".
	SuperuserRole string `json:"superuser_role,omitempty"`

	// FetchConcurrency bounds the parallel store reads of one evaluation.
	// Zero or less means unbounded.
	FetchConcurrency int `json:"fetch_concurrency,omitempty"`

	// CacheTTL is the time-to-live for cached decisions and therefore the
	// longest a cached result may lag behind an administrative write that
	// failed to invalidate it. Zero means no caching.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// DisableSnapshot reads straight from the store instead of opening a
	// read snapshot per evaluation. Reads may then observe concurrent writes.
	DisableSnapshot bool `json:"disable_snapshot,omitempty"`
}

// DefaultSuperuserRole is the reserved system-administrator role name.
const DefaultSuperuserRole = "super_admin"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SuperuserRole:    DefaultSuperuserRole,
		FetchConcurrency: 4,
	}
}

func (c Config) superuserRole() string {
	if c.SuperuserRole == "" {
		return DefaultSuperuserRole
	}
	return c.SuperuserRole
}
