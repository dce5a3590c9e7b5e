package extension

import (
	"log/slog"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/plugin"
	"github.com/xraph/portcullis/store"
)

// ExtOption configures the Extension.
type ExtOption func(*Extension)

// WithStore backs the engine and admin service with s. It takes precedence
// over a store.Store found in the Forge container.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) { e.engineOpts = append(e.engineOpts, portcullis.WithStore(s)) }
}

// WithCache installs a decision cache such as cache.Redis. Without it a
// memory cache is built from Config.CacheTTL.
func WithCache(c portcullis.Cache) ExtOption {
	return func(e *Extension) { e.cache = c }
}

// WithConfig replaces the whole extension configuration.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) { e.config = cfg }
}

// WithEngineOptions passes extra options to portcullis.NewEngine.
func WithEngineOptions(opts ...portcullis.Option) ExtOption {
	return func(e *Extension) { e.engineOpts = append(e.engineOpts, opts...) }
}

// WithPlugin adds a hook plugin, for example metrics or audit.
func WithPlugin(x plugin.Plugin) ExtOption {
	return func(e *Extension) { e.plugins = append(e.plugins, x) }
}

// WithLogger sets the logger shared by the engine, registry and admin service.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) { e.logger = l }
}

// WithDisableRoutes skips mounting the /v1 routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate skips store migrations on Start.
func WithDisableMigrate() ExtOption {
	return func(e *Extension) { e.config.DisableMigrate = true }
}
