package portcullis

import (
	"log/slog"

	"github.com/xraph/portcullis/plugin"
	"github.com/xraph/portcullis/store"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithCache sets the decision cache.
func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithPlugins shares an existing plugin registry with the engine, so the
// administration service and the engine notify the same plugins.
func WithPlugins(r *plugin.Registry) Option { return func(e *Engine) { e.plugins = r } }

// WithPlugin registers a plugin with the engine.
func WithPlugin(x plugin.Plugin) Option {
	return func(e *Engine) {
		if e.plugins == nil {
			e.plugins = plugin.NewRegistry(e.logger)
		}
		e.plugins.Register(x)
	}
}
