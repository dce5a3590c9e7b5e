// Package extension provides a Forge extension entry point for portcullis.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/admin"
	"github.com/xraph/portcullis/api"
	"github.com/xraph/portcullis/cache"
	"github.com/xraph/portcullis/plugin"
	"github.com/xraph/portcullis/plugin/audit"
	"github.com/xraph/portcullis/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "portcullis"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Authorization decision engine for the enterprise portal"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts portcullis as a Forge extension.
type Extension struct {
	config     Config
	eng        *portcullis.Engine
	admin      *admin.Service
	apiHandler *api.API
	logger     *slog.Logger
	cache      portcullis.Cache
	engineOpts []portcullis.Option
	plugins    []plugin.Plugin
}

// New creates a portcullis Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the decision engine.
func (e *Extension) Engine() *portcullis.Engine { return e.eng }

// Admin returns the administration service.
func (e *Extension) Admin() *admin.Service { return e.admin }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It builds the engine and the
// administration service, registers both in the DI container and
// optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*portcullis.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("portcullis: register engine in container: %w", err)
	}
	if err := vessel.Provide(fapp.Container(), func() (*admin.Service, error) {
		return e.admin, nil
	}); err != nil {
		return fmt.Errorf("portcullis: register admin service in container: %w", err)
	}
	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := plugin.NewRegistry(logger)
	for _, x := range e.plugins {
		registry.Register(x)
	}

	c := e.cache
	if c == nil && e.config.CacheTTL > 0 {
		c = cache.NewMemory(cache.WithTTL(e.config.CacheTTL))
	}

	cfg := portcullis.DefaultConfig()
	if e.config.SuperuserRole != "" {
		cfg.SuperuserRole = e.config.SuperuserRole
	}
	if e.config.FetchConcurrency > 0 {
		cfg.FetchConcurrency = e.config.FetchConcurrency
	}
	cfg.CacheTTL = e.config.CacheTTL
	cfg.DisableSnapshot = e.config.DisableSnapshot

	opts := make([]portcullis.Option, 0, len(e.engineOpts)+5)
	opts = append(opts,
		portcullis.WithLogger(logger),
		portcullis.WithConfig(cfg),
		portcullis.WithPlugins(registry),
	)
	if c != nil {
		opts = append(opts, portcullis.WithCache(c))
	}

	// Try to resolve store from DI container, fall back to option-provided store.
	if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
		opts = append(opts, portcullis.WithStore(s))
	}
	opts = append(opts, e.engineOpts...)

	eng, err := portcullis.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("portcullis: create engine: %w", err)
	}
	e.eng = eng

	if e.config.AuditDecisions {
		var auditOpts []audit.Option
		if e.config.AuditDeniedOnly {
			auditOpts = append(auditOpts, audit.DeniedOnly())
		}
		eng.Plugins().Register(audit.New(eng.Store(), auditOpts...))
	}

	e.admin = admin.ForEngine(eng)
	e.apiHandler = api.New(eng, e.admin, fapp.Router())

	if !e.config.DisableRoutes {
		if err := e.apiHandler.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("portcullis: register routes: %w", err)
		}
	}
	return nil
}

// Start runs migrations and seeds the default catalog when enabled.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("portcullis: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.eng.Store().Migrate(ctx); err != nil {
			return fmt.Errorf("portcullis: migration failed: %w", err)
		}
	}
	if e.config.SeedDefaults {
		if _, err := e.admin.InitializeDefaultCatalog(ctx); err != nil {
			return fmt.Errorf("portcullis: seed default catalog: %w", err)
		}
	}

	return e.eng.Start(ctx)
}

// Stop gracefully shuts down the engine.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	return e.eng.Stop(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("portcullis: extension not initialized")
	}
	return e.eng.Store().Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all portcullis API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}
