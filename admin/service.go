// Package admin is the administration surface over the permission catalog,
// roles, override records and actor profiles.
//
// Every write is validated before it reaches the store, invalidates the
// decision cache and notifies plugins. Deletes never cascade: roles and
// overrides that still point at a deleted record keep the dangling id and
// the engine treats it as a non-match.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/access"
	"github.com/xraph/portcullis/plugin"
	"github.com/xraph/portcullis/store"
)

// Service performs validated administrative writes.
type Service struct {
	store    store.Store
	cache    portcullis.Cache
	plugins  *plugin.Registry
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time

	// overrideMu serializes read-modify-write cycles on override records.
	overrideMu sync.Mutex
}

// Option configures the Service.
type Option func(*Service)

// WithCache sets the decision cache invalidated on writes.
func WithCache(c portcullis.Cache) Option { return func(s *Service) { s.cache = c } }

// WithPlugins sets the plugin registry notified on writes.
func WithPlugins(r *plugin.Registry) Option { return func(s *Service) { s.plugins = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// New creates an administration service over st.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:    st,
		logger:   slog.Default(),
		validate: newValidator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ForEngine creates a service sharing the engine's store, cache, plugins
// and logger.
func ForEngine(eng *portcullis.Engine, opts ...Option) *Service {
	base := []Option{
		WithCache(eng.Cache()),
		WithPlugins(eng.Plugins()),
		WithLogger(eng.Logger()),
	}
	return New(eng.Store(), append(base, opts...)...)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("module", func(fl validator.FieldLevel) bool {
		return access.Module(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("action", func(fl validator.FieldLevel) bool {
		return access.Action(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("qualifier", func(fl validator.FieldLevel) bool {
		_, err := access.ParseQualifier(fl.Field().String())
		return err == nil
	})
	return v
}

// check validates input and wraps failures with sentinel.
func (s *Service) check(input any, sentinel error) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = fe.Field() + " failed " + fe.Tag()
	}
	return fmt.Errorf("%w: %s", sentinel, strings.Join(fields, "; "))
}

// storeErr maps a backend error to notFound, or to ErrStoreUnavailable for
// anything else.
func storeErr(err, notFound error) error {
	if store.IsNotFound(err) {
		return fmt.Errorf("%w: %w", notFound, err)
	}
	return fmt.Errorf("%w: %w", portcullis.ErrStoreUnavailable, err)
}

func (s *Service) invalidateAll(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateAll(ctx)
	}
}

func (s *Service) invalidateActor(ctx context.Context, actorID string) {
	if s.cache != nil {
		s.cache.InvalidateActor(ctx, actorID)
	}
}

func (s *Service) timestamp() time.Time { return s.now().UTC() }

func uniqueActions(in []access.Action) []access.Action {
	out := make([]access.Action, 0, len(in))
	for _, a := range in {
		if !access.ContainsAction(out, a) {
			out = append(out, a)
		}
	}
	return out
}
