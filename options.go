package tilemath

import (
	"context"
	"log/slog"
)

// Option configures a Service.
type Option func(*Service) error

// Storer is the minimal store interface held by the Service. It covers
// lifecycle operations only; the job.Store contract lives in the job
// package and is type-asserted by the engine, which keeps this package
// free of import cycles.
type Storer interface {
	Ping(ctx context.Context) error
	Close() error
}

// Service is the central handle wiring configuration, the record store,
// the logger, and any registered lifecycle hook extensions. Create one
// with New() and functional options, then hand it to engine.New to build
// the execution facade.
type Service struct {
	config Config
	logger *slog.Logger
	store  Storer

	// extensions are lifecycle hook implementations. They are kept
	// untyped here and registered into the hook registry by the engine
	// to avoid an import cycle with the ext package.
	extensions []any
}

// New creates a new Service with the given options.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Logger returns the service's logger.
func (s *Service) Logger() *slog.Logger { return s.logger }

// Store returns the service's store.
func (s *Service) Store() Storer { return s.store }

// Config returns a copy of the service's configuration.
func (s *Service) Config() Config { return s.config }

// Extensions returns the registered hook extensions.
func (s *Service) Extensions() []any { return s.extensions }

// Stop releases the service's resources.
func (s *Service) Stop(ctx context.Context) error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// WithConfig replaces the service configuration.
func WithConfig(cfg Config) Option {
	return func(s *Service) error {
		s.config = cfg
		return nil
	}
}

// WithLogger sets the structured logger for the service.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) error {
		if l == nil {
			l = slog.Default()
		}
		s.logger = l
		return nil
	}
}

// WithStore sets the record store for the service. Inline backends
// require a store implementing job.Store; the deferred backend requires
// the external metadata/queue contract from store/redis.
func WithStore(st Storer) Option {
	return func(s *Service) error {
		s.store = st
		return nil
	}
}

// WithExtension registers a lifecycle hook extension. The value should
// implement one or more of the hook interfaces in the ext package.
func WithExtension(h any) Option {
	return func(s *Service) error {
		s.extensions = append(s.extensions, h)
		return nil
	}
}
