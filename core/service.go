package core

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service wires the connector registry, stores, and collaborators behind a
// single entry point. Construct it once at startup; all methods are safe
// for concurrent use.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	registry        Registry
	tokenStore      TokenStore
	cursorStore     SyncCursorStore
	eventQueue      EventQueue
	rateLimiter     RateLimitAdmitter
	ratePolicy      RateLimitPolicy
	userLocker      UserLocker
	httpClient      HTTPDoer
	tokenExchanger  TokenExchanger
	now             func() time.Time
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	Registry        Registry
	TokenStore      TokenStore
	SyncCursorStore SyncCursorStore
	EventQueue      EventQueue
	RateLimiter     RateLimitAdmitter
	RatePolicy      RateLimitPolicy
	UserLocker      UserLocker
	HTTPClient      HTTPDoer
	TokenExchanger  TokenExchanger
	Now             func() time.Time
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("connectors", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("connectors"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewConnectorRegistry()
	}
	if builder.userLocker == nil {
		builder.userLocker = NewMemoryUserLocker()
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		registry:        builder.registry,
		tokenStore:      builder.tokenStore,
		cursorStore:     builder.cursorStore,
		eventQueue:      builder.eventQueue,
		rateLimiter:     builder.rateLimiter,
		ratePolicy:      builder.ratePolicy,
		userLocker:      builder.userLocker,
		httpClient:      builder.httpClient,
		tokenExchanger:  builder.tokenExchanger,
		now:             builder.now,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		Registry:        s.registry,
		TokenStore:      s.tokenStore,
		SyncCursorStore: s.cursorStore,
		EventQueue:      s.eventQueue,
		RateLimiter:     s.rateLimiter,
		RatePolicy:      s.ratePolicy,
		UserLocker:      s.userLocker,
		HTTPClient:      s.httpClient,
		TokenExchanger:  s.tokenExchanger,
		Now:             s.now,
	}
}

func (s *Service) Registry() Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) Logger() Logger {
	if s == nil {
		return glog.Ensure(nil)
	}
	return s.logger
}

// connector resolves the registered connector for a vendor or returns the
// mapped not-found error.
func (s *Service) connector(vendor Vendor) (Connector, error) {
	connector, ok := s.registry.Get(vendor)
	if !ok {
		return nil, s.mapError(fmt.Errorf("%w: %s", ErrConnectorNotFound, vendor))
	}
	return connector, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) clock() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}
