// Package server assembles the warden agent from configuration and runs its
// administration HTTP server.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/warden/pkg/api"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/devpath"
	"mercator-hq/warden/pkg/events"
	"mercator-hq/warden/pkg/events/journal"
	"mercator-hq/warden/pkg/fsindex"
	"mercator-hq/warden/pkg/kernel/port"
	"mercator-hq/warden/pkg/policy/engine"
	"mercator-hq/warden/pkg/policy/store"
	"mercator-hq/warden/pkg/security/auth"
	"mercator-hq/warden/pkg/security/secrets"
	sectls "mercator-hq/warden/pkg/security/tls"
	"mercator-hq/warden/pkg/telemetry/health"
	"mercator-hq/warden/pkg/telemetry/logging"
	"mercator-hq/warden/pkg/telemetry/metrics"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

// VersionPath serves build information.
const VersionPath = "/version"

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// volumeTable lists drives and answers device lookups for them.
type volumeTable interface {
	fsindex.VolumeLister
	devpath.VolumeSource
}

// Server is the running agent: the enforcement engine, its event plumbing and
// the administration API.
type Server struct {
	config *config.Config
	info   BuildInfo
	log    *logging.Logger
	logger *slog.Logger

	engine      *engine.Engine
	bus         *events.Bus
	journal     *journal.Journal
	pruner      *journal.Scheduler
	reconnector *engine.Reconnector
	metrics     *metrics.Collector
	tracer      *tracing.Tracer
	health      *health.Checker
	auth        *auth.Middleware
	certs       *sectls.CertificateReloader
	tlsConfig   *tls.Config
	handler     http.Handler

	httpServer   *http.Server
	listener     net.Listener
	cancel       context.CancelFunc
	journalDone  chan struct{}
	unsubscribe  func()
	shutdownChan chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New builds every component named by cfg. A nil log is built from
// cfg.Telemetry.Logging. Nothing is started; see Start.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger, info BuildInfo) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server requires a configuration")
	}
	if log == nil {
		var err error
		log, err = logging.New(logging.FromConfig(cfg.Telemetry.Logging))
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}
	logger := log.Slog()

	s := &Server{
		config:       cfg,
		info:         info,
		log:          log,
		logger:       logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}

	var cleanup []func()
	fail := func(err error) (*Server, error) {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
		return nil, err
	}

	backend, err := newBackend(cfg.Store, logger)
	if err != nil {
		return fail(err)
	}
	st, err := store.New(ctx, backend, logger)
	if err != nil {
		_ = backend.Close()
		return fail(fmt.Errorf("failed to load policy store: %w", err))
	}
	cleanup = append(cleanup, func() { _ = st.Close() })

	vols, err := newVolumes(cfg.Index)
	if err != nil {
		return fail(err)
	}
	conv := devpath.NewConverter(vols, cfg.Index.FallbackDevices, logger)
	idx := fsindex.New()
	scanner := fsindex.NewScanner(idx, vols, conv, fsindex.ScanConfig{
		SkipHidden:     cfg.Index.SkipHidden,
		SkipSystem:     cfg.Index.SkipSystem,
		FollowSymlinks: cfg.Index.FollowSymlinks,
	}, logger)
	resolver := devpath.NewResolver(idx, conv)

	s.bus = events.NewBus(cfg.Agent.Name, logger)
	cleanup = append(cleanup, s.bus.Close)

	s.metrics = metrics.NewCollector(cfg.Telemetry.Metrics, nil)
	if s.metrics.Enabled() {
		if err := s.metrics.RegisterEventSource(s.bus); err != nil {
			return fail(fmt.Errorf("failed to register event metrics: %w", err))
		}
	}

	s.tracer, err = tracing.New(cfg.Telemetry.Tracing, info.Version)
	if err != nil {
		return fail(fmt.Errorf("failed to create tracer: %w", err))
	}
	cleanup = append(cleanup, func() { _ = s.tracer.Shutdown(context.Background()) })

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithEventSink(s.bus),
		engine.WithMetrics(s.metrics),
		engine.WithTracer(s.tracer),
	}
	if cfg.Kernel.Enabled {
		opts = append(opts, engine.WithDialer(port.NewDialer(), cfg.Kernel.PortName))
	}
	s.engine, err = engine.New(idx, scanner, resolver, st, opts...)
	if err != nil {
		return fail(fmt.Errorf("failed to create policy engine: %w", err))
	}
	s.reconnector = engine.NewReconnector(s.engine, cfg.Kernel.ReconnectSchedule)

	if cfg.Journal.Enabled {
		s.journal, err = journal.Open(journal.Config{
			Path:          cfg.Journal.Path,
			RetentionDays: cfg.Journal.RetentionDays,
			PruneSchedule: cfg.Journal.PruneSchedule,
			BusyTimeout:   cfg.Store.SQLite.BusyTimeout,
		}, logger)
		if err != nil {
			return fail(fmt.Errorf("failed to open event journal: %w", err))
		}
		cleanup = append(cleanup, func() { _ = s.journal.Close() })
		s.pruner = journal.NewScheduler(s.journal)
	}

	s.health = health.New(cfg.Telemetry.Health.CheckTimeout)
	s.health.RegisterCheck("store", health.PingCheck(st), true)
	if s.journal != nil {
		s.health.RegisterCheck("journal", health.PingCheck(s.journal), false)
	}
	if cfg.Kernel.Enabled {
		s.health.RegisterCheck("kernel", health.KernelCheck(s.engine.KernelConnected), false)
	}

	if cfg.API.Auth.Enabled {
		s.auth, err = newAuth(ctx, cfg.API.Auth, logger)
		if err != nil {
			return fail(err)
		}
	}
	if cfg.API.TLS.Enabled {
		s.certs, s.tlsConfig, err = newTLS(cfg.API.TLS, logger)
		if err != nil {
			return fail(err)
		}
	}

	s.handler = s.setupRoutes(logger)
	return s, nil
}

// newAuth resolves the configured keys, expanding ${secret:name} references
// from WARDEN_SECRET_* variables and then the secrets directory.
func newAuth(ctx context.Context, cfg config.AuthConfig, logger *slog.Logger) (*auth.Middleware, error) {
	providers := []secrets.Provider{secrets.NewEnvProvider(secrets.DefaultEnvPrefix)}
	if cfg.SecretsDir != "" {
		fp, err := secrets.NewFileProvider(cfg.SecretsDir)
		if err != nil {
			return nil, fmt.Errorf("invalid api.auth.secrets_dir: %w", err)
		}
		providers = append(providers, fp)
	}
	resolver := secrets.NewManager(providers, logger)

	keys := make([]auth.Key, 0, len(cfg.Keys))
	for i, k := range cfg.Keys {
		secret, err := resolver.Resolve(ctx, k.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve api.auth.keys[%d]: %w", i, err)
		}
		keys = append(keys, auth.Key{Admin: k.Admin, Secret: secret, Enabled: !k.Disabled})
	}
	validator := auth.NewValidator(keys)
	logger.Info("API authentication enabled", "admins", validator.Admins())
	return auth.NewMiddleware(validator, nil, logger), nil
}

func newTLS(cfg config.TLSConfig, logger *slog.Logger) (*sectls.CertificateReloader, *tls.Config, error) {
	certs := sectls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, cfg.ReloadInterval, logger)
	if err := certs.Load(); err != nil {
		return nil, nil, fmt.Errorf("failed to load API certificate: %w", err)
	}
	tlsConfig, err := sectls.ServerConfig(sectls.Config{
		CertFile:       cfg.CertFile,
		KeyFile:        cfg.KeyFile,
		MinVersion:     cfg.MinVersion,
		ClientCAFile:   cfg.ClientCAFile,
		ReloadInterval: cfg.ReloadInterval,
	}, certs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure API TLS: %w", err)
	}
	return certs, tlsConfig, nil
}

func newBackend(cfg config.StoreConfig, logger *slog.Logger) (store.Backend, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryBackend(), nil
	case "sqlite", "":
		b, err := store.NewSQLiteBackend(store.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			DisableWAL:   cfg.SQLite.DisableWAL,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open policy database: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// newVolumes uses the configured volume table when one is given and the OS
// volume manager otherwise.
func newVolumes(cfg config.IndexConfig) (volumeTable, error) {
	if len(cfg.Volumes) == 0 {
		vols, err := devpath.NewSystemVolumes()
		if err != nil {
			return nil, fmt.Errorf("failed to open volume manager (configure index.volumes instead): %w", err)
		}
		return vols, nil
	}

	table := make(map[string]devpath.StaticVolume, len(cfg.Volumes))
	for letter, v := range cfg.Volumes {
		table[letter] = devpath.StaticVolume{
			Root:       v.Root,
			VolumeName: v.VolumeName,
			DevicePath: v.DevicePath,
			Label:      v.Label,
		}
	}
	vols, err := devpath.NewStaticVolumes(table)
	if err != nil {
		return nil, fmt.Errorf("invalid index.volumes: %w", err)
	}
	return vols, nil
}

func (s *Server) setupRoutes(logger *slog.Logger) http.Handler {
	opts := []api.Option{
		api.WithLogger(logger),
		api.WithHandler(s.config.Telemetry.Health.LivenessPath, s.health.LivenessHandler()),
		api.WithHandler(s.config.Telemetry.Health.ReadinessPath, s.health.ReadinessHandler()),
		api.WithHandler(VersionPath, health.VersionHandler(s.info.Version, s.info.Commit, s.info.BuildTime)),
	}
	if s.metrics.Enabled() {
		opts = append(opts, api.WithHandler(s.config.Telemetry.Metrics.Path, s.metrics.Handler()))
	}
	if s.tracer.Enabled() {
		opts = append(opts, api.WithTracer(s.tracer))
	}
	if s.config.API.EventStream {
		opts = append(opts, api.WithEvents(s.bus, events.DefaultBufferSize))
	}
	if s.auth != nil {
		opts = append(opts, api.WithAuth(s.auth.Handle))
	}
	return api.New(s.engine, opts...).Handler()
}

// Start brings up the agent and serves the API. It blocks until ctx is done,
// Stop is called or the listener fails, then shuts everything down.
//
// Missing drives and an absent kernel are logged and tolerated: the tree is
// empty until volumes appear, and policies are simulated until the driver
// connects.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	bg, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if _, err := s.engine.InitializeDrives(); err != nil {
		if !errors.Is(err, fsindex.ErrNoDrives) {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("failed to initialize drives: %w", err)
		}
		s.logger.Warn("no accessible drives found, tree is empty")
	}

	if s.config.Kernel.Enabled {
		if err := s.engine.Connect(bg); err != nil {
			s.logger.Warn("kernel unavailable, policies are simulated until it connects", "error", err)
		}
		if s.config.Kernel.ReconnectSchedule != "" {
			if err := s.reconnector.Start(bg); err != nil {
				_ = s.Shutdown(context.Background())
				return fmt.Errorf("failed to start kernel reconnector: %w", err)
			}
		}
	}

	if s.journal != nil {
		ch, unsubscribe := s.bus.Subscribe(s.config.Journal.BufferSize)
		s.unsubscribe = unsubscribe
		s.journalDone = make(chan struct{})
		go func() {
			defer close(s.journalDone)
			s.journal.Run(bg, ch)
		}()
		if err := s.pruner.Start(bg); err != nil {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("failed to start journal pruning: %w", err)
		}
	}

	ln, err := net.Listen("tcp", s.config.API.ListenAddress)
	if err != nil {
		_ = s.Shutdown(context.Background())
		return fmt.Errorf("failed to listen on %s: %w", s.config.API.ListenAddress, err)
	}
	if s.tlsConfig != nil {
		if err := s.certs.Start(bg); err != nil {
			_ = ln.Close()
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("failed to start certificate reloader: %w", err)
		}
		ln = tls.NewListener(ln, s.tlsConfig)
	}
	s.mu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.config.API.ReadTimeout,
		WriteTimeout:   s.config.API.WriteTimeout,
		IdleTimeout:    s.config.API.IdleTimeout,
		MaxHeaderBytes: s.config.API.MaxHeaderBytes,
	}
	srv := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting administration server",
			"address", ln.Addr().String(),
			"kernel_connected", s.engine.KernelConnected(),
			"journal", s.journal != nil,
			"tls", s.tlsConfig != nil,
			"auth", s.auth != nil,
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		_ = s.Shutdown(context.Background())
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Stop asks a running Start to return.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.shutdownChan) })
}

// Shutdown stops the HTTP server, then the background workers, then closes
// the engine, journal and tracer. It runs once.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	s.shutdownOnce.Do(func() {
		timeout := s.config.API.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		s.mu.RLock()
		srv := s.httpServer
		s.mu.RUnlock()
		if srv != nil {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if s.cancel != nil {
			s.cancel()
		}
		s.reconnector.Stop()
		if s.pruner != nil {
			s.pruner.Stop()
		}
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		if s.journalDone != nil {
			<-s.journalDone
		}
		s.bus.Close()

		if err := s.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("engine close error: %w", err))
		}
		if s.journal != nil {
			if err := s.journal.Close(); err != nil {
				errs = append(errs, fmt.Errorf("journal close error: %w", err))
			}
		}
		if err := s.tracer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown error: %w", err))
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("warden agent stopped")
	})

	return errors.Join(errs...)
}

// ApplyConfig applies a reloaded configuration. Only the log level changes
// live; the watcher reports every other difference as needing a restart.
func (s *Server) ApplyConfig(old, updated *config.Config) {
	if updated.Telemetry.Logging.Level == old.Telemetry.Logging.Level {
		return
	}
	if err := s.log.SetLevel(updated.Telemetry.Logging.Level); err != nil {
		s.logger.Error("failed to apply log level", "error", err)
	}
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Engine returns the enforcement engine.
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// Journal returns the event journal, or nil when it is disabled.
func (s *Server) Journal() *journal.Journal {
	return s.journal
}
