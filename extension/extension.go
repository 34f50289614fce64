// Package extension provides the Forge extension adapter for Patron.
//
// It resolves the store, entitlement cache, blob store, broker, Sentry,
// metrics and realtime plugins, registers the engine and hub in the DI
// container, and mounts the realtime endpoint, Prometheus metrics, media and
// health checks on the Forge router.
//
// Configuration can be provided programmatically via Option functions or via
// configuration files under the "extensions.patron" or "patron" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"slices"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/patron"
	audithook "github.com/xraph/patron/audit_hook"
	"github.com/xraph/patron/auth"
	"github.com/xraph/patron/broker"
	"github.com/xraph/patron/cache/rediscache"
	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/errreport"
	"github.com/xraph/patron/media"
	"github.com/xraph/patron/observability"
	"github.com/xraph/patron/realtime"
	"github.com/xraph/patron/store"
	"github.com/xraph/patron/store/memory"
	"github.com/xraph/patron/store/mongo"
	"github.com/xraph/patron/store/postgres"
	"github.com/xraph/patron/subscription"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "patron"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Creator subscriptions, pay-per-view and earnings"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Patron as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	logger     *slog.Logger
	registry   *prometheus.Registry
	engine     *patron.Patron
	store      store.Store
	cache      entitlement.Cache
	blobs      media.BlobStore
	hub        *realtime.Hub
	issuer     *auth.Issuer
	patronOpts []patron.Option

	closers   []func() error
	ownsStore bool
	hubCancel context.CancelFunc
	hubDone   chan struct{}
}

// New creates a new Patron Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
		config:        DefaultConfig(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = prometheus.NewRegistry()
	}
	return e
}

// Engine returns the Patron engine. It is nil until Register is called.
func (e *Extension) Engine() *patron.Patron { return e.engine }

// Hub returns the realtime hub. It is nil until Register is called.
func (e *Extension) Hub() *realtime.Hub { return e.hub }

// Issuer returns the token issuer, or nil when no auth secret is configured.
func (e *Extension) Issuer() *auth.Issuer { return e.issuer }

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration, connects
// the backends, builds the engine and registers it, the hub and the issuer
// in the DI container. Routes are mounted on the app router unless
// disabled. Backends opened before a failure are closed.
func (e *Extension) Register(fapp forge.App) (err error) {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}
	e.loadConfiguration()
	if err := e.config.Validate(); err != nil {
		return fmt.Errorf("patron: invalid config: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		_ = e.closeAll()
		if e.ownsStore {
			_ = e.store.Close()
			e.store = nil
		}
	}()

	if err := e.build(context.Background()); err != nil {
		return err
	}

	c := fapp.Container()
	if err := vessel.Provide(c, func() (*patron.Patron, error) { return e.engine, nil }); err != nil {
		return err
	}
	if err := vessel.Provide(c, func() (*realtime.Hub, error) { return e.hub, nil }); err != nil {
		return err
	}
	if e.issuer != nil {
		if err := vessel.Provide(c, func() (*auth.Issuer, error) { return e.issuer, nil }); err != nil {
			return err
		}
	}

	return e.RegisterRoutes(fapp.Router())
}

func (e *Extension) build(ctx context.Context) (err error) {
	if e.store == nil {
		if e.store, err = e.openStore(ctx); err != nil {
			return err
		}
		e.ownsStore = true
	}
	if e.cache == nil {
		if e.cache, err = e.openCache(ctx); err != nil {
			return err
		}
	}
	if e.blobs == nil {
		e.blobs = e.openBlobs()
	}

	opts := []patron.Option{
		patron.WithLogger(e.logger),
		patron.WithBlobStore(e.blobs),
		patron.WithPeriodPolicy(subscription.FixedPeriod(e.config.Engine.PeriodLength)),
		patron.WithExpirySweep(e.config.Engine.SweepInterval, e.config.Engine.SweepBatchSize),
		patron.WithPluginTimeout(e.config.Engine.PluginTimeout),
	}
	if e.cache != nil {
		opts = append(opts, patron.WithEntitlementCache(e.cache, e.config.Cache.TTL))
	}

	e.hub = realtime.NewHub(e.logger)
	opts = append(opts, patron.WithPlugin(realtime.NewPlugin(e.hub)))

	if e.config.Auth.Secret != "" {
		if e.issuer, err = auth.NewIssuer(e.config.Auth.Secret, e.config.Auth.Issuer, e.config.Auth.TokenTTL); err != nil {
			return fmt.Errorf("patron: auth: %w", err)
		}
	}

	if !e.config.DisableMetrics {
		factory := observability.NewPrometheusFactory(e.registry)
		opts = append(opts, patron.WithPlugin(observability.NewMetricsExtension(factory)))
	}

	if !e.config.DisableAudit {
		opts = append(opts, patron.WithPlugin(audithook.New(e.auditRecorder(), audithook.WithLogger(e.logger))))
	}

	if e.config.Sentry.DSN != "" {
		reporter, err := errreport.Init(e.config.Sentry)
		if err != nil {
			return fmt.Errorf("patron: sentry: %w", err)
		}
		opts = append(opts, patron.WithPlugin(reporter))
	}

	if e.config.Broker.URL != "" {
		pub, err := e.openBroker()
		if err != nil {
			return err
		}
		opts = append(opts, patron.WithPlugin(pub))
	}

	opts = append(opts, e.patronOpts...)
	e.engine = patron.New(e.store, opts...)

	e.Logger().Debug("patron: extension registered",
		forge.F("env", e.config.Env),
		forge.F("store", e.config.Store.Driver),
		forge.F("cache", e.config.Cache.Backend),
		forge.F("media", e.config.Media.Backend),
		forge.F("broker", e.config.Broker.URL != ""),
		forge.F("realtime_auth", e.issuer != nil),
	)
	return nil
}

// Start implements [forge.Extension]. It runs the realtime hub and starts
// the engine.
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("patron: extension not initialized")
	}

	hubCtx, cancel := context.WithCancel(context.Background())
	e.hubCancel = cancel
	e.hubDone = make(chan struct{})
	go func() {
		defer close(e.hubDone)
		e.hub.Run(hubCtx)
	}()

	if err := e.engine.Start(ctx); err != nil {
		e.stopHub()
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension]. It stops the engine, which closes the
// store, then the hub and every other backend.
func (e *Extension) Stop(_ context.Context) error {
	var errs []error
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	e.stopHub()
	errs = append(errs, e.closeAll())
	e.MarkStopped()
	return errors.Join(errs...)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("patron: store not initialized")
	}
	return e.store.Ping(ctx)
}

// RegisterRoutes mounts the health check on r, and unless routes are
// disabled the metrics, media and realtime endpoints. The realtime endpoint
// is mounted under the base path only when an auth secret is configured.
func (e *Extension) RegisterRoutes(r forge.Router) error {
	if err := r.GET("/healthz", e.handleHealth); err != nil {
		return err
	}
	if e.config.DisableRoutes {
		return nil
	}

	// Raw handlers bypass the forge handler chain, so they get their own.
	wrap := chi.Chain(middleware.RequestID, middleware.Recoverer).Handler

	if !e.config.DisableMetrics {
		if err := r.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})); err != nil {
			return err
		}
	}

	if e.issuer != nil {
		ws := path.Join("/", e.config.HTTP.BasePath, "ws")
		if err := r.Handle(ws, wrap(realtime.NewHandler(e.hub, e.issuer, nil))); err != nil {
			return err
		}
	}

	if mem, ok := e.blobs.(*media.MemoryStore); ok {
		serve := http.StripPrefix("/media/", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			serveBlob(mem, w, req)
		}))
		if err := r.Handle("/media", wrap(serve)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extension) handleHealth(w http.ResponseWriter, req *http.Request) {
	if err := e.Health(req.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func serveBlob(mem *media.MemoryStore, w http.ResponseWriter, req *http.Request) {
	key := strings.TrimPrefix(req.URL.Path, "/")
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, contentType, err := mem.Open(key)
	if err != nil {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = io.Copy(w, body)
}

// loadConfiguration binds the app config over the defaults when either key
// is set. Programmatic disable flags always win.
func (e *Extension) loadConfiguration() {
	programmatic := e.config

	fileConfig, ok := e.tryLoadFromConfigFile()
	if !ok {
		return
	}
	fileConfig.DisableRoutes = fileConfig.DisableRoutes || programmatic.DisableRoutes
	fileConfig.DisableMetrics = fileConfig.DisableMetrics || programmatic.DisableMetrics
	fileConfig.DisableAudit = fileConfig.DisableAudit || programmatic.DisableAudit
	e.config = fileConfig
}

func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	for _, key := range []string{"extensions." + ExtensionName, ExtensionName} {
		if !cm.IsSet(key) {
			continue
		}
		cfg := DefaultConfig()
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("patron: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("patron: loaded config from file", forge.F("key", key))
		return cfg, true
	}
	return Config{}, false
}

func (e *Extension) openStore(ctx context.Context) (store.Store, error) {
	switch e.config.Store.Driver {
	case DriverPostgres:
		s, err := postgres.Open(ctx, e.config.Store.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMongo:
		s, err := mongo.Open(ctx, e.config.Store.DSN, e.config.Store.Database)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return memory.New(), nil
	}
}

func (e *Extension) openCache(ctx context.Context) (entitlement.Cache, error) {
	switch e.config.Cache.Backend {
	case CacheRedis:
		c, err := rediscache.Connect(ctx, e.config.Cache.Redis, rediscache.WithPrefix(e.config.Cache.Prefix))
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, c.Close)
		return c, nil
	case CacheNone:
		return nil, nil
	default:
		return entitlement.NewMemoryCache(), nil
	}
}

func (e *Extension) openBlobs() media.BlobStore {
	if e.config.Media.Backend == MediaSupabase {
		return media.NewSupabaseStore(e.config.Media.URL, e.config.Media.ServiceKey, e.config.Media.Bucket)
	}
	return media.NewMemoryStore(e.config.Media.BaseURL)
}

func (e *Extension) openBroker() (*broker.Publisher, error) {
	cfg := e.config.Broker
	conn, err := broker.Connect(cfg.URL, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, conn.Close)

	ch, err := broker.SetupChannel(conn, cfg.Exchange)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, ch.Close)

	return broker.NewPublisher(ch, broker.WithExchange(cfg.Exchange), broker.WithLogger(e.logger)), nil
}

// auditRecorder writes audit events to the structured log.
func (e *Extension) auditRecorder() audithook.Recorder {
	return audithook.RecorderFunc(func(ctx context.Context, ev *audithook.AuditEvent) error {
		e.logger.InfoContext(ctx, "audit",
			"action", ev.Action,
			"resource", ev.Resource,
			"resource_id", ev.ResourceID,
			"actor_id", ev.ActorID,
			"outcome", ev.Outcome,
			"severity", ev.Severity,
		)
		return nil
	})
}

func (e *Extension) stopHub() {
	if e.hubCancel == nil {
		return
	}
	e.hubCancel()
	<-e.hubDone
	e.hubCancel = nil
}

// closeAll closes adapters in reverse order of opening.
func (e *Extension) closeAll() error {
	var errs []error
	for _, c := range slices.Backward(e.closers) {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
