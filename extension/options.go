package extension

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/patron"
	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/media"
	"github.com/xraph/patron/plugin"
	"github.com/xraph/patron/store"
)

// Option configures the Extension.
type Option func(*Extension)

// WithConfig replaces the configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithLogger sets the logger shared by the engine and adapters.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) { e.logger = logger }
}

// WithRegistry sets the Prometheus registry metrics are registered on and
// served from.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(e *Extension) { e.registry = reg }
}

// WithStore sets the store, overriding store.driver.
func WithStore(s store.Store) Option {
	return func(e *Extension) { e.store = s }
}

// WithEntitlementCache sets the cache, overriding cache.backend.
func WithEntitlementCache(c entitlement.Cache) Option {
	return func(e *Extension) { e.cache = c }
}

// WithBlobStore sets the blob store, overriding media.backend.
func WithBlobStore(b media.BlobStore) Option {
	return func(e *Extension) { e.blobs = b }
}

// WithPatronOption passes a patron.Option through to the engine. Pass-through
// options apply after the ones derived from Config.
func WithPatronOption(opt patron.Option) Option {
	return func(e *Extension) {
		e.patronOpts = append(e.patronOpts, opt)
	}
}

// WithPlugin registers a Patron plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.patronOpts = append(e.patronOpts, patron.WithPlugin(p))
	}
}

// WithDisableRoutes serves only the health check.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMetrics skips the Prometheus plugin.
func WithDisableMetrics() Option {
	return func(e *Extension) { e.config.DisableMetrics = true }
}
