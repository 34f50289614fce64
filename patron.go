package patron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/xraph/patron/auth"
	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/media"
	"github.com/xraph/patron/notification"
	"github.com/xraph/patron/payment"
	"github.com/xraph/patron/plugin"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/settings"
	"github.com/xraph/patron/store"
	"github.com/xraph/patron/subscription"
)

// Patron is the access-control and monetization engine.
type Patron struct {
	store    store.Store
	plugins  *plugin.Registry
	logger   *slog.Logger
	payments payment.Processor
	blobs    media.BlobStore
	cache    entitlement.Cache
	periods  subscription.PeriodPolicy
	clock    func() time.Time
	validate *validator.Validate
	seq      *notification.Sequencer
	flights  singleflight.Group

	// Background workers
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Configuration
	sweepInterval       time.Duration
	sweepBatchSize      int
	entitlementCacheTTL time.Duration
	notificationLimit   int
}

// New creates a new Patron instance.
func New(s store.Store, opts ...Option) *Patron {
	p := &Patron{
		store:               s,
		plugins:             plugin.NewRegistry(),
		logger:              slog.Default(),
		payments:            payment.NewMock(),
		periods:             subscription.FixedPeriod(subscription.DefaultPeriod),
		clock:               time.Now,
		validate:            newValidator(),
		seq:                 notification.NewSequencer(),
		stopChan:            make(chan struct{}),
		sweepInterval:       time.Minute,
		sweepBatchSize:      100,
		entitlementCacheTTL: 30 * time.Second,
		notificationLimit:   50,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Option configures a Patron instance.
type Option func(*Patron)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Patron) {
		p.logger = logger
		p.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(pl plugin.Plugin) Option {
	return func(p *Patron) {
		_ = p.plugins.Register(pl) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPaymentProcessor sets the processor that captures charges. The
// default is an in-memory mock that approves every charge.
func WithPaymentProcessor(pp payment.Processor) Option {
	return func(p *Patron) {
		p.payments = pp
	}
}

// WithBlobStore sets the store for post attachments and profile images.
func WithBlobStore(b media.BlobStore) Option {
	return func(p *Patron) {
		p.blobs = b
	}
}

// WithEntitlementCache caches CanView results. A granted result is never
// cached past the end of the subscription period that granted it.
func WithEntitlementCache(c entitlement.Cache, ttl time.Duration) Option {
	return func(p *Patron) {
		p.cache = c
		if ttl > 0 {
			p.entitlementCacheTTL = ttl
		}
	}
}

// WithPeriodPolicy sets how new subscription periods are computed.
func WithPeriodPolicy(pp subscription.PeriodPolicy) Option {
	return func(p *Patron) {
		p.periods = pp
	}
}

// WithClock overrides the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(p *Patron) {
		p.clock = clock
	}
}

// WithExpirySweep configures the background sweep that expires elapsed
// subscriptions. An interval of zero disables it.
func WithExpirySweep(interval time.Duration, batchSize int) Option {
	return func(p *Patron) {
		p.sweepInterval = interval
		if batchSize > 0 {
			p.sweepBatchSize = batchSize
		}
	}
}

// WithPluginTimeout bounds how long a single hook may run.
func WithPluginTimeout(d time.Duration) Option {
	return func(p *Patron) {
		p.plugins.WithTimeout(d)
	}
}

// Store returns the underlying store.
func (p *Patron) Store() store.Store { return p.store }

// Plugins returns the hook registry.
func (p *Patron) Plugins() *plugin.Registry { return p.plugins }

// Start migrates the store, initializes plugins and begins background workers.
func (p *Patron) Start(ctx context.Context) error {
	if err := p.store.Migrate(ctx); err != nil {
		return err
	}

	p.plugins.EmitInit(ctx, p)

	if p.sweepInterval > 0 {
		p.wg.Add(1)
		go p.expiryWorker(ctx)
	}

	p.logger.Info("patron started",
		"sweep_interval", p.sweepInterval,
		"sweep_batch_size", p.sweepBatchSize,
		"cache_ttl", p.entitlementCacheTTL,
		"plugins", p.plugins.Count(),
	)

	return nil
}

// Stop shuts down Patron and closes the store.
func (p *Patron) Stop() error {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()

	ctx := context.Background()
	p.plugins.EmitShutdown(ctx)

	return p.store.Close()
}

// expiryWorker periodically moves elapsed active subscriptions to expired.
func (p *Patron) expiryWorker(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			n, err := p.ExpireSubscriptions(ctx, p.now())
			if err != nil {
				p.logger.Error("failed to expire subscriptions", "error", err)
				continue
			}
			if n > 0 {
				p.logger.Debug("expired subscriptions",
					"count", n,
					"elapsed_ms", time.Since(start).Milliseconds(),
				)
			}
		}
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (p *Patron) now() time.Time { return p.clock().UTC() }

// caller returns the authenticated profile.
func (p *Patron) caller(ctx context.Context) (id.ProfileID, error) {
	ident, ok := auth.FromContext(ctx)
	if !ok {
		return id.Nil, ErrNotAuthenticated
	}
	return ident.ProfileID, nil
}

// requireRole is the single guard for role-gated operations.
func (p *Patron) requireRole(ctx context.Context, profileID id.ProfileID, role profile.Role) error {
	ok, err := p.store.HasRole(ctx, profileID, role)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s role required", ErrPermissionDenied, role)
	}
	return nil
}

// requireCaller resolves the caller and checks that it holds role.
func (p *Patron) requireCaller(ctx context.Context, role profile.Role) (id.ProfileID, error) {
	caller, err := p.caller(ctx)
	if err != nil {
		return id.Nil, err
	}
	if err := p.requireRole(ctx, caller, role); err != nil {
		return id.Nil, err
	}
	return caller, nil
}

// requireCreator checks that target exists and holds the creator role.
func (p *Patron) requireCreator(ctx context.Context, target id.ProfileID) (*profile.Profile, error) {
	prof, err := p.store.GetProfile(ctx, target)
	if err != nil {
		return nil, err
	}
	ok, err := p.store.HasRole(ctx, target, profile.RoleCreator)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotCreator
	}
	return prof, nil
}

// currentSettings reads the platform settings, falling back to the defaults
// until an admin stores some.
func (p *Patron) currentSettings(ctx context.Context, s settings.Store) (*settings.Settings, error) {
	st, err := s.GetSettings(ctx)
	if err == nil {
		return st, nil
	}
	if IsNotFound(err) {
		return settings.Default(), nil
	}
	return nil, err
}

// fail reports err to the plugins and returns it.
func (p *Patron) fail(ctx context.Context, op string, err error) error {
	p.plugins.EmitOperationFailed(ctx, op, err)
	return err
}

// notify stores a notification after the change it describes has committed.
// Failures are logged; the change itself stands.
func (p *Patron) notify(ctx context.Context, recipient id.ProfileID, typ notification.Type, title, message string, related id.ID) {
	n := &notification.Notification{
		ID:          id.NewNotificationID(),
		RecipientID: recipient,
		Type:        typ,
		Title:       title,
		Message:     message,
		RelatedID:   related,
		CreatedAt:   p.seq.Next("ntf:"+recipient.String(), p.now()),
	}
	if err := p.store.CreateNotification(ctx, n); err != nil {
		p.logger.Warn("failed to create notification",
			"recipient", recipient,
			"type", typ,
			"error", err,
		)
		return
	}
	p.plugins.EmitNotificationCreated(ctx, n)
}

// refund compensates a captured charge whose unit of work did not commit.
func (p *Patron) refund(ctx context.Context, reference string, cause error) {
	if err := p.payments.Refund(ctx, reference); err != nil {
		p.logger.Error("failed to refund charge",
			"reference", reference,
			"cause", cause,
			"error", err,
		)
		p.plugins.EmitOperationFailed(ctx, "refund", err)
		return
	}
	p.logger.Warn("refunded charge", "reference", reference, "cause", cause)
	p.plugins.EmitPaymentRefunded(ctx, reference, cause)
}

// invalidateViewer drops cached entitlement results for a viewer.
func (p *Patron) invalidateViewer(ctx context.Context, viewer id.ProfileID) {
	if p.cache == nil {
		return
	}
	_ = p.cache.InvalidateViewer(ctx, viewer) //nolint:errcheck // best-effort cache invalidation
}
