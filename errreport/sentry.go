// Package errreport sends unexpected engine failures to Sentry.
//
// Caller mistakes such as validation, not-found or permission errors are
// not reported; store, payment and plugin failures are.
package errreport

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/xraph/patron"
	"github.com/xraph/patron/auth"
	"github.com/xraph/patron/payment"
	"github.com/xraph/patron/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin            = (*Reporter)(nil)
	_ plugin.OnOperationFailed = (*Reporter)(nil)
	_ plugin.OnPaymentRefunded = (*Reporter)(nil)
	_ plugin.OnShutdown        = (*Reporter)(nil)
)

// Config holds the Sentry client settings.
type Config struct {
	DSN              string  `mapstructure:"dsn" yaml:"dsn" env:"SENTRY_DSN"`
	Environment      string  `mapstructure:"environment" yaml:"environment" env:"APP_ENV"`
	Release          string  `mapstructure:"release" yaml:"release"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate" yaml:"traces_sample_rate" env-default:"0.2"`
}

type Reporter struct {
	hub          *sentry.Hub
	flushTimeout time.Duration
}

// New creates a Reporter on hub. A nil hub uses a clone of the current hub.
func New(hub *sentry.Hub) *Reporter {
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	return &Reporter{hub: hub, flushTimeout: 2 * time.Second}
}

// Init creates a Sentry client from cfg and a Reporter bound to it.
func Init(cfg Config) (*Reporter, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		EnableTracing:    cfg.TracesSampleRate > 0,
		TracesSampleRate: cfg.TracesSampleRate,
	})
	if err != nil {
		return nil, err
	}
	return New(sentry.NewHub(client, sentry.NewScope())), nil
}

func (r *Reporter) Name() string { return "errreport" }

// Expected reports whether err is a caller error that is not worth a report.
func Expected(err error) bool {
	return patron.IsNotFound(err) ||
		patron.IsAlreadyExists(err) ||
		errors.Is(err, patron.ErrInvalidInput) ||
		errors.Is(err, patron.ErrInvalidState) ||
		errors.Is(err, patron.ErrNotAuthenticated) ||
		errors.Is(err, patron.ErrPermissionDenied) ||
		errors.Is(err, payment.ErrDeclined) ||
		errors.Is(err, context.Canceled)
}

func (r *Reporter) OnOperationFailed(ctx context.Context, op string, err error) error {
	if Expected(err) {
		return nil
	}
	hub := r.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("operation", op)
		scope.SetTag("retryable", boolTag(patron.IsRetryable(err)))
		if ident, ok := auth.FromContext(ctx); ok {
			scope.SetUser(sentry.User{ID: ident.ProfileID.String()})
		}
		hub.CaptureException(err)
	})
	return nil
}

func (r *Reporter) OnPaymentRefunded(ctx context.Context, reference string, cause error) error {
	hub := r.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		scope.SetTag("payment_ref", reference)
		if ident, ok := auth.FromContext(ctx); ok {
			scope.SetUser(sentry.User{ID: ident.ProfileID.String()})
		}
		scope.SetContext("refund", sentry.Context{"cause": errString(cause)})
		hub.CaptureMessage("payment refunded after recording failed")
	})
	return nil
}

// OnShutdown flushes buffered events.
func (r *Reporter) OnShutdown(context.Context) error {
	r.hub.Flush(r.flushTimeout)
	return nil
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
