// Package patron is the access-control and monetization core of a
// subscription-content platform.
//
// Creators publish posts that are public, subscriber-only or pay-per-view.
// Fans gain access through recurring subscriptions and one-time unlocks, and
// can send tips. Every payment is written to an append-only ledger that
// splits the gross amount into the platform fee and the creator's net, at
// the fee rate in force when it was recorded.
//
// Patron is a library, not a service. It provides:
//
//   - A pure entitlement model deciding who may see a post
//   - Subscription lifecycle with period containment and expiry sweeps
//   - Idempotent pay-per-view purchases, deduplicated in and across processes
//   - Immutable ledger transactions and earnings summaries
//   - Notifications and direct messages with per-key ordering
//   - Role-gated admin operations: roles, reports and platform settings
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/patron"
//	    "github.com/xraph/patron/store/postgres"
//	)
//
//	s, err := postgres.Open(ctx, databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p := patron.New(s,
//	    patron.WithPaymentProcessor(processor),
//	    patron.WithBlobStore(blobs),
//	)
//	if err := p.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Stop()
//
// # Identity
//
// Operations act on behalf of the profile carried by the context:
//
//	ctx = auth.WithProfile(ctx, fanID)
//	sub, created, err := p.Subscribe(ctx, creatorID)
//
// Anonymous contexts may only read public posts.
//
// # Money
//
// Amounts are integers in ten-thousandths of the major unit, so a 20% fee
// on $9.99 is exactly $1.998. Fees round half away from zero and
// net + fee always equals gross.
//
// # Fan-out
//
// Every state change is reported to plugins after it commits. The realtime
// package pushes refetch events to connected websockets and the broker
// package publishes ledger and entitlement events to AMQP.
//
// # Running a server
//
// The extension package builds an engine and its adapters from a YAML or
// environment config; cmd/patrond serves it over HTTP.
package patron
