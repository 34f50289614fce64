// Package earnings aggregates a creator's ledger into totals.
package earnings

import (
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/types"
)

// DefaultCurrency is used for an empty summary.
const DefaultCurrency = "usd"

// Breakdown holds gross, fee and net sums for a set of transactions.
type Breakdown struct {
	Gross types.Money `json:"gross"`
	Fee   types.Money `json:"fee"`
	Net   types.Money `json:"net"`
	Count int         `json:"count"`
}

func newBreakdown(currency string) Breakdown {
	return Breakdown{Gross: types.Zero(currency), Fee: types.Zero(currency), Net: types.Zero(currency)}
}

func (b *Breakdown) add(t *ledger.Transaction) {
	b.Gross = b.Gross.Add(t.Gross)
	b.Fee = b.Fee.Add(t.Fee)
	b.Net = b.Net.Add(t.Net)
	b.Count++
}

// Summary is a creator's earnings. Total, ByType and Monthly are in the
// currency of the creator's earliest listed transaction; ByCurrency totals
// every currency seen, including that one.
type Summary struct {
	CreatorID       id.ProfileID              `json:"creator_id"`
	Total           Breakdown                 `json:"total"`
	ByType          map[ledger.Type]Breakdown `json:"by_type"`
	Monthly         Breakdown                 `json:"monthly"`
	ByCurrency      map[string]Breakdown      `json:"by_currency"`
	SubscriberCount int64                     `json:"subscriber_count"`
	AsOf            time.Time                 `json:"as_of"`
}

// MonthStart returns the first instant of t's calendar month in t's location.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// Summarize totals the creator's transactions in one pass. Transactions of
// other creators are ignored. Monthly covers transactions created at or after
// the start of asOf's calendar month. Every type appears in ByType, with zero
// sums when absent. Transactions in another currency only count towards
// ByCurrency.
func Summarize(creator id.ProfileID, txns []*ledger.Transaction, subscriberCount int64, asOf time.Time) Summary {
	currency := DefaultCurrency
	for _, t := range txns {
		if t.CreatorID.Equal(creator) {
			currency = t.Gross.Currency
			break
		}
	}

	s := Summary{
		CreatorID:       creator,
		Total:           newBreakdown(currency),
		ByType:          make(map[ledger.Type]Breakdown, len(ledger.Types)),
		Monthly:         newBreakdown(currency),
		ByCurrency:      make(map[string]Breakdown, 1),
		SubscriberCount: subscriberCount,
		AsOf:            asOf,
	}
	for _, typ := range ledger.Types {
		s.ByType[typ] = newBreakdown(currency)
	}

	monthStart := MonthStart(asOf)
	for _, t := range txns {
		if !t.CreatorID.Equal(creator) {
			continue
		}
		cb, ok := s.ByCurrency[t.Gross.Currency]
		if !ok {
			cb = newBreakdown(t.Gross.Currency)
		}
		cb.add(t)
		s.ByCurrency[t.Gross.Currency] = cb

		if t.Gross.Currency != currency {
			continue
		}
		s.Total.add(t)

		b := s.ByType[t.Type]
		if b.Gross.Currency == "" {
			b = newBreakdown(currency)
		}
		b.add(t)
		s.ByType[t.Type] = b

		if !t.CreatedAt.Before(monthStart) {
			s.Monthly.add(t)
		}
	}

	return s
}
