package payment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Mock is an in-memory Processor. References look like "mock_<n>".
type Mock struct {
	mu       sync.Mutex
	seq      atomic.Int64
	byKey    map[string]*Receipt
	byRef    map[string]*Receipt
	refunded map[string]bool
	charges  []Charge

	// Decide may return an error to decline a charge.
	Decide func(c Charge) error
}

// NewMock creates a Mock that approves every positive charge.
func NewMock() *Mock {
	return &Mock{
		byKey:    make(map[string]*Receipt),
		byRef:    make(map[string]*Receipt),
		refunded: make(map[string]bool),
	}
}

func (m *Mock) Charge(ctx context.Context, c Charge) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c.IdempotencyKey != "" {
		if r, ok := m.byKey[c.IdempotencyKey]; ok && !m.refunded[r.Reference] {
			cp := *r
			return &cp, nil
		}
	}
	if m.Decide != nil {
		if err := m.Decide(c); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDeclined, err)
		}
	}

	r := &Receipt{
		Reference:  fmt.Sprintf("mock_%d", m.seq.Add(1)),
		Amount:     c.Amount,
		CapturedAt: time.Now().UTC(),
	}
	m.byRef[r.Reference] = r
	if c.IdempotencyKey != "" {
		m.byKey[c.IdempotencyKey] = r
	}
	m.charges = append(m.charges, c)

	cp := *r
	return &cp, nil
}

func (m *Mock) Refund(_ context.Context, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byRef[reference]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCharge, reference)
	}
	if m.refunded[reference] {
		return fmt.Errorf("%w: %s", ErrAlreadyRefunded, reference)
	}
	m.refunded[reference] = true
	return nil
}

// Charges returns the captured charges in order.
func (m *Mock) Charges() []Charge {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Charge(nil), m.charges...)
}

// Refunded reports whether reference was refunded.
func (m *Mock) Refunded(reference string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refunded[reference]
}
