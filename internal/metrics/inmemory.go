package metrics

import (
	"sync"
	"sync/atomic"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Registrations         uint64
	AuthFailures          uint64
	Credits               uint64
	CreditedTotal         float64
	Debits                uint64
	DebitedTotal          float64
	InsufficientBalance   uint64
	Deliveries            uint64
	StatsSaved            uint64
	DeliveryEventsSent    uint64
	DeliveryEventsDropped uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	registrations         uint64
	authFailures          uint64
	credits               uint64
	debits                uint64
	insufficientBalance   uint64
	deliveries            uint64
	statsSaved            uint64
	deliveryEventsSent    uint64
	deliveryEventsDropped uint64

	mu            sync.Mutex
	creditedTotal float64
	debitedTotal  float64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	credited, debited := m.creditedTotal, m.debitedTotal
	m.mu.Unlock()

	return Snapshot{
		Registrations:         atomic.LoadUint64(&m.registrations),
		AuthFailures:          atomic.LoadUint64(&m.authFailures),
		Credits:               atomic.LoadUint64(&m.credits),
		CreditedTotal:         credited,
		Debits:                atomic.LoadUint64(&m.debits),
		DebitedTotal:          debited,
		InsufficientBalance:   atomic.LoadUint64(&m.insufficientBalance),
		Deliveries:            atomic.LoadUint64(&m.deliveries),
		StatsSaved:            atomic.LoadUint64(&m.statsSaved),
		DeliveryEventsSent:    atomic.LoadUint64(&m.deliveryEventsSent),
		DeliveryEventsDropped: atomic.LoadUint64(&m.deliveryEventsDropped),
	}
}

// IncRegistration increments the registration counter.
func (m *InMemoryRecorder) IncRegistration() {
	atomic.AddUint64(&m.registrations, 1)
}

// IncAuthFailure increments the auth failure counter.
func (m *InMemoryRecorder) IncAuthFailure(reason string) {
	atomic.AddUint64(&m.authFailures, 1)
}

// ObserveCredit records a credit.
func (m *InMemoryRecorder) ObserveCredit(amount float64) {
	atomic.AddUint64(&m.credits, 1)
	m.mu.Lock()
	m.creditedTotal += amount
	m.mu.Unlock()
}

// ObserveDebit records a debit.
func (m *InMemoryRecorder) ObserveDebit(amount float64) {
	atomic.AddUint64(&m.debits, 1)
	m.mu.Lock()
	m.debitedTotal += amount
	m.mu.Unlock()
}

// IncInsufficientBalance increments the rejected spend counter.
func (m *InMemoryRecorder) IncInsufficientBalance() {
	atomic.AddUint64(&m.insufficientBalance, 1)
}

// IncDelivery increments the delivery counter.
func (m *InMemoryRecorder) IncDelivery() {
	atomic.AddUint64(&m.deliveries, 1)
}

// IncStatsSaved increments the stats save counter.
func (m *InMemoryRecorder) IncStatsSaved() {
	atomic.AddUint64(&m.statsSaved, 1)
}

// IncDeliveryEventPublished increments sent or dropped event counters.
func (m *InMemoryRecorder) IncDeliveryEventPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.deliveryEventsSent, 1)
		return
	}
	atomic.AddUint64(&m.deliveryEventsDropped, 1)
}
