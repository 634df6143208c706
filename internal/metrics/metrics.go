// Package metrics provides lightweight hooks for instrumentation.
package metrics

// Recorder captures ledger events.
type Recorder interface {
	// Account metrics
	IncRegistration()
	IncAuthFailure(reason string)

	// Balance metrics
	ObserveCredit(amount float64)
	ObserveDebit(amount float64)
	IncInsufficientBalance()

	// Log metrics
	IncDelivery()
	IncStatsSaved()
	IncDeliveryEventPublished(status string) // status: "success" or "dropped"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
