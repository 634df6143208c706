package metrics

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncRegistration is a no-op.
func (n *NoopRecorder) IncRegistration() {}

// IncAuthFailure is a no-op.
func (n *NoopRecorder) IncAuthFailure(reason string) {}

// ObserveCredit is a no-op.
func (n *NoopRecorder) ObserveCredit(amount float64) {}

// ObserveDebit is a no-op.
func (n *NoopRecorder) ObserveDebit(amount float64) {}

// IncInsufficientBalance is a no-op.
func (n *NoopRecorder) IncInsufficientBalance() {}

// IncDelivery is a no-op.
func (n *NoopRecorder) IncDelivery() {}

// IncStatsSaved is a no-op.
func (n *NoopRecorder) IncStatsSaved() {}

// IncDeliveryEventPublished is a no-op.
func (n *NoopRecorder) IncDeliveryEventPublished(status string) {}
