package metrics

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncUserCreated is a no-op.
func (n *NoopRecorder) IncUserCreated() {}

// IncUserUpdated is a no-op.
func (n *NoopRecorder) IncUserUpdated() {}

// IncUserDeleted is a no-op.
func (n *NoopRecorder) IncUserDeleted() {}

// IncUserActivated is a no-op.
func (n *NoopRecorder) IncUserActivated() {}

// IncUserDeactivated is a no-op.
func (n *NoopRecorder) IncUserDeactivated() {}

// IncUserRejected is a no-op.
func (n *NoopRecorder) IncUserRejected(reason string) {}

// IncUserEventPublished is a no-op.
func (n *NoopRecorder) IncUserEventPublished(status string) {}
