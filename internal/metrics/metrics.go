// Package metrics provides lightweight hooks for instrumentation.
package metrics

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	IncUserCreated()
	IncUserUpdated()
	IncUserDeleted()
	IncUserActivated()
	IncUserDeactivated()
	// IncUserRejected counts writes refused by a business rule.
	// reason: "duplicate_username", "duplicate_email", "not_found" or "invalid".
	IncUserRejected(reason string)
	// IncUserEventPublished counts lifecycle events handed to the event stream.
	// status: "success" or "dropped".
	IncUserEventPublished(status string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
