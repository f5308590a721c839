package metrics

import (
	"sync/atomic"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersCreated     uint64
	UsersUpdated     uint64
	UsersDeleted     uint64
	UsersActivated   uint64
	UsersDeactivated uint64

	RejectedDuplicateUsername uint64
	RejectedDuplicateEmail    uint64
	RejectedNotFound          uint64
	RejectedInvalid           uint64

	EventsPublished uint64
	EventsDropped   uint64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics endpoint.
type InMemoryRecorder struct {
	usersCreated     uint64
	usersUpdated     uint64
	usersDeleted     uint64
	usersActivated   uint64
	usersDeactivated uint64

	rejectedDuplicateUsername uint64
	rejectedDuplicateEmail    uint64
	rejectedNotFound          uint64
	rejectedInvalid           uint64

	eventsPublished uint64
	eventsDropped   uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersCreated:              atomic.LoadUint64(&m.usersCreated),
		UsersUpdated:              atomic.LoadUint64(&m.usersUpdated),
		UsersDeleted:              atomic.LoadUint64(&m.usersDeleted),
		UsersActivated:            atomic.LoadUint64(&m.usersActivated),
		UsersDeactivated:          atomic.LoadUint64(&m.usersDeactivated),
		RejectedDuplicateUsername: atomic.LoadUint64(&m.rejectedDuplicateUsername),
		RejectedDuplicateEmail:    atomic.LoadUint64(&m.rejectedDuplicateEmail),
		RejectedNotFound:          atomic.LoadUint64(&m.rejectedNotFound),
		RejectedInvalid:           atomic.LoadUint64(&m.rejectedInvalid),
		EventsPublished:           atomic.LoadUint64(&m.eventsPublished),
		EventsDropped:             atomic.LoadUint64(&m.eventsDropped),
	}
}

// IncUserCreated increments the user created counter.
func (m *InMemoryRecorder) IncUserCreated() {
	atomic.AddUint64(&m.usersCreated, 1)
}

// IncUserUpdated increments the user updated counter.
func (m *InMemoryRecorder) IncUserUpdated() {
	atomic.AddUint64(&m.usersUpdated, 1)
}

// IncUserDeleted increments the user deleted counter.
func (m *InMemoryRecorder) IncUserDeleted() {
	atomic.AddUint64(&m.usersDeleted, 1)
}

// IncUserActivated increments the user activated counter.
func (m *InMemoryRecorder) IncUserActivated() {
	atomic.AddUint64(&m.usersActivated, 1)
}

// IncUserDeactivated increments the user deactivated counter.
func (m *InMemoryRecorder) IncUserDeactivated() {
	atomic.AddUint64(&m.usersDeactivated, 1)
}

// IncUserRejected increments the rejection counter for reason.
// Unknown reasons are ignored.
func (m *InMemoryRecorder) IncUserRejected(reason string) {
	switch reason {
	case "duplicate_username":
		atomic.AddUint64(&m.rejectedDuplicateUsername, 1)
	case "duplicate_email":
		atomic.AddUint64(&m.rejectedDuplicateEmail, 1)
	case "not_found":
		atomic.AddUint64(&m.rejectedNotFound, 1)
	case "invalid":
		atomic.AddUint64(&m.rejectedInvalid, 1)
	}
}

// IncUserEventPublished increments the published or dropped event counter.
func (m *InMemoryRecorder) IncUserEventPublished(status string) {
	switch status {
	case "success":
		atomic.AddUint64(&m.eventsPublished, 1)
	case "dropped":
		atomic.AddUint64(&m.eventsDropped, 1)
	}
}
