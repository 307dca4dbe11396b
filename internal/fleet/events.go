package fleet

// Event names emitted by the orchestrator. One event is published for every
// committed state transition; operational events (core assignment, drain
// progress) are published in addition, never instead.
const (
	EventSlotAdded        = "slot_added"
	EventSlotRemoved      = "slot_removed"
	EventSpawnStart       = "spawn_start"
	EventSpawnFailed      = "spawn_failed"
	EventSpawnReady       = "spawn_ready"
	EventStateChange      = "state_change"
	EventSlotCrashed      = "slot_crashed"
	EventSlotUnknown      = "slot_unknown"
	EventSlotReset        = "slot_reset"
	EventStopDrainStart   = "stop_drain_start"
	EventStopDrainTimeout = "stop_drain_timeout"
	EventStopForced       = "stop_forced"
	EventStopDone         = "stop_done"
	EventCoreAssign       = "core_assign"
	EventCoreRelease      = "core_release"
	EventScaleDone        = "scale_done"
)

// Event represents one orchestrator lifecycle event.
// Minimal and stable: name + slot id and optional fields via key/values.
type Event struct {
	Name   string
	SlotID int
	Fields map[string]any
}

// EventPublisher receives events from the orchestrator. Implementations must
// be lightweight and non-blocking; Publish must not panic. Delivery is
// at-least-once; ordering is guaranteed per slot, not across slots.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
