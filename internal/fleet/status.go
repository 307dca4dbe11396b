package fleet

// Status is the lifecycle state of a slot. Closed set: callers branch on the
// predicates below instead of comparing strings ad hoc.
type Status string

const (
	StatusOffline  Status = "offline"
	StatusStarting Status = "starting"
	StatusReady    Status = "ready"
	StatusIdle     Status = "idle"
	StatusOccupied Status = "occupied"
	StatusCrashed  Status = "crashed"
	StatusUnknown  Status = "unknown"
)

// IsLive reports whether the slot counts toward the running fleet. Unknown is
// deliberately excluded: a slot whose probe cannot complete is neither stopped
// nor counted as serving until a later probe resolves it.
func (s Status) IsLive() bool {
	switch s {
	case StatusStarting, StatusReady, StatusIdle, StatusOccupied:
		return true
	}
	return false
}

// HasProcess reports whether a worker process may exist in this state.
func (s Status) HasProcess() bool {
	return s != StatusOffline && s != StatusCrashed
}

// CoresMutable reports whether AssignedCores may change in this state. Core
// assignments are never touched while a process may be serving clients.
func (s Status) CoresMutable() bool {
	return s == StatusOffline || s == StatusStarting
}
