package fleet

import "fmt"

// slotNotFoundError signals an operation against an unknown slot id.
type slotNotFoundError struct{ id int }

func (e slotNotFoundError) Error() string { return fmt.Sprintf("slot not found: %d", e.id) }

// ErrSlotNotFound constructs a slotNotFoundError.
func ErrSlotNotFound(id int) error { return slotNotFoundError{id: id} }

// IsSlotNotFound reports whether err indicates a missing slot id.
func IsSlotNotFound(err error) bool {
	_, ok := err.(slotNotFoundError)
	return ok
}

// invalidTransitionError signals an operation that is not legal from the
// slot's current state (e.g., starting a crashed slot without a reset).
type invalidTransitionError struct {
	id   int
	from Status
	op   string
}

func (e invalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state: cannot %s slot %d while %s", e.op, e.id, e.from)
}

// ErrInvalidTransition constructs an invalidTransitionError.
func ErrInvalidTransition(id int, from Status, op string) error {
	return invalidTransitionError{id: id, from: from, op: op}
}

// IsInvalidTransition reports whether err indicates an illegal lifecycle operation.
func IsInvalidTransition(err error) bool {
	_, ok := err.(invalidTransitionError)
	return ok
}

// launchFailedError signals that the external spawn call failed or timed out.
type launchFailedError struct {
	id  int
	err error
}

func (e launchFailedError) Error() string {
	return fmt.Sprintf("launch failed for slot %d: %v", e.id, e.err)
}

func (e launchFailedError) Unwrap() error { return e.err }

// ErrLaunchFailed constructs a launchFailedError wrapping the spawn error.
func ErrLaunchFailed(id int, err error) error { return launchFailedError{id: id, err: err} }

// IsLaunchFailed reports whether err indicates a failed or timed-out spawn.
func IsLaunchFailed(err error) bool {
	_, ok := err.(launchFailedError)
	return ok
}

// stopFailedError signals that a worker process outlived both the graceful
// signal and the forced kill.
type stopFailedError struct {
	id  int
	pid int
}

func (e stopFailedError) Error() string {
	return fmt.Sprintf("stop failed for slot %d: pid %d still alive after kill", e.id, e.pid)
}

// IsStopFailed reports whether err indicates an unresponsive worker process.
func IsStopFailed(err error) bool {
	_, ok := err.(stopFailedError)
	return ok
}
