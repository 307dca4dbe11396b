package affinity

import "fmt"

// coreConflictError signals that a requested core is already held by a live
// slot, or is part of the reserved set.
type coreConflictError struct {
	slotID int
	core   int
	heldBy int // -1 when the core is reserved
}

func (e coreConflictError) Error() string {
	if e.heldBy < 0 {
		return fmt.Sprintf("core conflict: slot %d requested reserved core %d", e.slotID, e.core)
	}
	return fmt.Sprintf("core conflict: slot %d requested core %d held by slot %d", e.slotID, e.core, e.heldBy)
}

// IsCoreConflict reports whether err indicates a core double-assignment attempt.
func IsCoreConflict(err error) bool {
	_, ok := err.(coreConflictError)
	return ok
}

// invalidStateError signals an assignment attempt against a slot whose
// lifecycle state forbids core mutation.
type invalidStateError struct{ slotID int }

func (e invalidStateError) Error() string {
	return fmt.Sprintf("invalid state: slot %d may not change cores while live", e.slotID)
}

// IsInvalidState reports whether err indicates an illegal-state assignment.
func IsInvalidState(err error) bool {
	_, ok := err.(invalidStateError)
	return ok
}
