package types

// ScaleRequest asks the orchestrator to reconcile the fleet to a target count.
type ScaleRequest struct {
	// Desired number of live slots.
	// example: 4
	Target int `json:"target" example:"4"`
}

// ScaleFailure describes one slot the reconciliation could not start or stop.
type ScaleFailure struct {
	// Slot the failure applies to.
	// example: 5
	SlotID int `json:"slot_id" example:"5"`
	// Operation that failed: start or stop.
	// example: start
	Op string `json:"op" example:"start"`
	// Underlying cause, e.g. core conflict vs. launch failure.
	// example: spawn failed: exec: no such file
	Error string `json:"error" example:"spawn failed: exec: no such file"`
}

// ScaleResult reports a best-effort reconciliation outcome.
type ScaleResult struct {
	// Live slots before the call.
	// example: 2
	PreviousCount int `json:"previous_count" example:"2"`
	// Live slots after the call.
	// example: 4
	CurrentCount int `json:"current_count" example:"4"`
	// Slots successfully started by this call.
	// example: 2
	Started int `json:"started" example:"2"`
	// Slots successfully stopped by this call.
	// example: 0
	Stopped int `json:"stopped" example:"0"`
	// Per-slot failures; the call still reports its partial counts.
	Failures []ScaleFailure `json:"failures,omitempty"`
}

// AddServerResponse returns the identity of a freshly minted slot.
type AddServerResponse struct {
	// example: 7
	ID int `json:"id" example:"7"`
}

// AssignmentsResponse wraps the affinity audit log for GET /affinity/assignments.
type AssignmentsResponse struct {
	Assignments []AssignmentRecord `json:"assignments"`
}

// SlotsResponse wraps the slot list for GET /slots.
type SlotsResponse struct {
	Slots []SlotSnapshot `json:"slots"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: slot not found: 9
	Error string `json:"error" example:"slot not found: 9"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}
