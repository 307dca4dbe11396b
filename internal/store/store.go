package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// SlotRecord is the persisted shape of one fleet slot, written on every
// committed state transition so a restarted daemon can rebuild its registry.
type SlotRecord struct {
	ID            int       `json:"id"`
	Port          int       `json:"port"`
	VoicePort     int       `json:"voice_port"`
	Status        string    `json:"status"`
	PID           int       `json:"pid,omitempty"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	AssignedCores []int     `json:"assigned_cores,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AssignmentRecord mirrors one append-only affinity audit entry.
type AssignmentRecord struct {
	SlotID       int       `json:"slot_id"`
	ProcessID    int       `json:"process_id,omitempty"`
	AffinityMask uint64    `json:"affinity_mask"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// Store persists slot records and the affinity audit log. Kept minimal so
// implementations can be swapped; the orchestrator tolerates a nil Store and
// runs purely in memory.
type Store interface {
	SaveSlot(rec SlotRecord) error
	DeleteSlot(id int) error
	ListSlots() ([]SlotRecord, error)
	AppendAssignment(rec AssignmentRecord) error
	ListAssignments() ([]AssignmentRecord, error)
	Close() error
}
