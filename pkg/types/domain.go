package types

// SlotSnapshot is a read-only projection of a single fleet slot.
type SlotSnapshot struct {
	// Stable slot identity, assigned once and never reused while the slot exists.
	// example: 3
	ID int `json:"id" example:"3"`
	// Game traffic port, derived from the slot id and the configured base port.
	// example: 27018
	Port int `json:"port" example:"27018"`
	// Voice traffic port for the same slot.
	// example: 27518
	VoicePort int `json:"voice_port" example:"27518"`
	// Lifecycle status: offline, starting, ready, idle, occupied, crashed, unknown.
	// example: idle
	Status string `json:"status" example:"idle"`
	// OS process id of the worker, 0 when no process exists.
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// Unix seconds of the last transition into starting, 0 when offline.
	// example: 1700000000
	StartedAt int64 `json:"started_at_unix,omitempty" example:"1700000000"`
	// Players currently connected to the worker.
	// example: 8
	ConnectedClients int `json:"connected_clients" example:"8"`
	// Logical CPU cores pinned to the worker, empty when none assigned.
	AssignedCores []int `json:"assigned_cores,omitempty"`
	// Whether the external proxy layer reports an attachment for this slot.
	// example: true
	ProxyAttached bool `json:"proxy_attached" example:"true"`
}

// FleetStatus summarizes the whole fleet for GET /fleet.
type FleetStatus struct {
	// Slots currently live (starting, ready, idle or occupied).
	// example: 4
	LiveCount int `json:"live_count" example:"4"`
	// Total slots known to the orchestrator, including offline and crashed ones.
	// example: 6
	TotalSlots int `json:"total_slots" example:"6"`
	// Sum of connected players across all slots.
	// example: 31
	ConnectedClients int `json:"connected_clients" example:"31"`
	// Slot counts keyed by status string.
	StatusCounts map[string]int `json:"status_counts"`
	// Per-slot snapshots, ordered by ascending id.
	Slots []SlotSnapshot `json:"slots"`
}

// AssignmentRecord is one append-only affinity audit entry.
type AssignmentRecord struct {
	// Slot that received the cores.
	// example: 2
	SlotID int `json:"slot_id" example:"2"`
	// Worker process id; 0 when the entry was recorded before the spawn completed.
	// example: 12345
	ProcessID int `json:"process_id,omitempty" example:"12345"`
	// Affinity bitmask; bit i set means logical core i is assigned.
	// example: 28
	AffinityMask uint64 `json:"affinity_mask" example:"28"`
	// Unix seconds when the entry was recorded.
	// example: 1700000000
	AssignedAt int64 `json:"assigned_at_unix" example:"1700000000"`
}

// RecommendationResponse mirrors the allocator's sizing advice.
type RecommendationResponse struct {
	// example: 16
	TotalCores int `json:"total_cores" example:"16"`
	// example: 2
	ReservedCores int `json:"reserved_cores" example:"2"`
	// example: 14
	AvailableCores int `json:"available_cores" example:"14"`
	// example: 3
	RecommendedCoresPerServer int `json:"recommended_cores_per_server" example:"3"`
	// example: 4
	MaxServersRecommended int `json:"max_servers_recommended" example:"4"`
}
