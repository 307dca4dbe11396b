package fleet

import "context"

// SignalKind selects how a worker process is asked to exit.
type SignalKind int

const (
	// SignalTerm requests a graceful exit (SIGTERM on unix).
	SignalTerm SignalKind = iota
	// SignalKill forcibly terminates the process.
	SignalKill
)

// Launcher starts and stops worker processes. The orchestrator never touches
// OS affinity APIs itself: it hands the launcher a logical core set and trusts
// it to apply the pinning before or at spawn.
type Launcher interface {
	// Spawn starts the worker for a slot and returns its pid. The context
	// bounds the launch call only; a successful spawn outlives it.
	Spawn(ctx context.Context, slotID, port int, cores []int) (int, error)
	// Signal delivers a termination request to a previously spawned pid.
	Signal(pid int, kind SignalKind) error
	// IsAlive reports whether the pid still refers to a running process.
	IsAlive(pid int) bool
}

// ClientCounter supplies connected-player counts for live slots, typically by
// querying the worker's status port. A failed count is a probe failure and
// resolves the slot to unknown rather than crashed.
type ClientCounter interface {
	ConnectedClients(slotID int) (int, error)
}
