package fleet

import (
	"sync"
	"sync/atomic"
	"time"

	"fleetd/pkg/types"
)

// slot is one manageable worker. All fields are guarded by mu; status is
// additionally mirrored in st so the affinity allocator's lifecycle check can
// read it without taking the lock the caller already holds.
type slot struct {
	mu sync.Mutex
	st atomic.Value // Status

	id        int
	port      int
	voicePort int
	status    Status
	pid       int
	startedAt time.Time
	idleSince time.Time
	connected int
	cores     []int
	proxy     bool
	stopping  bool // an explicit stop owns the slot; poll results are ignored
}

func newSlot(id, basePort, voiceOffset int) *slot {
	s := &slot{
		id:        id,
		port:      basePort + id - 1,
		voicePort: basePort + id - 1 + voiceOffset,
		status:    StatusOffline,
	}
	s.st.Store(StatusOffline)
	return s
}

// setStatus must be called with s.mu held.
func (s *slot) setStatus(st Status) {
	s.status = st
	s.st.Store(st)
}

// loadStatus is the lock-free status read used outside s.mu.
func (s *slot) loadStatus() Status {
	return s.st.Load().(Status)
}

// snapshotLocked must be called with s.mu held.
func (s *slot) snapshotLocked() types.SlotSnapshot {
	snap := types.SlotSnapshot{
		ID:               s.id,
		Port:             s.port,
		VoicePort:        s.voicePort,
		Status:           string(s.status),
		PID:              s.pid,
		ConnectedClients: s.connected,
		ProxyAttached:    s.proxy,
	}
	if !s.startedAt.IsZero() {
		snap.StartedAt = s.startedAt.Unix()
	}
	if len(s.cores) > 0 {
		snap.AssignedCores = append([]int(nil), s.cores...)
	}
	return snap
}

func (s *slot) snapshot() types.SlotSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}
