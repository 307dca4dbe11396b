package fleet

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fleetd/internal/store"
	"fleetd/pkg/types"
)

type spawnCall struct {
	slotID int
	port   int
	cores  []int
}

// fakeLauncher simulates worker processes without exec'ing anything.
type fakeLauncher struct {
	mu         sync.Mutex
	nextPID    int
	alive      map[int]bool
	spawnErr   map[int]error // keyed by slot id
	ignoreTerm map[int]bool  // pids that ignore the graceful signal
	spawns     []spawnCall
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{
		nextPID:    1000,
		alive:      make(map[int]bool),
		spawnErr:   make(map[int]error),
		ignoreTerm: make(map[int]bool),
	}
}

func (l *fakeLauncher) Spawn(ctx context.Context, slotID, port int, cores []int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.spawnErr[slotID]; err != nil {
		return 0, err
	}
	l.nextPID++
	pid := l.nextPID
	l.alive[pid] = true
	l.spawns = append(l.spawns, spawnCall{slotID: slotID, port: port, cores: append([]int(nil), cores...)})
	return pid, nil
}

func (l *fakeLauncher) Signal(pid int, kind SignalKind) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if kind == SignalKill || !l.ignoreTerm[pid] {
		delete(l.alive, pid)
	}
	return nil
}

func (l *fakeLauncher) IsAlive(pid int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.alive[pid]
}

func (l *fakeLauncher) kill(pid int) {
	l.mu.Lock()
	delete(l.alive, pid)
	l.mu.Unlock()
}

// memStore is an in-memory store.Store so fleet tests stay badger-free.
type memStore struct {
	mu      sync.Mutex
	slots   map[int]store.SlotRecord
	assigns []store.AssignmentRecord
}

func newMemStore() *memStore {
	return &memStore{slots: make(map[int]store.SlotRecord)}
}

func (m *memStore) SaveSlot(rec store.SlotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[rec.ID] = rec
	return nil
}

func (m *memStore) DeleteSlot(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, id)
	return nil
}

func (m *memStore) ListSlots() ([]store.SlotRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int, 0, len(m.slots))
	for id := range m.slots {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]store.SlotRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.slots[id])
	}
	return out, nil
}

func (m *memStore) AppendAssignment(rec store.AssignmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assigns = append(m.assigns, rec)
	return nil
}

func (m *memStore) ListAssignments() ([]store.AssignmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.AssignmentRecord(nil), m.assigns...), nil
}

func (m *memStore) Close() error { return nil }

type testFleet struct {
	orch     *Orchestrator
	launcher *fakeLauncher
	events   *MemoryPublisher
}

func newTestFleet(t *testing.T, mutate func(*Config)) *testFleet {
	t.Helper()
	launcher := newFakeLauncher()
	events := NewMemoryPublisher()
	cfg := Config{
		BasePort:          27015,
		TotalCores:        16,
		ReservedCores:     2,
		PinningEnabled:    true,
		DrainTimeout:      150 * time.Millisecond,
		DrainPollInterval: 5 * time.Millisecond,
		SpawnTimeout:      time.Second,
		StopTimeout:       200 * time.Millisecond,
		Launcher:          launcher,
		Publisher:         events,
		Logger:            zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &testFleet{orch: New(cfg), launcher: launcher, events: events}
}

// startIdle adds a slot, starts it, and settles it into idle.
func (f *testFleet) startIdle(t *testing.T) int {
	t.Helper()
	id := f.orch.AddNewServer()
	if err := f.orch.StartInstance(context.Background(), id); err != nil {
		t.Fatalf("start slot %d: %v", id, err)
	}
	f.poll(t, id) // starting -> ready
	f.poll(t, id) // ready -> idle
	if st := f.status(t, id); st != StatusIdle {
		t.Fatalf("slot %d = %s, want idle", id, st)
	}
	return id
}

// startOccupied settles a fresh slot into occupied with n clients.
func (f *testFleet) startOccupied(t *testing.T, n int) int {
	t.Helper()
	id := f.startIdle(t)
	if err := f.orch.ReportClients(id, n); err != nil {
		t.Fatalf("report clients: %v", err)
	}
	if st := f.status(t, id); st != StatusOccupied {
		t.Fatalf("slot %d = %s, want occupied", id, st)
	}
	return id
}

func (f *testFleet) poll(t *testing.T, id int) {
	t.Helper()
	snap := f.snap(t, id)
	f.orch.ApplyPoll(id, f.launcher.IsAlive(snap.PID), -1, nil)
}

func (f *testFleet) status(t *testing.T, id int) Status {
	t.Helper()
	return Status(f.snap(t, id).Status)
}

// waitFor polls a condition with a generous deadline to keep timing-dependent
// tests stable.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (f *testFleet) snap(t *testing.T, id int) types.SlotSnapshot {
	t.Helper()
	for _, s := range f.orch.Slots() {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("slot %d not found", id)
	return types.SlotSnapshot{}
}
