package fleet

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeCounter struct {
	mu     sync.Mutex
	counts map[int]int
	errs   map[int]error
}

func (c *fakeCounter) set(id, n int) {
	c.mu.Lock()
	c.counts[id] = n
	c.mu.Unlock()
}

func (c *fakeCounter) ConnectedClients(slotID int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.errs[slotID]; err != nil {
		return 0, err
	}
	return c.counts[slotID], nil
}

func TestPollerDrivesLifecycle(t *testing.T) {
	f := newTestFleet(t, nil)
	counter := &fakeCounter{counts: map[int]int{}, errs: map[int]error{}}
	p := NewPoller(f.orch, counter, 5*time.Millisecond, f.orch.cfg.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	id := f.orch.AddNewServer()
	if err := f.orch.StartInstance(context.Background(), id); err != nil {
		t.Fatalf("start: %v", err)
	}
	// starting -> ready -> idle without manual polls.
	waitFor(t, func() bool { return f.status(t, id) == StatusIdle })

	counter.set(id, 7)
	waitFor(t, func() bool { return f.status(t, id) == StatusOccupied })

	counter.set(id, 0)
	waitFor(t, func() bool { return f.status(t, id) == StatusIdle })

	// Process death is picked up as a crash.
	f.launcher.kill(f.snap(t, id).PID)
	waitFor(t, func() bool { return f.status(t, id) == StatusCrashed })
}

func TestPollerSkipsOfflineSlots(t *testing.T) {
	f := newTestFleet(t, nil)
	counter := &fakeCounter{counts: map[int]int{}, errs: map[int]error{}}
	p := NewPoller(f.orch, counter, time.Millisecond, f.orch.cfg.Logger)
	f.orch.AddNewServer()
	p.sweep()
	if st := f.status(t, 1); st != StatusOffline {
		t.Fatalf("offline slot changed to %s", st)
	}
}
