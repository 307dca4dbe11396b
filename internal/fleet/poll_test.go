package fleet

import (
	"context"
	"errors"
	"testing"
)

func TestStartingBecomesReadyThenIdle(t *testing.T) {
	f := newTestFleet(t, nil)
	id := f.orch.AddNewServer()
	if err := f.orch.StartInstance(context.Background(), id); err != nil {
		t.Fatalf("start: %v", err)
	}
	if st := f.status(t, id); st != StatusStarting {
		t.Fatalf("slot = %s, want starting until first heartbeat", st)
	}
	f.poll(t, id)
	if st := f.status(t, id); st != StatusReady {
		t.Fatalf("slot = %s, want ready", st)
	}
	// Ready collapses into idle on the next successful status poll.
	f.poll(t, id)
	if st := f.status(t, id); st != StatusIdle {
		t.Fatalf("slot = %s, want idle", st)
	}
}

func TestClientCountDrivesIdleOccupied(t *testing.T) {
	f := newTestFleet(t, nil)
	id := f.startIdle(t)
	f.orch.ApplyPoll(id, true, 5, nil)
	if st := f.status(t, id); st != StatusOccupied {
		t.Fatalf("slot = %s, want occupied", st)
	}
	f.orch.ApplyPoll(id, true, 0, nil)
	if st := f.status(t, id); st != StatusIdle {
		t.Fatalf("slot = %s, want idle", st)
	}
}

func TestProbeFailureIsUnknownNotCrashed(t *testing.T) {
	f := newTestFleet(t, nil)
	id := f.startIdle(t)
	f.orch.ApplyPoll(id, true, -1, errors.New("status port timeout"))
	if st := f.status(t, id); st != StatusUnknown {
		t.Fatalf("slot = %s, want unknown", st)
	}
	// A later successful probe resolves the slot back to its real state.
	f.orch.ApplyPoll(id, true, 3, nil)
	if st := f.status(t, id); st != StatusOccupied {
		t.Fatalf("slot = %s, want occupied after resolution", st)
	}
}

func TestUnknownResolvesToCrashed(t *testing.T) {
	f := newTestFleet(t, nil)
	id := f.startIdle(t)
	f.orch.ApplyPoll(id, true, -1, errors.New("poll timeout"))
	f.launcher.kill(f.snap(t, id).PID)
	f.poll(t, id)
	if st := f.status(t, id); st != StatusCrashed {
		t.Fatalf("slot = %s, want crashed", st)
	}
}

func TestCrashNeverFromOffline(t *testing.T) {
	f := newTestFleet(t, nil)
	id := f.orch.AddNewServer()
	f.orch.ApplyPoll(id, false, -1, nil)
	if st := f.status(t, id); st != StatusOffline {
		t.Fatalf("offline slot moved to %s on a dead-probe", st)
	}
}

func TestCrashRecoveryRequiresReset(t *testing.T) {
	f := newTestFleet(t, nil)
	id := f.startIdle(t)
	f.launcher.kill(f.snap(t, id).PID)
	f.poll(t, id)

	// No crashed -> ready shortcut: starting a crashed slot is rejected.
	if err := f.orch.StartInstance(context.Background(), id); !IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := f.orch.ResetCrashed(id); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if st := f.status(t, id); st != StatusOffline {
		t.Fatalf("slot = %s, want offline after reset", st)
	}
	if held := f.orch.alloc.Held(id); len(held) != 0 {
		t.Fatalf("reset left cores %v held", held)
	}
	if err := f.orch.StartInstance(context.Background(), id); err != nil {
		t.Fatalf("fresh start after reset: %v", err)
	}
}

func TestResetRequiresCrashed(t *testing.T) {
	f := newTestFleet(t, nil)
	id := f.startIdle(t)
	if err := f.orch.ResetCrashed(id); !IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestEveryTransitionEmitsOneEvent(t *testing.T) {
	f := newTestFleet(t, nil)
	id := f.orch.AddNewServer()
	if err := f.orch.StartInstance(context.Background(), id); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.poll(t, id) // -> ready
	f.poll(t, id) // -> idle
	f.launcher.kill(f.snap(t, id).PID)
	f.poll(t, id) // -> crashed

	// Each committed transition carries exactly one from/to event, in the
	// slot's own order.
	var seq []string
	for _, e := range f.events.Events() {
		if e.SlotID != id {
			continue
		}
		if from, ok := e.Fields["from"]; ok {
			seq = append(seq, from.(string)+">"+e.Fields["to"].(string))
		}
	}
	want := []string{
		"offline>starting",
		"starting>ready",
		"ready>idle",
		"idle>crashed",
	}
	if len(seq) != len(want) {
		t.Fatalf("transitions = %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seq, want)
		}
	}
	if len(f.events.Named(EventSlotCrashed)) != 1 {
		t.Fatalf("crash transition not observable by subscribers")
	}
}

func TestReportClientsRejectedWhileOffline(t *testing.T) {
	f := newTestFleet(t, nil)
	id := f.orch.AddNewServer()
	if err := f.orch.ReportClients(id, 2); !IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}
