package fleet

import (
	"context"
	"errors"
	"testing"

	"fleetd/pkg/types"
)

func TestScaleUpFromEmpty(t *testing.T) {
	f := newTestFleet(t, nil)
	res, err := f.orch.ScaleTo(context.Background(), 3)
	if err != nil {
		t.Fatalf("scale: %v", err)
	}
	if res.PreviousCount != 0 || res.Started != 3 || res.Stopped != 0 || len(res.Failures) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.CurrentCount != 3 {
		t.Fatalf("current = %d, want 3", res.CurrentCount)
	}
}

func TestScaleReusesOfflineSlotsFirst(t *testing.T) {
	f := newTestFleet(t, nil)
	id := f.startIdle(t)
	if err := f.orch.StopInstance(context.Background(), id, true); err != nil {
		t.Fatalf("stop: %v", err)
	}
	res, err := f.orch.ScaleTo(context.Background(), 1)
	if err != nil {
		t.Fatalf("scale: %v", err)
	}
	if res.Started != 1 {
		t.Fatalf("started = %d", res.Started)
	}
	// The existing offline slot was reused; no new id was minted.
	if n := len(f.orch.Slots()); n != 1 {
		t.Fatalf("slots = %d, want 1", n)
	}
}

func TestScaleIdempotent(t *testing.T) {
	f := newTestFleet(t, nil)
	if _, err := f.orch.ScaleTo(context.Background(), 2); err != nil {
		t.Fatalf("scale: %v", err)
	}
	res, err := f.orch.ScaleTo(context.Background(), 2)
	if err != nil {
		t.Fatalf("second scale: %v", err)
	}
	if res.Started != 0 || res.Stopped != 0 {
		t.Fatalf("second ScaleTo(2) not a no-op: %+v", res)
	}
}

func TestScalePartialFailureIsolation(t *testing.T) {
	f := newTestFleet(t, nil)
	// Three fresh slots will be minted as 1..3; fail the middle one.
	f.launcher.spawnErr[2] = errors.New("binary missing")
	res, err := f.orch.ScaleTo(context.Background(), 3)
	if err != nil {
		t.Fatalf("scale: %v", err)
	}
	if res.Started != 2 {
		t.Fatalf("started = %d, want 2", res.Started)
	}
	if len(res.Failures) != 1 || res.Failures[0].SlotID != 2 || res.Failures[0].Op != "start" {
		t.Fatalf("failures = %+v", res.Failures)
	}
	if res.CurrentCount != 2 {
		t.Fatalf("current = %d, want 2", res.CurrentCount)
	}
}

func TestScaleDownStopsIdleBeforeOccupied(t *testing.T) {
	f := newTestFleet(t, nil)
	idle1 := f.startIdle(t)
	idle2 := f.startIdle(t)
	occ := f.startOccupied(t, 2)

	res, err := f.orch.ScaleTo(context.Background(), 1)
	if err != nil {
		t.Fatalf("scale: %v", err)
	}
	if res.Stopped != 2 || len(res.Failures) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if st := f.status(t, occ); st != StatusOccupied {
		t.Fatalf("occupied slot was stopped before the idle ones (now %s)", st)
	}
	if f.status(t, idle1) != StatusOffline || f.status(t, idle2) != StatusOffline {
		t.Fatalf("idle slots not stopped: %s %s", f.status(t, idle1), f.status(t, idle2))
	}
}

func TestScaleToZeroDrainsOccupied(t *testing.T) {
	f := newTestFleet(t, nil)
	f.startIdle(t)
	f.startIdle(t)
	occ := f.startOccupied(t, 2)

	done := make(chan struct {
		res types.ScaleResult
		err error
	}, 1)
	go func() {
		res, err := f.orch.ScaleTo(context.Background(), 0)
		done <- struct {
			res types.ScaleResult
			err error
		}{res, err}
	}()

	// Let the occupied slot's clients leave so the drain completes cleanly.
	waitFor(t, func() bool {
		return len(f.events.Named(EventStopDrainStart)) == 1
	})
	f.orch.ApplyPoll(occ, true, 0, nil)

	out := <-done
	if out.err != nil {
		t.Fatalf("scale: %v", out.err)
	}
	if out.res.PreviousCount != 3 || out.res.Stopped != 3 || out.res.CurrentCount != 0 {
		t.Fatalf("unexpected result: %+v", out.res)
	}
	// Clean drain: no forced stop for this run.
	if n := len(f.events.Named(EventStopDrainTimeout)); n != 0 {
		t.Fatalf("drain timed out %d times", n)
	}
}

func TestScaleDownTieBreakFewestClients(t *testing.T) {
	f := newTestFleet(t, nil)
	heavy := f.startOccupied(t, 9)
	light := f.startOccupied(t, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := f.orch.ScaleTo(context.Background(), 1); err != nil {
			t.Errorf("scale: %v", err)
		}
	}()
	// The lightly loaded slot drains out and stops; the heavy one survives.
	waitFor(t, func() bool {
		return len(f.events.Named(EventStopDrainStart)) == 1
	})
	f.orch.ApplyPoll(light, true, 0, nil)
	<-done

	if st := f.status(t, light); st != StatusOffline {
		t.Fatalf("light slot = %s, want offline", st)
	}
	if st := f.status(t, heavy); st != StatusOccupied {
		t.Fatalf("heavy slot = %s, want occupied", st)
	}
}

func TestScaleNegativeTarget(t *testing.T) {
	f := newTestFleet(t, nil)
	if _, err := f.orch.ScaleTo(context.Background(), -1); err == nil {
		t.Fatalf("expected error for negative target")
	}
}

func TestScaleCancelledStopsPlanning(t *testing.T) {
	f := newTestFleet(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := f.orch.ScaleTo(ctx, 3)
	if err != nil {
		t.Fatalf("scale: %v", err)
	}
	// No starts attempted once the context is already cancelled; the partial
	// result is still reported.
	if res.Started != 0 {
		t.Fatalf("started = %d with cancelled context", res.Started)
	}
}
