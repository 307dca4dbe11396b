package fleet

import (
	"context"
	"time"
)

// StopInstance stops a single slot's worker. Stopping an offline slot is a
// no-op success. A graceful stop of an occupied slot first drains: it waits,
// bounded by the drain timeout, for connected clients to reach zero, then
// escalates to a forced stop. The drain wait is deliberately independent of
// the caller's cancellation; an issued stop always runs to completion.
func (o *Orchestrator) StopInstance(ctx context.Context, id int, graceful bool) error {
	s := o.getSlot(id)
	if s == nil {
		return ErrSlotNotFound(id)
	}

	s.mu.Lock()
	switch s.status {
	case StatusOffline:
		s.mu.Unlock()
		return nil // already stopped
	case StatusCrashed, StatusUnknown:
		st := s.status
		s.mu.Unlock()
		return invalidTransitionError{id: id, from: st, op: "stop"}
	}
	if s.stopping {
		s.mu.Unlock()
		return nil // another stop owns the slot
	}
	s.stopping = true
	pid := s.pid
	needsDrain := graceful && s.status == StatusOccupied && s.connected > 0
	clients := s.connected
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.stopping = false
		s.mu.Unlock()
	}()

	forced := !graceful
	if needsDrain {
		o.emit(Event{Name: EventStopDrainStart, SlotID: id, Fields: map[string]any{"clients": clients}})
		deadline := time.Now().Add(o.cfg.DrainTimeout)
		for {
			s.mu.Lock()
			n := s.connected
			s.mu.Unlock()
			if n == 0 {
				break
			}
			if time.Now().After(deadline) {
				forced = true
				o.emit(Event{Name: EventStopDrainTimeout, SlotID: id, Fields: map[string]any{"clients": n}})
				o.cfg.Logger.Warn().Int("slot", id).Int("clients", n).Msg("drain timeout, forcing stop")
				break
			}
			time.Sleep(o.cfg.DrainPollInterval)
		}
	}

	if pid > 0 && o.cfg.Launcher.IsAlive(pid) {
		if err := o.cfg.Launcher.Signal(pid, SignalTerm); err != nil {
			o.cfg.Logger.Warn().Int("slot", id).Int("pid", pid).Err(err).Msg("term signal failed")
		}
		if !o.waitGone(pid, o.cfg.StopTimeout) {
			o.cfg.Logger.Warn().Int("slot", id).Int("pid", pid).Msg("worker ignored term, killing")
			_ = o.cfg.Launcher.Signal(pid, SignalKill)
			if !o.waitGone(pid, o.cfg.StopTimeout) {
				return stopFailedError{id: id, pid: pid}
			}
			forced = true
		}
	}

	s.mu.Lock()
	s.pid = 0
	s.connected = 0
	s.startedAt = time.Time{}
	s.idleSince = time.Time{}
	if o.cfg.PinningEnabled && len(s.cores) > 0 {
		o.alloc.Release(id)
		s.cores = nil
		o.emit(Event{Name: EventCoreRelease, SlotID: id})
	}
	name := EventStopDone
	if forced {
		name = EventStopForced
	}
	o.transitionLocked(s, StatusOffline, name, map[string]any{"forced": forced})
	s.mu.Unlock()

	o.cfg.Logger.Info().Int("slot", id).Bool("forced", forced).Msg("instance stopped")
	return nil
}

// waitGone polls process liveness until the pid disappears or the timeout
// elapses.
func (o *Orchestrator) waitGone(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !o.cfg.Launcher.IsAlive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
}
