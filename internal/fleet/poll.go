package fleet

import "time"

// ApplyPoll ingests one liveness probe result for a slot. pollErr marks a
// probe that could not complete (timeout, unreachable status port): the slot
// becomes unknown rather than prematurely crashed, and a later probe resolves
// it. connected < 0 means the probe carried no client-count information.
func (o *Orchestrator) ApplyPoll(id int, alive bool, connected int, pollErr error) {
	s := o.getSlot(id)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping {
		// An explicit stop owns the slot and its exit is not a crash, but
		// the drain wait still needs fresh client counts.
		if alive && connected >= 0 {
			s.connected = connected
		}
		return
	}
	switch s.status {
	case StatusOffline, StatusCrashed:
		return
	}

	if pollErr != nil {
		if s.status != StatusUnknown {
			o.cfg.Logger.Warn().Int("slot", id).Err(pollErr).Msg("liveness probe failed")
			o.transitionLocked(s, StatusUnknown, EventSlotUnknown, map[string]any{"error": pollErr.Error()})
		}
		return
	}

	if !alive {
		if s.pid == 0 {
			// No process was ever bound; a stale probe cannot crash the slot.
			return
		}
		// Process existed and is gone without an explicit stop: crashed.
		o.cfg.Logger.Error().Int("slot", id).Int("pid", s.pid).Int("clients", s.connected).Msg("worker process disappeared")
		s.pid = 0
		s.connected = 0
		o.transitionLocked(s, StatusCrashed, EventSlotCrashed, nil)
		return
	}

	if connected >= 0 {
		s.connected = connected
	}
	switch s.status {
	case StatusStarting:
		// First confirmed heartbeat.
		o.transitionLocked(s, StatusReady, EventSpawnReady, nil)
	case StatusReady, StatusUnknown, StatusIdle, StatusOccupied:
		o.settleLocked(s)
	}
}

// settleLocked collapses ready/unknown into the client-count driven pair:
// zero clients means idle, anything above means occupied. Must be called with
// s.mu held.
func (o *Orchestrator) settleLocked(s *slot) {
	want := StatusIdle
	if s.connected > 0 {
		want = StatusOccupied
	}
	if s.status == want {
		return
	}
	if want == StatusIdle {
		s.idleSince = time.Now()
	}
	o.transitionLocked(s, want, EventStateChange, map[string]any{"clients": s.connected})
}

// ReportClients lets an external health collaborator push a connected-player
// count for a live slot.
func (o *Orchestrator) ReportClients(id, connected int) error {
	s := o.getSlot(id)
	if s == nil {
		return ErrSlotNotFound(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		if connected >= 0 {
			s.connected = connected
		}
		return nil
	}
	if !s.status.IsLive() && s.status != StatusUnknown {
		return invalidTransitionError{id: id, from: s.status, op: "report clients for"}
	}
	if connected < 0 {
		connected = 0
	}
	s.connected = connected
	if s.status != StatusStarting {
		o.settleLocked(s)
	}
	return nil
}

// ResetCrashed acknowledges a crash and returns the slot to offline so a
// fresh start can reuse it. There is no crashed-to-ready shortcut.
func (o *Orchestrator) ResetCrashed(id int) error {
	s := o.getSlot(id)
	if s == nil {
		return ErrSlotNotFound(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusCrashed {
		return invalidTransitionError{id: id, from: s.status, op: "reset"}
	}
	if len(s.cores) > 0 {
		o.alloc.Release(id)
		s.cores = nil
		o.emit(Event{Name: EventCoreRelease, SlotID: id})
	}
	s.pid = 0
	s.connected = 0
	s.startedAt = time.Time{}
	s.idleSince = time.Time{}
	o.transitionLocked(s, StatusOffline, EventSlotReset, nil)
	o.cfg.Logger.Info().Int("slot", id).Msg("crashed slot reset")
	return nil
}
