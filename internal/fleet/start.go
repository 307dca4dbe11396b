package fleet

import (
	"context"
	"time"

	"fleetd/internal/affinity"
)

// StartInstance starts the worker for a single slot. Starting a slot that is
// already live is a no-op success. The call blocks on the external spawn,
// bounded by the spawn timeout and the caller's context.
func (o *Orchestrator) StartInstance(ctx context.Context, id int) error {
	per := o.alloc.Recommend(o.liveCount() + 1).RecommendedCoresPerServer
	return o.startSized(ctx, id, per)
}

// startSized is the start primitive shared with ScaleTo, which sizes the core
// request for the whole target count instead of live+1.
func (o *Orchestrator) startSized(ctx context.Context, id, coresPerServer int) error {
	s := o.getSlot(id)
	if s == nil {
		return ErrSlotNotFound(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusStarting, StatusReady, StatusIdle, StatusOccupied:
		return nil // already in the running family
	case StatusCrashed, StatusUnknown:
		return invalidTransitionError{id: id, from: s.status, op: "start"}
	}

	// Core assignment happens before the transition so "cores assigned" and
	// "slot starting" commit together under the slot lock.
	var cores []int
	if o.cfg.PinningEnabled {
		picked := o.alloc.PickFree(coresPerServer)
		entry, err := o.alloc.Assign(id, picked)
		if err != nil {
			return err
		}
		cores = affinity.MaskToCoreIDs(entry.AffinityMask)
		s.cores = cores
		o.persistAssignment(entry)
		fields := map[string]any{"mask": entry.AffinityMask, "cores": cores}
		if len(picked) < coresPerServer {
			// Pool exhausted: the worker starts with fewer (possibly zero)
			// cores than requested and is effectively under-pinned.
			fields["short_pick"] = true
			o.cfg.Logger.Warn().Int("slot", id).Int("want", coresPerServer).Int("got", len(picked)).Msg("core pool exhausted, worker under-pinned")
		}
		o.emit(Event{Name: EventCoreAssign, SlotID: id, Fields: fields})
	}

	s.startedAt = time.Now()
	o.transitionLocked(s, StatusStarting, EventSpawnStart, map[string]any{"port": s.port})

	spawnCtx, cancel := context.WithTimeout(ctx, o.cfg.SpawnTimeout)
	pid, err := o.cfg.Launcher.Spawn(spawnCtx, id, s.port, cores)
	cancel()
	if err != nil {
		// The process never existed, so this is a failed launch, not a crash;
		// the slot returns to offline and its cores go back to the pool.
		if o.cfg.PinningEnabled {
			o.alloc.Release(id)
			s.cores = nil
			o.emit(Event{Name: EventCoreRelease, SlotID: id})
		}
		s.startedAt = time.Time{}
		s.pid = 0
		o.transitionLocked(s, StatusOffline, EventSpawnFailed, map[string]any{"error": err.Error()})
		return launchFailedError{id: id, err: err}
	}

	s.pid = pid
	if o.cfg.PinningEnabled {
		if entry, ok := o.alloc.BindProcess(id, pid); ok {
			o.persistAssignment(entry)
		}
	}
	o.persist(s.snapshotLocked())
	o.cfg.Logger.Info().Int("slot", id).Int("pid", pid).Int("port", s.port).Msg("instance starting")
	// The slot stays in starting until the liveness poller confirms the
	// first heartbeat and promotes it to ready.
	return nil
}
