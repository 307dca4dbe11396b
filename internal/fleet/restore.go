package fleet

import "fleetd/internal/affinity"

// Restore rebuilds the slot registry from persisted records after a daemon
// restart. Slots whose recorded pid is still alive come back as unknown until
// the next probe classifies them; slots recorded live whose pid vanished
// while the daemon was down are marked crashed. Core holds are re-registered
// so the no-double-assignment invariant survives the restart.
func (o *Orchestrator) Restore() error {
	if o.cfg.Store == nil {
		return nil
	}
	recs, err := o.cfg.Store.ListSlots()
	if err != nil {
		return err
	}

	for _, rec := range recs {
		o.regMu.Lock()
		s := newSlot(rec.ID, o.cfg.BasePort, o.cfg.VoicePortOffset)
		// Recorded ports win over derivation in case the base port changed.
		if rec.Port > 0 {
			s.port = rec.Port
		}
		if rec.VoicePort > 0 {
			s.voicePort = rec.VoicePort
		}
		o.slots[rec.ID] = s
		if rec.ID >= o.nextID {
			o.nextID = rec.ID + 1
		}
		o.regMu.Unlock()

		st := Status(rec.Status)
		s.mu.Lock()
		switch {
		case st == StatusOffline:
			// Nothing to recover.
		case st == StatusCrashed:
			// A crash keeps its core hold until the reset, restarts included.
			o.restoreCores(rec.ID, rec.AssignedCores, s)
			s.setStatus(StatusCrashed)
		case o.cfg.Launcher.IsAlive(rec.PID):
			// The worker survived the daemon restart. Re-adopt it and let
			// the poller settle the exact state. Cores are re-held while the
			// slot is still offline, before the status flips.
			o.restoreCores(rec.ID, rec.AssignedCores, s)
			s.pid = rec.PID
			s.startedAt = rec.StartedAt
			s.setStatus(StatusUnknown)
		default:
			o.cfg.Logger.Warn().Int("slot", rec.ID).Int("pid", rec.PID).Str("was", rec.Status).Msg("worker gone after restart")
			o.restoreCores(rec.ID, rec.AssignedCores, s)
			s.setStatus(StatusCrashed)
		}
		snap := s.snapshotLocked()
		s.mu.Unlock()
		o.persist(snap)
	}

	o.cfg.Logger.Info().Int("slots", len(recs)).Msg("registry restored")
	return nil
}

func (o *Orchestrator) restoreCores(id int, cores []int, s *slot) {
	if !o.cfg.PinningEnabled || len(cores) == 0 {
		return
	}
	if _, err := o.alloc.Assign(id, cores); err != nil {
		if affinity.IsCoreConflict(err) {
			o.cfg.Logger.Error().Int("slot", id).Ints("cores", cores).Err(err).Msg("core hold lost on restore")
			return
		}
		o.cfg.Logger.Error().Int("slot", id).Err(err).Msg("restore core hold")
		return
	}
	s.cores = append([]int(nil), cores...)
}
