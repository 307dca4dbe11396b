package fleet

import (
	"sort"
	"sync"
	"time"

	"fleetd/internal/affinity"
	"fleetd/internal/store"
	"fleetd/pkg/types"
)

// Orchestrator owns the slot registry and runs the scale reconciliation.
// The registry lock guards membership and id allocation only and is never
// held across a blocking launch or kill; per-slot serialization happens on
// each slot's own mutex.
type Orchestrator struct {
	cfg Config

	regMu  sync.RWMutex
	slots  map[int]*slot
	nextID int

	alloc *affinity.Allocator
}

func New(cfg Config) *Orchestrator {
	cfg.applyDefaults()
	o := &Orchestrator{
		cfg:    cfg,
		slots:  make(map[int]*slot),
		nextID: 1,
	}
	o.alloc = o.newAllocator(cfg.TotalCores, cfg.ReservedCores)
	return o
}

// AddNewServer mints the next slot id and registers the slot offline. It does
// not start the worker.
func (o *Orchestrator) AddNewServer() int {
	o.regMu.Lock()
	id := o.nextID
	o.nextID++
	s := newSlot(id, o.cfg.BasePort, o.cfg.VoicePortOffset)
	o.slots[id] = s
	o.regMu.Unlock()

	o.persist(s.snapshot())
	o.emit(Event{Name: EventSlotAdded, SlotID: id, Fields: map[string]any{"port": s.port}})
	o.cfg.Logger.Info().Int("slot", id).Int("port", s.port).Msg("slot added")
	return id
}

// RemoveServer permanently retires a slot id. Only legal while offline;
// normal stop and scale-down never remove slots.
func (o *Orchestrator) RemoveServer(id int) error {
	s := o.getSlot(id)
	if s == nil {
		return ErrSlotNotFound(id)
	}
	s.mu.Lock()
	if s.status != StatusOffline {
		st := s.status
		s.mu.Unlock()
		return invalidTransitionError{id: id, from: st, op: "remove"}
	}
	s.mu.Unlock()

	o.regMu.Lock()
	delete(o.slots, id)
	o.regMu.Unlock()

	if o.cfg.Store != nil {
		if err := o.cfg.Store.DeleteSlot(id); err != nil {
			o.cfg.Logger.Error().Int("slot", id).Err(err).Msg("delete slot record")
		}
	}
	o.emit(Event{Name: EventSlotRemoved, SlotID: id})
	o.cfg.Logger.Info().Int("slot", id).Msg("slot removed")
	return nil
}

// SetProxyAttached records the external proxy layer's view of a slot. It is
// orthogonal to process and core state.
func (o *Orchestrator) SetProxyAttached(id int, attached bool) error {
	s := o.getSlot(id)
	if s == nil {
		return ErrSlotNotFound(id)
	}
	s.mu.Lock()
	s.proxy = attached
	snap := s.snapshotLocked()
	s.mu.Unlock()
	o.persist(snap)
	return nil
}

func (o *Orchestrator) getSlot(id int) *slot {
	o.regMu.RLock()
	defer o.regMu.RUnlock()
	return o.slots[id]
}

// sortedSlots snapshots registry membership, ascending by id. The registry
// lock is released before any per-slot work.
func (o *Orchestrator) sortedSlots() []*slot {
	o.regMu.RLock()
	out := make([]*slot, 0, len(o.slots))
	for _, s := range o.slots {
		out = append(out, s)
	}
	o.regMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Slots returns read-only snapshots of every slot, ascending by id.
func (o *Orchestrator) Slots() []types.SlotSnapshot {
	slots := o.sortedSlots()
	out := make([]types.SlotSnapshot, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.snapshot())
	}
	return out
}

// Fleet builds the aggregate status view.
func (o *Orchestrator) Fleet() types.FleetStatus {
	snaps := o.Slots()
	fs := types.FleetStatus{
		TotalSlots:   len(snaps),
		StatusCounts: make(map[string]int),
		Slots:        snaps,
	}
	for _, snap := range snaps {
		fs.StatusCounts[snap.Status]++
		fs.ConnectedClients += snap.ConnectedClients
		if Status(snap.Status).IsLive() {
			fs.LiveCount++
		}
	}
	return fs
}

// Ready reports whether at least one slot is serving or able to serve.
func (o *Orchestrator) Ready() bool {
	for _, s := range o.sortedSlots() {
		if st := s.loadStatus(); st == StatusReady || st == StatusIdle || st == StatusOccupied {
			return true
		}
	}
	return false
}

// Recommendation sizes the core pool for a hypothetical fleet size.
func (o *Orchestrator) Recommendation(serverCount int) affinity.Recommendation {
	return o.alloc.Recommend(serverCount)
}

// Assignments exposes the append-only affinity audit log, newest last.
func (o *Orchestrator) Assignments() []affinity.Assignment {
	return o.alloc.Assignments()
}

func (o *Orchestrator) liveCount() int {
	n := 0
	for _, s := range o.sortedSlots() {
		if s.loadStatus().IsLive() {
			n++
		}
	}
	return n
}

// emit publishes a single event. Same-slot ordering comes from callers
// publishing while holding the slot lock for transition events.
func (o *Orchestrator) emit(e Event) {
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	o.cfg.Publisher.Publish(e)
}

// transitionLocked commits a state change, persists it, and publishes the
// transition event. Must be called with s.mu held.
func (o *Orchestrator) transitionLocked(s *slot, to Status, name string, fields map[string]any) {
	from := s.status
	s.setStatus(to)
	if fields == nil {
		fields = map[string]any{}
	}
	fields["from"] = string(from)
	fields["to"] = string(to)
	o.persist(s.snapshotLocked())
	o.emit(Event{Name: name, SlotID: s.id, Fields: fields})
	o.cfg.Logger.Debug().Int("slot", s.id).Str("from", string(from)).Str("to", string(to)).Str("event", name).Msg("slot transition")
}

// persist writes a slot record through the optional store.
func (o *Orchestrator) persist(snap types.SlotSnapshot) {
	if o.cfg.Store == nil {
		return
	}
	rec := store.SlotRecord{
		ID:            snap.ID,
		Port:          snap.Port,
		VoicePort:     snap.VoicePort,
		Status:        snap.Status,
		PID:           snap.PID,
		AssignedCores: snap.AssignedCores,
		UpdatedAt:     time.Now(),
	}
	if snap.StartedAt > 0 {
		rec.StartedAt = time.Unix(snap.StartedAt, 0)
	}
	if err := o.cfg.Store.SaveSlot(rec); err != nil {
		o.cfg.Logger.Error().Int("slot", snap.ID).Err(err).Msg("persist slot record")
	}
}

// persistAssignment mirrors an audit entry into the store.
func (o *Orchestrator) persistAssignment(a affinity.Assignment) {
	if o.cfg.Store == nil {
		return
	}
	rec := store.AssignmentRecord{
		SlotID:       a.SlotID,
		ProcessID:    a.ProcessID,
		AffinityMask: a.AffinityMask,
		AssignedAt:   a.AssignedAt,
	}
	if err := o.cfg.Store.AppendAssignment(rec); err != nil {
		o.cfg.Logger.Error().Int("slot", a.SlotID).Err(err).Msg("persist assignment record")
	}
}
