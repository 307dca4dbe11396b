package affinity

import (
	"sort"
	"sync"
	"time"
)

// Recommendation is derived sizing advice; it is never persisted and never
// mutates allocator state.
type Recommendation struct {
	TotalCores                int
	ReservedCores             int
	AvailableCores            int
	RecommendedCoresPerServer int
	MaxServersRecommended     int
}

// Recommend computes cores-per-server sizing for a desired fleet size.
// reservedCores is clamped to [0, totalCores]; the per-server figure is never
// below 1 and serverCount 0 is sized as if one server were requested.
func Recommend(serverCount, totalCores, reservedCores int) Recommendation {
	if totalCores < 0 {
		totalCores = 0
	}
	if reservedCores < 0 {
		reservedCores = 0
	}
	if reservedCores > totalCores {
		reservedCores = totalCores
	}
	available := totalCores - reservedCores
	divisor := serverCount
	if divisor < 1 {
		divisor = 1
	}
	perServer := available / divisor
	if perServer < 1 {
		perServer = 1
	}
	return Recommendation{
		TotalCores:                totalCores,
		ReservedCores:             reservedCores,
		AvailableCores:            available,
		RecommendedCoresPerServer: perServer,
		MaxServersRecommended:     available / perServer,
	}
}

// Assignment is one append-only audit entry. Entries are never mutated after
// creation; a spawn that completes after the assignment appends a second
// entry carrying the process id.
type Assignment struct {
	SlotID       int
	ProcessID    int
	AffinityMask uint64
	AssignedAt   time.Time
}

// AssignableFn reports whether a slot's lifecycle state currently permits
// core mutation. Nil means every slot is assignable, which tests rely on.
type AssignableFn func(slotID int) bool

// Allocator owns the shared core pool. The lowest ReservedCores indices are
// reserved for the host and never handed to a slot. All pool mutation goes
// through Assign/Release so held cores and slot state change together under
// the caller's per-slot lock.
type Allocator struct {
	mu            sync.Mutex
	totalCores    int
	reservedCores int
	held          map[int]int   // core index -> slot id
	bySlot        map[int][]int // slot id -> sorted core indices
	log           []Assignment
	assignable    AssignableFn
	now           func() time.Time
}

// NewAllocator constructs an allocator for a host topology. reservedCores is
// clamped the same way Recommend clamps it.
func NewAllocator(totalCores, reservedCores int, assignable AssignableFn) *Allocator {
	if totalCores < 0 {
		totalCores = 0
	}
	if reservedCores < 0 {
		reservedCores = 0
	}
	if reservedCores > totalCores {
		reservedCores = totalCores
	}
	return &Allocator{
		totalCores:    totalCores,
		reservedCores: reservedCores,
		held:          make(map[int]int),
		bySlot:        make(map[int][]int),
		assignable:    assignable,
		now:           time.Now,
	}
}

// Recommend sizes the configured pool for the given fleet size.
func (a *Allocator) Recommend(serverCount int) Recommendation {
	return Recommend(serverCount, a.totalCores, a.reservedCores)
}

// PickFree returns up to n free core indices, lowest first. Advisory: the
// caller still goes through Assign, which re-checks under the lock.
func (a *Allocator) PickFree(n int) []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int, 0, n)
	for core := a.reservedCores; core < a.totalCores && len(out) < n; core++ {
		if _, taken := a.held[core]; !taken {
			out = append(out, core)
		}
	}
	return out
}

// Assign records a core assignment for a slot and appends an audit entry.
// It fails with an invalid-state error when the slot is not assignable and
// with a core-conflict error when any requested core is reserved or already
// held by another slot. Re-assigning a core the same slot already holds is
// not a conflict.
func (a *Allocator) Assign(slotID int, cores []int) (Assignment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.assignable != nil && !a.assignable(slotID) {
		return Assignment{}, invalidStateError{slotID: slotID}
	}
	for _, core := range cores {
		if core < a.reservedCores {
			return Assignment{}, coreConflictError{slotID: slotID, core: core, heldBy: -1}
		}
		if holder, taken := a.held[core]; taken && holder != slotID {
			return Assignment{}, coreConflictError{slotID: slotID, core: core, heldBy: holder}
		}
	}
	merged := append([]int(nil), a.bySlot[slotID]...)
	for _, core := range cores {
		if !containsCore(merged, core) {
			merged = append(merged, core)
		}
		a.held[core] = slotID
	}
	sort.Ints(merged)
	a.bySlot[slotID] = merged
	entry := Assignment{
		SlotID:       slotID,
		AffinityMask: CoreIDsToMask(merged...),
		AssignedAt:   a.now(),
	}
	a.log = append(a.log, entry)
	return entry, nil
}

// BindProcess appends an audit entry tying the slot's current cores to a
// spawned process id. No-op when the slot holds no cores.
func (a *Allocator) BindProcess(slotID, pid int) (Assignment, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cores := a.bySlot[slotID]
	if len(cores) == 0 {
		return Assignment{}, false
	}
	entry := Assignment{
		SlotID:       slotID,
		ProcessID:    pid,
		AffinityMask: CoreIDsToMask(cores...),
		AssignedAt:   a.now(),
	}
	a.log = append(a.log, entry)
	return entry, true
}

// Release returns a slot's cores to the pool. Idempotent when the slot holds
// nothing.
func (a *Allocator) Release(slotID int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, core := range a.bySlot[slotID] {
		delete(a.held, core)
	}
	delete(a.bySlot, slotID)
}

// Held returns the sorted cores currently assigned to a slot.
func (a *Allocator) Held(slotID int) []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int(nil), a.bySlot[slotID]...)
}

// Assignments returns a copy of the audit log, newest last. The log is never
// pruned here; retention is the caller's concern.
func (a *Allocator) Assignments() []Assignment {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Assignment, len(a.log))
	copy(out, a.log)
	return out
}

func containsCore(cores []int, core int) bool {
	for _, c := range cores {
		if c == core {
			return true
		}
	}
	return false
}
