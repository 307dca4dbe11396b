package affinity

import "testing"

func TestRecommendScenario(t *testing.T) {
	r := Recommend(4, 16, 2)
	if r.AvailableCores != 14 {
		t.Fatalf("available = %d, want 14", r.AvailableCores)
	}
	if r.RecommendedCoresPerServer != 3 {
		t.Fatalf("per-server = %d, want 3", r.RecommendedCoresPerServer)
	}
	if r.MaxServersRecommended != 4 {
		t.Fatalf("max servers = %d, want 4", r.MaxServersRecommended)
	}
}

func TestRecommendNeverZero(t *testing.T) {
	// serverCount 0 sizes as one server and never divides by zero.
	r := Recommend(0, 8, 0)
	if r.RecommendedCoresPerServer != 8 {
		t.Fatalf("per-server = %d, want 8", r.RecommendedCoresPerServer)
	}
	// More servers than cores still recommends at least one core each.
	r = Recommend(32, 4, 0)
	if r.RecommendedCoresPerServer != 1 {
		t.Fatalf("per-server = %d, want 1", r.RecommendedCoresPerServer)
	}
	// Reservation beyond the host clamps instead of going negative.
	r = Recommend(1, 4, 9)
	if r.ReservedCores != 4 || r.AvailableCores != 0 {
		t.Fatalf("clamp failed: %+v", r)
	}
}

func TestAssignConflicts(t *testing.T) {
	a := NewAllocator(8, 2, nil)
	if _, err := a.Assign(1, []int{2, 3}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := a.Assign(2, []int{3, 4}); !IsCoreConflict(err) {
		t.Fatalf("expected core conflict, got %v", err)
	}
	// Reserved cores (0 and 1) are never handed out.
	if _, err := a.Assign(2, []int{0}); !IsCoreConflict(err) {
		t.Fatalf("expected reserved-core conflict, got %v", err)
	}
	// The failed calls must not have leaked any holds.
	if got := a.Held(2); len(got) != 0 {
		t.Fatalf("slot 2 holds %v after failed assigns", got)
	}
}

func TestAssignRespectsSlotState(t *testing.T) {
	live := map[int]bool{7: true}
	a := NewAllocator(8, 0, func(slotID int) bool { return !live[slotID] })
	if _, err := a.Assign(7, []int{1}); !IsInvalidState(err) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if _, err := a.Assign(8, []int{1}); err != nil {
		t.Fatalf("assign: %v", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	a := NewAllocator(8, 0, nil)
	if _, err := a.Assign(1, []int{0, 1}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	a.Release(1)
	a.Release(1) // second release of an empty slot is a no-op
	if _, err := a.Assign(2, []int{0, 1}); err != nil {
		t.Fatalf("cores not returned to pool: %v", err)
	}
}

func TestAuditLogAppendOnly(t *testing.T) {
	a := NewAllocator(8, 0, nil)
	if _, err := a.Assign(1, []int{0}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	a.BindProcess(1, 4242)
	if _, err := a.Assign(2, []int{1}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	log := a.Assignments()
	if len(log) != 3 {
		t.Fatalf("log length = %d, want 3", len(log))
	}
	if log[0].SlotID != 1 || log[0].ProcessID != 0 {
		t.Fatalf("first entry unexpected: %+v", log[0])
	}
	if log[1].ProcessID != 4242 || log[1].AffinityMask != log[0].AffinityMask {
		t.Fatalf("bind entry unexpected: %+v", log[1])
	}
	// Mutating the returned copy must not touch allocator state.
	log[0].SlotID = 99
	if a.Assignments()[0].SlotID != 1 {
		t.Fatalf("audit log mutated through returned slice")
	}
}

func TestPickFreeSkipsReservedAndHeld(t *testing.T) {
	a := NewAllocator(6, 2, nil)
	if _, err := a.Assign(1, []int{2}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	got := a.PickFree(2)
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("PickFree = %v, want [3 4]", got)
	}
}
