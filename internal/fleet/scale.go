package fleet

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fleetd/pkg/types"
)

// ScaleTo reconciles the fleet to the target live-slot count. The plan is
// computed from one snapshot taken at entry; a slot that becomes occupied
// while the plan executes is not retroactively excluded from an
// already-decided stop list. One slot's failure never aborts the batch: all
// failures are collected and the best-effort counts are still reported.
// Cancellation stops planning further slots but already-issued starts and
// stops run to completion.
func (o *Orchestrator) ScaleTo(ctx context.Context, target int) (types.ScaleResult, error) {
	if target < 0 {
		return types.ScaleResult{}, fmt.Errorf("target must be >= 0, got %d", target)
	}

	plan := o.planScale(target)
	res := types.ScaleResult{PreviousCount: plan.current}

	if target > plan.current {
		o.scaleUp(ctx, target, plan, &res)
	} else if target < plan.current {
		o.scaleDown(ctx, target, plan, &res)
	}

	res.CurrentCount = o.liveCount()
	o.emit(Event{Name: EventScaleDone, Fields: map[string]any{
		"target":   target,
		"previous": res.PreviousCount,
		"current":  res.CurrentCount,
		"started":  res.Started,
		"stopped":  res.Stopped,
		"failures": len(res.Failures),
	}})
	o.cfg.Logger.Info().
		Int("target", target).
		Int("previous", res.PreviousCount).
		Int("current", res.CurrentCount).
		Int("started", res.Started).
		Int("stopped", res.Stopped).
		Int("failures", len(res.Failures)).
		Msg("scale reconciled")
	return res, nil
}

// scalePlan is the consistent snapshot a reconciliation works from.
type scalePlan struct {
	current int
	offline []int          // reusable offline slot ids, ascending
	stops   []stopCandidate // live slots ranked least-disruptive first
}

type stopCandidate struct {
	id        int
	status    Status
	clients   int
	idleSince int64 // unix nanos; smaller = idle longer
	startedAt int64
}

func (o *Orchestrator) planScale(target int) scalePlan {
	var plan scalePlan
	for _, s := range o.sortedSlots() {
		s.mu.Lock()
		st := s.status
		cand := stopCandidate{
			id:        s.id,
			status:    st,
			clients:   s.connected,
			idleSince: s.idleSince.UnixNano(),
			startedAt: s.startedAt.UnixNano(),
		}
		s.mu.Unlock()
		switch {
		case st == StatusOffline:
			plan.offline = append(plan.offline, cand.id)
		case st.IsLive():
			plan.current++
			plan.stops = append(plan.stops, cand)
		}
	}
	o.rankStops(plan.stops)
	return plan
}

// rankStops orders live slots least-disruptive first: clientless slots
// (idle, ready, still starting) before occupied ones, longest-idle first
// within the clientless group, fewest clients first among the occupied, with
// the configured policy breaking equal-client ties.
func (o *Orchestrator) rankStops(cands []stopCandidate) {
	group := func(c stopCandidate) int {
		if c.status == StatusOccupied && c.clients > 0 {
			return 1
		}
		return 0
	}
	sort.SliceStable(cands, func(i, j int) bool {
		gi, gj := group(cands[i]), group(cands[j])
		if gi != gj {
			return gi < gj
		}
		if gi == 0 {
			if cands[i].idleSince != cands[j].idleSince {
				return cands[i].idleSince < cands[j].idleSince
			}
			return cands[i].id < cands[j].id
		}
		if cands[i].clients != cands[j].clients {
			return cands[i].clients < cands[j].clients
		}
		if o.cfg.StopPolicy == StopYoungestFirst {
			return cands[i].startedAt > cands[j].startedAt
		}
		return cands[i].startedAt < cands[j].startedAt
	})
}

func (o *Orchestrator) scaleUp(ctx context.Context, target int, plan scalePlan, res *types.ScaleResult) {
	delta := target - plan.current
	per := o.alloc.Recommend(target).RecommendedCoresPerServer

	// Reuse offline slots by ascending id before minting new ones.
	ids := append([]int(nil), plan.offline...)
	for len(ids) < delta {
		if o.cfg.MaxSlots > 0 && o.totalSlots() >= o.cfg.MaxSlots {
			res.Failures = append(res.Failures, types.ScaleFailure{
				Op:    "start",
				Error: fmt.Sprintf("slot cap reached (%d)", o.cfg.MaxSlots),
			})
			break
		}
		ids = append(ids, o.AddNewServer())
	}
	if len(ids) > delta {
		ids = ids[:delta]
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			break // issued starts are done; stop planning further ones
		}
		if err := o.startSized(ctx, id, per); err != nil {
			res.Failures = append(res.Failures, types.ScaleFailure{SlotID: id, Op: "start", Error: err.Error()})
			continue
		}
		res.Started++
	}
}

func (o *Orchestrator) scaleDown(ctx context.Context, target int, plan scalePlan, res *types.ScaleResult) {
	delta := plan.current - target
	toStop := plan.stops
	if len(toStop) > delta {
		toStop = toStop[:delta]
	}

	// Stops run concurrently but each is individually awaited; a stop that
	// fails does not block the remaining candidates.
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, cand := range toStop {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			err := o.StopInstance(ctx, id, true)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failures = append(res.Failures, types.ScaleFailure{SlotID: id, Op: "stop", Error: err.Error()})
				return
			}
			res.Stopped++
		}(cand.id)
	}
	wg.Wait()
}

func (o *Orchestrator) totalSlots() int {
	o.regMu.RLock()
	defer o.regMu.RUnlock()
	return len(o.slots)
}
