package fleet

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Poller periodically probes worker liveness and feeds the results into the
// orchestrator. Client counts come from an optional ClientCounter; without
// one the poller only drives alive/crashed/unknown and counts arrive through
// ReportClients.
type Poller struct {
	orch     *Orchestrator
	counter  ClientCounter
	interval time.Duration
	log      zerolog.Logger
}

const defaultPollInterval = 2 * time.Second

func NewPoller(orch *Orchestrator, counter ClientCounter, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{orch: orch, counter: counter, interval: interval, log: log}
}

// Run blocks until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

func (p *Poller) sweep() {
	for _, snap := range p.orch.Slots() {
		st := Status(snap.Status)
		if !st.HasProcess() || snap.PID == 0 {
			continue
		}
		alive := p.orch.cfg.Launcher.IsAlive(snap.PID)
		connected := -1
		var pollErr error
		if alive && p.counter != nil {
			n, err := p.counter.ConnectedClients(snap.ID)
			if err != nil {
				// Count probe failure is indistinguishable from a hung
				// worker; mark unknown instead of declaring a crash.
				pollErr = err
			} else {
				connected = n
			}
		}
		p.orch.ApplyPoll(snap.ID, alive, connected, pollErr)
	}
}
