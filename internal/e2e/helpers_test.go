package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fleetd/internal/fleet"
	"fleetd/internal/httpapi"
	"fleetd/pkg/types"
)

// stubLauncher fakes worker processes with an in-memory pid table so the
// whole HTTP-to-orchestrator chain runs without spawning anything.
type stubLauncher struct {
	mu      sync.Mutex
	nextPID int
	alive   map[int]bool
	failFor map[int]bool // slot id -> refuse to spawn
}

func newStubLauncher() *stubLauncher {
	return &stubLauncher{nextPID: 1000, alive: map[int]bool{}, failFor: map[int]bool{}}
}

func (l *stubLauncher) Spawn(ctx context.Context, slotID, port int, cores []int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failFor[slotID] {
		return 0, fmt.Errorf("exec: binary missing")
	}
	l.nextPID++
	l.alive[l.nextPID] = true
	return l.nextPID, nil
}

func (l *stubLauncher) Signal(pid int, kind fleet.SignalKind) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.alive, pid)
	return nil
}

func (l *stubLauncher) IsAlive(pid int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.alive[pid]
}

// newFleetServer wires an orchestrator with a stub launcher behind the real
// HTTP mux, mirroring cmd/fleetd without processes or listen ports.
func newFleetServer(t *testing.T) (*httptest.Server, *fleet.Orchestrator, *stubLauncher) {
	t.Helper()
	launcher := newStubLauncher()
	orch := fleet.New(fleet.Config{
		BasePort:          27015,
		VoicePortOffset:   500,
		TotalCores:        16,
		ReservedCores:     2,
		PinningEnabled:    true,
		DrainTimeout:      100 * time.Millisecond,
		DrainPollInterval: 5 * time.Millisecond,
		StopTimeout:       200 * time.Millisecond,
		Launcher:          launcher,
		Logger:            zerolog.Nop(),
	})
	srv := httptest.NewServer(httpapi.NewMux(orch))
	t.Cleanup(srv.Close)
	return srv, orch, launcher
}

func postJSON(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	var buf *bytes.Buffer
	if body == "" {
		buf = bytes.NewBuffer(nil)
	} else {
		buf = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(http.MethodPost, url, buf)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

// settle drives the poll loop until every live slot with a process has been
// classified at least once.
func settle(orch *fleet.Orchestrator, launcher *stubLauncher) {
	for _, s := range orch.Slots() {
		if s.PID != 0 {
			orch.ApplyPoll(s.ID, launcher.IsAlive(s.PID), -1, nil)
		}
	}
}

func fleetStatus(t *testing.T, baseURL string) types.FleetStatus {
	t.Helper()
	var fs types.FleetStatus
	if code := getJSON(t, baseURL+"/fleet", &fs); code != http.StatusOK {
		t.Fatalf("GET /fleet status=%d", code)
	}
	return fs
}
