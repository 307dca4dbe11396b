package fleet

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
)

// LauncherConfig describes how worker processes are launched.
type LauncherConfig struct {
	// Bin is the worker executable path.
	Bin string
	// Args is the argument template. Placeholders {slot}, {port}, {voice_port}
	// and {cores} are substituted per spawn; {cores} expands to a
	// comma-separated core list and to the empty string when pinning is off.
	Args []string
	// VoicePortOffset is added to the game port to form the voice port.
	VoicePortOffset int
}

// ExecLauncher launches workers with os/exec. It keeps spawned commands so
// exits are reaped and signals hit the right process.
type ExecLauncher struct {
	cfg LauncherConfig
	log zerolog.Logger

	mu    sync.Mutex
	procs map[int]*exec.Cmd // pid -> cmd
}

func NewExecLauncher(cfg LauncherConfig, log zerolog.Logger) *ExecLauncher {
	return &ExecLauncher{cfg: cfg, log: log, procs: make(map[int]*exec.Cmd)}
}

func (l *ExecLauncher) buildArgs(slotID, port int, cores []int) []string {
	coreList := make([]string, 0, len(cores))
	for _, c := range cores {
		coreList = append(coreList, strconv.Itoa(c))
	}
	repl := strings.NewReplacer(
		"{slot}", strconv.Itoa(slotID),
		"{port}", strconv.Itoa(port),
		"{voice_port}", strconv.Itoa(port+l.cfg.VoicePortOffset),
		"{cores}", strings.Join(coreList, ","),
	)
	out := make([]string, 0, len(l.cfg.Args))
	for _, a := range l.cfg.Args {
		out = append(out, repl.Replace(a))
	}
	return out
}

// Spawn starts the worker and returns its pid once the process is running.
// Readiness is the poller's concern, not Spawn's.
func (l *ExecLauncher) Spawn(ctx context.Context, slotID, port int, cores []int) (int, error) {
	if strings.TrimSpace(l.cfg.Bin) == "" {
		return 0, fmt.Errorf("no worker binary configured")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cmd := exec.Command(l.cfg.Bin, l.buildArgs(slotID, port, cores)...)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start worker: %w", err)
	}
	pid := cmd.Process.Pid
	l.log.Info().Int("slot", slotID).Int("pid", pid).Int("port", port).Ints("cores", cores).Msg("worker spawned")

	l.mu.Lock()
	l.procs[pid] = cmd
	l.mu.Unlock()

	// Reap the exit so the pid does not linger as a zombie; liveness polling
	// notices the disappearance separately.
	go func() {
		err := cmd.Wait()
		l.mu.Lock()
		delete(l.procs, pid)
		l.mu.Unlock()
		if err != nil {
			l.log.Warn().Int("slot", slotID).Int("pid", pid).Err(err).Msg("worker exited")
		} else {
			l.log.Info().Int("slot", slotID).Int("pid", pid).Msg("worker exited cleanly")
		}
	}()
	return pid, nil
}

func (l *ExecLauncher) Signal(pid int, kind SignalKind) error {
	proc, err := l.findProcess(pid)
	if err != nil {
		return err
	}
	switch kind {
	case SignalKill:
		return proc.Kill()
	default:
		return proc.Signal(syscall.SIGTERM)
	}
}

// IsAlive probes the pid with signal 0.
func (l *ExecLauncher) IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	l.mu.Lock()
	_, tracked := l.procs[pid]
	l.mu.Unlock()
	if tracked {
		return true
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func (l *ExecLauncher) findProcess(pid int) (*os.Process, error) {
	l.mu.Lock()
	cmd := l.procs[pid]
	l.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		return cmd.Process, nil
	}
	return os.FindProcess(pid)
}
