package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"fleetd/internal/common/fsutil"
	"fleetd/internal/config"
	"fleetd/internal/fleet"
	"fleetd/internal/httpapi"
	"fleetd/internal/natspub"
	"fleetd/internal/store"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("component", "fleetd").Logger()

	// Flags with environment variable defaults
	addr := flag.String("addr", envOr("FLEETD_ADDR", ":8090"), "HTTP listen address, e.g. :8090")
	configPath := flag.String("config", envOr("FLEETD_CONFIG", ""), "Optional config file (.yaml/.json/.toml); flags override it")
	workerBin := flag.String("worker-bin", envOr("FLEETD_WORKER_BIN", "srcds_run"), "Game server executable")
	workerArgs := flag.String("worker-args", "-port {port} +voice_port {voice_port} +cores {cores}", "Argument template; {slot} {port} {voice_port} {cores} are substituted per spawn")
	basePort := flag.Int("base-port", 27015, "Game port of slot 1; slot n listens on base-port+n-1")
	voiceOffset := flag.Int("voice-port-offset", 500, "Added to a slot's game port to form its voice port")
	totalCores := flag.Int("total-cores", runtime.NumCPU(), "Logical cores in the affinity pool")
	reservedCores := flag.Int("reserved-cores", 2, "Lowest cores kept for the host, never pinned")
	pinning := flag.Bool("pinning", true, "Assign CPU cores to workers on start")
	maxSlots := flag.Int("max-slots", 0, "Fleet growth cap (0=unlimited)")
	drainSec := flag.Int("drain-timeout-sec", 30, "Graceful-stop wait for connected players")
	spawnSec := flag.Int("spawn-timeout-sec", 30, "Bound on the worker launch call")
	pollSec := flag.Int("poll-interval-sec", 2, "Liveness poll interval")
	stopPolicy := flag.String("stop-policy", "oldest", "Scale-down tie-break for equally occupied slots: oldest|youngest")
	dataDir := flag.String("data-dir", envOr("FLEETD_DATA_DIR", ""), "Badger directory for slot state (empty=memory only)")
	natsURL := flag.String("nats-url", envOr("FLEETD_NATS_URL", ""), "NATS server for slot events (empty=disabled)")
	flag.Parse()

	// Config file provides the base; explicitly set flags win.
	if *configPath != "" {
		fileCfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("load config")
		}
		applyFileConfig(fileCfg, addr, workerBin, workerArgs, basePort, voiceOffset,
			totalCores, reservedCores, pinning, maxSlots, drainSec, spawnSec, pollSec,
			stopPolicy, dataDir, natsURL)
	}

	bin, err := fsutil.ExpandHome(*workerBin)
	if err != nil {
		log.Fatal().Err(err).Msg("resolve worker binary path")
	}
	launcher := fleet.NewExecLauncher(fleet.LauncherConfig{
		Bin:             bin,
		Args:            strings.Fields(*workerArgs),
		VoicePortOffset: *voiceOffset,
	}, log)

	fcfg := fleet.Config{
		BasePort:        *basePort,
		VoicePortOffset: *voiceOffset,
		TotalCores:      *totalCores,
		ReservedCores:   *reservedCores,
		PinningEnabled:  *pinning,
		MaxSlots:        *maxSlots,
		DrainTimeout:    time.Duration(*drainSec) * time.Second,
		SpawnTimeout:    time.Duration(*spawnSec) * time.Second,
		StopPolicy:      fleet.StopPolicy(*stopPolicy),
		Launcher:        launcher,
		Logger:          log,
	}

	if *dataDir != "" {
		st, err := store.NewBadgerStore(*dataDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", *dataDir).Msg("open state store")
		}
		defer st.Close()
		fcfg.Store = st
	}

	if *natsURL != "" {
		pub, err := natspub.New(*natsURL, log)
		if err != nil {
			log.Fatal().Err(err).Str("url", *natsURL).Msg("connect nats")
		}
		defer pub.Close()
		fcfg.Publisher = pub
	}

	orch := fleet.New(fcfg)
	if fcfg.Store != nil {
		if err := orch.Restore(); err != nil {
			log.Fatal().Err(err).Msg("restore fleet state")
		}
		fs := orch.Fleet()
		log.Info().Int("slots", fs.TotalSlots).Int("live", fs.LiveCount).Msg("fleet state restored")
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	poller := fleet.NewPoller(orch, nil, time.Duration(*pollSec)*time.Second, log)
	go poller.Run(baseCtx)

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(baseCtx)
	httpapi.RegisterFleetCollector(orch.Fleet)
	srv := &http.Server{Addr: *addr, Handler: httpapi.NewMux(orch)}

	go func() {
		log.Info().Str("addr", *addr).Str("worker", *workerBin).Msg("fleetd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM). Workers keep running; state is
	// reconciled from the store on the next start.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}

// applyFileConfig copies file values over flag defaults, skipping any flag the
// operator set explicitly on the command line.
func applyFileConfig(c config.Config, addr, workerBin, workerArgs *string,
	basePort, voiceOffset, totalCores, reservedCores *int, pinning *bool,
	maxSlots, drainSec, spawnSec, pollSec *int, stopPolicy, dataDir, natsURL *string) {

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if c.Addr != "" && !set["addr"] {
		*addr = c.Addr
	}
	if c.WorkerBin != "" && !set["worker-bin"] {
		*workerBin = c.WorkerBin
	}
	if len(c.WorkerArgs) > 0 && !set["worker-args"] {
		*workerArgs = strings.Join(c.WorkerArgs, " ")
	}
	if c.BasePort != 0 && !set["base-port"] {
		*basePort = c.BasePort
	}
	if c.VoicePortOffset != 0 && !set["voice-port-offset"] {
		*voiceOffset = c.VoicePortOffset
	}
	if c.TotalCores != 0 && !set["total-cores"] {
		*totalCores = c.TotalCores
	}
	if c.ReservedCores != 0 && !set["reserved-cores"] {
		*reservedCores = c.ReservedCores
	}
	if c.PinningEnabled != nil && !set["pinning"] {
		*pinning = *c.PinningEnabled
	}
	if c.MaxSlots != 0 && !set["max-slots"] {
		*maxSlots = c.MaxSlots
	}
	if c.DrainTimeoutSec != 0 && !set["drain-timeout-sec"] {
		*drainSec = c.DrainTimeoutSec
	}
	if c.SpawnTimeoutSec != 0 && !set["spawn-timeout-sec"] {
		*spawnSec = c.SpawnTimeoutSec
	}
	if c.PollIntervalSec != 0 && !set["poll-interval-sec"] {
		*pollSec = c.PollIntervalSec
	}
	if c.StopPolicy != "" && !set["stop-policy"] {
		*stopPolicy = c.StopPolicy
	}
	if c.DataDir != "" && !set["data-dir"] {
		*dataDir = c.DataDir
	}
	if c.NATSURL != "" && !set["nats-url"] {
		*natsURL = c.NATSURL
	}
}
