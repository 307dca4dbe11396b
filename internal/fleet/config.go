package fleet

import (
	"time"

	"github.com/rs/zerolog"

	"fleetd/internal/affinity"
	"fleetd/internal/store"
)

// StopPolicy breaks ties between occupied slots with equal client counts
// during scale-down.
type StopPolicy string

const (
	// StopOldestFirst prefers the longest-running occupied slot.
	StopOldestFirst StopPolicy = "oldest"
	// StopYoungestFirst prefers the most recently started occupied slot.
	StopYoungestFirst StopPolicy = "youngest"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultBasePort        = 27015
	defaultVoicePortOffset = 500
	defaultDrainTimeout    = 30 * time.Second
	defaultDrainPoll       = 250 * time.Millisecond
	defaultSpawnTimeout    = 30 * time.Second
	defaultStopTimeout     = 5 * time.Second
	defaultStopPolicy      = StopOldestFirst
)

// Config encapsulates all tunables for Orchestrator construction.
type Config struct {
	// BasePort is the game port of slot 1; slot n listens on BasePort+n-1.
	BasePort int
	// VoicePortOffset is added to a slot's game port to form its voice port.
	VoicePortOffset int
	// TotalCores / ReservedCores size the affinity pool. The lowest
	// ReservedCores indices stay with the host.
	TotalCores    int
	ReservedCores int
	// PinningEnabled gates core assignment on start. Off means workers float.
	PinningEnabled bool
	// MaxSlots caps fleet growth; 0 means unlimited.
	MaxSlots int
	// DrainTimeout bounds the graceful-stop wait for connected clients.
	DrainTimeout time.Duration
	// DrainPollInterval is how often the drain wait re-checks client counts.
	DrainPollInterval time.Duration
	// SpawnTimeout bounds the external launch call.
	SpawnTimeout time.Duration
	// StopTimeout bounds the wait between SIGTERM and the forced kill.
	StopTimeout time.Duration
	// StopPolicy breaks scale-down ties between equally occupied slots.
	StopPolicy StopPolicy

	// Launcher is required. Publisher and Store are optional; nil means
	// events are dropped and state is held in memory only.
	Launcher  Launcher
	Publisher EventPublisher
	Store     store.Store
	Logger    zerolog.Logger
}

func (c *Config) applyDefaults() {
	if c.BasePort <= 0 {
		c.BasePort = defaultBasePort
	}
	if c.VoicePortOffset <= 0 {
		c.VoicePortOffset = defaultVoicePortOffset
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = defaultDrainTimeout
	}
	if c.DrainPollInterval <= 0 {
		c.DrainPollInterval = defaultDrainPoll
	}
	if c.SpawnTimeout <= 0 {
		c.SpawnTimeout = defaultSpawnTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = defaultStopTimeout
	}
	if c.StopPolicy != StopOldestFirst && c.StopPolicy != StopYoungestFirst {
		c.StopPolicy = defaultStopPolicy
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
}

// newAllocator wires the affinity pool with a lifecycle check so core
// mutation and slot state can only change together.
func (o *Orchestrator) newAllocator(totalCores, reservedCores int) *affinity.Allocator {
	return affinity.NewAllocator(totalCores, reservedCores, func(slotID int) bool {
		s := o.getSlot(slotID)
		if s == nil {
			return false
		}
		return s.loadStatus().CoresMutable()
	})
}
