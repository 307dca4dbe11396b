// Package natspub forwards orchestrator slot events to NATS subjects so
// dashboards and webhook bridges can subscribe without touching the core.
package natspub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"fleetd/internal/fleet"
)

// wireEvent is the JSON payload published per slot event. EventID makes
// at-least-once delivery deduplicatable on the consumer side.
type wireEvent struct {
	EventID string         `json:"event_id"`
	Name    string         `json:"name"`
	SlotID  int            `json:"slot_id"`
	Time    time.Time      `json:"time"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Publisher implements fleet.EventPublisher over a NATS connection.
type Publisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// New connects to NATS with endless reconnects. The daemon keeps running
// through broker outages; events published while disconnected are dropped.
func New(url string, log zerolog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("fleetd"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{nc: nc, log: log}, nil
}

// Publish forwards one event on fleet.slot.<id>.<name>. It never blocks the
// orchestrator: failures are logged and dropped.
func (p *Publisher) Publish(e fleet.Event) {
	payload, err := json.Marshal(wireEvent{
		EventID: uuid.NewString(),
		Name:    e.Name,
		SlotID:  e.SlotID,
		Time:    time.Now(),
		Fields:  e.Fields,
	})
	if err != nil {
		p.log.Error().Err(err).Str("event", e.Name).Msg("marshal event")
		return
	}
	subject := fmt.Sprintf("fleet.slot.%d.%s", e.SlotID, e.Name)
	if err := p.nc.Publish(subject, payload); err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("publish event")
	}
}

// Close drains the connection so queued events flush before shutdown.
func (p *Publisher) Close() {
	if p.nc == nil {
		return
	}
	_ = p.nc.Drain()
	p.nc.Close()
}
