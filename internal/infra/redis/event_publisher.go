package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/adapter"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/logging"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/metrics"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/worker"
)

var _ adapter.EventPublisher = (*EventPublisher)(nil)

// Submitter is the slice of worker.Pool the publisher needs.
type Submitter interface {
	Submit(task worker.Task) error
}

// EventPublisher pushes notification events onto a Redis pub/sub channel from
// the worker pool. Delivery is best effort: failures are logged and counted.
type EventPublisher struct {
	client  RedisClient
	pool    Submitter
	channel string
	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

func NewEventPublisher(client RedisClient, pool Submitter, channel string, log zerolog.Logger) *EventPublisher {
	if channel == "" {
		channel = "academia:events"
	}
	return &EventPublisher{
		client:  client,
		pool:    pool,
		channel: channel,
		timeout: 2 * time.Second,
		log:     log.With().Str("component", "EventPublisher").Logger(),
		now:     time.Now,
	}
}

type envelope struct {
	adapter.Event
	TraceID string `json:"trace_id,omitempty"`
}

func (p *EventPublisher) Publish(ctx context.Context, ev adapter.Event) {
	if ev.ID == "" {
		ev.ID = ulid.Make().String()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.now().UTC()
	}
	body, err := json.Marshal(envelope{Event: ev, TraceID: logging.TraceID(ctx)})
	if err != nil {
		metrics.IncEvent(string(ev.Kind), "error")
		p.log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("encode event")
		return
	}

	task := func(ctx context.Context) error {
		pctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		if err := p.client.Publish(pctx, p.channel, body); err != nil {
			metrics.IncEvent(string(ev.Kind), "error")
			p.log.Warn().Err(err).Str("event_id", ev.ID).Str("kind", string(ev.Kind)).Str("reference", ev.Reference).Msg("publish event")
			return nil
		}
		metrics.IncEvent(string(ev.Kind), "sent")
		return nil
	}
	if err := p.pool.Submit(task); err != nil {
		metrics.IncEvent(string(ev.Kind), "dropped")
		p.log.Warn().Err(err).Str("event_id", ev.ID).Str("kind", string(ev.Kind)).Str("reference", ev.Reference).Msg("event dropped")
	}
}
