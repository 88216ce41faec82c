package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"LiquidationQueue/internal/event"
	"LiquidationQueue/internal/observability"
)

// EventStream is the JetStream stream holding outbound queue events.
const EventStream = "LIQQUEUE_EVENTS"

// streamPublisher is the part of jetstream.JetStream the publisher uses.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// OutboundPublisher publishes committed queue events to
// liqqueue.events.{type}.{collateral}. It implements core.EventSink: Publish
// enqueues without blocking and drops the event when the buffer is full.
type OutboundPublisher struct {
	js      streamPublisher
	queue   chan event.QueueEvent
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewOutboundPublisher(js streamPublisher, buffer int, logger zerolog.Logger, metrics *observability.Metrics) *OutboundPublisher {
	return &OutboundPublisher{
		js:      js,
		queue:   make(chan event.QueueEvent, buffer),
		logger:  logger,
		metrics: metrics,
	}
}

// Publish enqueues evt for the Run loop.
func (op *OutboundPublisher) Publish(evt event.QueueEvent) {
	select {
	case op.queue <- evt:
	default:
		op.logger.Warn().Str("type", string(evt.Type)).Msg("outbound queue full, event dropped")
		op.recordError()
	}
}

// Run publishes queued events until ctx is cancelled. Publish failures are
// logged and skipped: the ledger stays queryable over gRPC.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-op.queue:
			if err := op.publish(ctx, evt); err != nil {
				op.logger.Warn().Err(err).Str("type", string(evt.Type)).Msg("outbound publish failed")
				op.recordError()
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, evt event.QueueEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = op.js.Publish(ctx, EventSubject(evt), data)
	return err
}

func (op *OutboundPublisher) recordError() {
	if op.metrics != nil {
		op.metrics.PublishErrors.Inc()
	}
}

var subjectTokenReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

// EventSubject builds liqqueue.events.{type}.{collateral}. Characters NATS
// reserves in subject tokens are replaced with '_'.
func EventSubject(evt event.QueueEvent) string {
	subject := "liqqueue.events." + string(evt.Type)
	if evt.Collateral != "" {
		subject += "." + subjectTokenReplacer.Replace(evt.Collateral)
	}
	return subject
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      EventStream,
		Subjects:  []string{"liqqueue.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}
