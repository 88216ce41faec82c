package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"LiquidationQueue/internal/event"
)

// CommandStream is the JetStream stream holding inbound queue commands.
const CommandStream = "LIQQUEUE_COMMANDS"

// NATSSubscriber subscribes to JetStream command subjects and feeds raw
// commands to the Dispatcher through cmdChan.
type NATSSubscriber struct {
	js        jetstream.JetStream
	cmdChan   chan<- RawCommand
	consumers []jetstream.ConsumeContext
	logger    zerolog.Logger
}

// RawCommand is a received-but-unparsed command together with the callbacks
// that settle its NATS message. Sender is the subject's last token and
// Timestamp the time JetStream stored the message.
type RawCommand struct {
	Subject     string
	CommandType event.CommandType
	Sender      string
	Data        []byte
	Timestamp   time.Time
	AckFunc     func() // processed, or a duplicate
	NakFunc     func() // transient failure, redeliver
	TermFunc    func() // rejected for good, never redeliver
}

// SubjectConfig maps a NATS subject prefix to a command type. Commands are
// published to <Subject>.<sender>; NATS user permissions must limit each
// account to publishing under its own sender token.
type SubjectConfig struct {
	Subject      string
	CommandType  event.CommandType
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns one durable consumer per command type under
// liqqueue.commands.>.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "liqqueue.commands.bids.submit", CommandType: event.CommandTypeSubmitBid, ConsumerName: "queue-bid-submit", StreamName: CommandStream},
		{Subject: "liqqueue.commands.bids.activate", CommandType: event.CommandTypeActivateBids, ConsumerName: "queue-bid-activate", StreamName: CommandStream},
		{Subject: "liqqueue.commands.bids.retract", CommandType: event.CommandTypeRetractBid, ConsumerName: "queue-bid-retract", StreamName: CommandStream},
		{Subject: "liqqueue.commands.bids.claim", CommandType: event.CommandTypeClaimLiquidations, ConsumerName: "queue-bid-claim", StreamName: CommandStream},
		{Subject: "liqqueue.commands.pools.consume", CommandType: event.CommandTypeConsumePool, ConsumerName: "queue-pool-consume", StreamName: CommandStream},
		{Subject: "liqqueue.commands.liquidations.execute", CommandType: event.CommandTypeExecuteLiquidation, ConsumerName: "queue-liquidation-execute", StreamName: CommandStream},
	}
}

// SubjectFor is the subject a sender publishes commands of base to.
func SubjectFor(base, sender string) string {
	return base + "." + sender
}

// senderFromSubject returns the token following base, or "" when subject is
// not a single-token extension of base.
func senderFromSubject(base, subject string) string {
	rest, ok := strings.CutPrefix(subject, base+".")
	if !ok || rest == "" || strings.Contains(rest, ".") {
		return ""
	}
	return rest
}

func receivedAt(msg jetstream.Msg) time.Time {
	if md, err := msg.Metadata(); err == nil && !md.Timestamp.IsZero() {
		return md.Timestamp
	}
	return time.Now()
}

func NewNATSSubscriber(js jetstream.JetStream, cmdChan chan<- RawCommand, logger zerolog.Logger) *NATSSubscriber {
	return &NATSSubscriber{
		js:      js,
		cmdChan: cmdChan,
		logger:  logger,
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject + ".*",
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		cmdType, base := cfg.CommandType, cfg.Subject
		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawCommand{
				Subject:     msg.Subject(),
				CommandType: cmdType,
				Sender:      senderFromSubject(base, msg.Subject()),
				Data:        msg.Data(),
				Timestamp:   receivedAt(msg),
				AckFunc:     func() { msg.Ack() },
				NakFunc:     func() { msg.Nak() },
				TermFunc:    func() { msg.Term() },
			}

			select {
			case ns.cmdChan <- raw:
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		ns.logger.Info().Str("subject", cfg.Subject).Str("consumer", cfg.ConsumerName).Msg("subscribed")
	}

	return nil
}

// EnsureStreams creates the command stream if it doesn't exist.
// Commands are kept 72h on file storage.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      CommandStream,
		Subjects:  []string{"liqqueue.commands.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", CommandStream, err)
	}
	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	ns.logger.Info().Msg("NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, logger zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
