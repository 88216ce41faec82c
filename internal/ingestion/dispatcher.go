package ingestion

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"LiquidationQueue/internal/core"
	"LiquidationQueue/internal/event"
	"LiquidationQueue/internal/observability"
	"LiquidationQueue/internal/state"
)

// Applier runs a parsed command. *core.Engine implements it.
type Applier interface {
	Apply(ctx context.Context, cmd event.Command) (core.ApplyResult, error)
}

// Dispatcher drains raw commands, applies them one at a time and settles
// each NATS message:
//
//	applied or duplicate               -> ACK
//	malformed or rejected by the queue -> TERM
//	ledger corruption                  -> TERM, logged at error and counted
//	store or transport failure         -> NAK (redelivered)
type Dispatcher struct {
	applier Applier
	in      <-chan RawCommand
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewDispatcher(applier Applier, in <-chan RawCommand, logger zerolog.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		applier: applier,
		in:      in,
		logger:  logger,
		metrics: metrics,
	}
}

// Run processes commands until ctx is cancelled or the input closes.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-d.in:
			if !ok {
				return nil
			}
			d.handle(ctx, raw)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, raw RawCommand) {
	cmd, err := ParseCommand(raw)
	if err != nil {
		d.logger.Warn().Err(err).Str("subject", raw.Subject).Msg("malformed command")
		d.settle(raw, "malformed", raw.TermFunc)
		return
	}

	res, err := d.applier.Apply(ctx, cmd)
	switch {
	case err == nil && res.Duplicate:
		d.settle(raw, "duplicate", raw.AckFunc)
	case err == nil:
		d.settle(raw, "applied", raw.AckFunc)
	case errors.Is(err, state.ErrCorruptedKey):
		d.logger.Error().Err(err).
			Str("command_id", cmd.CommandID().String()).
			Str("subject", raw.Subject).
			Bool("alert", true).
			Msg("ledger corruption, command terminated")
		if d.metrics != nil {
			d.metrics.LedgerCorruptions.Inc()
		}
		d.settle(raw, "corrupted", raw.TermFunc)
	case rejectedForGood(err):
		d.logger.Info().Err(err).Str("command_id", cmd.CommandID().String()).Msg("command rejected")
		d.settle(raw, "rejected", raw.TermFunc)
	default:
		d.logger.Error().Err(err).Str("command_id", cmd.CommandID().String()).Msg("command failed, will be redelivered")
		d.settle(raw, "failed", raw.NakFunc)
	}
}

func (d *Dispatcher) settle(raw RawCommand, outcome string, fn func()) {
	if d.metrics != nil {
		d.metrics.CommandsReceived.WithLabelValues(raw.CommandType.String(), outcome).Inc()
	}
	if fn != nil {
		fn()
	}
}

// rejectedForGood reports whether redelivering the command could never
// change the outcome.
func rejectedForGood(err error) bool {
	return state.IsCallerError(err) || errors.Is(err, state.ErrUnauthorized)
}
