package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"LiquidationQueue/internal/event"
	"LiquidationQueue/internal/observability"
	"LiquidationQueue/internal/state"
	"LiquidationQueue/internal/store"
)

// Env is the execution context the host attaches to every mutating call.
// The engine never samples a clock; BlockTime is the only notion of now.
type Env struct {
	Sender    string
	BlockTime uint64
}

// EventSink receives queue events after the call that produced them has
// committed. Publish must not block.
type EventSink interface {
	Publish(evt event.QueueEvent)
}

// Engine runs queue operations against a store.DB. Each exported method is
// one transaction: its writes commit together or not at all.
type Engine struct {
	db      store.DB
	logger  zerolog.Logger
	metrics *observability.Metrics
	dedup   *CommandDeduplicator
	sink    EventSink
}

// NewEngine creates an engine. metrics may be nil. lruCapacity sizes the
// in-memory tier of command deduplication.
func NewEngine(db store.DB, logger zerolog.Logger, metrics *observability.Metrics, lruCapacity int) *Engine {
	return &Engine{
		db:      db,
		logger:  logger,
		metrics: metrics,
		dedup:   NewCommandDeduplicator(lruCapacity, metrics),
	}
}

// SetEventSink installs the destination for queue events. Without one,
// events are dropped.
func (e *Engine) SetEventSink(sink EventSink) {
	e.sink = sink
}

// call collects the side effects of one transaction that may only happen
// after it commits.
type call struct {
	ledger   *state.Ledger
	env      Env
	cmdID    *uuid.UUID
	events   []event.QueueEvent
	onCommit []func()
}

func (c *call) emit(typ event.QueueEventType, collateral string, payload interface{}) {
	c.events = append(c.events, event.QueueEvent{
		Type:       typ,
		CommandID:  c.cmdID,
		Collateral: collateral,
		BlockTime:  c.env.BlockTime,
		Payload:    payload,
	})
}

func (c *call) after(fn func()) {
	c.onCommit = append(c.onCommit, fn)
}

func (e *Engine) update(ctx context.Context, op string, env Env, fn func(c *call) error) error {
	return e.run(ctx, op, &call{env: env}, fn)
}

func (e *Engine) run(ctx context.Context, op string, c *call, fn func(c *call) error) error {
	start := time.Now()
	err := e.db.Update(ctx, func(kv store.KVStore) error {
		c.ledger = state.NewLedger(kv)
		return fn(c)
	})
	e.observe(op, start, err)
	if err != nil {
		return err
	}
	for _, fn := range c.onCommit {
		fn()
	}
	if e.sink != nil {
		for _, evt := range c.events {
			e.sink.Publish(evt)
		}
	}
	return nil
}

func (e *Engine) view(ctx context.Context, fn func(l *state.Ledger) error) error {
	return e.db.View(ctx, func(kv store.KVStore) error {
		return fn(state.NewLedger(kv))
	})
}

func (e *Engine) observe(op string, start time.Time, err error) {
	if err != nil {
		e.logger.Debug().Err(err).Str("op", op).Msg("call rejected")
	}
	if e.metrics == nil {
		return
	}
	e.metrics.CallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.CallsRejected.WithLabelValues(op, rejectReason(err)).Inc()
		return
	}
	e.metrics.CallsApplied.WithLabelValues(op).Inc()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, state.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, state.ErrNotFound):
		return "not_found"
	case errors.Is(err, state.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, state.ErrCorruptedKey):
		return "corrupted"
	case state.IsCallerError(err):
		return "invalid"
	default:
		return "internal"
	}
}

// --- Config registry ---

// ConfigUpdate carries the optional fields of UpdateConfig.
type ConfigUpdate struct {
	Owner                *string
	OracleContract       *string
	SafeRatio            *sdkmath.LegacyDec
	BidFee               *sdkmath.LegacyDec
	LiquidationThreshold *sdkmath.Int
	PriceTimeframe       *uint64
	WaitingPeriod        *uint64
	Liquidator           *string
}

// Instantiate stores the initial config. Owner defaults to env.Sender.
func (e *Engine) Instantiate(ctx context.Context, env Env, cfg state.Config) error {
	return e.update(ctx, "instantiate", env, func(c *call) error {
		if _, err := c.ledger.ReadConfig(); err == nil {
			return state.ErrAlreadyInitialized
		} else if !errors.Is(err, state.ErrConfigNotFound) {
			return err
		}
		if cfg.Owner == "" {
			cfg.Owner = env.Sender
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return c.ledger.StoreConfig(cfg)
	})
}

// UpdateConfig applies the set fields of upd. Owner only.
func (e *Engine) UpdateConfig(ctx context.Context, env Env, upd ConfigUpdate) error {
	return e.update(ctx, "update_config", env, func(c *call) error {
		cfg, err := requireOwner(c.ledger, env)
		if err != nil {
			return err
		}
		if upd.Owner != nil {
			cfg.Owner = *upd.Owner
		}
		if upd.OracleContract != nil {
			cfg.OracleContract = *upd.OracleContract
		}
		if upd.SafeRatio != nil {
			cfg.SafeRatio = *upd.SafeRatio
		}
		if upd.BidFee != nil {
			cfg.BidFee = *upd.BidFee
		}
		if upd.LiquidationThreshold != nil {
			cfg.LiquidationThreshold = *upd.LiquidationThreshold
		}
		if upd.PriceTimeframe != nil {
			cfg.PriceTimeframe = *upd.PriceTimeframe
		}
		if upd.WaitingPeriod != nil {
			cfg.WaitingPeriod = *upd.WaitingPeriod
		}
		if upd.Liquidator != nil {
			cfg.Liquidator = *upd.Liquidator
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return c.ledger.StoreConfig(cfg)
	})
}

func requireOwner(l *state.Ledger, env Env) (state.Config, error) {
	cfg, err := l.ReadConfig()
	if err != nil {
		return state.Config{}, err
	}
	if env.Sender != cfg.Owner {
		return state.Config{}, fmt.Errorf("%w: %s is not the owner", state.ErrUnauthorized, env.Sender)
	}
	return cfg, nil
}

func requireLiquidator(l *state.Ledger, env Env) (state.Config, error) {
	cfg, err := l.ReadConfig()
	if err != nil {
		return state.Config{}, err
	}
	if !cfg.CanLiquidate(env.Sender) {
		return state.Config{}, fmt.Errorf("%w: %s may not liquidate", state.ErrUnauthorized, env.Sender)
	}
	return cfg, nil
}

// --- Collateral registry ---

// WhitelistCollateral registers a collateral token. Owner only.
func (e *Engine) WhitelistCollateral(ctx context.Context, env Env, token string, bidThreshold sdkmath.Int, maxSlot uint8) error {
	return e.update(ctx, "whitelist_collateral", env, func(c *call) error {
		if _, err := requireOwner(c.ledger, env); err != nil {
			return err
		}
		if !state.ValidToken(token) {
			return fmt.Errorf("%w: collateral token must be 1 to %d bytes", state.ErrInvalidToken, state.MaxTokenLen)
		}
		ok, err := c.ledger.IsWhitelisted(token)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: %s", state.ErrAlreadyWhitelisted, token)
		}
		if !state.ValidMaxSlot(maxSlot) {
			return fmt.Errorf("%w: %d", state.ErrInvalidMaxSlot, maxSlot)
		}
		if bidThreshold.IsNil() || bidThreshold.IsNegative() {
			return fmt.Errorf("%w: negative bid threshold", state.ErrInvalidAmount)
		}
		return c.ledger.StoreCollateralInfo(state.CollateralInfo{
			CollateralToken: token,
			BidThreshold:    bidThreshold,
			MaxSlot:         maxSlot,
		})
	})
}

// UpdateCollateralInfo changes the threshold or slot limit of a whitelisted
// token. Owner only. Pools above a lowered MaxSlot keep their bids but accept
// no new ones.
func (e *Engine) UpdateCollateralInfo(ctx context.Context, env Env, token string, bidThreshold *sdkmath.Int, maxSlot *uint8) error {
	return e.update(ctx, "update_collateral_info", env, func(c *call) error {
		if _, err := requireOwner(c.ledger, env); err != nil {
			return err
		}
		info, err := c.ledger.ReadCollateralInfo(token)
		if err != nil {
			return err
		}
		if bidThreshold != nil {
			if bidThreshold.IsNil() || bidThreshold.IsNegative() {
				return fmt.Errorf("%w: negative bid threshold", state.ErrInvalidAmount)
			}
			info.BidThreshold = *bidThreshold
		}
		if maxSlot != nil {
			if !state.ValidMaxSlot(*maxSlot) {
				return fmt.Errorf("%w: %d", state.ErrInvalidMaxSlot, *maxSlot)
			}
			info.MaxSlot = *maxSlot
		}
		return c.ledger.StoreCollateralInfo(info)
	})
}
