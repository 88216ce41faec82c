// internal/core/liquidation.go
package core

import (
	"context"
	"fmt"
	"strconv"

	sdkmath "cosmossdk.io/math"

	"LiquidationQueue/internal/event"
	fpmath "LiquidationQueue/internal/math"
	"LiquidationQueue/internal/state"
)

// PoolConsumed is the payload of event.QueueEventPoolConsumed.
type PoolConsumed struct {
	Slot             uint8             `json:"premium_slot"`
	Fraction         sdkmath.LegacyDec `json:"fraction"`
	CollateralAmount sdkmath.Int       `json:"collateral_amount"`
	StableConsumed   sdkmath.Int       `json:"stable_consumed"`
}

// PoolRolledOver is the payload of event.QueueEventPoolRolledOver.
type PoolRolledOver struct {
	Slot        uint8             `json:"premium_slot"`
	Kind        string            `json:"kind"`
	Epoch       uint64            `json:"epoch"`
	Scale       uint64            `json:"scale"`
	ArchivedSum sdkmath.LegacyDec `json:"archived_sum"`
}

// SlotFill is the part of a liquidation one pool absorbed.
type SlotFill struct {
	Slot           uint8       `json:"premium_slot"`
	Collateral     sdkmath.Int `json:"collateral"`
	StableConsumed sdkmath.Int `json:"stable_consumed"`
}

// LiquidationResult is the settlement of ExecuteLiquidation. RepayAmount
// plus BidFee equals StableConsumed.
type LiquidationResult struct {
	CollateralAmount sdkmath.Int `json:"collateral_amount"`
	StableConsumed   sdkmath.Int `json:"stable_consumed"`
	BidFee           sdkmath.Int `json:"bid_fee"`
	RepayAmount      sdkmath.Int `json:"repay_amount"`
	Fills            []SlotFill  `json:"fills"`
}

// ConsumePool takes fraction of the (collateral, slot) pool's capital and
// credits its bidders with collateralAmount, pro rata.
func (e *Engine) ConsumePool(ctx context.Context, env Env, collateral string, slot uint8, fraction sdkmath.LegacyDec, collateralAmount sdkmath.Int) (Consumption, error) {
	var out Consumption
	err := e.update(ctx, "consume_pool", env, func(c *call) error {
		if _, err := requireLiquidator(c.ledger, env); err != nil {
			return err
		}
		if _, err := c.ledger.ReadCollateralInfo(collateral); err != nil {
			return err
		}
		var err error
		out, err = e.consumePool(c, collateral, slot, fraction, collateralAmount)
		return err
	})
	return out, err
}

func (e *Engine) consumePool(c *call, collateral string, slot uint8, fraction sdkmath.LegacyDec, collateralAmount sdkmath.Int) (Consumption, error) {
	l := c.ledger
	pool, err := l.ReadBidPool(collateral, slot)
	if err != nil {
		return Consumption{}, err
	}
	return e.applyConsumption(c, collateral, &pool, fraction, collateralAmount)
}

func (e *Engine) applyConsumption(c *call, collateral string, pool *state.BidPool, fraction sdkmath.LegacyDec, collateralAmount sdkmath.Int) (Consumption, error) {
	l := c.ledger
	out, err := consume(pool, fraction, collateralAmount)
	if err != nil {
		return Consumption{}, err
	}
	if out.Roll != RollNone {
		if err := l.StoreEpochScaleSum(collateral, pool.Slot, out.ArchivedEpoch, out.ArchivedScale, out.ArchivedSum); err != nil {
			return Consumption{}, err
		}
	}
	if err := l.StoreBidPool(collateral, *pool); err != nil {
		return Consumption{}, err
	}
	if err := subTotalBids(l, collateral, out.StableConsumed); err != nil {
		return Consumption{}, err
	}

	slot := pool.Slot
	c.emit(event.QueueEventPoolConsumed, collateral, PoolConsumed{
		Slot:             slot,
		Fraction:         fraction,
		CollateralAmount: collateralAmount,
		StableConsumed:   out.StableConsumed,
	})
	if out.Roll != RollNone {
		c.emit(event.QueueEventPoolRolledOver, collateral, PoolRolledOver{
			Slot:        slot,
			Kind:        out.Roll.String(),
			Epoch:       out.ArchivedEpoch,
			Scale:       out.ArchivedScale,
			ArchivedSum: out.ArchivedSum,
		})
	}
	epoch, scale := pool.CurrentEpoch, pool.CurrentScale
	c.after(func() {
		if out.Roll != RollNone {
			e.logger.Info().
				Str("collateral", collateral).
				Uint8("slot", slot).
				Str("kind", out.Roll.String()).
				Uint64("epoch", epoch).
				Uint64("scale", scale).
				Msg("bid pool rolled over")
		}
		if e.metrics == nil {
			return
		}
		e.metrics.PoolConsumptions.WithLabelValues(collateral, strconv.Itoa(int(slot))).Inc()
		if out.Roll != RollNone {
			e.metrics.PoolRollovers.WithLabelValues(collateral, out.Roll.String()).Inc()
		}
	})
	return out, nil
}

// ExecuteLiquidation sells amount of collateral into the queue at price,
// filling the lowest premium pools first. Each pool buys at
// price * (1 - premium rate). The whole amount must be absorbed or the call
// fails with ErrInsufficientFunds and nothing changes.
func (e *Engine) ExecuteLiquidation(ctx context.Context, env Env, collateral string, amount sdkmath.Int, price sdkmath.LegacyDec, priceUpdatedAt uint64) (LiquidationResult, error) {
	var res LiquidationResult
	err := e.update(ctx, "execute_liquidation", env, func(c *call) error {
		var err error
		res, err = e.executeLiquidation(c, collateral, amount, price, priceUpdatedAt)
		return err
	})
	return res, err
}

func (e *Engine) executeLiquidation(c *call, collateral string, amount sdkmath.Int, price sdkmath.LegacyDec, priceUpdatedAt uint64) (LiquidationResult, error) {
	l := c.ledger
	cfg, err := requireLiquidator(l, c.env)
	if err != nil {
		return LiquidationResult{}, err
	}
	if _, err := l.ReadCollateralInfo(collateral); err != nil {
		return LiquidationResult{}, err
	}
	if amount.IsNil() || !amount.IsPositive() {
		return LiquidationResult{}, fmt.Errorf("%w: liquidation amount must be positive", state.ErrInvalidAmount)
	}
	if price.IsNil() || !price.IsPositive() {
		return LiquidationResult{}, fmt.Errorf("%w: price must be positive", state.ErrInvalidAmount)
	}
	if priceUpdatedAt < c.env.BlockTime && c.env.BlockTime-priceUpdatedAt > cfg.PriceTimeframe {
		return LiquidationResult{}, fmt.Errorf("%w: updated at %d, now %d", state.ErrStalePrice, priceUpdatedAt, c.env.BlockTime)
	}

	pools, err := allBidPools(l, collateral)
	if err != nil {
		return LiquidationResult{}, err
	}

	remaining := amount
	consumed := sdkmath.ZeroInt()
	var fills []SlotFill
	for i := range pools {
		if remaining.IsZero() {
			break
		}
		pool := &pools[i]
		if pool.TotalBidAmount.IsZero() {
			continue
		}

		discounted := fpmath.MulTrunc(price, fpmath.OneMinus(pool.PremiumRate))
		required := fpmath.MulIntDec(remaining, discounted)

		var fraction sdkmath.LegacyDec
		var absorbed sdkmath.Int
		if required.LTE(pool.TotalBidAmount) {
			if required.IsZero() {
				return LiquidationResult{}, fmt.Errorf("%w: %s collateral is worth nothing at %s", state.ErrInvalidAmount, remaining, discounted)
			}
			fraction = fpmath.Ratio(required, pool.TotalBidAmount)
			absorbed = remaining
		} else {
			fraction = fpmath.OneDec()
			absorbed = fpmath.QuoIntDec(pool.TotalBidAmount, discounted)
			if absorbed.IsZero() {
				// Dust pool: worth less than one unit of collateral.
				continue
			}
		}
		if fraction.IsZero() {
			return LiquidationResult{}, fmt.Errorf("%w: %s is too small against slot %d", state.ErrInvalidAmount, required, pool.Slot)
		}

		out, err := e.applyConsumption(c, collateral, pool, fraction, absorbed)
		if err != nil {
			return LiquidationResult{}, err
		}
		remaining = subFloor(remaining, absorbed)
		consumed = consumed.Add(out.StableConsumed)
		fills = append(fills, SlotFill{
			Slot:           pool.Slot,
			Collateral:     absorbed,
			StableConsumed: out.StableConsumed,
		})
	}
	if remaining.IsPositive() {
		return LiquidationResult{}, fmt.Errorf("%w: %s %s left after every pool", state.ErrInsufficientFunds, remaining, collateral)
	}

	fee := fpmath.MulIntDec(consumed, cfg.BidFee)
	res := LiquidationResult{
		CollateralAmount: amount,
		StableConsumed:   consumed,
		BidFee:           fee,
		RepayAmount:      consumed.Sub(fee),
		Fills:            fills,
	}
	c.emit(event.QueueEventLiquidationExecuted, collateral, res)
	c.after(func() {
		if e.metrics != nil {
			e.metrics.Liquidations.WithLabelValues(collateral).Inc()
		}
	})
	return res, nil
}

// allBidPools reads every pool of collateral in ascending slot order.
func allBidPools(l *state.Ledger, collateral string) ([]state.BidPool, error) {
	var pools []state.BidPool
	var cursor *uint8
	for {
		page, err := l.ReadBidPools(collateral, cursor, state.MaxLimit)
		if err != nil {
			return nil, err
		}
		pools = append(pools, page...)
		if len(page) < state.MaxLimit {
			return pools, nil
		}
		last := page[len(page)-1].Slot
		cursor = &last
	}
}
