// internal/core/accumulator.go
package core

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	fpmath "LiquidationQueue/internal/math"
	"LiquidationQueue/internal/state"
)

// Pool arithmetic. Nothing in this file touches storage: archived sums are
// returned to the caller for persistence and read back through SumArchive.

// RollKind names the accumulator roll a consumption caused.
type RollKind int

const (
	RollNone RollKind = iota
	RollScale
	RollEpoch
)

func (r RollKind) String() string {
	switch r {
	case RollScale:
		return "scale"
	case RollEpoch:
		return "epoch"
	default:
		return "none"
	}
}

// Consumption is the outcome of one ConsumePool step. When Roll is not
// RollNone, ArchivedSum must be stored under (ArchivedEpoch, ArchivedScale).
type Consumption struct {
	StableConsumed sdkmath.Int
	Roll           RollKind
	ArchivedEpoch  uint64
	ArchivedScale  uint64
	ArchivedSum    sdkmath.LegacyDec
}

// SumArchive resolves the S of an (epoch, scale) the pool has already left.
type SumArchive interface {
	ReadEpochScaleSum(collateral string, slot uint8, epoch, scale uint64) (sdkmath.LegacyDec, bool, error)
}

// depositInto adds amount to the pool and snapshots the pool accumulators
// onto bid.
func depositInto(pool *state.BidPool, bid *state.Bid, amount sdkmath.Int) {
	pool.TotalBidAmount = pool.TotalBidAmount.Add(amount)
	snapshot(pool, bid)
}

func snapshot(pool *state.BidPool, bid *state.Bid) {
	bid.ProductSnapshot = pool.ProductSnapshot
	bid.SumSnapshot = pool.SumSnapshot
	bid.EpochSnapshot = pool.CurrentEpoch
	bid.ScaleSnapshot = pool.CurrentScale
}

// consume absorbs collateral into the pool in exchange for fraction of its
// capital. fraction must lie in (0, 1].
func consume(pool *state.BidPool, fraction sdkmath.LegacyDec, collateral sdkmath.Int) (Consumption, error) {
	total := pool.TotalBidAmount
	if total.IsZero() {
		return Consumption{}, fmt.Errorf("%w: slot %d has no bids", state.ErrInsufficientFunds, pool.Slot)
	}
	if fraction.IsNil() || !fraction.IsPositive() {
		return Consumption{}, fmt.Errorf("%w: %s", state.ErrInvalidFraction, fraction)
	}
	if fraction.GT(fpmath.OneDec()) {
		return Consumption{}, fmt.Errorf("%w: fraction %s exceeds pool", state.ErrInsufficientFunds, fraction)
	}
	if collateral.IsNil() || collateral.IsNegative() {
		return Consumption{}, fmt.Errorf("%w: collateral %s", state.ErrInvalidAmount, collateral)
	}

	gain := fpmath.Ratio(collateral, total)
	pool.SumSnapshot = pool.SumSnapshot.Add(fpmath.MulTrunc(pool.ProductSnapshot, gain))

	remaining := fpmath.MulIntDec(total, fpmath.OneMinus(fraction))
	out := Consumption{StableConsumed: total.Sub(remaining)}

	if fraction.Equal(fpmath.OneDec()) || remaining.IsZero() {
		rollEpoch(pool, &out)
		return out, nil
	}

	// P follows the stored integer total, not the requested fraction, so the
	// capital implied by bid snapshots never exceeds TotalBidAmount.
	product := fpmath.MulTrunc(pool.ProductSnapshot, fpmath.Ratio(remaining, total))
	if product.IsZero() {
		rollEpoch(pool, &out)
		return out, nil
	}

	pool.TotalBidAmount = remaining
	if fpmath.BelowFloor(product) {
		archive(pool, &out, RollScale)
		pool.CurrentScale++
		pool.SumSnapshot = fpmath.ZeroDec()
		pool.ProductSnapshot = fpmath.MulTrunc(product, fpmath.ScaleFactor)
		return out, nil
	}
	pool.ProductSnapshot = product
	return out, nil
}

func rollEpoch(pool *state.BidPool, out *Consumption) {
	archive(pool, out, RollEpoch)
	out.StableConsumed = pool.TotalBidAmount
	pool.TotalBidAmount = sdkmath.ZeroInt()
	pool.CurrentEpoch++
	pool.CurrentScale = 0
	pool.ProductSnapshot = fpmath.OneDec()
	pool.SumSnapshot = fpmath.ZeroDec()
}

func archive(pool *state.BidPool, out *Consumption, kind RollKind) {
	out.Roll = kind
	out.ArchivedEpoch = pool.CurrentEpoch
	out.ArchivedScale = pool.CurrentScale
	out.ArchivedSum = pool.SumSnapshot
}

// Entitlement is what an active bid can withdraw and claim right now.
type Entitlement struct {
	Residual   sdkmath.Int `json:"residual"`
	Collateral sdkmath.Int `json:"collateral"`
}

// entitlement reconstructs a bid's share of the pool from its snapshot. It
// does not include PendingLiquidatedCollateral.
func entitlement(bid state.Bid, pool state.BidPool, sums SumArchive) (Entitlement, error) {
	sumAt := func(scale uint64) (sdkmath.LegacyDec, bool, error) {
		if bid.EpochSnapshot == pool.CurrentEpoch && scale == pool.CurrentScale {
			return pool.SumSnapshot, true, nil
		}
		return sums.ReadEpochScaleSum(bid.CollateralToken, bid.PremiumSlot, bid.EpochSnapshot, scale)
	}

	first, ok, err := sumAt(bid.ScaleSnapshot)
	if err != nil {
		return Entitlement{}, err
	}
	if !ok {
		first = bid.SumSnapshot
	}
	second, ok, err := sumAt(bid.ScaleSnapshot + 1)
	if err != nil {
		return Entitlement{}, err
	}
	if !ok {
		second = fpmath.ZeroDec()
	}

	perUnit := first.Sub(bid.SumSnapshot)
	if perUnit.IsNegative() {
		return Entitlement{}, fmt.Errorf("sum snapshot %s ahead of pool sum %s for bid %d", bid.SumSnapshot, first, bid.Idx)
	}
	perUnit = perUnit.Add(fpmath.QuoTrunc(second, fpmath.ScaleFactor))

	return Entitlement{
		Residual:   residual(bid, pool),
		Collateral: fpmath.MulDivInt(bid.Amount, perUnit, bid.ProductSnapshot),
	}, nil
}

func residual(bid state.Bid, pool state.BidPool) sdkmath.Int {
	if bid.EpochSnapshot < pool.CurrentEpoch || pool.CurrentScale < bid.ScaleSnapshot {
		return sdkmath.ZeroInt()
	}
	scaled := fpmath.IntToDec(bid.Amount).
		MulTruncate(pool.ProductSnapshot).
		QuoTruncate(bid.ProductSnapshot)
	switch pool.CurrentScale - bid.ScaleSnapshot {
	case 0:
		return scaled.TruncateInt()
	case 1:
		return scaled.QuoTruncate(fpmath.ScaleFactor).TruncateInt()
	default:
		return sdkmath.ZeroInt()
	}
}
