// internal/state/bidpool.go
package state

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	fpmath "LiquidationQueue/internal/math"
)

// BidPool aggregates the active bids of one (collateral, premium slot).
//
// ProductSnapshot (P) is the fraction of a unit deposit that survives the
// liquidations of the current epoch, rescaled by ScaleFactor on every scale
// roll. SumSnapshot (S) accumulates collateral per unit deposit within the
// current (epoch, scale) and restarts at zero whenever either rolls.
type BidPool struct {
	Slot            uint8             `json:"premium_slot"`
	TotalBidAmount  sdkmath.Int       `json:"total_bid_amount"`
	ProductSnapshot sdkmath.LegacyDec `json:"product_snapshot"`
	SumSnapshot     sdkmath.LegacyDec `json:"sum_snapshot"`
	CurrentEpoch    uint64            `json:"current_epoch"`
	CurrentScale    uint64            `json:"current_scale"`
	PremiumRate     sdkmath.LegacyDec `json:"premium_rate"`
}

// NewBidPool returns an empty pool at epoch 0, scale 0, P = 1, S = 0.
func NewBidPool(slot uint8) BidPool {
	return BidPool{
		Slot:            slot,
		TotalBidAmount:  sdkmath.ZeroInt(),
		ProductSnapshot: fpmath.OneDec(),
		SumSnapshot:     fpmath.ZeroDec(),
		PremiumRate:     fpmath.Percent(slot),
	}
}

// ReadBidPool is the strict read: a pool that was never created fails with
// ErrPoolNotFound.
func (l *Ledger) ReadBidPool(collateral string, slot uint8) (BidPool, error) {
	var rec bidPoolRecord
	ok, err := l.load(bidPoolKey(collateral, slot), &rec)
	if err != nil {
		return BidPool{}, err
	}
	if !ok {
		return BidPool{}, ErrPoolNotFound
	}
	return rec.toBidPool()
}

// ReadOrCreateBidPool validates slot against the collateral's MaxSlot and
// returns the stored pool, or a fresh one when none exists yet. The fresh
// pool is not persisted until StoreBidPool.
func (l *Ledger) ReadOrCreateBidPool(info CollateralInfo, slot uint8) (BidPool, error) {
	if !info.ValidSlot(slot) {
		return BidPool{}, fmt.Errorf("%w: slot %d, max %d", ErrInvalidSlot, slot, info.MaxSlot)
	}
	pool, err := l.ReadBidPool(info.CollateralToken, slot)
	if errors.Is(err, ErrPoolNotFound) {
		return NewBidPool(slot), nil
	}
	return pool, err
}

func (l *Ledger) StoreBidPool(collateral string, pool BidPool) error {
	return l.save(bidPoolKey(collateral, pool.Slot), bidPoolRecord{
		Slot:            pool.Slot,
		SumSnapshot:     pool.SumSnapshot.String(),
		ProductSnapshot: pool.ProductSnapshot.String(),
		TotalBidAmount:  pool.TotalBidAmount.String(),
		PremiumRate:     pool.PremiumRate.String(),
		CurrentEpoch:    pool.CurrentEpoch,
		CurrentScale:    pool.CurrentScale,
	})
}

// ReadBidPools pages through the collateral's pools in ascending slot order,
// which is ascending premium order.
func (l *Ledger) ReadBidPools(collateral string, startAfter *uint8, limit uint32) ([]BidPool, error) {
	ns := bidPoolNamespace(collateral)
	var cursor []byte
	if startAfter != nil {
		cursor = []byte{*startAfter}
	}
	n := ClampLimit(limit)

	pools := make([]BidPool, 0, n)
	err := l.scan(ns, rangeStart(ns, cursor), func(key, value []byte) (bool, error) {
		if len(key) != 1 {
			return false, fmt.Errorf("%w: bid pool slot is %d bytes", ErrCorruptedKey, len(key))
		}
		var rec bidPoolRecord
		if err := decode(value, &rec); err != nil {
			return false, fmt.Errorf("decode bid pool %d: %w", key[0], err)
		}
		pool, err := rec.toBidPool()
		if err != nil {
			return false, err
		}
		pools = append(pools, pool)
		return len(pools) < n, nil
	})
	if err != nil {
		return nil, err
	}
	return pools, nil
}

// ReadTotalBids returns the capital committed to the collateral's pools;
// zero when nothing was ever deposited.
func (l *Ledger) ReadTotalBids(collateral string) (sdkmath.Int, error) {
	var raw string
	ok, err := l.load(totalBidsKey(collateral), &raw)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if !ok {
		return sdkmath.ZeroInt(), nil
	}
	return parseInt("total_bids", raw)
}

func (l *Ledger) StoreTotalBids(collateral string, total sdkmath.Int) error {
	return l.save(totalBidsKey(collateral), total.String())
}

// StoreEpochScaleSum archives S of a (epoch, scale) that the pool has just
// left.
func (l *Ledger) StoreEpochScaleSum(collateral string, slot uint8, epoch, scale uint64, sum sdkmath.LegacyDec) error {
	return l.save(epochScaleSumKey(collateral, slot, epoch, scale), sum.String())
}

// ReadEpochScaleSum returns the archived S and whether it exists.
func (l *Ledger) ReadEpochScaleSum(collateral string, slot uint8, epoch, scale uint64) (sdkmath.LegacyDec, bool, error) {
	var raw string
	ok, err := l.load(epochScaleSumKey(collateral, slot, epoch, scale), &raw)
	if err != nil || !ok {
		return sdkmath.LegacyDec{}, false, err
	}
	sum, err := parseDec("epoch_scale_sum", raw)
	if err != nil {
		return sdkmath.LegacyDec{}, false, err
	}
	return sum, true, nil
}

func (r bidPoolRecord) toBidPool() (BidPool, error) {
	pool := BidPool{
		Slot:         r.Slot,
		CurrentEpoch: r.CurrentEpoch,
		CurrentScale: r.CurrentScale,
	}
	var err error
	if pool.TotalBidAmount, err = parseInt("total_bid_amount", r.TotalBidAmount); err != nil {
		return BidPool{}, err
	}
	if pool.ProductSnapshot, err = parseDec("product_snapshot", r.ProductSnapshot); err != nil {
		return BidPool{}, err
	}
	if pool.SumSnapshot, err = parseDec("sum_snapshot", r.SumSnapshot); err != nil {
		return BidPool{}, err
	}
	if pool.PremiumRate, err = parseDec("premium_rate", r.PremiumRate); err != nil {
		return BidPool{}, err
	}
	return pool, nil
}
