package core

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"LiquidationQueue/internal/state"
)

// BidEntitlement is what a bid could withdraw and claim at this moment.
// Collateral includes PendingLiquidatedCollateral.
type BidEntitlement struct {
	Bid        state.Bid   `json:"bid"`
	Residual   sdkmath.Int `json:"residual"`
	Collateral sdkmath.Int `json:"collateral"`
}

func (e *Engine) Config(ctx context.Context) (cfg state.Config, err error) {
	err = e.view(ctx, func(l *state.Ledger) error {
		cfg, err = l.ReadConfig()
		return err
	})
	return cfg, err
}

func (e *Engine) CollateralInfo(ctx context.Context, token string) (info state.CollateralInfo, err error) {
	err = e.view(ctx, func(l *state.Ledger) error {
		info, err = l.ReadCollateralInfo(token)
		return err
	})
	return info, err
}

func (e *Engine) Bid(ctx context.Context, idx uint64) (bid state.Bid, err error) {
	err = e.view(ctx, func(l *state.Ledger) error {
		bid, err = l.ReadBid(idx)
		return err
	})
	return bid, err
}

func (e *Engine) BidsByUser(ctx context.Context, collateral, bidder string, startAfter *uint64, limit uint32) (bids []state.Bid, err error) {
	err = e.view(ctx, func(l *state.Ledger) error {
		bids, err = l.ReadBidsByUser(collateral, bidder, startAfter, limit)
		return err
	})
	return bids, err
}

// BidPool is the strict read: ErrPoolNotFound when nobody ever bid on slot.
func (e *Engine) BidPool(ctx context.Context, collateral string, slot uint8) (pool state.BidPool, err error) {
	err = e.view(ctx, func(l *state.Ledger) error {
		pool, err = l.ReadBidPool(collateral, slot)
		return err
	})
	return pool, err
}

// BidPoolsByCollateral pages through pools in ascending premium order.
func (e *Engine) BidPoolsByCollateral(ctx context.Context, collateral string, startAfter *uint8, limit uint32) (pools []state.BidPool, err error) {
	err = e.view(ctx, func(l *state.Ledger) error {
		if _, err := l.ReadCollateralInfo(collateral); err != nil {
			return err
		}
		pools, err = l.ReadBidPools(collateral, startAfter, limit)
		return err
	})
	return pools, err
}

func (e *Engine) TotalBids(ctx context.Context, collateral string) (total sdkmath.Int, err error) {
	err = e.view(ctx, func(l *state.Ledger) error {
		total, err = l.ReadTotalBids(collateral)
		return err
	})
	return total, err
}

// Entitlement reconstructs a bid's withdrawable stable and claimable
// collateral without changing anything.
func (e *Engine) Entitlement(ctx context.Context, idx uint64) (out BidEntitlement, err error) {
	err = e.view(ctx, func(l *state.Ledger) error {
		bid, err := l.ReadBid(idx)
		if err != nil {
			return err
		}
		out.Bid = bid
		if !bid.IsActive() {
			out.Residual = bid.Amount
			out.Collateral = bid.PendingLiquidatedCollateral
			return nil
		}
		pool, err := l.ReadBidPool(bid.CollateralToken, bid.PremiumSlot)
		if err != nil {
			return err
		}
		ent, err := entitlement(bid, pool, l)
		if err != nil {
			return err
		}
		out.Residual = ent.Residual
		out.Collateral = ent.Collateral.Add(bid.PendingLiquidatedCollateral)
		return nil
	})
	return out, err
}
