// internal/core/bids.go
package core

import (
	"context"
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"

	"LiquidationQueue/internal/event"
	fpmath "LiquidationQueue/internal/math"
	"LiquidationQueue/internal/state"
)

// BidSubmitted is the payload of event.QueueEventBidSubmitted.
type BidSubmitted struct {
	Bid state.Bid `json:"bid"`
}

// BidsActivated is the payload of event.QueueEventBidsActivated.
type BidsActivated struct {
	Bidder  string      `json:"bidder"`
	BidIdxs []uint64    `json:"bid_idxs"`
	Amount  sdkmath.Int `json:"amount"`
}

// BidRetracted is the payload of event.QueueEventBidRetracted.
type BidRetracted struct {
	BidIdx    uint64      `json:"bid_idx"`
	Bidder    string      `json:"bidder"`
	Withdrawn sdkmath.Int `json:"withdrawn"`
	Removed   bool        `json:"removed"`
}

// LiquidationsClaimed is the payload of event.QueueEventLiquidationsClaimed.
type LiquidationsClaimed struct {
	Bidder  string      `json:"bidder"`
	Claimed sdkmath.Int `json:"claimed"`
}

// SubmitBid records a bid of amount on (collateral, slot) and returns its
// index. While the collateral's committed capital is below its bid
// threshold the bid enters the pool immediately; otherwise it waits
// WaitingPeriod seconds and must be activated.
func (e *Engine) SubmitBid(ctx context.Context, env Env, collateral string, slot uint8, amount sdkmath.Int) (uint64, error) {
	var idx uint64
	err := e.update(ctx, "submit_bid", env, func(c *call) error {
		var err error
		idx, err = e.submitBid(c, collateral, slot, amount)
		return err
	})
	return idx, err
}

func (e *Engine) submitBid(c *call, collateral string, slot uint8, amount sdkmath.Int) (uint64, error) {
	l := c.ledger
	if !state.ValidToken(c.env.Sender) {
		return 0, fmt.Errorf("%w: bidder address must be 1 to %d bytes", state.ErrInvalidToken, state.MaxTokenLen)
	}
	cfg, err := l.ReadConfig()
	if err != nil {
		return 0, err
	}
	info, err := l.ReadCollateralInfo(collateral)
	if err != nil {
		return 0, err
	}
	if amount.IsNil() || !amount.IsPositive() {
		return 0, fmt.Errorf("%w: bid amount must be positive", state.ErrInvalidAmount)
	}
	pool, err := l.ReadOrCreateBidPool(info, slot)
	if err != nil {
		return 0, err
	}
	idx, err := l.PopBidIdx()
	if err != nil {
		return 0, err
	}
	totalBids, err := l.ReadTotalBids(collateral)
	if err != nil {
		return 0, err
	}

	bid := state.Bid{
		Idx:                         idx,
		CollateralToken:             collateral,
		PremiumSlot:                 slot,
		Bidder:                      c.env.Sender,
		Amount:                      amount,
		ProductSnapshot:             fpmath.OneDec(),
		SumSnapshot:                 fpmath.ZeroDec(),
		PendingLiquidatedCollateral: sdkmath.ZeroInt(),
	}

	active := totalBids.LT(info.BidThreshold)
	if active {
		depositInto(&pool, &bid, amount)
		if err := l.StoreBidPool(collateral, pool); err != nil {
			return 0, err
		}
		if err := l.StoreTotalBids(collateral, totalBids.Add(amount)); err != nil {
			return 0, err
		}
	} else {
		waitEnd := c.env.BlockTime + cfg.WaitingPeriod
		bid.WaitEnd = &waitEnd
	}
	if err := l.StoreBid(bid); err != nil {
		return 0, err
	}

	c.emit(event.QueueEventBidSubmitted, collateral, BidSubmitted{Bid: bid})
	c.after(func() {
		if e.metrics == nil {
			return
		}
		label := "pending"
		if active {
			label = "active"
			e.metrics.StableDeposited.WithLabelValues(collateral).Add(intFloat(amount))
		}
		e.metrics.BidsSubmitted.WithLabelValues(collateral, label).Inc()
	})
	return idx, nil
}

// ActivateBids deposits the sender's pending bids on collateral whose
// waiting period has ended. With no idxs every ready bid is activated;
// listed bids that are not ready fail the whole call with ErrWaitPeriod.
// Returns the amount deposited.
func (e *Engine) ActivateBids(ctx context.Context, env Env, collateral string, idxs []uint64) (sdkmath.Int, error) {
	var amount sdkmath.Int
	err := e.update(ctx, "activate_bids", env, func(c *call) error {
		var err error
		amount, err = e.activateBids(c, collateral, idxs)
		return err
	})
	return amount, err
}

func (e *Engine) activateBids(c *call, collateral string, idxs []uint64) (sdkmath.Int, error) {
	l := c.ledger
	info, err := l.ReadCollateralInfo(collateral)
	if err != nil {
		return sdkmath.Int{}, err
	}

	var bids []state.Bid
	if len(idxs) == 0 {
		err = l.ForEachBidByUser(collateral, c.env.Sender, func(b state.Bid) bool {
			if b.ReadyAt(c.env.BlockTime) {
				bids = append(bids, b)
			}
			return true
		})
		if err != nil {
			return sdkmath.Int{}, err
		}
	} else {
		for _, idx := range uniqueIdxs(idxs) {
			bid, err := readOwnedBid(l, c.env, collateral, idx)
			if err != nil {
				return sdkmath.Int{}, err
			}
			if bid.IsActive() {
				return sdkmath.Int{}, fmt.Errorf("%w: bid %d", state.ErrAlreadyActive, idx)
			}
			if !bid.ReadyAt(c.env.BlockTime) {
				return sdkmath.Int{}, fmt.Errorf("%w: bid %d waits until %d", state.ErrWaitPeriod, idx, *bid.WaitEnd)
			}
			bids = append(bids, bid)
		}
	}

	pools := make(map[uint8]*state.BidPool)
	total := sdkmath.ZeroInt()
	activated := make([]uint64, 0, len(bids))
	for i := range bids {
		bid := &bids[i]
		pool, ok := pools[bid.PremiumSlot]
		if !ok {
			p, err := l.ReadOrCreateBidPool(info, bid.PremiumSlot)
			if err != nil {
				return sdkmath.Int{}, err
			}
			pool = &p
			pools[bid.PremiumSlot] = pool
		}
		depositInto(pool, bid, bid.Amount)
		bid.WaitEnd = nil
		if err := l.StoreBid(*bid); err != nil {
			return sdkmath.Int{}, err
		}
		total = total.Add(bid.Amount)
		activated = append(activated, bid.Idx)
	}
	if len(activated) == 0 {
		return total, nil
	}

	slots := make([]int, 0, len(pools))
	for slot := range pools {
		slots = append(slots, int(slot))
	}
	sort.Ints(slots)
	for _, slot := range slots {
		if err := l.StoreBidPool(collateral, *pools[uint8(slot)]); err != nil {
			return sdkmath.Int{}, err
		}
	}
	if err := addTotalBids(l, collateral, total); err != nil {
		return sdkmath.Int{}, err
	}

	c.emit(event.QueueEventBidsActivated, collateral, BidsActivated{
		Bidder:  c.env.Sender,
		BidIdxs: activated,
		Amount:  total,
	})
	c.after(func() {
		if e.metrics == nil {
			return
		}
		e.metrics.BidsActivated.WithLabelValues(collateral).Add(float64(len(activated)))
		e.metrics.StableDeposited.WithLabelValues(collateral).Add(intFloat(total))
	})
	return total, nil
}

// RetractBid withdraws amount (everything left when nil) from the sender's
// bid. Collateral already earned by an active bid stays claimable. The bid
// is removed once nothing is left in it.
func (e *Engine) RetractBid(ctx context.Context, env Env, idx uint64, amount *sdkmath.Int) (sdkmath.Int, error) {
	var withdrawn sdkmath.Int
	err := e.update(ctx, "retract_bid", env, func(c *call) error {
		var err error
		withdrawn, err = e.retractBid(c, idx, amount)
		return err
	})
	return withdrawn, err
}

func (e *Engine) retractBid(c *call, idx uint64, amount *sdkmath.Int) (sdkmath.Int, error) {
	l := c.ledger
	bid, err := l.ReadBid(idx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if bid.Bidder != c.env.Sender {
		return sdkmath.Int{}, fmt.Errorf("%w: bid %d belongs to another bidder", state.ErrUnauthorized, idx)
	}
	if amount != nil && (amount.IsNil() || amount.IsNegative()) {
		return sdkmath.Int{}, fmt.Errorf("%w: negative withdraw amount", state.ErrInvalidAmount)
	}

	var withdrawn sdkmath.Int
	var removed bool
	if !bid.IsActive() {
		withdrawn, removed, err = retractPending(l, bid, amount)
	} else {
		withdrawn, removed, err = e.retractActive(c, bid, amount)
	}
	if err != nil {
		return sdkmath.Int{}, err
	}

	collateral := bid.CollateralToken
	c.emit(event.QueueEventBidRetracted, collateral, BidRetracted{
		BidIdx:    idx,
		Bidder:    bid.Bidder,
		Withdrawn: withdrawn,
		Removed:   removed,
	})
	c.after(func() {
		if e.metrics == nil {
			return
		}
		e.metrics.BidsRetracted.WithLabelValues(collateral).Inc()
		e.metrics.StableWithdrawn.WithLabelValues(collateral).Add(intFloat(withdrawn))
	})
	return withdrawn, nil
}

func retractPending(l *state.Ledger, bid state.Bid, amount *sdkmath.Int) (sdkmath.Int, bool, error) {
	withdraw := bid.Amount
	if amount != nil {
		if amount.GT(bid.Amount) {
			return sdkmath.Int{}, false, fmt.Errorf("%w: bid %d holds %s", state.ErrInsufficientFunds, bid.Idx, bid.Amount)
		}
		withdraw = *amount
	}
	bid.Amount = bid.Amount.Sub(withdraw)
	if bid.Amount.IsZero() {
		return withdraw, true, l.RemoveBid(bid.Idx)
	}
	return withdraw, false, l.StoreBid(bid)
}

func (e *Engine) retractActive(c *call, bid state.Bid, amount *sdkmath.Int) (sdkmath.Int, bool, error) {
	l := c.ledger
	pool, err := l.ReadBidPool(bid.CollateralToken, bid.PremiumSlot)
	if err != nil {
		return sdkmath.Int{}, false, err
	}
	ent, err := entitlement(bid, pool, l)
	if err != nil {
		return sdkmath.Int{}, false, err
	}

	withdraw := ent.Residual
	if amount != nil {
		if amount.GT(ent.Residual) {
			return sdkmath.Int{}, false, fmt.Errorf("%w: bid %d holds %s", state.ErrInsufficientFunds, bid.Idx, ent.Residual)
		}
		withdraw = *amount
	}

	pool.TotalBidAmount = subFloor(pool.TotalBidAmount, withdraw)
	if err := l.StoreBidPool(bid.CollateralToken, pool); err != nil {
		return sdkmath.Int{}, false, err
	}
	if err := subTotalBids(l, bid.CollateralToken, withdraw); err != nil {
		return sdkmath.Int{}, false, err
	}

	bid.PendingLiquidatedCollateral = bid.PendingLiquidatedCollateral.Add(ent.Collateral)
	bid.Amount = ent.Residual.Sub(withdraw)
	snapshot(&pool, &bid)

	if bid.Amount.IsZero() && bid.PendingLiquidatedCollateral.IsZero() {
		return withdraw, true, l.RemoveBid(bid.Idx)
	}
	return withdraw, false, l.StoreBid(bid)
}

// ClaimLiquidations pays out the collateral earned by the sender's active
// bids on collateral (all of them when idxs is empty). Bids with nothing
// left in the pool are removed; the rest are re-snapshotted.
func (e *Engine) ClaimLiquidations(ctx context.Context, env Env, collateral string, idxs []uint64) (sdkmath.Int, error) {
	var claimed sdkmath.Int
	err := e.update(ctx, "claim_liquidations", env, func(c *call) error {
		var err error
		claimed, err = e.claimLiquidations(c, collateral, idxs)
		return err
	})
	return claimed, err
}

func (e *Engine) claimLiquidations(c *call, collateral string, idxs []uint64) (sdkmath.Int, error) {
	l := c.ledger
	if _, err := l.ReadCollateralInfo(collateral); err != nil {
		return sdkmath.Int{}, err
	}

	// Collect first: the index scan must be finished before bids are
	// rewritten or removed.
	var bids []state.Bid
	if len(idxs) == 0 {
		all, err := l.BidIdxsByUser(collateral, c.env.Sender)
		if err != nil {
			return sdkmath.Int{}, err
		}
		idxs = all
		for _, idx := range idxs {
			bid, err := l.ReadBid(idx)
			if err != nil {
				return sdkmath.Int{}, err
			}
			bids = append(bids, bid)
		}
	} else {
		for _, idx := range uniqueIdxs(idxs) {
			bid, err := readOwnedBid(l, c.env, collateral, idx)
			if err != nil {
				return sdkmath.Int{}, err
			}
			bids = append(bids, bid)
		}
	}

	pools := make(map[uint8]state.BidPool)
	claimed := sdkmath.ZeroInt()
	for _, bid := range bids {
		if !bid.IsActive() {
			continue
		}
		pool, ok := pools[bid.PremiumSlot]
		if !ok {
			p, err := l.ReadBidPool(collateral, bid.PremiumSlot)
			if err != nil {
				return sdkmath.Int{}, err
			}
			pool = p
			pools[bid.PremiumSlot] = pool
		}
		ent, err := entitlement(bid, pool, l)
		if err != nil {
			return sdkmath.Int{}, err
		}
		claimed = claimed.Add(ent.Collateral).Add(bid.PendingLiquidatedCollateral)

		if ent.Residual.IsZero() {
			if err := l.RemoveBid(bid.Idx); err != nil {
				return sdkmath.Int{}, err
			}
			continue
		}
		bid.Amount = ent.Residual
		bid.PendingLiquidatedCollateral = sdkmath.ZeroInt()
		snapshot(&pool, &bid)
		if err := l.StoreBid(bid); err != nil {
			return sdkmath.Int{}, err
		}
	}

	c.emit(event.QueueEventLiquidationsClaimed, collateral, LiquidationsClaimed{
		Bidder:  c.env.Sender,
		Claimed: claimed,
	})
	c.after(func() {
		if e.metrics != nil {
			e.metrics.CollateralClaimed.WithLabelValues(collateral).Add(intFloat(claimed))
		}
	})
	return claimed, nil
}

// uniqueIdxs drops repeated indexes, keeping first-seen order. Bids are
// collected before any of them is rewritten, so a repeat would be applied
// twice from the same stale copy.
func uniqueIdxs(idxs []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(idxs))
	out := make([]uint64, 0, len(idxs))
	for _, idx := range idxs {
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	return out
}

func readOwnedBid(l *state.Ledger, env Env, collateral string, idx uint64) (state.Bid, error) {
	bid, err := l.ReadBid(idx)
	if err != nil {
		return state.Bid{}, err
	}
	if bid.Bidder != env.Sender {
		return state.Bid{}, fmt.Errorf("%w: bid %d belongs to another bidder", state.ErrUnauthorized, idx)
	}
	if bid.CollateralToken != collateral {
		return state.Bid{}, fmt.Errorf("%w: bid %d is not on %s", state.ErrNoSuchBid, idx, collateral)
	}
	return bid, nil
}

func addTotalBids(l *state.Ledger, collateral string, amount sdkmath.Int) error {
	total, err := l.ReadTotalBids(collateral)
	if err != nil {
		return err
	}
	return l.StoreTotalBids(collateral, total.Add(amount))
}

func subTotalBids(l *state.Ledger, collateral string, amount sdkmath.Int) error {
	total, err := l.ReadTotalBids(collateral)
	if err != nil {
		return err
	}
	return l.StoreTotalBids(collateral, subFloor(total, amount))
}

// subFloor returns a - b clamped at zero.
func subFloor(a, b sdkmath.Int) sdkmath.Int {
	if b.GTE(a) {
		return sdkmath.ZeroInt()
	}
	return a.Sub(b)
}

func intFloat(i sdkmath.Int) float64 {
	f, _ := i.BigInt().Float64()
	return f
}
