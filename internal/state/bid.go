// internal/state/bid.go
package state

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Bid is one bidder's commitment to a (collateral, premium slot) pool. Its
// snapshot fields record the pool accumulators at the bid's last deposit,
// withdrawal or claim; everything earned since is derived from them.
type Bid struct {
	Idx                         uint64            `json:"idx"`
	CollateralToken             string            `json:"collateral_token"`
	PremiumSlot                 uint8             `json:"premium_slot"`
	Bidder                      string            `json:"bidder"`
	Amount                      sdkmath.Int       `json:"amount"`
	ProductSnapshot             sdkmath.LegacyDec `json:"product_snapshot"`
	SumSnapshot                 sdkmath.LegacyDec `json:"sum_snapshot"`
	PendingLiquidatedCollateral sdkmath.Int       `json:"pending_liquidated_collateral"`
	WaitEnd                     *uint64           `json:"wait_end,omitempty"`
	EpochSnapshot               uint64            `json:"epoch_snapshot"`
	ScaleSnapshot               uint64            `json:"scale_snapshot"`
}

// IsActive reports whether the bid has been deposited into its pool.
func (b *Bid) IsActive() bool {
	return b.WaitEnd == nil
}

// ReadyAt reports whether a pending bid may be activated at time now.
func (b *Bid) ReadyAt(now uint64) bool {
	return b.WaitEnd != nil && *b.WaitEnd <= now
}

// PopBidIdx returns the next bid index and advances the counter. The first
// index handed out is 1.
func (l *Ledger) PopBidIdx() (uint64, error) {
	var next uint64
	ok, err := l.load(bidIdxKey(), &next)
	if err != nil {
		return 0, err
	}
	if !ok {
		next = 1
	}
	if err := l.save(bidIdxKey(), next+1); err != nil {
		return 0, err
	}
	return next, nil
}

// StoreBid writes the primary record and its bid_by_user index entry.
func (l *Ledger) StoreBid(bid Bid) error {
	rec := bidRecord{
		Idx:                         bid.Idx,
		CollateralToken:             bid.CollateralToken,
		PremiumSlot:                 bid.PremiumSlot,
		Bidder:                      bid.Bidder,
		Amount:                      bid.Amount.String(),
		ProductSnapshot:             bid.ProductSnapshot.String(),
		SumSnapshot:                 bid.SumSnapshot.String(),
		PendingLiquidatedCollateral: bid.PendingLiquidatedCollateral.String(),
		WaitEnd:                     bid.WaitEnd,
		EpochSnapshot:               bid.EpochSnapshot,
		ScaleSnapshot:               bid.ScaleSnapshot,
	}
	if err := l.save(bidKey(bid.Idx), rec); err != nil {
		return err
	}
	return l.save(bidByUserKey(bid.CollateralToken, bid.Bidder, bid.Idx), true)
}

// ReadBid fails with ErrNoSuchBid for unknown indexes.
func (l *Ledger) ReadBid(idx uint64) (Bid, error) {
	var rec bidRecord
	ok, err := l.load(bidKey(idx), &rec)
	if err != nil {
		return Bid{}, err
	}
	if !ok {
		return Bid{}, fmt.Errorf("%w: %d", ErrNoSuchBid, idx)
	}
	return rec.toBid()
}

// RemoveBid deletes the primary record and its index entry.
func (l *Ledger) RemoveBid(idx uint64) error {
	bid, err := l.ReadBid(idx)
	if err != nil {
		return err
	}
	if err := l.kv.Delete(bidKey(idx)); err != nil {
		return err
	}
	return l.kv.Delete(bidByUserKey(bid.CollateralToken, bid.Bidder, idx))
}

// ReadBidsByUser pages through a bidder's bids on one collateral in
// ascending index order.
func (l *Ledger) ReadBidsByUser(collateral, bidder string, startAfter *uint64, limit uint32) ([]Bid, error) {
	ns := bidByUserNamespace(collateral, bidder)
	var cursor []byte
	if startAfter != nil {
		cursor = EncodeU128(*startAfter)
	}
	n := ClampLimit(limit)

	idxs := make([]uint64, 0, n)
	err := l.scan(ns, rangeStart(ns, cursor), func(key, _ []byte) (bool, error) {
		idx, err := DecodeU128(key)
		if err != nil {
			return false, err
		}
		idxs = append(idxs, idx)
		return len(idxs) < n, nil
	})
	if err != nil {
		return nil, err
	}
	return l.readBids(idxs)
}

// BidIdxsByUser lists every index the bidder holds on the collateral. The
// scan finishes before it returns, so callers may remove or rewrite the
// listed bids.
func (l *Ledger) BidIdxsByUser(collateral, bidder string) ([]uint64, error) {
	ns := bidByUserNamespace(collateral, bidder)
	var idxs []uint64
	err := l.scan(ns, ns, func(key, _ []byte) (bool, error) {
		idx, err := DecodeU128(key)
		if err != nil {
			return false, err
		}
		idxs = append(idxs, idx)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return idxs, nil
}

// ForEachBidByUser visits every bid the bidder holds on the collateral in
// index order until fn returns false.
func (l *Ledger) ForEachBidByUser(collateral, bidder string, fn func(Bid) bool) error {
	idxs, err := l.BidIdxsByUser(collateral, bidder)
	if err != nil {
		return err
	}
	for _, idx := range idxs {
		bid, err := l.ReadBid(idx)
		if err != nil {
			return err
		}
		if !fn(bid) {
			return nil
		}
	}
	return nil
}

func (l *Ledger) readBids(idxs []uint64) ([]Bid, error) {
	bids := make([]Bid, 0, len(idxs))
	for _, idx := range idxs {
		bid, err := l.ReadBid(idx)
		if err != nil {
			return nil, fmt.Errorf("bid_by_user entry without bid: %w", err)
		}
		bids = append(bids, bid)
	}
	return bids, nil
}

func (r bidRecord) toBid() (Bid, error) {
	bid := Bid{
		Idx:             r.Idx,
		CollateralToken: r.CollateralToken,
		PremiumSlot:     r.PremiumSlot,
		Bidder:          r.Bidder,
		WaitEnd:         r.WaitEnd,
		EpochSnapshot:   r.EpochSnapshot,
		ScaleSnapshot:   r.ScaleSnapshot,
	}
	var err error
	if bid.Amount, err = parseInt("amount", r.Amount); err != nil {
		return Bid{}, err
	}
	if bid.ProductSnapshot, err = parseDec("product_snapshot", r.ProductSnapshot); err != nil {
		return Bid{}, err
	}
	if bid.SumSnapshot, err = parseDec("sum_snapshot", r.SumSnapshot); err != nil {
		return Bid{}, err
	}
	if bid.PendingLiquidatedCollateral, err = parseInt("pending_liquidated_collateral", r.PendingLiquidatedCollateral); err != nil {
		return Bid{}, err
	}
	return bid, nil
}
