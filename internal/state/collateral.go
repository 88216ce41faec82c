package state

import (
	sdkmath "cosmossdk.io/math"
)

// MaxSlotLimit bounds CollateralInfo.MaxSlot.
const MaxSlotLimit = 30

// CollateralInfo is the whitelist entry of a collateral token. Entries are
// never removed.
type CollateralInfo struct {
	CollateralToken string      `json:"collateral_token"`
	BidThreshold    sdkmath.Int `json:"bid_threshold"`
	MaxSlot         uint8       `json:"max_slot"`
}

// ValidSlot reports whether slot lies in [0, MaxSlot).
func (c CollateralInfo) ValidSlot(slot uint8) bool {
	return slot < c.MaxSlot
}

// ValidMaxSlot reports whether maxSlot lies in [1, MaxSlotLimit].
func ValidMaxSlot(maxSlot uint8) bool {
	return maxSlot >= 1 && maxSlot <= MaxSlotLimit
}

// ReadCollateralInfo fails with ErrNotWhitelisted for unknown tokens.
func (l *Ledger) ReadCollateralInfo(token string) (CollateralInfo, error) {
	var rec collateralInfoRecord
	ok, err := l.load(collateralInfoKey(token), &rec)
	if err != nil {
		return CollateralInfo{}, err
	}
	if !ok {
		return CollateralInfo{}, ErrNotWhitelisted
	}
	threshold, err := parseInt("bid_threshold", rec.BidThreshold)
	if err != nil {
		return CollateralInfo{}, err
	}
	return CollateralInfo{
		CollateralToken: rec.CollateralToken,
		BidThreshold:    threshold,
		MaxSlot:         rec.MaxSlot,
	}, nil
}

func (l *Ledger) StoreCollateralInfo(info CollateralInfo) error {
	return l.save(collateralInfoKey(info.CollateralToken), collateralInfoRecord{
		CollateralToken: info.CollateralToken,
		BidThreshold:    info.BidThreshold.String(),
		MaxSlot:         info.MaxSlot,
	})
}

// IsWhitelisted reports whether token has a CollateralInfo entry.
func (l *Ledger) IsWhitelisted(token string) (bool, error) {
	return l.kv.Has(collateralInfoKey(token))
}
