package server

import (
	sdkmath "cosmossdk.io/math"

	"LiquidationQueue/internal/state"
)

// Request and response messages of liqqueue.v1.BidQueue. Amounts and
// decimals are JSON strings.

type Empty struct{}

type InstantiateRequest struct {
	Config state.Config `json:"config"`
}

type UpdateConfigRequest struct {
	Owner                *string            `json:"owner,omitempty"`
	OracleContract       *string            `json:"oracle_contract,omitempty"`
	SafeRatio            *sdkmath.LegacyDec `json:"safe_ratio,omitempty"`
	BidFee               *sdkmath.LegacyDec `json:"bid_fee,omitempty"`
	LiquidationThreshold *sdkmath.Int       `json:"liquidation_threshold,omitempty"`
	PriceTimeframe       *uint64            `json:"price_timeframe,omitempty"`
	WaitingPeriod        *uint64            `json:"waiting_period,omitempty"`
	Liquidator           *string            `json:"liquidator,omitempty"`
}

type WhitelistCollateralRequest struct {
	CollateralToken string      `json:"collateral_token"`
	BidThreshold    sdkmath.Int `json:"bid_threshold"`
	MaxSlot         uint8       `json:"max_slot"`
}

type UpdateCollateralInfoRequest struct {
	CollateralToken string       `json:"collateral_token"`
	BidThreshold    *sdkmath.Int `json:"bid_threshold,omitempty"`
	MaxSlot         *uint8       `json:"max_slot,omitempty"`
}

type SubmitBidRequest struct {
	CollateralToken string      `json:"collateral_token"`
	PremiumSlot     uint8       `json:"premium_slot"`
	Amount          sdkmath.Int `json:"amount"`
}

type SubmitBidResponse struct {
	BidIdx uint64 `json:"bid_idx"`
}

type BidListRequest struct {
	CollateralToken string   `json:"collateral_token"`
	BidIdxs         []uint64 `json:"bid_idxs,omitempty"`
}

type AmountResponse struct {
	Amount sdkmath.Int `json:"amount"`
}

type RetractBidRequest struct {
	BidIdx uint64       `json:"bid_idx"`
	Amount *sdkmath.Int `json:"amount,omitempty"`
}

type ConsumePoolRequest struct {
	CollateralToken  string            `json:"collateral_token"`
	PremiumSlot      uint8             `json:"premium_slot"`
	Fraction         sdkmath.LegacyDec `json:"fraction"`
	CollateralAmount sdkmath.Int       `json:"collateral_amount"`
}

type ConsumePoolResponse struct {
	StableConsumed sdkmath.Int `json:"stable_consumed"`
	Rollover       string      `json:"rollover"`
}

type ExecuteLiquidationRequest struct {
	CollateralToken string            `json:"collateral_token"`
	Amount          sdkmath.Int       `json:"amount"`
	Price           sdkmath.LegacyDec `json:"price"`
	PriceUpdatedAt  uint64            `json:"price_updated_at"`
}

type CollateralRequest struct {
	CollateralToken string `json:"collateral_token"`
}

type BidRequest struct {
	BidIdx uint64 `json:"bid_idx"`
}

type BidsByUserRequest struct {
	CollateralToken string  `json:"collateral_token"`
	Bidder          string  `json:"bidder"`
	StartAfter      *uint64 `json:"start_after,omitempty"`
	Limit           uint32  `json:"limit,omitempty"`
}

type BidsResponse struct {
	Bids []state.Bid `json:"bids"`
}

type BidPoolRequest struct {
	CollateralToken string `json:"collateral_token"`
	PremiumSlot     uint8  `json:"premium_slot"`
}

type BidPoolsRequest struct {
	CollateralToken string `json:"collateral_token"`
	StartAfter      *uint8 `json:"start_after,omitempty"`
	Limit           uint32 `json:"limit,omitempty"`
}

type BidPoolsResponse struct {
	BidPools []state.BidPool `json:"bid_pools"`
}
