package ingestion

import (
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"LiquidationQueue/internal/event"
)

// ParseCommand converts a RawCommand (JSON bytes + command type) into a typed
// event.Command. Amounts travel as base-10 strings and decimals as strings
// with up to 18 fractional digits. The sender and block time come from the
// delivery, never from the body.
func ParseCommand(raw RawCommand) (event.Command, error) {
	switch raw.CommandType {
	case event.CommandTypeSubmitBid:
		return parseSubmitBid(raw)
	case event.CommandTypeActivateBids:
		return parseActivateBids(raw)
	case event.CommandTypeRetractBid:
		return parseRetractBid(raw)
	case event.CommandTypeClaimLiquidations:
		return parseClaimLiquidations(raw)
	case event.CommandTypeConsumePool:
		return parseConsumePool(raw)
	case event.CommandTypeExecuteLiquidation:
		return parseExecuteLiquidation(raw)
	default:
		return nil, fmt.Errorf("unknown command type: %s", raw.CommandType)
	}
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers.

type headerJSON struct {
	CommandID string `json:"command_id"`
}

func (h headerJSON) parse(raw RawCommand) (event.Header, error) {
	id, err := uuid.Parse(h.CommandID)
	if err != nil {
		return event.Header{}, fmt.Errorf("parse command_id: %w", err)
	}
	if raw.Sender == "" {
		return event.Header{}, fmt.Errorf("missing sender in subject %q", raw.Subject)
	}
	if raw.Timestamp.IsZero() {
		return event.Header{}, fmt.Errorf("missing receive time")
	}
	return event.Header{ID: id, Sender: raw.Sender, Time: uint64(raw.Timestamp.Unix())}, nil
}

type submitBidJSON struct {
	headerJSON
	Collateral  string `json:"collateral"`
	PremiumSlot uint8  `json:"premium_slot"`
	Amount      string `json:"amount"`
}

func parseSubmitBid(raw RawCommand) (*event.SubmitBid, error) {
	var j submitBidJSON
	if err := json.Unmarshal(raw.Data, &j); err != nil {
		return nil, fmt.Errorf("parse SubmitBid: %w", err)
	}
	header, err := j.headerJSON.parse(raw)
	if err != nil {
		return nil, err
	}
	amount, err := parseInt("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &event.SubmitBid{
		Header:     header,
		Collateral: j.Collateral,
		Slot:       j.PremiumSlot,
		Amount:     amount,
	}, nil
}

type bidListJSON struct {
	headerJSON
	Collateral string   `json:"collateral"`
	BidIdxs    []uint64 `json:"bid_idxs"`
}

func parseActivateBids(raw RawCommand) (*event.ActivateBids, error) {
	var j bidListJSON
	if err := json.Unmarshal(raw.Data, &j); err != nil {
		return nil, fmt.Errorf("parse ActivateBids: %w", err)
	}
	header, err := j.headerJSON.parse(raw)
	if err != nil {
		return nil, err
	}
	return &event.ActivateBids{Header: header, Collateral: j.Collateral, BidIdxs: j.BidIdxs}, nil
}

func parseClaimLiquidations(raw RawCommand) (*event.ClaimLiquidations, error) {
	var j bidListJSON
	if err := json.Unmarshal(raw.Data, &j); err != nil {
		return nil, fmt.Errorf("parse ClaimLiquidations: %w", err)
	}
	header, err := j.headerJSON.parse(raw)
	if err != nil {
		return nil, err
	}
	return &event.ClaimLiquidations{Header: header, Collateral: j.Collateral, BidIdxs: j.BidIdxs}, nil
}

type retractBidJSON struct {
	headerJSON
	BidIdx uint64  `json:"bid_idx"`
	Amount *string `json:"amount,omitempty"`
}

func parseRetractBid(raw RawCommand) (*event.RetractBid, error) {
	var j retractBidJSON
	if err := json.Unmarshal(raw.Data, &j); err != nil {
		return nil, fmt.Errorf("parse RetractBid: %w", err)
	}
	header, err := j.headerJSON.parse(raw)
	if err != nil {
		return nil, err
	}
	cmd := &event.RetractBid{Header: header, BidIdx: j.BidIdx}
	if j.Amount != nil {
		amount, err := parseInt("amount", *j.Amount)
		if err != nil {
			return nil, err
		}
		cmd.Amount = &amount
	}
	return cmd, nil
}

type consumePoolJSON struct {
	headerJSON
	Collateral       string `json:"collateral"`
	PremiumSlot      uint8  `json:"premium_slot"`
	Fraction         string `json:"fraction"`
	CollateralAmount string `json:"collateral_amount"`
}

func parseConsumePool(raw RawCommand) (*event.ConsumePool, error) {
	var j consumePoolJSON
	if err := json.Unmarshal(raw.Data, &j); err != nil {
		return nil, fmt.Errorf("parse ConsumePool: %w", err)
	}
	header, err := j.headerJSON.parse(raw)
	if err != nil {
		return nil, err
	}
	fraction, err := parseDec("fraction", j.Fraction)
	if err != nil {
		return nil, err
	}
	amount, err := parseInt("collateral_amount", j.CollateralAmount)
	if err != nil {
		return nil, err
	}
	return &event.ConsumePool{
		Header:           header,
		Collateral:       j.Collateral,
		Slot:             j.PremiumSlot,
		Fraction:         fraction,
		CollateralAmount: amount,
	}, nil
}

type executeLiquidationJSON struct {
	headerJSON
	Collateral     string `json:"collateral"`
	Amount         string `json:"amount"`
	Price          string `json:"price"`
	PriceUpdatedAt uint64 `json:"price_updated_at"`
}

func parseExecuteLiquidation(raw RawCommand) (*event.ExecuteLiquidation, error) {
	var j executeLiquidationJSON
	if err := json.Unmarshal(raw.Data, &j); err != nil {
		return nil, fmt.Errorf("parse ExecuteLiquidation: %w", err)
	}
	header, err := j.headerJSON.parse(raw)
	if err != nil {
		return nil, err
	}
	amount, err := parseInt("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	price, err := parseDec("price", j.Price)
	if err != nil {
		return nil, err
	}
	return &event.ExecuteLiquidation{
		Header:         header,
		Collateral:     j.Collateral,
		Amount:         amount,
		Price:          price,
		PriceUpdatedAt: j.PriceUpdatedAt,
	}, nil
}

func parseInt(field, s string) (sdkmath.Int, error) {
	i, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("parse %s: invalid integer %q", field, s)
	}
	return i, nil
}

func parseDec(field, s string) (sdkmath.LegacyDec, error) {
	d, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}
