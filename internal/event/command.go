// internal/event/command.go
package event

import (
	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

// CommandType discriminates the commands the queue accepts from upstream.
type CommandType int32

const (
	CommandTypeUnknown CommandType = iota
	CommandTypeSubmitBid
	CommandTypeActivateBids
	CommandTypeRetractBid
	CommandTypeClaimLiquidations
	CommandTypeConsumePool
	CommandTypeExecuteLiquidation
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTypeSubmitBid:
		return "SubmitBid"
	case CommandTypeActivateBids:
		return "ActivateBids"
	case CommandTypeRetractBid:
		return "RetractBid"
	case CommandTypeClaimLiquidations:
		return "ClaimLiquidations"
	case CommandTypeConsumePool:
		return "ConsumePool"
	case CommandTypeExecuteLiquidation:
		return "ExecuteLiquidation"
	default:
		return "Unknown"
	}
}

// ParseCommandType is the inverse of CommandType.String.
func ParseCommandType(s string) CommandType {
	for ct := CommandTypeSubmitBid; ct <= CommandTypeExecuteLiquidation; ct++ {
		if ct.String() == s {
			return ct
		}
	}
	return CommandTypeUnknown
}

// Command is a state-changing request delivered by an upstream producer.
// Each carries a producer-assigned id that is applied at most once.
type Command interface {
	// CommandID returns the stable dedup key
	CommandID() uuid.UUID

	// CommandType returns the discriminator
	CommandType() CommandType

	// Caller returns the authenticated sender the host attached
	Caller() string

	// BlockTime returns the host time in seconds the command executes at
	BlockTime() uint64
}

// Header holds the fields every command shares.
type Header struct {
	ID     uuid.UUID
	Sender string
	Time   uint64
}

func (h Header) CommandID() uuid.UUID { return h.ID }
func (h Header) Caller() string       { return h.Sender }
func (h Header) BlockTime() uint64    { return h.Time }

type SubmitBid struct {
	Header
	Collateral string
	Slot       uint8
	Amount     sdkmath.Int
}

func (*SubmitBid) CommandType() CommandType { return CommandTypeSubmitBid }

type ActivateBids struct {
	Header
	Collateral string
	BidIdxs    []uint64
}

func (*ActivateBids) CommandType() CommandType { return CommandTypeActivateBids }

type RetractBid struct {
	Header
	BidIdx uint64
	Amount *sdkmath.Int // nil withdraws everything left
}

func (*RetractBid) CommandType() CommandType { return CommandTypeRetractBid }

type ClaimLiquidations struct {
	Header
	Collateral string
	BidIdxs    []uint64
}

func (*ClaimLiquidations) CommandType() CommandType { return CommandTypeClaimLiquidations }

// ConsumePool takes Fraction of one pool's capital in exchange for
// CollateralAmount.
type ConsumePool struct {
	Header
	Collateral       string
	Slot             uint8
	Fraction         sdkmath.LegacyDec
	CollateralAmount sdkmath.Int
}

func (*ConsumePool) CommandType() CommandType { return CommandTypeConsumePool }

// ExecuteLiquidation sells Amount of collateral into the queue at Price.
type ExecuteLiquidation struct {
	Header
	Collateral     string
	Amount         sdkmath.Int
	Price          sdkmath.LegacyDec
	PriceUpdatedAt uint64
}

func (*ExecuteLiquidation) CommandType() CommandType { return CommandTypeExecuteLiquidation }
