package state

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/fxamacker/cbor/v2"
)

// Ledger values are CBOR with integer map keys and canonical encoding, so the
// same record always produces the same bytes. Decimals and integers travel
// as their base-10 strings.

var encMode cbor.EncMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor enc mode: %v", err))
	}
	encMode = em
}

func encode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func decode(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

func parseDec(field, s string) (sdkmath.LegacyDec, error) {
	d, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("field %s: %w", field, err)
	}
	return d, nil
}

func parseInt(field, s string) (sdkmath.Int, error) {
	i, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("field %s: invalid integer %q", field, s)
	}
	return i, nil
}

type configRecord struct {
	Owner                string `cbor:"1,keyasint"`
	OracleContract       string `cbor:"2,keyasint"`
	StableDenom          string `cbor:"3,keyasint"`
	SafeRatio            string `cbor:"4,keyasint"`
	BidFee               string `cbor:"5,keyasint"`
	LiquidationThreshold string `cbor:"6,keyasint"`
	PriceTimeframe       uint64 `cbor:"7,keyasint"`
	WaitingPeriod        uint64 `cbor:"8,keyasint"`
	Liquidator           string `cbor:"9,keyasint,omitempty"`
}

type collateralInfoRecord struct {
	CollateralToken string `cbor:"1,keyasint"`
	BidThreshold    string `cbor:"2,keyasint"`
	MaxSlot         uint8  `cbor:"3,keyasint"`
}

type bidPoolRecord struct {
	Slot            uint8  `cbor:"1,keyasint"`
	SumSnapshot     string `cbor:"2,keyasint"`
	ProductSnapshot string `cbor:"3,keyasint"`
	TotalBidAmount  string `cbor:"4,keyasint"`
	PremiumRate     string `cbor:"5,keyasint"`
	CurrentEpoch    uint64 `cbor:"6,keyasint"`
	CurrentScale    uint64 `cbor:"7,keyasint"`
}

type bidRecord struct {
	Idx                         uint64  `cbor:"1,keyasint"`
	CollateralToken             string  `cbor:"2,keyasint"`
	PremiumSlot                 uint8   `cbor:"3,keyasint"`
	Bidder                      string  `cbor:"4,keyasint"`
	Amount                      string  `cbor:"5,keyasint"`
	ProductSnapshot             string  `cbor:"6,keyasint"`
	SumSnapshot                 string  `cbor:"7,keyasint"`
	PendingLiquidatedCollateral string  `cbor:"8,keyasint"`
	WaitEnd                     *uint64 `cbor:"9,keyasint,omitempty"`
	EpochSnapshot               uint64  `cbor:"10,keyasint"`
	ScaleSnapshot               uint64  `cbor:"11,keyasint"`
}
