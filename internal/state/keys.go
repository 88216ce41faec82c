// internal/state/keys.go
package state

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Key layout. Every namespace component is written as a 2-byte big-endian
// length followed by its bytes; the record's own key follows unprefixed.
// Length prefixes keep namespaces such as "bid" and "bid_by_user" disjoint.
//
//	config                                               -> Config
//	bid_idx                                              -> next bid index
//	bid | idx(16)                                        -> Bid
//	bid_by_user, collateral, bidder | idx(16)            -> presence marker
//	bid_pool_by_col, collateral | slot(1)                -> BidPool
//	total_bids_by_col | collateral                       -> aggregate capital
//	col_info | collateral                                -> CollateralInfo
//	epoch_scale_sum, collateral, slot, epoch(16) | scale(16) -> archived S
//	processed_cmd | uuid(16)                             -> command marker
var (
	keyConfig = []byte("config")
	keyBidIdx = []byte("bid_idx")

	prefixBid                   = []byte("bid")
	prefixBidByUser             = []byte("bid_by_user")
	prefixBidPoolByCollateral   = []byte("bid_pool_by_col")
	prefixTotalBidsByCollateral = []byte("total_bids_by_col")
	prefixCollateralInfo        = []byte("col_info")
	prefixEpochScaleSum         = []byte("epoch_scale_sum")
	prefixProcessedCommand      = []byte("processed_cmd")
)

// U128Len is the width of index, epoch and scale key components.
const U128Len = 16

// MaxTokenLen bounds collateral tokens and bidder addresses. Longer values
// would overflow the 2-byte length prefix and alias other namespaces.
const MaxTokenLen = math.MaxUint16

// ValidToken reports whether s can be used as a key component.
func ValidToken(s string) bool {
	return s != "" && len(s) <= MaxTokenLen
}

// namespace expects every part to be at most MaxTokenLen bytes.
func namespace(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += 2 + len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = binary.BigEndian.AppendUint16(out, uint16(len(p)))
		out = append(out, p...)
	}
	return out
}

func withSuffix(ns []byte, suffix ...byte) []byte {
	out := make([]byte, 0, len(ns)+len(suffix))
	out = append(out, ns...)
	return append(out, suffix...)
}

// EncodeU128 writes v as a 16-byte big-endian value.
func EncodeU128(v uint64) []byte {
	var buf [U128Len]byte
	binary.BigEndian.PutUint64(buf[8:], v)
	return buf[:]
}

// DecodeU128 reads a key component written by EncodeU128.
func DecodeU128(b []byte) (uint64, error) {
	if len(b) != U128Len {
		return 0, fmt.Errorf("%w: %d bytes, 16 byte expected", ErrCorruptedKey, len(b))
	}
	if binary.BigEndian.Uint64(b[:8]) != 0 {
		return 0, fmt.Errorf("%w: index exceeds 64 bits", ErrCorruptedKey)
	}
	return binary.BigEndian.Uint64(b[8:]), nil
}

func configKey() []byte { return namespace(keyConfig) }
func bidIdxKey() []byte { return namespace(keyBidIdx) }

func bidNamespace() []byte { return namespace(prefixBid) }

func bidKey(idx uint64) []byte {
	return withSuffix(bidNamespace(), EncodeU128(idx)...)
}

func bidByUserNamespace(collateral, bidder string) []byte {
	return namespace(prefixBidByUser, []byte(collateral), []byte(bidder))
}

func bidByUserKey(collateral, bidder string, idx uint64) []byte {
	return withSuffix(bidByUserNamespace(collateral, bidder), EncodeU128(idx)...)
}

func bidPoolNamespace(collateral string) []byte {
	return namespace(prefixBidPoolByCollateral, []byte(collateral))
}

func bidPoolKey(collateral string, slot uint8) []byte {
	return withSuffix(bidPoolNamespace(collateral), slot)
}

func totalBidsKey(collateral string) []byte {
	return withSuffix(namespace(prefixTotalBidsByCollateral), []byte(collateral)...)
}

func collateralInfoKey(collateral string) []byte {
	return withSuffix(namespace(prefixCollateralInfo), []byte(collateral)...)
}

func epochScaleSumKey(collateral string, slot uint8, epoch, scale uint64) []byte {
	ns := namespace(prefixEpochScaleSum, []byte(collateral), []byte{slot}, EncodeU128(epoch))
	return withSuffix(ns, EncodeU128(scale)...)
}

func processedCommandKey(id [16]byte) []byte {
	return withSuffix(namespace(prefixProcessedCommand), id[:]...)
}
