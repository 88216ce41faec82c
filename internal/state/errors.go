package state

import (
	"errors"
	"fmt"
)

// ErrNotFound is the common root of every missing-record error, so callers
// can test errors.Is(err, ErrNotFound) without knowing which record failed.
var ErrNotFound = errors.New("not found")

var (
	ErrConfigNotFound = fmt.Errorf("config: %w", ErrNotFound)
	ErrNotWhitelisted = fmt.Errorf("collateral is not whitelisted: %w", ErrNotFound)
	ErrPoolNotFound   = fmt.Errorf("bid pool: %w", ErrNotFound)
	ErrNoSuchBid      = fmt.Errorf("no bid with the specified index: %w", ErrNotFound)
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidSlot        = errors.New("invalid premium slot")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrCorruptedKey       = errors.New("corrupted key")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidFraction    = errors.New("invalid liquidation fraction")
	ErrInvalidMaxSlot     = errors.New("invalid max slot")
	ErrInvalidConfig      = errors.New("invalid config")
	ErrWaitPeriod         = errors.New("wait period has not expired")
	ErrStalePrice         = errors.New("price is too old")
	ErrAlreadyInitialized = errors.New("config already initialized")
	ErrAlreadyWhitelisted = errors.New("collateral already whitelisted")
	ErrAlreadyActive      = errors.New("bid is already active")
	ErrInvalidToken       = errors.New("invalid token")
)

// IsCallerError reports whether err is a condition the caller can correct
// by changing its request. Authorization failures, ledger corruption and
// backend errors are not.
func IsCallerError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrCorruptedKey) {
		return false
	}
	for _, target := range []error{
		ErrNotFound,
		ErrInvalidSlot,
		ErrInsufficientFunds,
		ErrInvalidAmount,
		ErrInvalidFraction,
		ErrInvalidMaxSlot,
		ErrInvalidConfig,
		ErrWaitPeriod,
		ErrStalePrice,
		ErrAlreadyInitialized,
		ErrAlreadyWhitelisted,
		ErrAlreadyActive,
		ErrInvalidToken,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
