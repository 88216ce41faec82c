// internal/state/config.go
package state

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Config holds the queue-wide parameters. It is written once at
// instantiation and afterwards only changed by Owner.
type Config struct {
	Owner                string            `json:"owner"`
	OracleContract       string            `json:"oracle_contract"`
	StableDenom          string            `json:"stable_denom"`
	SafeRatio            sdkmath.LegacyDec `json:"safe_ratio"`
	BidFee               sdkmath.LegacyDec `json:"bid_fee"`
	LiquidationThreshold sdkmath.Int       `json:"liquidation_threshold"`
	PriceTimeframe       uint64            `json:"price_timeframe"`
	WaitingPeriod        uint64            `json:"waiting_period"`
	// Liquidator may consume pools and execute liquidations besides Owner.
	Liquidator string `json:"liquidator,omitempty"`
}

// Validate checks the ratio fields: SafeRatio must lie in (0, 1] and BidFee
// in [0, 1).
func (c *Config) Validate() error {
	if c.SafeRatio.IsNil() || !c.SafeRatio.IsPositive() || c.SafeRatio.GT(sdkmath.LegacyOneDec()) {
		return fmt.Errorf("%w: safe_ratio must be in (0, 1]", ErrInvalidConfig)
	}
	if c.BidFee.IsNil() || c.BidFee.IsNegative() || c.BidFee.GTE(sdkmath.LegacyOneDec()) {
		return fmt.Errorf("%w: bid_fee must be in [0, 1)", ErrInvalidConfig)
	}
	if len(c.Owner) > MaxTokenLen || len(c.Liquidator) > MaxTokenLen {
		return fmt.Errorf("%w: address longer than %d bytes", ErrInvalidConfig, MaxTokenLen)
	}
	if c.LiquidationThreshold.IsNil() || c.LiquidationThreshold.IsNegative() {
		return fmt.Errorf("%w: liquidation_threshold must not be negative", ErrInvalidConfig)
	}
	return nil
}

// CanLiquidate reports whether sender may consume pools and execute
// liquidations.
func (c *Config) CanLiquidate(sender string) bool {
	return sender == c.Owner || (c.Liquidator != "" && sender == c.Liquidator)
}

// ReadConfig fails with ErrConfigNotFound before instantiation.
func (l *Ledger) ReadConfig() (Config, error) {
	var rec configRecord
	ok, err := l.load(configKey(), &rec)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Config{}, ErrConfigNotFound
	}

	cfg := Config{
		Owner:          rec.Owner,
		OracleContract: rec.OracleContract,
		StableDenom:    rec.StableDenom,
		PriceTimeframe: rec.PriceTimeframe,
		WaitingPeriod:  rec.WaitingPeriod,
		Liquidator:     rec.Liquidator,
	}
	if cfg.SafeRatio, err = parseDec("safe_ratio", rec.SafeRatio); err != nil {
		return Config{}, err
	}
	if cfg.BidFee, err = parseDec("bid_fee", rec.BidFee); err != nil {
		return Config{}, err
	}
	if cfg.LiquidationThreshold, err = parseInt("liquidation_threshold", rec.LiquidationThreshold); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l *Ledger) StoreConfig(cfg Config) error {
	return l.save(configKey(), configRecord{
		Owner:                cfg.Owner,
		OracleContract:       cfg.OracleContract,
		StableDenom:          cfg.StableDenom,
		SafeRatio:            cfg.SafeRatio.String(),
		BidFee:               cfg.BidFee.String(),
		LiquidationThreshold: cfg.LiquidationThreshold.String(),
		PriceTimeframe:       cfg.PriceTimeframe,
		WaitingPeriod:        cfg.WaitingPeriod,
		Liquidator:           cfg.Liquidator,
	})
}
