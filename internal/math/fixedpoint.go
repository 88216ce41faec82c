// internal/math/fixedpoint.go
package math

import (
	sdkmath "cosmossdk.io/math"
)

// Decimals carry 18 fractional digits (sdkmath.LegacyPrecision). Every helper
// in this file truncates toward zero so the queue never over-credits a bidder.
const DecimalPrecision = sdkmath.LegacyPrecision

var (
	// ScaleFactor rescales the product accumulator when it drops below
	// ProductFloor. 10^9 keeps nine significant digits after a rescale.
	ScaleFactor = sdkmath.LegacyNewDec(1_000_000_000)

	// ProductFloor is the smallest product value kept without rescaling.
	ProductFloor = sdkmath.LegacyNewDecWithPrec(1, 9)
)

// ZeroDec returns 0 as a decimal.
func ZeroDec() sdkmath.LegacyDec { return sdkmath.LegacyZeroDec() }

// OneDec returns 1 as a decimal.
func OneDec() sdkmath.LegacyDec { return sdkmath.LegacyOneDec() }

// Percent returns n / 100.
func Percent(n uint8) sdkmath.LegacyDec {
	return sdkmath.LegacyNewDecWithPrec(int64(n), 2)
}

// IntToDec lifts an integer amount into the decimal domain.
func IntToDec(i sdkmath.Int) sdkmath.LegacyDec {
	return sdkmath.LegacyNewDecFromInt(i)
}

// MulTrunc returns a * b truncated to 18 digits.
func MulTrunc(a, b sdkmath.LegacyDec) sdkmath.LegacyDec {
	return a.MulTruncate(b)
}

// QuoTrunc returns a / b truncated to 18 digits. b must be non-zero.
func QuoTrunc(a, b sdkmath.LegacyDec) sdkmath.LegacyDec {
	return a.QuoTruncate(b)
}

// Ratio returns num / den as a truncated decimal. den must be non-zero.
func Ratio(num, den sdkmath.Int) sdkmath.LegacyDec {
	return IntToDec(num).QuoTruncate(IntToDec(den))
}

// OneMinus returns 1 - f.
func OneMinus(f sdkmath.LegacyDec) sdkmath.LegacyDec {
	return sdkmath.LegacyOneDec().Sub(f)
}

// MulIntDec returns floor(amount * d).
func MulIntDec(amount sdkmath.Int, d sdkmath.LegacyDec) sdkmath.Int {
	return IntToDec(amount).MulTruncate(d).TruncateInt()
}

// QuoIntDec returns floor(amount / d). d must be non-zero.
func QuoIntDec(amount sdkmath.Int, d sdkmath.LegacyDec) sdkmath.Int {
	return IntToDec(amount).QuoTruncate(d).TruncateInt()
}

// MulDivInt returns floor(amount * num / den), truncating after each step.
func MulDivInt(amount sdkmath.Int, num, den sdkmath.LegacyDec) sdkmath.Int {
	return IntToDec(amount).MulTruncate(num).QuoTruncate(den).TruncateInt()
}

// InUnitInterval reports whether 0 < f <= 1.
func InUnitInterval(f sdkmath.LegacyDec) bool {
	return f.IsPositive() && f.LTE(sdkmath.LegacyOneDec())
}

// BelowFloor reports whether a product accumulator needs a scale roll.
func BelowFloor(p sdkmath.LegacyDec) bool {
	return p.LT(ProductFloor)
}
