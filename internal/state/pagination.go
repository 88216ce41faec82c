package state

const (
	// DefaultLimit is the page size used when the caller gives none.
	DefaultLimit = 10
	// MaxLimit caps every page.
	MaxLimit = 30
)

// ClampLimit resolves a requested page size: 0 means DefaultLimit, anything
// above MaxLimit is cut to MaxLimit.
func ClampLimit(limit uint32) int {
	if limit == 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return int(limit)
}

// RangeStartAfter returns the first key strictly greater than cursor among
// fixed-width keys: cursor followed by 0x01. No valid key extends a
// fixed-width cursor, so the result sorts after the cursor and before its
// successor.
func RangeStartAfter(cursor []byte) []byte {
	out := make([]byte, 0, len(cursor)+1)
	out = append(out, cursor...)
	return append(out, 0x01)
}

// rangeStart is the lower bound of a page inside namespace ns.
func rangeStart(ns []byte, startAfter []byte) []byte {
	if startAfter == nil {
		return ns
	}
	return withSuffix(ns, RangeStartAfter(startAfter)...)
}
