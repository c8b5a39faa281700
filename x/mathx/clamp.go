// Package mathx collects the small numeric helpers the controller's
// polling path leans on: bounding a banked read's slice end against a
// device list (gateway.NextReadSlice), and measuring the size of a
// deadband or banking overrun without branching on sign at every call
// site (transform's analog deadband, device's bank-wraparound math).
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Between reports lo <= v && v <= hi (order-insensitive).
func Between[T constraints.Ordered](v, lo, hi T) bool {
	if hi < lo {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

// Min returns the smaller of a and b. gateway.NextReadSlice uses this
// to cap a priority slice's end index at the device list length.
func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Abs returns the magnitude of a signed value. transform.Evaluate uses
// it for the analog deadband compare; device.ReadBank uses it to size
// the final, short bank at the end of a wide channel's range.
func Abs[T ~int | ~int8 | ~int16 | ~int32 | ~int64](x T) T {
	if x < 0 {
		return -x
	}
	return x
}
