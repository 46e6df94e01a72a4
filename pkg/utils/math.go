package utils

import "math"

// ClampInt clamps a value between min and max
func ClampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// RelativeError returns |value/reference - 1|. A zero reference yields +Inf
// unless value is also zero.
func RelativeError(value, reference float64) float64 {
	if reference == 0 {
		if value == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(value/reference - 1)
}
