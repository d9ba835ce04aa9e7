package synth

import "math"

// CurveValue evaluates an envelope segment t seconds into a segment of length
// maxT. Curve 0 is a straight line; positive values are exponential decay
// constants.
func CurveValue(curve float64, start float64, end float64, t float64, maxT float64) float64 {
	if curve == 0 {
		if maxT <= 0 {
			return end
		}
		return start + (end-start)*math.Min(t/maxT, 1)
	}
	if maxT <= 0 {
		return end
	}
	return end + (start-end)*math.Exp(-t*curve/maxT)
}

// AdjustCurve returns the asymptote an exponential segment must approach so
// that it reaches end exactly after its full duration.
func AdjustCurve(curve float64, start float64, end float64) float64 {
	if curve == 0 {
		return end
	}
	k := math.Exp(-curve)
	return (end - start*k) / (1 - k)
}
