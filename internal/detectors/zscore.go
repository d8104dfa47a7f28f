package detectors

import "math"

// Default detection parameters, caller-overridable per invocation.
const (
	DefaultWindow     = 60
	DefaultMinPeriods = 30
	DefaultZThreshold = 3.0
)

// ZScore returns the standardized deviation of value from its local rolling
// statistics. Flat or undefined windows yield a zero score, so such positions
// can never be flagged anomalous regardless of value.
func ZScore(value float64, stat RollingStat) float64 {
	if !stat.Defined || stat.Std <= 0 {
		return 0
	}
	return (value - stat.Mean) / stat.Std
}

// Evaluate scores one sample against its rolling statistics and reports
// whether it breaches the threshold.
func Evaluate(value float64, stat RollingStat, zThreshold float64) (float64, bool) {
	z := ZScore(value, stat)
	return z, math.Abs(z) > zThreshold
}
