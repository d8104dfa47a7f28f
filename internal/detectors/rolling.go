package detectors

import "math"

// WindowMode selects how the rolling window is anchored at each position.
type WindowMode string

const (
	// WindowCentered spans samples i-window/2 .. i+window/2, clipped at the
	// series bounds. This is the primary policy.
	WindowCentered WindowMode = "centered"
	// WindowTrailing spans the window samples ending at each position. Kept as
	// a selectable alternative for callers that want strictly causal
	// statistics.
	WindowTrailing WindowMode = "trailing"
)

// RollingStat holds the local statistics for one series position. Defined is
// false only at the head of a series where fewer than minPeriods samples were
// available and no earlier defined position existed to fill from.
type RollingStat struct {
	Mean    float64
	Std     float64
	Defined bool
}

// RollingStats computes a rolling mean and population standard deviation
// (no Bessel correction) for every position of values. The window is counted
// in samples, not wall-clock time. Positions whose clipped window holds fewer
// than minPeriods samples are forward-filled from the nearest prior defined
// position rather than inventing statistics from too little data.
func RollingStats(values []float64, window, minPeriods int, mode WindowMode) []RollingStat {
	if window < 1 {
		window = 1
	}
	if minPeriods < 1 {
		minPeriods = 1
	}

	n := len(values)
	stats := make([]RollingStat, n)
	half := window / 2

	for i := 0; i < n; i++ {
		var lo, hi int
		switch mode {
		case WindowTrailing:
			lo, hi = i-window+1, i
		default:
			lo, hi = i-half, i+half
		}
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}

		count := hi - lo + 1
		if count < minPeriods {
			continue
		}

		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += values[j]
		}
		mean := sum / float64(count)

		variance := 0.0
		for j := lo; j <= hi; j++ {
			diff := values[j] - mean
			variance += diff * diff
		}
		variance /= float64(count)

		stats[i] = RollingStat{Mean: mean, Std: math.Sqrt(variance), Defined: true}
	}

	forwardFill(stats)
	return stats
}

// forwardFill copies the nearest prior defined statistic into undefined
// positions. Leading positions with nothing to fill from stay undefined and
// score zero downstream.
func forwardFill(stats []RollingStat) {
	var last RollingStat
	haveLast := false
	for i := range stats {
		if stats[i].Defined {
			last = stats[i]
			haveLast = true
			continue
		}
		if haveLast {
			stats[i] = last
		}
	}
}
