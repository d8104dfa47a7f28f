package detectors

import (
	"math"
	"testing"
)

func TestZScoreBasic(t *testing.T) {
	stat := RollingStat{Mean: 50, Std: 5, Defined: true}
	if z := ZScore(65, stat); !almostEqual(z, 3) {
		t.Errorf("got z=%.4f, want 3", z)
	}
	if z := ZScore(40, stat); !almostEqual(z, -2) {
		t.Errorf("got z=%.4f, want -2", z)
	}
}

func TestZScoreFlatOrUndefinedWindow(t *testing.T) {
	// Zero std and undefined stats both yield z=0, so a position with a flat
	// or unknown neighbourhood can never be flagged.
	cases := []struct {
		name string
		stat RollingStat
	}{
		{"zero std", RollingStat{Mean: 50, Std: 0, Defined: true}},
		{"undefined", RollingStat{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			z, anom := Evaluate(1e9, tc.stat, DefaultZThreshold)
			if z != 0 || anom {
				t.Errorf("got z=%.4f anomaly=%v, want 0 and false", z, anom)
			}
		})
	}
}

func TestEvaluateThresholdIsExclusive(t *testing.T) {
	stat := RollingStat{Mean: 0, Std: 1, Defined: true}

	// |z| exactly at the threshold is not an anomaly.
	if _, anom := Evaluate(3, stat, 3); anom {
		t.Error("z=3 at threshold 3 should not be anomalous")
	}
	if _, anom := Evaluate(3.01, stat, 3); !anom {
		t.Error("z=3.01 at threshold 3 should be anomalous")
	}
	if _, anom := Evaluate(-3.01, stat, 3); !anom {
		t.Error("negative deviations count by absolute value")
	}
}

func TestEvaluateThresholdMonotonicity(t *testing.T) {
	// Raising the threshold can only shrink the flagged set.
	stat := RollingStat{Mean: 10, Std: 2, Defined: true}
	values := []float64{10, 13, 16, 19, 22, 25, 28}

	count := func(threshold float64) int {
		n := 0
		for _, v := range values {
			if _, anom := Evaluate(v, stat, threshold); anom {
				n++
			}
		}
		return n
	}

	prev := math.MaxInt
	for _, threshold := range []float64{1, 2, 3, 4, 5} {
		c := count(threshold)
		if c > prev {
			t.Fatalf("threshold %.1f flagged %d > %d at lower threshold", threshold, c, prev)
		}
		prev = c
	}
}
