package alias

import (
	"math"

	"nettopo/internal/iptable"
)

// classifyCounter classifies an entry's IP-ID counter behavior from its
// collected samples (spec.md §3's CounterType; grounded on the velocity/
// offset checks driving Router.getMergingPivot's HEALTHY_COUNTER anchor
// selection in original_source/v3/.../Router.cpp).
//
// Samples are ordered by collection time. The classifier unwraps 16-bit
// wraparound between consecutive samples and looks at the resulting
// per-second velocity: near zero means the counter never advances (echo),
// a tight, steady velocity means a healthy, mostly-monotonic counter,
// an extreme velocity means a counter driven by unrelated traffic (fast),
// and everything else is treated as random.
func classifyCounter(e *iptable.Entry) {
	samples := e.IPIDSamples()
	if len(samples) < 2 {
		e.SetCounterType(iptable.UnknownCounter)
		return
	}

	allEqual := true
	velocities := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		a, b := samples[i-1], samples[i]
		if b.IPID != a.IPID {
			allEqual = false
		}
		dt := b.Timestamp.Sub(a.Timestamp).Seconds()
		if dt <= 0 {
			dt = 0.001
		}
		velocities = append(velocities, float64(unwrapDelta(a.IPID, b.IPID))/dt)
	}
	if allEqual {
		e.SetCounterType(iptable.EchoCounter)
		return
	}

	mean := avg(velocities)
	switch {
	case mean > 50000:
		e.SetCounterType(iptable.FastCounter)
	case stdDev(velocities, mean) < mean*0.5+1:
		e.SetCounterType(iptable.HealthyCounter)
	default:
		e.SetCounterType(iptable.RandomCounter)
	}
}

// unwrapDelta returns b-a treating both as 16-bit counters that may have
// wrapped around between samples.
func unwrapDelta(a, b uint16) int {
	d := int(b) - int(a)
	if d < 0 {
		d += 1 << 16
	}
	return d
}

func avg(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}
