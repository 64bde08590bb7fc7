package chunker

import (
	"fmt"
	"math"
	"sort"

	"docqa/internal/config"
)

// BreakpointThreshold returns the distance above which a boundary is placed.
func BreakpointThreshold(distances []float64, kind string, amount float64) (float64, error) {
	if len(distances) == 0 {
		return 0, fmt.Errorf("no distances to threshold")
	}
	switch kind {
	case config.ThresholdPercentile:
		return Percentile(distances, amount), nil
	case config.ThresholdStandardDeviation:
		return mean(distances) + amount*stddev(distances), nil
	case config.ThresholdInterquartile:
		iqr := Percentile(distances, 75) - Percentile(distances, 25)
		return mean(distances) + amount*iqr, nil
	default:
		return 0, fmt.Errorf("unknown breakpoint threshold type %q", kind)
	}
}

// Percentile computes the p-th percentile with linear interpolation between
// closest ranks. values is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	p = math.Max(0, math.Min(100, p))
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// population standard deviation
func stddev(values []float64) float64 {
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)))
}

func cosineDistance(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
