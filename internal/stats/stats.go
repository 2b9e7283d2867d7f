// Package stats holds the pure aggregation functions behind session and cohort reports.
// Values are computed at full precision; Round2 is for the output boundary only.
package stats

import (
	"math"
	"sort"

	"github.com/stemsi/psytest-backend/internal/model"
)

// DefaultTrendThreshold is the relative change, in percent, below which a trend is stable.
const DefaultTrendThreshold = 5.0

// Trend is the direction between two halves of a series.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// CompletionRate returns completed as a percentage of total, or 0 when total is 0.
func CompletionRate(total, completed int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

// DiversityIndex returns the Shannon entropy of counts normalized to [0, 1] by log2 of the
// number of categories in the mapping. It is 0 for an empty total or fewer than two categories.
func DiversityIndex(counts map[string]int) float64 {
	n := len(counts)
	if n < 2 {
		return 0
	}

	total := 0
	for _, c := range counts {
		if c > 0 {
			total += c
		}
	}
	if total == 0 {
		return 0
	}

	var h float64
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}

	return h / math.Log2(float64(n))
}

// Distribution summarizes a set of scores.
type Distribution struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`

	sorted []float64
}

// DistributionStats computes the summary of scores. The input is not modified.
func DistributionStats(scores []float64) Distribution {
	d := Distribution{Count: len(scores)}
	if len(scores) == 0 {
		return d
	}

	d.sorted = make([]float64, len(scores))
	copy(d.sorted, scores)
	sort.Float64s(d.sorted)

	var sum float64
	for _, v := range d.sorted {
		sum += v
	}
	d.Mean = sum / float64(d.Count)
	d.Min = d.sorted[0]
	d.Max = d.sorted[d.Count-1]

	mid := d.Count / 2
	if d.Count%2 == 1 {
		d.Median = d.sorted[mid]
	} else {
		d.Median = (d.sorted[mid-1] + d.sorted[mid]) / 2
	}

	var sq float64
	for _, v := range d.sorted {
		sq += (v - d.Mean) * (v - d.Mean)
	}
	d.StdDev = math.Sqrt(sq / float64(d.Count))

	return d
}

// PercentileRank returns the share of the cohort strictly below score, as 0..100.
func (d Distribution) PercentileRank(score float64) float64 {
	if d.Count == 0 {
		return 0
	}
	below := sort.Search(len(d.sorted), func(i int) bool { return d.sorted[i] >= score })
	return float64(below) / float64(d.Count) * 100
}

// TrendDirection compares the averages of two consecutive halves of a series. It is stable
// unless the relative change exceeds thresholdPct.
func TrendDirection(firstHalfAvg, secondHalfAvg, thresholdPct float64) Trend {
	if firstHalfAvg == 0 {
		switch {
		case secondHalfAvg > 0:
			return TrendUp
		case secondHalfAvg < 0:
			return TrendDown
		}
		return TrendStable
	}

	change := (secondHalfAvg - firstHalfAvg) / math.Abs(firstHalfAvg) * 100
	switch {
	case change > thresholdPct:
		return TrendUp
	case change < -thresholdPct:
		return TrendDown
	}
	return TrendStable
}

// SplitHalves returns the means of the first and second halves of series. With an odd length
// the middle value belongs to the second half.
func SplitHalves(series []float64) (first, second float64) {
	if len(series) < 2 {
		return 0, 0
	}
	mid := len(series) / 2
	return mean(series[:mid]), mean(series[mid:])
}

// WeightedMean returns Σ(vᵢ·wᵢ)/Σwᵢ over pairs with a positive weight, or 0 if there are none.
func WeightedMean(values, weights []float64) float64 {
	var sum, wsum float64
	for i := 0; i < len(values) && i < len(weights); i++ {
		if weights[i] <= 0 {
			continue
		}
		sum += values[i] * weights[i]
		wsum += weights[i]
	}
	if wsum == 0 {
		return 0
	}
	return sum / wsum
}

// GradeForPercentile maps a percentile rank to a reporting band.
func GradeForPercentile(p float64) model.Grade {
	switch {
	case p >= 90:
		return model.GradeVeryHigh
	case p >= 75:
		return model.GradeHigh
	case p >= 25:
		return model.GradeAverage
	case p >= 10:
		return model.GradeLow
	}
	return model.GradeVeryLow
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
