package analysis

import (
	"math"
	"sort"

	"github.com/pepschool/asset-insight-api/internal/models"
	appErrors "github.com/pepschool/asset-insight-api/pkg/errors"
)

// Describe computes descriptive statistics over a group of percentages.
// Median and quartiles use linear interpolation between order statistics
// (the type-7 percentile method), so results are deterministic for any
// input ordering. Std is the sample standard deviation; a single-element
// group reports 0. belowThreshold feeds the below_threshold_count field.
//
// Describe is side-effect free and safe to call concurrently on disjoint
// groups. An empty group yields ErrEmptyGroup; callers must not build a
// report for it.
func Describe(percentages []float64, belowThreshold float64) (models.GroupStatistics, error) {
	if len(percentages) == 0 {
		return models.GroupStatistics{}, appErrors.Clone(appErrors.ErrEmptyGroup, "no percentages in group")
	}

	sorted := make([]float64, len(percentages))
	copy(sorted, percentages)
	sort.Float64s(sorted)

	median := Quantile(sorted, 0.5)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	var std float64
	if len(sorted) > 1 {
		var ss float64
		for _, v := range sorted {
			d := v - mean
			ss += d * d
		}
		std = math.Sqrt(ss / float64(len(sorted)-1))
	}

	belowMedian := 0
	belowCutoff := 0
	for _, v := range sorted {
		if v < median {
			belowMedian++
		}
		if v < belowThreshold {
			belowCutoff++
		}
	}

	return models.GroupStatistics{
		Median:              median,
		Mean:                models.Round1(mean),
		Min:                 sorted[0],
		Max:                 sorted[len(sorted)-1],
		Q1:                  Quantile(sorted, 0.25),
		Q3:                  Quantile(sorted, 0.75),
		Std:                 models.Round1(std),
		Count:               len(sorted),
		BelowMedianCount:    belowMedian,
		BelowThresholdCount: belowCutoff,
	}, nil
}

// Quantile returns the p-th quantile of an already sorted, non-empty slice
// using linear interpolation between closest ranks.
func Quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	h := p * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	if lo == hi {
		return sorted[lo]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Mean returns the arithmetic mean of a non-empty slice, or 0 when empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
