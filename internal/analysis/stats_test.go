package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/pepschool/asset-insight-api/pkg/errors"
)

func TestDescribeBasic(t *testing.T) {
	stats, err := Describe([]float64{70, 72, 74, 76, 78}, 60)
	require.NoError(t, err)

	assert.Equal(t, 74.0, stats.Median)
	assert.Equal(t, 74.0, stats.Mean)
	assert.Equal(t, 70.0, stats.Min)
	assert.Equal(t, 78.0, stats.Max)
	assert.Equal(t, 72.0, stats.Q1)
	assert.Equal(t, 76.0, stats.Q3)
	assert.Equal(t, 5, stats.Count)
	assert.Equal(t, 2, stats.BelowMedianCount)
	assert.Equal(t, 0, stats.BelowThresholdCount)
}

func TestDescribeMedianResistsOutlier(t *testing.T) {
	base, err := Describe([]float64{70, 72, 74, 76, 78}, 60)
	require.NoError(t, err)

	withOutlier, err := Describe([]float64{70, 72, 74, 76, 20}, 60)
	require.NoError(t, err)

	// Replacing the top score with a collapse shifts the mean hard but only
	// nudges the median by one rank.
	assert.Equal(t, 74.0, base.Median)
	assert.Equal(t, 72.0, withOutlier.Median)
	assert.Equal(t, 62.4, withOutlier.Mean)
	assert.Equal(t, 1, withOutlier.BelowThresholdCount)
}

func TestDescribeOrderInsensitive(t *testing.T) {
	a, err := Describe([]float64{40, 90, 55, 70, 85, 60}, 65)
	require.NoError(t, err)
	b, err := Describe([]float64{85, 40, 60, 90, 70, 55}, 65)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDescribeQuartileOrdering(t *testing.T) {
	inputs := [][]float64{
		{50},
		{10, 90},
		{33.3, 66.7, 50},
		{12, 88, 41, 77, 63, 29, 95, 5},
	}
	for _, in := range inputs {
		stats, err := Describe(in, 60)
		require.NoError(t, err)
		assert.LessOrEqual(t, stats.Q1, stats.Median)
		assert.LessOrEqual(t, stats.Median, stats.Q3)
		assert.LessOrEqual(t, stats.Min, stats.Q1)
		assert.LessOrEqual(t, stats.Q3, stats.Max)
	}
}

func TestDescribeSingleValue(t *testing.T) {
	stats, err := Describe([]float64{83.3}, 60)
	require.NoError(t, err)
	assert.Equal(t, 83.3, stats.Median)
	assert.Equal(t, 83.3, stats.Mean)
	assert.Equal(t, 0.0, stats.Std)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 0, stats.BelowMedianCount)
}

func TestDescribeSampleStd(t *testing.T) {
	stats, err := Describe([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 0)
	require.NoError(t, err)
	// Sample (n-1) deviation of the classic sequence is ~2.14.
	assert.Equal(t, 2.1, stats.Std)
}

func TestDescribeEmptyGroup(t *testing.T) {
	_, err := Describe(nil, 60)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrEmptyGroup.Code, appErr.Code)
}

func TestQuantileInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	assert.Equal(t, 25.0, Quantile(sorted, 0.5))
	assert.Equal(t, 17.5, Quantile(sorted, 0.25))
	assert.Equal(t, 32.5, Quantile(sorted, 0.75))
	assert.Equal(t, 10.0, Quantile(sorted, 0))
	assert.Equal(t, 40.0, Quantile(sorted, 1))
}
