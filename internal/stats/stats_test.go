package stats

import (
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []Row {
	return []Row{
		{Image: "a.png", Category: "normal", MajorAxis: 100, MinorAxis: 50, Angle: 10, AspectRatio: 2, ContourArea: 4000, Circularity: 0.8},
		{Image: "b.png", Category: "normal", MajorAxis: 120, MinorAxis: 60, Angle: 30, AspectRatio: 2, ContourArea: 6000, Circularity: 0.9},
		{Image: "c.png", Category: "benign", MajorAxis: 90.123, MinorAxis: 45, Angle: 5, AspectRatio: 2.0027, ContourArea: 3000, Circularity: 0.75},
	}
}

func TestCompute(t *testing.T) {
	stats, err := Compute(context.Background(), sampleRows())
	require.NoError(t, err)
	require.Len(t, stats, 2)

	// Ordered by category name
	benign, normal := stats[0], stats[1]
	assert.Equal(t, "benign", benign.Category)
	assert.Equal(t, "normal", normal.Category)
	assert.Equal(t, 1, benign.Count)
	assert.Equal(t, 2, normal.Count)

	assert.InDelta(t, 110, normal.Values["major_axis_mean"], 1e-9)
	assert.InDelta(t, 14.14, normal.Values["major_axis_std"], 1e-9)
	assert.InDelta(t, 100, normal.Values["major_axis_min"], 1e-9)
	assert.InDelta(t, 120, normal.Values["major_axis_max"], 1e-9)
	assert.InDelta(t, 0.85, normal.Values["circularity_mean"], 1e-9)

	assert.InDelta(t, 90.12, benign.Values["major_axis_mean"], 1e-9)
	assert.True(t, math.IsNaN(benign.Values["major_axis_std"]), "std of one sample is undefined")
}

func TestCompute_Empty(t *testing.T) {
	stats, err := Compute(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestWriteParameters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ellipse_parameters.csv")
	require.NoError(t, WriteParameters(path, sampleRows()[:1]))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, ParameterColumns, rows[0])
	assert.Equal(t, "a.png", rows[1][0])
	assert.Equal(t, "normal", rows[1][1])
	assert.Equal(t, "100", rows[1][4])
}

func TestWriteStatistics(t *testing.T) {
	stats, err := Compute(context.Background(), sampleRows())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "ellipse_statistics.csv")
	require.NoError(t, WriteStatistics(path, stats))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, StatisticsColumns(), rows[0])
	assert.Len(t, rows[0], 2+len(Metrics)*len(Aggregates))
	assert.Equal(t, []string{"benign", "1", "90.12", ""}, rows[1][:4])
	assert.Equal(t, []string{"normal", "2", "110", "14.14"}, rows[2][:4])
}
