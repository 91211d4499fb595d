// SPDX-License-Identifier: GPL-3.0-or-later

package flowfleet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHistogramExpandsSamples(t *testing.T) {
	h, err := ParseHistogram("T8", 3, 10, "223:1,240:1,241:1", time.Now(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, h.Population)
	assert.ElementsMatch(t, []float64{223, 240, 241}, h.Samples)
	assert.Len(t, h.Samples, h.Population)
}

func TestParseHistogramRepeatedCounts(t *testing.T) {
	h, err := ParseHistogram("T8", 5, 10, "1:2,2:3", time.Now(), time.Now())
	require.NoError(t, err)
	assert.Len(t, h.Samples, 5)
	assert.ElementsMatch(t, []float64{1, 1, 2, 2, 2}, h.Samples)
}

func TestParseHistogramMalformed(t *testing.T) {
	_, err := ParseHistogram("T8", 1, 10, "bogus", time.Now(), time.Now())
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrHistogramParseMiss)
	assert.Equal(t, "parse-miss", DefaultErrClassifier.Classify(err))
}

// sum(count over bins) == population and len(samples) == population
// (spec.md §8, property 3).
func TestHistogramSampleCountMatchesPopulation(t *testing.T) {
	h, err := ParseHistogram("T8", 261674, 10, "223:100000,240:161674", time.Now(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, h.Population, len(h.Samples))
}

func TestHistogramEntropyBoundedByLog2NumBins(t *testing.T) {
	h, err := ParseHistogram("T8", 4, 10, "1:1,2:1,3:1,4:1", time.Now(), time.Now())
	require.NoError(t, err)
	e := h.Entropy()
	assert.GreaterOrEqual(t, e, 0.0)
	assert.LessOrEqual(t, e, 2.0) // log2(4) == 2
}

// A single-bin histogram has zero entropy (spec.md end-to-end scenario 6).
func TestHistogramDegenerateEntropyIsZero(t *testing.T) {
	h, err := ParseHistogram("T8", 1, 10, "0:1", time.Now(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0.0, h.Entropy())
}

func TestHistogramEntropyIsCached(t *testing.T) {
	h, err := ParseHistogram("T8", 4, 10, "1:1,2:1,3:1,4:1", time.Now(), time.Now())
	require.NoError(t, err)
	first := h.Entropy()
	second := h.Entropy()
	assert.Equal(t, first, second)
}

func TestHistogramWriteProducesDataFileAndMax(t *testing.T) {
	dir := t.TempDir()
	h, err := ParseHistogram("T8", 100, 10, "1:99,1000:1", time.Now(), time.Now())
	require.NoError(t, err)

	err = h.Write(filepath.Join(dir, "T8_0"), "T8")
	require.NoError(t, err)

	require.NotNil(t, h.Max)
	assert.NotEmpty(t, h.BaseFilename)
	assert.FileExists(t, h.DataFilename)

	data, err := os.ReadFile(h.DataFilename)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

// Degenerate single-bin histogram (spec.md end-to-end scenario 6): the
// one bin holds the whole population, so its cumulative fraction is 1.0,
// which crosses 0.98 on the first row and sets Max to that bin's ms
// value (0.0). The never-crossed case is covered by
// TestHistogramWriteEmptyBinsSuppressesPlotting.
func TestHistogramWriteDegenerateSingleBin(t *testing.T) {
	dir := t.TempDir()
	h, err := ParseHistogram("T8", 1, 10, "0:1", time.Now(), time.Now())
	require.NoError(t, err)

	err = h.Write(dir, "T8")
	require.NoError(t, err)
	require.NotNil(t, h.Max)
	assert.Equal(t, 0.0, *h.Max)
}

func TestHistogramWriteEmptyBinsSuppressesPlotting(t *testing.T) {
	dir := t.TempDir()
	h := &Histogram{Name: "T8", Population: 0}

	err := h.Write(dir, "T8")
	require.NoError(t, err)
	assert.Nil(t, h.Max)
	assert.Empty(t, h.BaseFilename)
}

func TestXrangeForStepTable(t *testing.T) {
	cases := []struct {
		max      float64
		wantMax  int
		wantTic  int
	}{
		{3, 5, 0},
		{8, 10, 1},
		{15, 20, 1},
		{35, 40, 5},
		{45, 50, 5},
		{70, 75, 5},
		{90, 100, 10},
	}
	for _, tc := range cases {
		xr, tic := xrangeFor(tc.max)
		assert.Equal(t, tc.wantMax, xr[1], tc.max)
		assert.Equal(t, tc.wantTic, tic, tc.max)
	}
}
