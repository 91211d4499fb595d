// SPDX-License-Identifier: GPL-3.0-or-later

package flowfleet

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTwoSampleKSIdenticalSamplesHaveZeroDAndHighP(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{1, 2, 3, 4, 5}

	r := TwoSampleKS(a, b)
	assert.Equal(t, 0.0, r.D)
	assert.InDelta(t, 1.0, r.P, 1e-9)
}

func TestTwoSampleKSDisjointSamplesHaveDOfOne(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{10, 11, 12}

	r := TwoSampleKS(a, b)
	assert.Equal(t, 1.0, r.D)
	assert.Less(t, r.P, 0.05)
}

func TestTwoSampleKSEmptySampleReturnsDegenerateResult(t *testing.T) {
	r := TwoSampleKS(nil, []float64{1, 2, 3})
	assert.Equal(t, KSResult{D: 0, P: 1}, r)
}

func TestTwoSampleKSIsSymmetric(t *testing.T) {
	a := []float64{1, 5, 2, 8, 3, 9, 4}
	b := []float64{2, 6, 3, 9, 4, 10, 5, 1}

	r1 := TwoSampleKS(a, b)
	r2 := TwoSampleKS(b, a)
	assert.InDelta(t, r1.D, r2.D, 1e-12)
	assert.InDelta(t, r1.P, r2.P, 1e-12)
}

func TestTwoSampleKSDIsBoundedToUnitInterval(t *testing.T) {
	a := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	b := []float64{2, 7, 1, 8, 2, 8, 1, 8}

	r := TwoSampleKS(a, b)
	assert.GreaterOrEqual(t, r.D, 0.0)
	assert.LessOrEqual(t, r.D, 1.0)
	assert.GreaterOrEqual(t, r.P, 0.0)
	assert.LessOrEqual(t, r.P, 1.0)
}

func TestKsAsymptoticPDecreasesAsDGrows(t *testing.T) {
	small := ksAsymptoticP(0.1, 50)
	large := ksAsymptoticP(0.8, 50)
	assert.Greater(t, small, large)
}

func TestKsAsymptoticPZeroDistanceIsOne(t *testing.T) {
	assert.Equal(t, 1.0, ksAsymptoticP(0, 50))
}

func TestKsAsymptoticPNeverNegativeOrAboveOne(t *testing.T) {
	for _, d := range []float64{0.01, 0.3, 0.6, 0.99, 1.0} {
		p := ksAsymptoticP(d, 25)
		assert.False(t, math.IsNaN(p))
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}
