// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on flows.py's use of scipy.stats.ks_2samp in
// compute_ks_table. gonum has no two-sample KS test, so this is a
// hand-rolled port of the standard algorithm: sort both samples,
// sweep the merged order tracking the empirical CDF gap, then
// evaluate the asymptotic Kolmogorov distribution for the p-value
// (the same approximation scipy's ks_2samp uses for the exact/asymp
// mode on samples without ties at this scale).

package flowfleet

import (
	"math"
	"sort"
)

// KSResult is the outcome of a two-sample Kolmogorov-Smirnov test:
// the maximum distance between empirical CDFs and its asymptotic
// p-value.
type KSResult struct {
	D float64
	P float64
}

// TwoSampleKS computes the two-sample KS statistic and asymptotic
// p-value for a and b. Returns {D:0, P:1} if either sample is empty.
func TwoSampleKS(a, b []float64) KSResult {
	n1, n2 := len(a), len(b)
	if n1 == 0 || n2 == 0 {
		return KSResult{D: 0, P: 1}
	}

	sa := append([]float64(nil), a...)
	sb := append([]float64(nil), b...)
	sort.Float64s(sa)
	sort.Float64s(sb)

	d := ksStatistic(sa, sb)

	ne := float64(n1*n2) / float64(n1+n2)
	p := ksAsymptoticP(d, ne)
	return KSResult{D: d, P: p}
}

// ksStatistic sweeps the merged sorted order of sa and sb, tracking
// each sample's empirical CDF value and returning the maximum
// absolute gap between them.
func ksStatistic(sa, sb []float64) float64 {
	i, j := 0, 0
	n1, n2 := len(sa), len(sb)
	fn1, fn2 := 0.0, 0.0
	maxGap := 0.0

	for i < n1 && j < n2 {
		v1, v2 := sa[i], sb[j]
		if v1 <= v2 {
			for i < n1 && sa[i] == v1 {
				i++
			}
			fn1 = float64(i) / float64(n1)
		}
		if v2 <= v1 {
			for j < n2 && sb[j] == v2 {
				j++
			}
			fn2 = float64(j) / float64(n2)
		}
		if gap := math.Abs(fn1 - fn2); gap > maxGap {
			maxGap = gap
		}
	}
	return maxGap
}

// ksAsymptoticP evaluates the asymptotic Kolmogorov distribution's
// survival function at d*sqrt(ne), the standard large-sample p-value
// approximation for the two-sample KS test.
func ksAsymptoticP(d, ne float64) float64 {
	if d == 0 {
		return 1
	}
	lambda := math.Sqrt(ne) * d
	// Q_KS(lambda) = 2 * sum_{k=1}^inf (-1)^(k-1) exp(-2 k^2 lambda^2)
	sum := 0.0
	for k := 1; k <= 100; k++ {
		term := 2 * math.Pow(-1, float64(k-1)) * math.Exp(-2*float64(k*k)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-10 {
			break
		}
	}
	p := sum
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}
