// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on flows.py's use of scipy.cluster.hierarchy.linkage(method
// ="ward") and fcluster in compute_ks_table. gonum ships no
// agglomerative-clustering package, so this is a hand-rolled Lance-
// Williams Ward-linkage implementation operating directly on the
// condensed (upper-triangular) distance vector the KS comparator
// already produces, per spec.md §4.6.

package flowfleet

import "math"

// mergeStep is one row of a linkage dendrogram: the two cluster ids
// merged (original observations are ids [0,n); merges are numbered
// starting at n) and the distance at which they merged.
type mergeStep struct {
	a, b     int
	distance float64
	size     int
}

// WardLinkage performs agglomerative hierarchical clustering over an
// n-observation condensed distance vector (row-major upper triangle,
// including the zero diagonal entries, as produced by the KS
// comparator) using the Ward minimum-variance criterion. Returns the
// n-1 merge steps in order.
func WardLinkage(n int, condensed []float64) []mergeStep {
	if n <= 1 {
		return nil
	}

	dist := toSquare(n, condensed)
	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = 1
	}
	active := make([]bool, n)
	for i := range active {
		active[i] = true
	}

	// id remapping: cluster ids grow past n as merges happen; d grows
	// to hold distances between all live clusters (original plus
	// merged).
	liveIDs := make([]int, n)
	for i := range liveIDs {
		liveIDs[i] = i
	}

	d := dist
	steps := make([]mergeStep, 0, n-1)
	nextID := n

	for len(liveIDs) > 1 {
		bi, bj := -1, -1
		best := math.Inf(1)
		for i := 0; i < len(liveIDs); i++ {
			for j := i + 1; j < len(liveIDs); j++ {
				v := d[liveIDs[i]][liveIDs[j]]
				if v < best {
					best, bi, bj = v, i, j
				}
			}
		}

		ci, cj := liveIDs[bi], liveIDs[bj]
		si, sj := sizes[ci], sizes[cj]
		steps = append(steps, mergeStep{a: ci, b: cj, distance: best, size: si + sj})

		// Lance-Williams update for Ward's criterion: distance from
		// the new cluster k=(i,j) to any other cluster m.
		newRow := make(map[int]float64, len(liveIDs))
		for _, m := range liveIDs {
			if m == ci || m == cj {
				continue
			}
			sm := sizes[m]
			total := float64(si + sj + sm)
			dij, dim, djm := d[ci][cj], d[ci][m], d[cj][m]
			newRow[m] = math.Sqrt(
				(float64(si+sm)*dim*dim+float64(sj+sm)*djm*djm-float64(sm)*dij*dij)/total,
			)
		}

		id := nextID
		nextID++
		sizes = append(sizes, si+sj)
		d = append(d, make([]float64, len(d)+1))
		for _, row := range d {
			for len(row) < len(d) {
				row = append(row, 0)
			}
		}
		for m, dist := range newRow {
			d[id] = extend(d[id], m, dist)
			d[m] = extend(d[m], id, dist)
		}

		// Replace liveIDs [bi,bj] with the new cluster id.
		next := make([]int, 0, len(liveIDs)-1)
		for k, v := range liveIDs {
			if k != bi && k != bj {
				next = append(next, v)
			}
		}
		next = append(next, id)
		liveIDs = next
	}

	return steps
}

func extend(row []float64, idx int, v float64) []float64 {
	for len(row) <= idx {
		row = append(row, 0)
	}
	row[idx] = v
	return row
}

func toSquare(n int, condensed []float64) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	k := 0
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := condensed[k]
			k++
			m[i][j] = v
			m[j][i] = v
		}
	}
	return m
}

// FlattenClusters cuts the dendrogram produced by WardLinkage at the
// given distance threshold and returns one integer cluster label per
// original observation (spec.md §4.6: "flatten ... at a threshold of
// 0.5 * max(D)").
func FlattenClusters(n int, steps []mergeStep, threshold float64) []int {
	parent := make([]int, n+len(steps))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			x = parent[x]
		}
		return x
	}

	nextID := n
	for _, s := range steps {
		if s.distance > threshold {
			nextID++
			continue
		}
		ra, rb := find(s.a), find(s.b)
		parent[ra] = nextID
		parent[rb] = nextID
		nextID++
	}

	roots := make(map[int]int)
	labels := make([]int, n)
	next := 0
	for i := 0; i < n; i++ {
		r := find(i)
		id, ok := roots[r]
		if !ok {
			id = next
			roots[r] = id
			next++
		}
		labels[i] = id
	}
	return labels
}
