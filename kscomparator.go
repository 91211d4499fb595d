// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on flows.py's compute_ks_table: for each histogram name,
// build a condensed pairwise-KS distance vector and a per-row
// significance string, then cluster the result (spec.md §4.6, C6).

package flowfleet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultCriticalP is compute_ks_table's significance threshold: two
// histograms are considered statistically indistinguishable when
// p > criticalP.
const defaultCriticalP = 0.01

// KSRow is one row of a comparator table: the histogram it was
// computed against every other histogram with the same name, the
// resulting binary significance string, and the row's min/max p
// excluding p==1 entries from the max (spec.md §4.6).
type KSRow struct {
	Name     string
	Row      string
	MinP     float64
	MaxP     float64
	ClusterID int
}

// KSTable is the full result of comparing every histogram sharing one
// name: the rows, the condensed distance vector, and the cluster
// labels produced by flattening the Ward-linkage dendrogram at
// 0.5*max(D).
type KSTable struct {
	Name      string
	Rows      []KSRow
	Condensed []float64
	MaxD      float64
}

// Comparator runs per-name KS comparisons over a set of histograms
// (spec.md §4.6, C6). Dense ks_index values are assigned separately by
// [AssignIndices].
type Comparator struct {
	criticalP float64
}

// NewComparator returns a [*Comparator] using critP as the
// significance threshold; a zero or negative critP falls back to
// [defaultCriticalP].
func NewComparator(critP float64) *Comparator {
	if critP <= 0 {
		critP = defaultCriticalP
	}
	return &Comparator{criticalP: critP}
}

// AssignIndices assigns a dense ks_index (0..N-1) to each histogram in
// hs, in order of appearance, mutating h.KSIndex in place.
func AssignIndices(hs []*Histogram) {
	for i, h := range hs {
		idx := i
		h.KSIndex = &idx
	}
}

// Compare runs the pairwise KS comparison described in spec.md §4.6
// over hs, grouping the histograms by name. Returns one table per
// distinct name found. KSIndex is not read.
func (c *Comparator) Compare(hs []*Histogram) map[string]*KSTable {
	byName := make(map[string][]*Histogram)
	for _, h := range hs {
		byName[h.Name] = append(byName[h.Name], h)
	}

	tables := make(map[string]*KSTable)
	for name, group := range byName {
		tables[name] = c.compareGroup(name, group)
	}
	return tables
}

func (c *Comparator) compareGroup(name string, hs []*Histogram) *KSTable {
	n := len(hs)
	condensed := make([]float64, 0, n*(n+1)/2)
	rows := make([]KSRow, n)
	maxD := 0.0

	for i := 0; i < n; i++ {
		var sb strings.Builder
		for k := 0; k < i; k++ {
			sb.WriteByte('x')
		}

		minP, maxP := 1.0, 0.0
		for j := i; j < n; j++ {
			res := TwoSampleKS(hs[i].Samples, hs[j].Samples)
			condensed = append(condensed, res.D)
			if res.D > maxD {
				maxD = res.D
			}

			if res.P > c.criticalP {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
			if res.P < minP {
				minP = res.P
			}
			if res.P != 1.0 && res.P > maxP {
				maxP = res.P
			}
		}

		rows[i] = KSRow{Name: fmt.Sprintf("%s[%d]", name, i), Row: sb.String(), MinP: minP, MaxP: maxP}
	}

	table := &KSTable{Name: name, Rows: rows, Condensed: condensed, MaxD: maxD}

	if n > 0 {
		steps := WardLinkage(n, condensed)
		labels := FlattenClusters(n, steps, 0.5*maxD)
		for i := range table.Rows {
			table.Rows[i].ClusterID = labels[i]
		}
	}

	return table
}

// PlotPair renders a two-sample KS comparison plot overlaying a and b's
// CDF curves on one graph, the flows.py plot_two_sample_ks equivalent
// (spec.md §4.6). Skips silently if either histogram is degenerate
// (BaseFilename unset, matching [PlotHistogram]'s policy). Bounded by
// ksRowPlotTimeout, the comparator's per-row plot cap.
func (c *Comparator) PlotPair(ctx context.Context, cfg *Config, a, b *Histogram, directory string, output OutputType) error {
	if a.BaseFilename == "" || b.BaseFilename == "" {
		cfg.Logger.Info("ksPairPlotSkippedDegenerate", "a", a.Name, "b", b.Name)
		return nil
	}

	plotCtx, cancel := context.WithTimeout(ctx, ksRowPlotTimeout)
	defer cancel()

	maxX := 0.0
	if a.Max != nil && *a.Max > maxX {
		maxX = *a.Max
	}
	if b.Max != nil && *b.Max > maxX {
		maxX = *b.Max
	}
	xrange, tic := xrangeFor(maxX)

	basename := filepath.Join(directory, fmt.Sprintf("ks_%s_vs_%s", filepath.Base(a.BaseFilename), filepath.Base(b.BaseFilename)))
	controlPath := basename + ".gpc"

	f, err := os.Create(controlPath)
	if err != nil {
		return fmt.Errorf("flowfleet: creating ks pair control file: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "set terminal %s\n", output.terminal())
	fmt.Fprintf(f, "set output %q\n", basename+"."+output.extension())
	fmt.Fprintf(f, "set xrange [%d:%d]\n", xrange[0], xrange[1])
	fmt.Fprintf(f, "set yrange [0:1.01]\n")
	if tic == 0 {
		fmt.Fprintln(f, "set xtics auto")
	} else {
		fmt.Fprintf(f, "set xtics add %d\n", tic)
	}
	fmt.Fprintf(f, "set title %q\n", fmt.Sprintf("%s vs %s", a.Name, b.Name))
	fmt.Fprintf(f, "plot %q using 1:3 with lines title %q, %q using 1:3 with lines title %q\n",
		a.DataFilename, a.Name, b.DataFilename, b.Name)

	return Plot(plotCtx, cfg, controlPath)
}
