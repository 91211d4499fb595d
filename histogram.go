// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on flows.py's flow_histogram class: bin-list parsing in
// __init__, entropy property, write(), and async_plot()'s x-range step
// table. Entropy uses gonum's stat.Entropy rather than a hand-rolled
// sum, since gonum is already part of the domain stack (see KS
// comparator grounding in ks.go).

package flowfleet

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Histogram is an end-of-run latency distribution parsed from a
// datagram receiver's PDF line (spec.md §4.1, §4.5).
type Histogram struct {
	Name       string
	KSIndex    *int
	Population int
	BinWidth   int // microseconds
	Raw        string

	// Samples holds Population integer bin indices, one per observed
	// datagram, expanded from the raw bin:count list.
	Samples []float64

	// bins holds the parsed (index, count) pairs in the order they
	// appeared in Raw.
	bins []histogramBin

	CreateTime time.Time
	StartTime  time.Time
	EndTime    time.Time

	entropy     *float64
	entropyBins []float64

	// Max is the ms value at which cumulative fraction first exceeds
	// 0.98; unset (nil) for an empty or degenerate histogram. Set by
	// [*Histogram.Write].
	Max *float64

	// BaseFilename and DataFilename are set by [*Histogram.Write] on
	// success; BaseFilename left empty signals "do not plot" (spec.md §7).
	BaseFilename string
	DataFilename string
}

type histogramBin struct {
	index int
	count int
}

// ParseHistogram builds a [*Histogram] from a PDF line's captured
// fields. raw is the comma-separated bin:count list (e.g.
// "223:1,240:1,241:1").
func ParseHistogram(name string, population, binWidth int, raw string, startTime, endTime time.Time) (*Histogram, error) {
	h := &Histogram{
		Name:       name,
		Population: population,
		BinWidth:   binWidth,
		Raw:        raw,
		StartTime:  startTime,
		EndTime:    endTime,
	}

	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		parts := strings.SplitN(tok, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("flowfleet: malformed histogram bin %q: %w", tok, ErrHistogramParseMiss)
		}
		index, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("flowfleet: malformed histogram bin index %q: %w: %w", parts[0], err, ErrHistogramParseMiss)
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("flowfleet: malformed histogram bin count %q: %w: %w", parts[1], err, ErrHistogramParseMiss)
		}
		h.bins = append(h.bins, histogramBin{index: index, count: count})
		h.entropyBins = append(h.entropyBins, float64(count))
	}

	h.Samples = make([]float64, 0, population)
	for _, b := range h.bins {
		for i := 0; i < b.count; i++ {
			h.Samples = append(h.Samples, float64(b.index))
		}
	}

	return h, nil
}

// Entropy returns the Shannon entropy in bits of the bin-count
// distribution, computed lazily and cached. Uses gonum's stat.Entropy
// over the per-bin probabilities.
func (h *Histogram) Entropy() float64 {
	if h.entropy != nil {
		return *h.entropy
	}
	probs := make([]float64, len(h.entropyBins))
	total := 0.0
	for _, c := range h.entropyBins {
		total += c
	}
	if total == 0 {
		e := 0.0
		h.entropy = &e
		return e
	}
	for i, c := range h.entropyBins {
		probs[i] = c / total
	}
	// stat.Entropy returns natural-log (nats) entropy; convert to bits.
	e := stat.Entropy(probs) / ln2
	h.entropy = &e
	return e
}

const ln2 = 0.6931471805599453

// Write creates directory if missing and emits a three-column data
// file (ms_value, count, cumulative_fraction) under
// directory/filename.data. It records the first ms_value at which
// cumulative fraction exceeds 0.98 as Max. If no such point exists,
// BaseFilename is left empty, signalling "do not plot" (spec.md §4.5, §7).
func (h *Histogram) Write(directory, filename string) error {
	if filename == "" {
		filename = h.Name
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("flowfleet: creating histogram directory: %w", err)
	}

	basefilename := filepath.Join(directory, filename)
	datafilename := basefilename + ".data"

	f, err := os.Create(datafilename)
	if err != nil {
		return fmt.Errorf("flowfleet: creating histogram data file: %w", err)
	}
	defer f.Close()

	h.Max = nil
	cumulative := 0.0
	for _, b := range h.bins {
		cumulative += float64(b.count)
		frac := cumulative / float64(h.Population)
		msValue := float64(b.index) * float64(h.BinWidth) / 1000.0
		if h.Max == nil && frac > 0.98 {
			max := msValue
			h.Max = &max
		}
		if _, err := fmt.Fprintf(f, "%v %d %v\n", msValue, b.count, frac); err != nil {
			return fmt.Errorf("flowfleet: writing histogram data file: %w", err)
		}
	}

	if h.Max != nil {
		h.BaseFilename = basefilename
		h.DataFilename = datafilename
	} else {
		h.BaseFilename = ""
		h.DataFilename = ""
	}
	return nil
}

// xrangeStep is one entry of the plot x-range step table from spec.md
// §4.5: a histogram with Max below Threshold gets XRange and, if
// nonzero, a "set xtics add Tic" line (zero means "set xtics auto").
type xrangeStep struct {
	Threshold float64
	XRange    [2]int
	Tic       int
}

var xrangeSteps = []xrangeStep{
	{5, [2]int{0, 5}, 0},
	{10, [2]int{0, 10}, 1},
	{20, [2]int{0, 20}, 1},
	{40, [2]int{0, 40}, 5},
	{50, [2]int{0, 50}, 5},
	{75, [2]int{0, 75}, 5},
}

// xrangeFor resolves max to its x-range step, falling back to [0,100]
// with a tic of 10 if max exceeds every threshold in the table.
func xrangeFor(max float64) ([2]int, int) {
	for _, step := range xrangeSteps {
		if max < step.Threshold {
			return step.XRange, step.Tic
		}
	}
	return [2]int{0, 100}, 10
}
