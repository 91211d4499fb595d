// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on flows.py's self.flowstats dict, initialized in
// iperf_flow.__init__ and read/written via __getattr__ forwarding from
// the nested protocol classes. spec.md §9 directs replacing attribute
// forwarding with an explicit shared-state reference passed into each
// endpoint controller; FlowStats is that reference, and its rendezvous
// slots are mutex-protected per spec.md §5's parallel-threaded note.

package flowfleet

import (
	"sync"
	"time"
)

// FlowStats is the mutable, append-only record shared by a flow's two
// endpoint controllers. All reads and writes to the fields below go
// through the mutex-guarded accessor methods; there is no direct field
// access from endpoint controllers, matching the explicit-reference
// replacement for the source's dynamic attribute forwarding.
type FlowStats struct {
	mu sync.Mutex

	currentRxBytes *float64
	currentTxBytes *float64
	flowrate       *float64
	startTime      time.Time

	txDatetime     []time.Time
	txBytes        []float64
	txThroughput   []float64
	writes         []int
	errWrites      []int
	retry          []int
	cwnd           []int
	rtt            []int

	rxDatetime   []time.Time
	rxBytes      []float64
	rxThroughput []float64
	reads        []int

	histograms     []*Histogram
	histogramNames map[string]bool
}

// NewFlowStats returns an empty [*FlowStats].
func NewFlowStats() *FlowStats {
	return &FlowStats{histogramNames: make(map[string]bool)}
}

// SetStartTime records when the sender's open banner was observed.
func (s *FlowStats) SetStartTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTime = t
}

// StartTime returns the recorded start time, or the zero [time.Time]
// if none has been set.
func (s *FlowStats) StartTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startTime
}

// Flowrate returns the most recently computed rx/tx ratio, or
// (0, false) if none has been computed yet.
func (s *FlowStats) Flowrate() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flowrate == nil {
		return 0, false
	}
	return *s.flowrate, true
}

// ObserveReceiverSample implements the receiver half of the rendezvous
// described in spec.md §4.2 / §5: if the peer's txBytes slot is
// populated, consume it to compute flowrate and clear it; otherwise
// publish rxBytes into the rx slot. The receive sample fields are
// always appended to the receive arrays.
func (s *FlowStats) ObserveReceiverSample(t time.Time, bytesVal, throughput float64, reads int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentTxBytes != nil {
		rate := round2(bytesVal / *s.currentTxBytes)
		s.flowrate = &rate
		s.currentTxBytes = nil
	} else {
		rx := bytesVal
		s.currentRxBytes = &rx
	}

	s.rxDatetime = append(s.rxDatetime, t)
	s.rxBytes = append(s.rxBytes, bytesVal)
	s.rxThroughput = append(s.rxThroughput, throughput)
	s.reads = append(s.reads, reads)
}

// ObserveSenderSample implements the sender half of the rendezvous:
// symmetric to [FlowStats.ObserveReceiverSample]. Transmit sample
// fields are always appended to the transmit arrays.
func (s *FlowStats) ObserveSenderSample(t time.Time, bytesVal, throughput float64, writes, errWrites, retry, cwnd, rtt int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentRxBytes != nil {
		rate := round2(*s.currentRxBytes / bytesVal)
		s.flowrate = &rate
		s.currentRxBytes = nil
	} else {
		tx := bytesVal
		s.currentTxBytes = &tx
	}

	s.txDatetime = append(s.txDatetime, t)
	s.txBytes = append(s.txBytes, bytesVal)
	s.txThroughput = append(s.txThroughput, throughput)
	s.writes = append(s.writes, writes)
	s.errWrites = append(s.errWrites, errWrites)
	s.retry = append(s.retry, retry)
	s.cwnd = append(s.cwnd, cwnd)
	s.rtt = append(s.rtt, rtt)
}

// AppendHistogram records an end-of-run histogram and inserts its name
// into the set of observed histogram names.
func (s *FlowStats) AppendHistogram(h *Histogram) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histograms = append(s.histograms, h)
	s.histogramNames[h.Name] = true
}

// Histograms returns a snapshot of the histograms accumulated so far.
func (s *FlowStats) Histograms() []*Histogram {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Histogram, len(s.histograms))
	copy(out, s.histograms)
	return out
}

// HistogramNames returns the set of distinct histogram names observed
// so far, in unspecified order.
func (s *FlowStats) HistogramNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.histogramNames))
	for name := range s.histogramNames {
		out = append(out, name)
	}
	return out
}

// TxLen and RxLen report the number of transmit and receive samples
// recorded so far; used by tests asserting the lockstep-array invariant
// (spec.md §8, property 1).
func (s *FlowStats) TxLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txBytes)
}

func (s *FlowStats) RxLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rxBytes)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
