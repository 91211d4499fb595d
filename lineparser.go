// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on flows.py's IperfServerProtocol/IperfClientProtocol
// pipe_data_received: per-fd text buffering, newline splitting, and
// regex classification gated by the opened event's single-transition
// guard (spec.md §4.1).

package flowfleet

import (
	"fmt"
	"regexp"
	"strings"
)

// Proto is the measurement transport protocol.
type Proto string

const (
	ProtoTCP Proto = "TCP"
	ProtoUDP Proto = "UDP"
)

// Role distinguishes which endpoint variant a [LineParser] classifies
// lines for; the open-banner and traffic regexes differ by role.
type Role string

const (
	RoleReceiver Role = "receiver"
	RoleSender   Role = "sender"
)

// LineKind identifies what a classified line represents.
type LineKind int

const (
	LineUnclassified LineKind = iota
	LineOpen
	LineTraffic
	LinePDF
)

// ClassifiedLine is the result of matching one stdout line against the
// regex contracts for a given role/protocol pair.
type ClassifiedLine struct {
	Kind LineKind
	Text string

	// Open
	Pid string

	// Traffic (reliable-stream)
	Bytes      string
	Throughput string
	Reads      string // receiver only
	Writes     string // sender only
	ErrWrites  string // sender only
	Retry      string // sender only
	CWnd       string // sender only
	RTT        string // sender only

	// PDF (datagram receiver)
	PDFName    string
	BinWidth   string
	Population string
	PDF        string
}

// regex contracts, grounded verbatim on flows.py's compiled patterns
// for each (role, proto) pair. %d placeholders are the flow's port.
var (
	receiverOpenPattern    = `^Server listening on %s port %d with pid (?P<pid>\d+)`
	receiverTCPTraffic     = regexp.MustCompile(`^\[\s*\d+\] (?P<timestamp>.*) sec\s+(?P<bytes>[0-9]+) Bytes\s+(?P<throughput>[0-9]+) bits/sec\s+(?P<reads>[0-9]+)`)
	receiverUDPPDF         = regexp.MustCompile(`^\[\s*\d+\] (?P<timestamp>.*) sec\s+(?P<pdfname>[A-Z][0-9])\(f\)-PDF: bin\(w=(?P<binwidth>[0-9]+)us\):cnt\((?P<population>[0-9]+)\)=(?P<pdf>.+?)\s+\([0-9]+/[0-9]+%=[0-9]+/[0-9]+,obl/obu=[0-9]+/[0-9]+\)`)
	senderOpenPattern      = `Client connecting to .*, %s port %d with pid (?P<pid>\d+)`
	senderTCPTraffic       = regexp.MustCompile(`^\[\s*\d+\] (?P<timestamp>.*) sec\s+(?P<bytes>\d+) Bytes\s+(?P<throughput>\d+) bits/sec\s+(?P<writes>\d+)/(?P<errwrites>\d+)\s+(?P<retry>\d+)\s+(?P<cwnd>\d+)K/(?P<rtt>\d+) us`)
)

// LineParser buffers raw bytes from one pipe (stdout or stderr) of one
// endpoint controller's subprocess, splits them into complete lines,
// and classifies stdout lines via the regex contract for its
// role/proto pair. stderr lines are never classified: callers log them
// and discard.
//
// A LineParser is not safe for concurrent use; each pipe has exactly
// one reader goroutine.
type LineParser struct {
	role  Role
	proto Proto
	open  *regexp.Regexp

	buf    string
	opened bool
}

// NewLineParser returns a [*LineParser] for the given role, protocol,
// and port. port is substituted into the open-banner pattern, which
// otherwise would match any port's banner.
func NewLineParser(role Role, proto Proto, port int) *LineParser {
	p := &LineParser{role: role, proto: proto}
	var pattern string
	switch role {
	case RoleReceiver:
		pattern = receiverOpenPattern
	case RoleSender:
		pattern = senderOpenPattern
	}
	p.open = regexp.MustCompile(fmt.Sprintf(pattern, proto, port))
	return p
}

// Feed appends a chunk of raw bytes read from the pipe and returns the
// complete lines extracted from the buffer, in order, each classified
// per the single-transition guard: while unopened, only the open
// pattern is tried; once opened, only traffic/PDF patterns are tried
// (spec.md §4.1's "ordering" rule).
func (p *LineParser) Feed(chunk []byte) []ClassifiedLine {
	p.buf += string(chunk)

	var out []ClassifiedLine
	for {
		idx := strings.IndexByte(p.buf, '\n')
		if idx < 0 {
			break
		}
		line := p.buf[:idx]
		p.buf = p.buf[idx+1:]
		out = append(out, p.classify(line))
	}
	return out
}

func (p *LineParser) classify(line string) ClassifiedLine {
	if !p.opened {
		if m := p.open.FindStringSubmatch(line); m != nil {
			p.opened = true
			return ClassifiedLine{Kind: LineOpen, Text: line, Pid: m[p.open.SubexpIndex("pid")]}
		}
		return ClassifiedLine{Kind: LineUnclassified, Text: line}
	}

	switch {
	case p.role == RoleReceiver && p.proto == ProtoTCP:
		if m := receiverTCPTraffic.FindStringSubmatch(line); m != nil {
			return ClassifiedLine{
				Kind:       LineTraffic,
				Text:       line,
				Bytes:      m[receiverTCPTraffic.SubexpIndex("bytes")],
				Throughput: m[receiverTCPTraffic.SubexpIndex("throughput")],
				Reads:      m[receiverTCPTraffic.SubexpIndex("reads")],
			}
		}
	case p.role == RoleReceiver && p.proto == ProtoUDP:
		if m := receiverUDPPDF.FindStringSubmatch(line); m != nil {
			return ClassifiedLine{
				Kind:       LinePDF,
				Text:       line,
				PDFName:    m[receiverUDPPDF.SubexpIndex("pdfname")],
				BinWidth:   m[receiverUDPPDF.SubexpIndex("binwidth")],
				Population: m[receiverUDPPDF.SubexpIndex("population")],
				PDF:        m[receiverUDPPDF.SubexpIndex("pdf")],
			}
		}
	case p.role == RoleSender && p.proto == ProtoTCP:
		if m := senderTCPTraffic.FindStringSubmatch(line); m != nil {
			return ClassifiedLine{
				Kind:       LineTraffic,
				Text:       line,
				Bytes:      m[senderTCPTraffic.SubexpIndex("bytes")],
				Throughput: m[senderTCPTraffic.SubexpIndex("throughput")],
				Writes:     m[senderTCPTraffic.SubexpIndex("writes")],
				ErrWrites:  m[senderTCPTraffic.SubexpIndex("errwrites")],
				Retry:      m[senderTCPTraffic.SubexpIndex("retry")],
				CWnd:       m[senderTCPTraffic.SubexpIndex("cwnd")],
				RTT:        m[senderTCPTraffic.SubexpIndex("rtt")],
			}
		}
		// RoleSender + ProtoUDP: no interval pattern. spec.md §9 directs
		// preserving this as "datagram sender emits no interval records".
	}
	return ClassifiedLine{Kind: LineUnclassified, Text: line}
}

// Opened reports whether this parser has observed its open banner.
func (p *LineParser) Opened() bool {
	return p.opened
}
