// SPDX-License-Identifier: GPL-3.0-or-later

package flowfleet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineParserReceiverTCPOpenBanner(t *testing.T) {
	p := NewLineParser(RoleReceiver, ProtoTCP, 61003)
	lines := p.Feed([]byte("Server listening on TCP port 61003 with pid 2565\n"))

	require.Len(t, lines, 1)
	assert.Equal(t, LineOpen, lines[0].Kind)
	assert.Equal(t, "2565", lines[0].Pid)
	assert.True(t, p.Opened())
}

func TestLineParserReceiverTCPTrafficAfterOpen(t *testing.T) {
	p := NewLineParser(RoleReceiver, ProtoTCP, 61003)
	p.Feed([]byte("Server listening on TCP port 61003 with pid 2565\n"))

	lines := p.Feed([]byte("[  4] 0.00-0.50 sec  657090 Bytes  10513440 bits/sec  449\n"))
	require.Len(t, lines, 1)
	assert.Equal(t, LineTraffic, lines[0].Kind)
	assert.Equal(t, "657090", lines[0].Bytes)
	assert.Equal(t, "10513440", lines[0].Throughput)
	assert.Equal(t, "449", lines[0].Reads)
}

func TestLineParserSenderTCPOpenBanner(t *testing.T) {
	p := NewLineParser(RoleSender, ProtoTCP, 61009)
	lines := p.Feed([]byte("Client connecting to 192.168.100.33, TCP port 61009 with pid 1903\n"))

	require.Len(t, lines, 1)
	assert.Equal(t, LineOpen, lines[0].Kind)
	assert.Equal(t, "1903", lines[0].Pid)
}

func TestLineParserSenderTCPTraffic(t *testing.T) {
	p := NewLineParser(RoleSender, ProtoTCP, 61009)
	p.Feed([]byte("Client connecting to 192.168.100.33, TCP port 61009 with pid 1903\n"))

	lines := p.Feed([]byte("[  3] 0.00-0.50 sec  655620 Bytes  10489920 bits/sec  14/211        446      446K/0 us\n"))
	require.Len(t, lines, 1)
	assert.Equal(t, LineTraffic, lines[0].Kind)
	assert.Equal(t, "655620", lines[0].Bytes)
	assert.Equal(t, "14", lines[0].Writes)
	assert.Equal(t, "211", lines[0].ErrWrites)
	assert.Equal(t, "446", lines[0].CWnd)
	assert.Equal(t, "0", lines[0].RTT)
}

func TestLineParserReceiverUDPPDF(t *testing.T) {
	p := NewLineParser(RoleReceiver, ProtoUDP, 61005)
	p.Feed([]byte("Server listening on UDP port 61005 with pid 99\n"))

	lines := p.Feed([]byte("[  3] 0.00-21.79 sec T8(f)-PDF: bin(w=10us):cnt(3)=223:1,240:1,241:1 (5/95%=117/144,obl/obu=0/0)\n"))
	require.Len(t, lines, 1)
	assert.Equal(t, LinePDF, lines[0].Kind)
	assert.Equal(t, "T8", lines[0].PDFName)
	assert.Equal(t, "10", lines[0].BinWidth)
	assert.Equal(t, "3", lines[0].Population)
	assert.Equal(t, "223:1,240:1,241:1", lines[0].PDF)
}

// Datagram senders have no interval pattern; traffic lines remain
// unclassified (spec.md §9's preserved gap).
func TestLineParserSenderUDPHasNoTrafficPattern(t *testing.T) {
	p := NewLineParser(RoleSender, ProtoUDP, 61005)
	p.Feed([]byte("Client connecting to 10.0.0.1, UDP port 61005 with pid 42\n"))

	lines := p.Feed([]byte("[  3] 0.00-0.50 sec some unrelated datagram line\n"))
	require.Len(t, lines, 1)
	assert.Equal(t, LineUnclassified, lines[0].Kind)
}

// Single-transition guard: once opened, a line that happens to
// resemble the banner again is not re-classified as open.
func TestLineParserSingleTransitionGuard(t *testing.T) {
	p := NewLineParser(RoleReceiver, ProtoTCP, 61003)
	p.Feed([]byte("Server listening on TCP port 61003 with pid 2565\n"))
	require.True(t, p.Opened())

	lines := p.Feed([]byte("Server listening on TCP port 61003 with pid 2565\n"))
	require.Len(t, lines, 1)
	assert.NotEqual(t, LineOpen, lines[0].Kind)
}

func TestLineParserFeedAcrossChunks(t *testing.T) {
	p := NewLineParser(RoleReceiver, ProtoTCP, 61003)
	lines := p.Feed([]byte("Server listening on TCP "))
	assert.Empty(t, lines)

	lines = p.Feed([]byte("port 61003 with pid 2565\n"))
	require.Len(t, lines, 1)
	assert.Equal(t, LineOpen, lines[0].Kind)
}

func TestLineParserUnclassifiedLine(t *testing.T) {
	p := NewLineParser(RoleReceiver, ProtoTCP, 61003)
	lines := p.Feed([]byte("some garbage line\n"))
	require.Len(t, lines, 1)
	assert.Equal(t, LineUnclassified, lines[0].Kind)
	assert.False(t, p.Opened())
}
