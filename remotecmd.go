// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on flows.py's iperf_server.start/iperf_client.start sshcmd
// construction and the signal_stop/signal_pause/signal_resume/cleanup
// remote kill invocations (spec.md §6). The remote command is joined
// into a single shell-quoted string, the way ssh expects a command
// line rather than a pre-split argv; quoting uses go-shellquote, the
// same library the antler project uses for remote-command
// construction (see DESIGN.md).

package flowfleet

import (
	"fmt"
	"path"
	"strconv"

	shellquote "github.com/kballard/go-shellquote"
)

// ReceiverArgv builds the local argv that runs ssh to launch the
// measurement tool's receiver side on f.Server. iperftime is
// duration+30 per spec.md §4.2's guard window.
func ReceiverArgv(cfg *Config, f *FlowConfig, iperftime int) []string {
	remote := []string{
		cfg.MeasurementToolPath,
		"-s", "-p", strconv.Itoa(f.Port), "-e",
		"-t", strconv.Itoa(iperftime), "-z", "-fb",
		"-w", f.Window,
	}
	if f.Interval >= 0.05 {
		remote = append(remote, "-i", formatInterval(f.Interval))
	}
	if f.Proto == ProtoUDP {
		remote = append(remote, "-u", "--udp-histogram", "10u,50000")
	}
	return sshArgv(cfg, f.User, f.Server, remote)
}

// SenderArgv builds the local argv that runs ssh to launch the
// measurement tool's sender side on f.Client.
func SenderArgv(cfg *Config, f *FlowConfig, iperftime int) []string {
	tosHex, ok := TxtToTOSHex(string(f.TOS))
	if !ok {
		tosHex = ""
	}
	remote := []string{
		cfg.MeasurementToolPath,
		"-c", f.Dst, "-p", strconv.Itoa(f.Port), "-e",
		"-t", strconv.Itoa(iperftime), "-z", "-fb",
		"-S", tosHex,
		"-w", f.Window,
	}
	if f.Interval >= 0.05 {
		remote = append(remote, "-i", formatInterval(f.Interval))
	}
	switch {
	case f.Proto == ProtoUDP && f.OfferedLoad != "":
		remote = append(remote, "-u", "--isochronous", f.OfferedLoad)
	case f.Proto == ProtoTCP && f.OfferedLoad != "":
		remote = append(remote, "-b", f.OfferedLoad)
	}
	return sshArgv(cfg, f.User, f.Client, remote)
}

// SignalArgv builds the local argv that runs ssh to deliver sig to pid
// on host as user, via `kill -<sig> <pid>` (spec.md §6). Used for
// signal_stop (HUP receiver, INT sender), signal_pause (STOP), and
// signal_resume (CONT).
func SignalArgv(cfg *Config, user, host, sig, pid string) []string {
	return sshArgv(cfg, user, host, []string{"kill", "-" + sig, pid})
}

// PrecleanArgv builds the local argv that runs ssh to kill any stale
// measurement process on host as cfg.PrecleanUser (spec.md §6).
func PrecleanArgv(cfg *Config, host string) []string {
	return sshArgv(cfg, cfg.PrecleanUser, host, []string{"pkill", path.Base(cfg.MeasurementToolPath)})
}

// sshArgv joins remote into a single shell-quoted command string,
// matching how ssh concatenates trailing argv elements into the
// command line handed to the remote shell.
func sshArgv(cfg *Config, user, host string, remote []string) []string {
	return []string{cfg.SSHPath, fmt.Sprintf("%s@%s", user, host), shellquote.Join(remote...)}
}

func formatInterval(interval float64) string {
	return strconv.FormatFloat(interval, 'g', -1, 64)
}

const (
	SigReceiverStop = "HUP"
	SigSenderStop   = "INT"
	SigPause        = "STOP"
	SigResume       = "CONT"
)
