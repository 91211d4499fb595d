// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on flows.py's tos_to_txt/txt_to_tos classmethods.

package flowfleet

import "strings"

// TOS labels a differentiated-services traffic class.
type TOS string

const (
	TOSBestEffort TOS = "BE"
	TOSBackground TOS = "BK"
	TOSVideo      TOS = "VI"
	TOSVoice      TOS = "VO"
)

// tosHex maps each [TOS] to the hex string passed to the measurement
// tool's -S flag.
var tosHex = map[TOS]string{
	TOSBestEffort: "0x0",
	TOSBackground: "0x20",
	TOSVideo:      "0x80",
	TOSVoice:      "0xC0",
}

// tosAliases maps every accepted spelling (including the hex string
// itself) to its canonical [TOS].
var tosAliases = map[string]TOS{
	"BE": TOSBestEffort, "BESTEFFORT": TOSBestEffort, "0X0": TOSBestEffort,
	"BK": TOSBackground, "BACKGROUND": TOSBackground, "0X20": TOSBackground,
	"VI": TOSVideo, "VIDEO": TOSVideo, "0X80": TOSVideo,
	"VO": TOSVoice, "VOICE": TOSVoice, "0XC0": TOSVoice,
}

// tosHexToLabel is the reverse of [tosHex]. Unlike the source's
// tos_to_txt, which recognizes 0x02 for BK, this recognizes 0x20 —
// fixing the asymmetry noted as a likely bug: see spec.md §9, which
// directs preserving text→0x20 (the IP DSCP convention) and fixing the
// reverse map to match.
var tosHexToLabel = map[string]TOS{
	"0x0":  TOSBestEffort,
	"0x20": TOSBackground,
	"0x80": TOSVideo,
	"0xC0": TOSVoice,
}

// TxtToTOSHex resolves a human-entered TOS spelling (case-insensitive;
// accepts the short label, the long name, or the hex string itself) to
// its canonical hex string. It returns ("", false) for an unrecognized
// spelling; see [ErrUnknownTOS].
func TxtToTOSHex(txt string) (string, bool) {
	label, ok := tosAliases[strings.ToUpper(txt)]
	if !ok {
		return "", false
	}
	return tosHex[label], true
}

// TOSHexToTxt resolves a TOS hex string (as sent on the wire, e.g.
// "0x20") to its canonical short label. It returns ("", false) for an
// unrecognized value.
func TOSHexToTxt(hex string) (TOS, bool) {
	label, ok := tosHexToLabel[hex]
	return label, ok
}

// ParseTOS resolves a human-entered TOS spelling to its canonical
// [TOS] label, for decoding fleet configuration files. Returns
// [ErrUnknownTOS] for an unrecognized spelling.
func ParseTOS(txt string) (TOS, error) {
	label, ok := tosAliases[strings.ToUpper(txt)]
	if !ok {
		return "", ErrUnknownTOS
	}
	return label, nil
}
