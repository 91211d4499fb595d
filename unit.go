// SPDX-License-Identifier: GPL-3.0-or-later

package flowfleet

// Unit is a type not containing any value (analogous to an
// explicit `void` type in C and C++).
//
// Use this type to construct [Func] that take no argument or return no
// value to the caller — e.g. a preclean operation keyed by host, or a
// coordinator phase whose only outcome is success or a timeout error.
type Unit struct{}
