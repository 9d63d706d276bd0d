// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package romannum converts the small set of roman numerals Kapowarr-style
// volume markers use (i through x) to their decimal value. There is no
// conversion from decimal back to a numeral.
package romannum

import "strings"

var toDecimal = map[string]int{
	"i": 1, "ii": 2, "iii": 3, "iv": 4, "v": 5,
	"vi": 6, "vii": 7, "viii": 8, "ix": 9, "x": 10,
}

// Decode converts a lowercase roman numeral (i..x) to its decimal value.
// ok is false if s isn't one of the recognized numerals.
func Decode(s string) (int, bool) {
	v, ok := toDecimal[strings.ToLower(s)]
	return v, ok
}

// IsRomanNumeral reports whether s (case-insensitive) is one of i..x, which
// is the only form the volume-number pattern accepts (1-3 uppercase I's is
// handled separately by the caller as a distinct grammar: "III" etc. maps
// through this table too since it's case-insensitive).
func IsRomanNumeral(s string) bool {
	_, ok := toDecimal[strings.ToLower(s)]
	return ok
}
