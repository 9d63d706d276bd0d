// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "strings"

// RedactedStr is substituted for a stored credential whenever it is
// serialized back out (API responses, logs, config dumps).
const RedactedStr = "<redacted>"

// RedactString replaces a string with asterisks of the same length.
func RedactString(s string) string {
	if len(s) == 0 {
		return ""
	}
	return strings.Repeat("*", len(s))
}

// IsRedactedValue reports whether value is the RedactedStr placeholder,
// meaning a caller sent back a value it never actually saw.
func IsRedactedValue(value string) bool {
	return value == RedactedStr
}
