// Package identity derives stable display colors for participants.
//
// Every client and the server derive the same color for a given username
// without coordination, so a participant renders identically everywhere.
package identity

import "unicode/utf16"

// Palette is the fixed ordered set of participant colors.
// The order is part of the protocol: changing it changes every
// derived color, so clients and server must agree on it exactly.
var Palette = []string{
	"#FF5252", // Red
	"#7C4DFF", // Purple
	"#00BFA5", // Teal
	"#FFD740", // Amber
	"#64DD17", // Light Green
	"#448AFF", // Blue
	"#FF6E40", // Deep Orange
	"#EC407A", // Pink
	"#26A69A", // Green
	"#AB47BC", // Purple
	"#5C6BC0", // Indigo
	"#FFA726", // Orange
}

// Color returns the palette color for username.
//
// The hash is a 32-bit signed rolling hash over the UTF-16 code units of
// username (surrogate pairs count as two units, matching JavaScript's
// charCodeAt), folded with 32-bit wraparound:
//
//	hash = code[i] + ((hash << 5) - hash)
//
// The palette index is abs(hash) mod len(Palette). Pure and total: every
// string, including the empty string, maps to a color.
func Color(username string) string {
	var hash int32
	for _, code := range utf16.Encode([]rune(username)) {
		hash = int32(code) + ((hash << 5) - hash)
	}
	idx := int64(hash)
	if idx < 0 {
		idx = -idx
	}
	return Palette[idx%int64(len(Palette))]
}
