// Package textnorm cleans scraped text and resolves obfuscated image URLs.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// invisible covers zero-width and bidirectional control code points.
var invisible = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200B, Hi: 0x200F, Stride: 1},
		{Lo: 0x202A, Hi: 0x202E, Stride: 1},
		{Lo: 0x2060, Hi: 0x206F, Stride: 1},
	},
}

// Normalize returns s as valid NFC UTF-8 with invisible characters removed
// and all whitespace runs collapsed to single spaces. An empty result means
// there was no text.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToValidUTF8(s, "")
	s = norm.NFC.String(s)

	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.Is(invisible, r):
			return -1
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		}
		return r
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

// NormalizePtr is Normalize for optional values. It returns nil for nil
// input and for input that normalizes to nothing.
func NormalizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	out := Normalize(*s)
	if out == "" {
		return nil
	}
	return &out
}
