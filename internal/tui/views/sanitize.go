package views

import (
	"strings"
	"unicode"
)

// dropped lists code points tcell cannot lay out as part of a single cell
// run: skin tone modifiers, the zero width joiner and variation selectors.
// Removing them leaves the base emoji, which renders at a stable width.
var dropped = []struct{ lo, hi rune }{
	{0x1F3FB, 0x1F3FF},
	{0x200D, 0x200D},
	{0xFE00, 0xFE0F},
	{0xE0100, 0xE01EF},
}

// sanitizeForTerminal strips the code points above and any control
// character except newline and tab, so peer text cannot move the cursor or
// emit escape sequences.
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		for _, d := range dropped {
			if r >= d.lo && r <= d.hi {
				return -1
			}
		}
		return r
	}, s)
}

// oneLine sanitizes s and collapses all whitespace runs to single spaces.
func oneLine(s string) string {
	return strings.Join(strings.Fields(sanitizeForTerminal(s)), " ")
}
