package transcribe

import "strings"

// Normalize strips non-BMP codepoints, musical symbols, and emoji from a
// transcript before keyword matching (spec §4.3 step 6c), so a model's
// decorative emoji output can't mask or fabricate a keyword hit.
func Normalize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r > 0xFFFF {
			// Outside the Basic Multilingual Plane: emoji, musical
			// symbols (U+1D100+), and other supplementary-plane noise.
			continue
		}
		if r >= 0x2600 && r <= 0x27BF {
			// Miscellaneous Symbols and Dingbats: the BMP emoji and
			// musical notes (U+2669–U+266F).
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
