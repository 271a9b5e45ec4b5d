package links

import "unicode/utf16"

// SliceByUTF16 returns the substring of s addressed by a Telegram entity offset/length,
// both counted in UTF-16 code units. Out-of-range values are clamped.
func SliceByUTF16(s string, off, length int) string {
	units := utf16.Encode([]rune(s))
	if off < 0 {
		off = 0
	}
	if length < 0 {
		length = 0
	}
	if off > len(units) {
		off = len(units)
	}
	end := off + length
	if end > len(units) {
		end = len(units)
	}
	return string(utf16.Decode(units[off:end]))
}
