package cleaner

import "unicode/utf16"

// Telegram entity offsets count UTF-16 code units, not bytes or runes.
// These helpers bridge between Go strings and that addressing scheme.

// utf16Len returns the length of s in UTF-16 code units.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += len(utf16.Encode([]rune{r}))
	}
	return n
}

// utf16Slice returns the substring of s covering UTF-16 code units [from, to).
// Out-of-range bounds clamp to the string.
func utf16Slice(s string, from, to int) string {
	if from >= to {
		return ""
	}
	start, end := -1, len(s)
	pos := 0
	for i, r := range s {
		if pos >= from && start < 0 {
			start = i
		}
		if pos >= to {
			end = i
			break
		}
		pos += len(utf16.Encode([]rune{r}))
	}
	if start < 0 {
		if from <= pos {
			start = len(s)
		} else {
			return ""
		}
	}
	return s[start:end]
}

// utf16Splice replaces the UTF-16 span [off, off+length) of s with repl.
func utf16Splice(s string, off, length int, repl string) string {
	return utf16Slice(s, 0, off) + repl + utf16Slice(s, off+length, utf16Len(s))
}
