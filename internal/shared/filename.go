package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SanitizeFilename NFC-normalizes name and replaces every rune that is not a letter, digit, space, '-', '_' or '.' with '_'.
func SanitizeFilename(name string) string {
	name = norm.NFC.String(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// DestinationName returns the library filename for a track, "<artist> - <title>.<ext>", sanitized.
//
// The same name is used for dedup checks and as the final write target.
func DestinationName(artist, title, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return SanitizeFilename(artist + " - " + title + "." + ext)
}
