package common

import (
	"strings"
	"unicode"
)

// MaxFilenameRunes caps sanitized basenames.
const MaxFilenameRunes = 200

const illegalFilenameChars = `<>:"/\|?*!`

// SanitizeFilename strips characters that are illegal or awkward in file names,
// collapses runs of whitespace into a single space and caps the length.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case strings.ContainsRune(illegalFilenameChars, r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}

	cleaned := strings.Join(strings.Fields(b.String()), " ")
	if runes := []rune(cleaned); len(runes) > MaxFilenameRunes {
		cleaned = strings.TrimSpace(string(runes[:MaxFilenameRunes]))
	}
	return cleaned
}
