package sanitize

import (
	"strings"
	"unicode"
)

// Filename removes characters from a user-supplied filename that could break
// out of HTTP headers or smuggle path components.
func Filename(filename string) string {
	replacer := strings.NewReplacer(
		"\x00", "",
		"\n", "",
		"\r", "",
		`"`, "",
		`'`, "",
		`\`, "",
		"/", "",
	)
	filename = replacer.Replace(filename)

	result := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, filename)

	result = strings.TrimSpace(result)
	result = strings.Trim(result, ".")

	if result == "" {
		return "download"
	}

	if len(result) > 200 {
		result = result[:200]
	}

	return result
}

// ForHeader sanitizes a filename for use in HTTP headers such as
// Content-Disposition. ASCII-only for maximum client compatibility.
func ForHeader(filename string) string {
	safe := Filename(filename)

	return strings.Map(func(r rune) rune {
		if r > 127 {
			return '_'
		}
		return r
	}, safe)
}
