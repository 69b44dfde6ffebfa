package common

import "strings"

// FileSafe returns s with path separators and whitespace replaced by underscores.
func FileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ', '\t', '\n':
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
}
