package ideas

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Clean keeps ASCII letters, digits, spaces, underscores and hyphens and
// trims the result. The output can never contain a path separator or a
// leading dot.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == ' ', c == '_', c == '-':
			b.WriteByte(c)
		}
	}
	return strings.TrimSpace(b.String())
}

var folderSuffix = regexp.MustCompile(`\s\(([0-9]+)\)$`)

// CleanFolder normalizes a folder reference to the names claim hands out:
// a cleaned base, optionally followed by " (n)" with n >= 2.
func CleanFolder(s string) string {
	s = strings.TrimSpace(s)
	if m := folderSuffix.FindStringSubmatchIndex(s); m != nil {
		n, err := strconv.Atoi(s[m[2]:m[3]])
		if err == nil && n >= 2 {
			base := Clean(s[:m[0]])
			if base == "" {
				return ""
			}
			return fmt.Sprintf("%s (%d)", base, n)
		}
	}
	return Clean(s)
}
