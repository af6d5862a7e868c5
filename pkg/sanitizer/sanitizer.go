// Package sanitizer escapes user supplied text before it is stored.
//
// Escaping is idempotent: entities produced by a previous pass are left
// untouched, so sanitising an already sanitised value is a no-op.
package sanitizer

import "strings"

var entities = []string{"&amp;", "&lt;", "&gt;", "&quot;", "&#39;", "&#x2f;"}

// ForHTML escapes the characters that are significant in HTML markup.
func ForHTML(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '&':
			if isEntityAt(s, i) {
				b.WriteByte(c)
			} else {
				b.WriteString("&amp;")
			}
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#39;")
		case '/':
			b.WriteString("&#x2f;")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// TextField normalises a free text value. Surrounding whitespace is dropped.
func TextField(s string) string {
	return strings.TrimSpace(s)
}

func isEntityAt(s string, i int) bool {
	for _, e := range entities {
		if strings.HasPrefix(s[i:], e) {
			return true
		}
	}
	return false
}
