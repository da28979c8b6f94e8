package aiverify

import (
	"regexp"
	"strings"
)

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// RepairJSON makes a best effort to turn model output into a JSON object: it
// drops text around the first object, normalises smart quotes, closes
// unbalanced brackets and removes trailing commas.
func RepairJSON(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return "{}"
	}

	if start := strings.IndexByte(s, '{'); start > 0 {
		s = s[start:]
	}

	s = firstObject(s)
	s = normalizeQuotes(s)
	s = balanceBrackets(s)

	return trailingComma.ReplaceAllString(s, "$1")
}

// stripNoise removes everything before the first '{'. ok is false when there is no object at all.
func stripNoise(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s, false
	}

	return s[start:], true
}

// firstObject cuts s after the first balanced top-level object.
func firstObject(s string) string {
	depth := 0
	sc := scanner{}

	for i := range len(s) {
		c := s[i]
		if sc.inString(c) {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}

	return s
}

func normalizeQuotes(s string) string {
	return strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'").Replace(s)
}

func balanceBrackets(s string) string {
	var objects, arrays int

	sc := scanner{}

	for i := range len(s) {
		c := s[i]
		if sc.inString(c) {
			continue
		}

		switch c {
		case '{':
			objects++
		case '}':
			objects--
		case '[':
			arrays++
		case ']':
			arrays--
		}
	}

	var b strings.Builder

	b.WriteString(s)

	if sc.open {
		b.WriteByte('"')
	}

	for ; arrays > 0; arrays-- {
		b.WriteByte(']')
	}

	for ; objects > 0; objects-- {
		b.WriteByte('}')
	}

	return b.String()
}

// scanner tracks whether the bytes seen so far leave us inside a JSON string.
type scanner struct {
	open   bool
	escape bool
}

// inString feeds c and reports whether c belongs to a string literal.
func (s *scanner) inString(c byte) bool {
	if s.open {
		switch {
		case s.escape:
			s.escape = false
		case c == '\\':
			s.escape = true
		case c == '"':
			s.open = false
		}

		return true
	}

	if c == '"' {
		s.open = true

		return true
	}

	return false
}
