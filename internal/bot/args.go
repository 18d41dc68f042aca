package bot

import (
	"strings"
	"unicode"
)

// splitArgs tokenizes a command line on whitespace. Double quotes group
// words into one argument; an unterminated quote runs to the end.
func splitArgs(s string) []string {
	var (
		args    []string
		cur     strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case unicode.IsSpace(r) && !quoted:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		args = append(args, cur.String())
	}
	return args
}

// restAfter returns what is left of s after skipping n arguments,
// keeping the original spacing and quotes of the remainder.
func restAfter(s string, n int) string {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	for ; n > 0 && s != ""; n-- {
		quoted := false
		i := 0
		for i < len(s) {
			c := s[i]
			if c == '"' {
				quoted = !quoted
			} else if !quoted && (c == ' ' || c == '\t' || c == '\n' || c == '\r') {
				break
			}
			i++
		}
		s = strings.TrimLeftFunc(s[i:], unicode.IsSpace)
	}
	return s
}

// parseChannelRef accepts a raw id or a <#id> mention.
func parseChannelRef(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<#") && strings.HasSuffix(s, ">") {
		s = s[2 : len(s)-1]
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return s
}
