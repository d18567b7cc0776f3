package macros

import "strings"

// DefinitionsToDict parses a comma-separated NAME=VALUE macro string, as
// passed to commands like dbLoadRecords, into a plain map. Values may be
// single- or double-quoted; quotes are stripped. Entries without a value
// map to the empty string.
func DefinitionsToDict(raw string) map[string]string {
	ret := make(map[string]string)
	for _, pair := range splitUnquoted(raw, ',') {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		ret[name] = unquote(strings.TrimSpace(value))
	}
	return ret
}

// splitUnquoted splits s at sep, ignoring separators inside single or
// double quotes.
func splitUnquoted(s string, sep rune) []string {
	var parts []string
	var sb strings.Builder
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			sb.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			sb.WriteRune(r)
		case r == sep:
			parts = append(parts, sb.String())
			sb.Reset()
		default:
			sb.WriteRune(r)
		}
	}
	parts = append(parts, sb.String())
	return parts
}

func unquote(s string) string {
	if len(s) >= 2 {
		if s[0] == '"' && s[len(s)-1] == '"' ||
			s[0] == '\'' && s[len(s)-1] == '\'' {
			return s[1 : len(s)-1]
		}
	}
	return s
}
