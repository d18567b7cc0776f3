package macros

import "strings"

// Expand performs one left-to-right substitution pass over text, recognizing
// $(NAME), $(NAME=default) and ${NAME} references. Substituted values are not
// re-expanded within the same pass. An undefined macro with no inline default
// expands to the empty string; an inline default is used as-is and is not
// recorded as a definition.
func (c *Context) Expand(text string) string {
	var sb strings.Builder
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		r := runes[i]
		if r != '$' || i+1 >= len(runes) {
			sb.WriteRune(r)
			i++
			continue
		}

		var open, close rune
		switch runes[i+1] {
		case '(':
			open, close = '(', ')'
		case '{':
			open, close = '{', '}'
		default:
			sb.WriteRune(r)
			i++
			continue
		}

		end, ok := matchDelim(runes, i+1, open, close)
		if !ok {
			// Unterminated reference, keep the rest verbatim.
			sb.WriteString(string(runes[i:]))
			break
		}

		ref := string(runes[i+2 : end])
		name, def, hasDefault := cutTopLevel(ref, open, close)
		if value, found := c.Get(name); found {
			sb.WriteString(value)
		} else if hasDefault {
			sb.WriteString(def)
		}
		i = end + 1
	}
	return sb.String()
}

// matchDelim finds the index of the close delimiter matching the open
// delimiter at start, honoring nesting.
func matchDelim(runes []rune, start int, open, close rune) (int, bool) {
	depth := 0
	for i := start; i < len(runes); i++ {
		switch runes[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// cutTopLevel splits "NAME=default" at the first '=' that is not inside a
// nested reference.
func cutTopLevel(ref string, open, close rune) (name, def string, hasDefault bool) {
	depth := 0
	for i, r := range ref {
		switch r {
		case open:
			depth++
		case close:
			depth--
		case '=':
			if depth == 0 {
				return ref[:i], ref[i+len("="):], true
			}
		}
	}
	return ref, "", false
}
