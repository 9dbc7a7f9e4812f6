package history

import "strings"

// uncertainMarker appended to a whiteboard item marks it as tentative.
const uncertainMarker = "(?)"

// WhiteboardItems splits a status whiteboard into items. Bracketed text is one
// item, anything else is split at whitespace, commas and brackets. A "(?)"
// following an item is folded into it as a trailing question mark.
func WhiteboardItems(whiteboard string) []string {
	items := []string{}
	s := whiteboard
	for len(s) > 0 {
		c := s[0]
		switch {
		case isWhiteboardSeparator(c):
			s = s[1:]
		case c == '[':
			end := strings.IndexByte(s, ']')
			if end < 0 {
				s = s[1:]
				continue
			}
			if item := s[1:end]; item != "" {
				items = append(items, item)
			}
			s = s[end+1:]
		default:
			end := strings.IndexFunc(s, func(r rune) bool {
				return r == '[' || (r < 0x80 && isWhiteboardSeparator(byte(r)))
			})
			if end < 0 {
				end = len(s)
			}
			word := s[:end]
			s = s[end:]
			if word == uncertainMarker {
				if n := len(items); n > 0 {
					items[n-1] += "?"
				}
				continue
			}
			items = append(items, word)
		}
	}
	return items
}

func isWhiteboardSeparator(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v', ',', ']':
		return true
	}
	return false
}
