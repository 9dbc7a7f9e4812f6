package model

import "strings"

// SplitCSV splits a comma separated facet value, trimming whitespace around
// each item. The empty string yields no items.
func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// JoinCSV joins items with a bare comma.
func JoinCSV(items []string) string {
	return strings.Join(items, ",")
}

// SplitEscapedCSV splits a value written by JoinEscapedCSV. Commas preceded by
// a backslash belong to the item.
func SplitEscapedCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var (
		items []string
		cur   strings.Builder
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && s[i+1] == ',' {
			cur.WriteByte(',')
			i++
			continue
		}
		if c == ',' {
			items = append(items, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	return append(items, strings.TrimSpace(cur.String()))
}

// JoinEscapedCSV joins items with commas, escaping commas inside items.
func JoinEscapedCSV(items []string) string {
	escaped := make([]string, len(items))
	for i, item := range items {
		escaped[i] = strings.ReplaceAll(item, ",", `\,`)
	}
	return strings.Join(escaped, ",")
}
