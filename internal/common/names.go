package common

import (
	"go/token"
	"strings"
	"unicode"
)

// initialisms are rendered fully upper case in exported names.
var initialisms = map[string]bool{
	"ID": true, "URL": true, "URI": true, "UUID": true, "IP": true,
	"HTTP": true, "JSON": true, "API": true, "CRC": true, "TTL": true,
}

// IsIdentifier reports whether s is a valid Go identifier that is not a
// keyword.
func IsIdentifier(s string) bool {
	return token.IsIdentifier(s)
}

// ExportedName converts a schema name such as "order_id" or "bidPrice" to an
// exported Go identifier ("OrderID", "BidPrice").
func ExportedName(s string) string {
	var b strings.Builder
	for _, w := range splitWords(s) {
		if up := strings.ToUpper(w); initialisms[up] {
			b.WriteString(up)
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// UnexportedName converts s like ExportedName but lowers the first word.
// Go keywords get a trailing underscore.
func UnexportedName(s string) string {
	words := splitWords(s)
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(words[0]))
	for _, w := range words[1:] {
		if up := strings.ToUpper(w); initialisms[up] {
			b.WriteString(up)
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	name := b.String()
	if token.IsKeyword(name) {
		name += "_"
	}
	return name
}

// splitWords breaks s on '_', '-', '.', spaces and lower-to-upper case
// transitions.
func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) ||
			(i+1 < len(runes) && unicode.IsUpper(runes[i-1]) && unicode.IsLower(runes[i+1]))):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}
