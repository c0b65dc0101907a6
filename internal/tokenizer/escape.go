package tokenizer

import (
	"unicode/utf8"
)

// unescape appends src to dst with escape sequences and doubled quotes
// resolved.
func (t *Tokenizer) unescape(dst, src []byte) []byte {
	d := &t.d
	for i := 0; i < len(src); i++ {
		c := src[i]
		if d.UseEscapeChar && c == d.EscapeChar && i+1 < len(src) {
			n := src[i+1]
			i++
			switch n {
			case '\'', '"', '/', d.EscapeChar:
				dst = append(dst, n)
			case 'b':
				dst = append(dst, '\b')
			case 'f':
				dst = append(dst, '\f')
			case 'n':
				dst = append(dst, '\n')
			case 'r':
				dst = append(dst, '\r')
			case 't':
				dst = append(dst, '\t')
			case 'u':
				if r, ok := hex4(src[i+1:]); ok {
					dst = utf8.AppendRune(dst, r)
					i += 4
				} else {
					dst = append(dst, c, n)
				}
			default:
				dst = append(dst, c, n)
			}
			continue
		}
		if d.DoubleQuote && c == d.QuoteChar && i+1 < len(src) && src[i+1] == d.QuoteChar {
			dst = append(dst, c)
			i++
			continue
		}
		dst = append(dst, c)
	}
	return dst
}

func hex4(b []byte) (rune, bool) {
	if len(b) < 4 {
		return 0, false
	}
	var r rune
	for _, c := range b[:4] {
		r <<= 4
		switch {
		case c >= '0' && c <= '9':
			r |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			r |= rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			r |= rune(c-'A') + 10
		default:
			return 0, false
		}
	}
	return r, true
}

func isSpaceNotTab(c byte) bool {
	return c == ' ' || c == '\n' || c == '\v' || c == '\f' || c == '\r'
}

const whitespace = " \t\n\v\f\r"

// quoted reports whether s is enclosed in quote characters.
func (t *Tokenizer) quoted(s []byte) bool {
	return len(s) >= 2 && s[0] == t.d.QuoteChar && s[len(s)-1] == t.d.QuoteChar
}
