//nolint:testpackage // requires internal access to unexported types and functions
package parser

import (
	"testing"

	"github.com/paveg/csvframe/internal/tokenizer"
	"github.com/stretchr/testify/assert"
)

func parityString(s *quoteScanner, n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = '0'
		if s.inQuotes(i) {
			out[i] = '1'
		}
	}
	return string(out)
}

func TestTerminator(t *testing.T) {
	t.Run("regular accepts cr and crlf", func(t *testing.T) {
		term := newTerminator("\n")
		buf := []byte("a\r\nb\rc\n")

		k, n := term.next(buf, 0, len(buf))
		assert.Equal(t, 1, k)
		assert.Equal(t, 2, n)
		k, n = term.next(buf, 3, len(buf))
		assert.Equal(t, 4, k)
		assert.Equal(t, 1, n)
		k, n = term.next(buf, 5, len(buf))
		assert.Equal(t, 6, k)
		assert.Equal(t, 1, n)
		assert.Equal(t, 0, term.lookback())
	})

	t.Run("crlf cut by end", func(t *testing.T) {
		term := newTerminator("\n")
		assert.Equal(t, 1, term.matchAt([]byte("a\r\n"), 1, 2))
	})

	t.Run("custom sequence", func(t *testing.T) {
		term := newTerminator("<|>")
		buf := []byte("ab<|>cd<|")

		k, n := term.next(buf, 0, len(buf))
		assert.Equal(t, 2, k)
		assert.Equal(t, 3, n)
		k, _ = term.next(buf, 5, len(buf))
		assert.Equal(t, -1, k)
		assert.Equal(t, 2, term.lookback())
		assert.False(t, term.endsWith(buf))
		assert.True(t, term.endsWith(term.appendTo(buf[:5:5])))
	})

	t.Run("empty", func(t *testing.T) {
		term := newTerminator("")
		assert.True(t, term.empty())
		k, _ := term.next([]byte("a\nb"), 0, 3)
		assert.Equal(t, -1, k)
	})
}

func TestQuoteScanner(t *testing.T) {
	tests := []struct {
		name     string
		dialect  func(d *tokenizer.Dialect)
		input    string
		expected string
	}{
		{
			name:     "no specials",
			input:    "ab,c\n",
			expected: "00000",
		},
		{
			name:     "quoted newline",
			input:    "\"a\nb\"\n",
			expected: "111100",
		},
		{
			name:     "doubled quote",
			input:    "\"a\"\"b\"\n",
			expected: "1101100",
		},
		{
			name:     "escaped quote stays quoted",
			input:    "\"a\\\"b\"\n",
			expected: "1111100",
		},
		{
			name:     "escaped quote outside quotes",
			input:    "a\\\"b\n",
			expected: "00000",
		},
		{
			name: "comment ignores quotes",
			dialect: func(d *tokenizer.Dialect) {
				d.CommentChar = '#'
				d.HasCommentChar = true
			},
			input:    "#\"x\n\"a\"\n",
			expected: "00001100",
		},
		{
			name: "comment char inside quotes",
			dialect: func(d *tokenizer.Dialect) {
				d.CommentChar = '#'
				d.HasCommentChar = true
			},
			input:    "\"#\"\n",
			expected: "1100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tokenizer.DefaultDialect()
			if tt.dialect != nil {
				tt.dialect(&d)
			}
			s := newQuoteScanner(d, newTerminator(d.LineTerminator))
			s.scan([]byte(tt.input))
			assert.Equal(t, tt.expected, parityString(s, len(tt.input)))
		})
	}
}

func TestQuoteScannerIncremental(t *testing.T) {
	d := tokenizer.DefaultDialect()
	d.CommentChar = '#'
	d.HasCommentChar = true
	d.LineTerminator = "<|>"
	input := []byte("a,\"x<|>y\\\"z\"<|>#c\"m<|>\"q\"<|>")

	whole := newQuoteScanner(d, newTerminator(d.LineTerminator))
	whole.scan(input)
	expected := parityString(whole, len(input))

	for step := 1; step <= len(input); step++ {
		s := newQuoteScanner(d, newTerminator(d.LineTerminator))
		for end := step; ; end += step {
			end = min(end, len(input))
			s.scan(input[:end])
			if end == len(input) {
				break
			}
		}
		assert.Equal(t, expected, parityString(s, len(input)), "step %d", step)
	}
}

func TestQuoteScannerDiscard(t *testing.T) {
	d := tokenizer.DefaultDialect()
	s := newQuoteScanner(d, newTerminator("\n"))
	input := []byte("x\n\"abc\ndef\"\n\"open")
	s.scan(input)
	full := parityString(s, len(input))

	s.discard(2)
	assert.Equal(t, full[2:], parityString(s, len(input)-2))
	assert.Equal(t, len(input)-2, s.scanned)
	assert.True(t, s.inQuote)

	s.scan(append(input[2:], []byte("\"\n")...))
	assert.False(t, s.inQuote)
	assert.Equal(t, full[2:]+"00", parityString(s, len(input)))

	s.discard(100)
	assert.Equal(t, 0, s.scanned)
}

func TestQuoteScannerClearLast(t *testing.T) {
	s := newQuoteScanner(tokenizer.DefaultDialect(), newTerminator("\n"))
	s.scan([]byte("\"ab\n"))
	assert.True(t, s.inQuotes(3))
	s.clearLast(4)
	assert.False(t, s.inQuotes(3))
}
