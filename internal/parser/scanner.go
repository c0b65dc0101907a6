package parser

import (
	"bytes"

	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/paveg/csvframe/internal/tokenizer"
)

// quoteScanner computes the quote parity bitmap of the fill buffer. Bit i
// is set when the byte at offset i lies inside a quoted field. The scan is
// incremental: bytes already scanned keep their bits, and the quote,
// escape and comment state at the end of the scanned region carries over
// to the next fill of the same source.
type quoteScanner struct {
	term       terminator
	specials   string
	quote      byte
	escape     byte
	comment    byte
	useEscape  bool
	hasComment bool

	bits    []byte
	scratch []byte
	scanned int

	inQuote     bool
	escaped     bool
	inComment   bool
	commentFrom int
}

func newQuoteScanner(d tokenizer.Dialect, term terminator) *quoteScanner {
	return &quoteScanner{
		term:       term,
		specials:   d.SpecialChars(),
		quote:      d.QuoteChar,
		escape:     d.EscapeChar,
		comment:    d.CommentChar,
		useEscape:  d.UseEscapeChar,
		hasComment: d.HasCommentChar,
	}
}

// reset forgets all state before a new source.
func (s *quoteScanner) reset() {
	s.scanned = 0
	s.inQuote = false
	s.escaped = false
	s.inComment = false
	s.commentFrom = 0
}

// inQuotes reports the parity bit at offset i.
func (s *quoteScanner) inQuotes(i int) bool {
	return bitutil.BitIsSet(s.bits, i)
}

func (s *quoteScanner) grow(n int) {
	need := int(bitutil.BytesForBits(int64(n)))
	if len(s.bits) >= need {
		return
	}
	bits := make([]byte, max(need, 2*len(s.bits)))
	copy(bits, s.bits)
	s.bits = bits
}

func (s *quoteScanner) set(from, to int, v bool) {
	if to > from {
		bitutil.SetBitsTo(s.bits, int64(from), int64(to-from), v)
	}
}

// scan extends the bitmap over buf, resuming after the bytes scanned by
// the previous call.
func (s *quoteScanner) scan(buf []byte) {
	n := len(buf)
	s.grow(n)
	i := s.scanned
	for i < n {
		if s.inComment {
			k, m := s.term.next(buf, s.commentFrom, n)
			if k < 0 {
				s.set(i, n, false)
				s.commentFrom = max(s.commentFrom, n-s.term.lookback())
				i = n
				break
			}
			s.set(i, k+m, false)
			s.inComment = false
			i = k + m
			continue
		}
		if s.escaped {
			bitutil.SetBitTo(s.bits, i, s.inQuote)
			s.escaped = false
			i++
			continue
		}

		j := bytes.IndexAny(buf[i:], s.specials)
		if j < 0 {
			s.set(i, n, s.inQuote)
			i = n
			break
		}
		s.set(i, i+j, s.inQuote)
		i += j

		c := buf[i]
		switch {
		case c == s.quote:
			s.inQuote = !s.inQuote
		case s.useEscape && c == s.escape:
			s.escaped = true
		case s.hasComment && c == s.comment && !s.inQuote:
			s.inComment = true
			s.commentFrom = i + 1
		}
		bitutil.SetBitTo(s.bits, i, s.inQuote)
		i++
	}
	s.scanned = n
}

// clearLast forces the final byte of an n byte buffer out of quotes so the
// last record of a source always ends.
func (s *quoteScanner) clearLast(n int) {
	if n > 0 {
		bitutil.ClearBit(s.bits, n-1)
	}
}

// discard drops the first n scanned bytes, shifting the bitmap left.
func (s *quoteScanner) discard(n int) {
	if n <= 0 {
		return
	}
	s.commentFrom = max(s.commentFrom-n, 0)
	if n >= s.scanned {
		s.scanned = 0
		return
	}
	remaining := s.scanned - n
	need := int(bitutil.BytesForBits(int64(remaining)))
	if len(s.scratch) < len(s.bits) {
		s.scratch = make([]byte, len(s.bits))
	}
	clear(s.scratch[:need])
	bitutil.CopyBitmap(s.bits, n, remaining, s.scratch, 0)
	s.bits, s.scratch = s.scratch, s.bits
	s.scanned = remaining
}
