package tokenizer

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/paveg/csvframe/internal/series"
)

// Ignore marks an input field that is dropped by the output column order.
const Ignore = -1

type state int

const (
	startField state = iota
	inField
	inQuotedField
)

type sinkMode int

const (
	rowSink sinkMode = iota
	stringSink
)

// Tokenizer splits records according to a Dialect.
type Tokenizer struct {
	d              Dialect
	delim          []byte
	delimIsSpace   bool
	delimIsNewline bool
	emptyIsNA      bool

	field      []byte
	scratch    []byte
	lastErr    string
	implErr    string
	failPos    int
	bracketEnd int

	// per call sink state
	mode            sinkMode
	row             []series.Value
	types           []series.Type
	order           []int
	permitUndefined bool
	ctr             int
	expected        int
	strs            []string
}

// New creates a tokenizer for d. The dialect is copied.
func New(d Dialect) *Tokenizer {
	t := &Tokenizer{d: d, delim: []byte(d.Delimiter)}
	t.delimIsSpace = strings.Trim(d.Delimiter, " \n\v\f\r") == "" && d.Delimiter != ""
	t.delimIsNewline = d.Delimiter == "\n" || (d.LineTerminator != "" && d.Delimiter == d.LineTerminator)
	for _, na := range d.NAValues {
		if na == "" {
			t.emptyIsNA = true
		}
	}
	return t
}

// Dialect returns the configuration the tokenizer was built with.
func (t *Tokenizer) Dialect() Dialect { return t.d }

// LastError returns the diagnosis of the most recent failed call, or "".
func (t *Tokenizer) LastError() string { return t.lastErr }

// TokenizeLine parses line into row, where row[i] receives the value of
// output column i typed as types[i]. When order is non-nil, input field j
// is written to row[order[j]] or dropped if order[j] is Ignore, and
// len(order) fields are expected; otherwise len(row) fields are expected.
// With permitUndefined, empty non-string fields become missing values.
//
// The return value is the number of input fields parsed, or 0 on a parse
// error. Any result other than the expected count leaves a diagnosis in
// LastError.
func (t *Tokenizer) TokenizeLine(line []byte, row []series.Value, types []series.Type,
	permitUndefined bool, order []int) int {
	t.mode = rowSink
	t.row = row
	t.types = types
	t.order = order
	t.permitUndefined = permitUndefined
	t.ctr = 0
	t.expected = len(row)
	if order != nil {
		t.expected = len(order)
	}
	t.lastErr = ""
	t.implErr = ""

	ok := t.run(line)
	if !ok || t.ctr < t.expected {
		t.lastErr = t.diagnose(line, ok)
	}
	t.row = nil
	t.types = nil
	t.order = nil
	if !ok {
		return 0
	}
	return t.ctr
}

// TokenizeStrings splits line into untyped fields, as used for header
// lines. Blank and comment lines produce no fields.
func (t *Tokenizer) TokenizeStrings(line []byte) []string {
	t.mode = stringSink
	t.strs = nil
	t.lastErr = ""
	t.implErr = ""
	t.run(line)
	out := t.strs
	t.strs = nil
	return out
}

func (t *Tokenizer) delimiterAt(line []byte, i int) bool {
	if len(t.d.Delimiter) == 1 {
		return line[i] == t.d.Delimiter[0]
	}
	return bytes.HasPrefix(line[i:], t.delim)
}

func (t *Tokenizer) run(line []byte) bool {
	d := &t.d
	t.failPos = -1
	if t.delimIsNewline {
		if len(line) == 0 {
			return true
		}
		if !t.emit(line) {
			t.failPos = len(line)
			return false
		}
		return true
	}

	field := t.field[:0]
	st := startField
	delimSeen := false
	escape := false
	ok := true
	i := 0

loop:
	for i < len(line) {
		isDelim := t.delimiterAt(line, i)
		resetEscape := escape
		start := i
		c := line[i]
		if isDelim {
			i += len(d.Delimiter)
		} else {
			i++
		}

		switch st {
		case startField:
			switch {
			case c == d.QuoteChar:
				delimSeen = false
				field = append(field, c)
				st = inQuotedField
			case d.SkipInitialSpace && isSpaceNotTab(c):
			case isDelim:
				delimSeen = true
				if ok = t.emit(nil); !ok {
					break loop
				}
			case d.HasCommentChar && c == d.CommentChar:
				delimSeen = false
				break loop
			default:
				if (c == '[' || c == '{') && t.wantsBracket() {
					if next, sawDelim, matched := t.bracketField(line, start); matched {
						if ok = t.emit(line[start:t.bracketEnd]); !ok {
							i = t.bracketEnd
							break loop
						}
						i = next
						delimSeen = sawDelim
						continue
					}
				}
				delimSeen = false
				field = append(field, c)
				escape = d.UseEscapeChar && c == d.EscapeChar
				st = inField
			}
		case inField:
			switch {
			case isDelim:
				ok = t.emit(field)
				field = field[:0]
				st = startField
				delimSeen = true
				if !ok {
					break loop
				}
			case d.HasCommentChar && c == d.CommentChar:
				ok = t.emit(field)
				field = field[:0]
				st = startField
				delimSeen = false
				break loop
			default:
				field = append(field, c)
				escape = d.UseEscapeChar && c == d.EscapeChar
			}
		case inQuotedField:
			if c == d.QuoteChar && !escape {
				if d.DoubleQuote && i < len(line) && line[i] == d.QuoteChar {
					field = append(field, c, c)
					i++
				} else {
					field = append(field, c)
					st = inField
				}
			} else {
				field = append(field, line[start:i]...)
				last := line[i-1]
				escape = d.UseEscapeChar && last == d.EscapeChar
			}
		}
		if resetEscape {
			escape = false
		}
	}

	if ok {
		i = len(line)
		if st != startField {
			ok = t.emit(field)
		} else if delimSeen {
			ok = t.emit(nil)
		}
	}
	if !ok {
		t.failPos = i
	}
	t.field = field[:0]
	return ok
}

// wantsBracket reports whether a leading '[' or '{' may start a bracketed
// field for the next token.
func (t *Tokenizer) wantsBracket() bool {
	if t.mode == stringSink {
		return true
	}
	if t.ctr >= t.expected {
		return false
	}
	col := t.ctr
	if t.order != nil {
		col = t.order[t.ctr]
	}
	if col == Ignore {
		return true
	}
	return t.types[col] == series.Vector || t.types[col] == series.String
}

// bracketField checks whether the bracketed span at start forms a whole
// field. It returns the position to resume at and whether a delimiter was
// consumed; the span end is left in t.bracketEnd.
func (t *Tokenizer) bracketField(line []byte, start int) (next int, sawDelim, ok bool) {
	end, matched := matchBracket(line, start, t.d.QuoteChar)
	if !matched {
		return 0, false, false
	}
	t.bracketEnd = end
	j := end
	if j < len(line) && t.delimiterAt(line, j) {
		return j + len(t.d.Delimiter), true, true
	}
	for j < len(line) && isSpaceNotTab(line[j]) {
		j++
	}
	switch {
	case j == len(line):
		return j, false, true
	case t.delimiterAt(line, j):
		return j + len(t.d.Delimiter), true, true
	case t.delimIsSpace && j > end:
		return j, true, true
	}
	return 0, false, false
}

func matchBracket(line []byte, start int, quote byte) (int, bool) {
	depth := 0
	inQuote := false
	for j := start; j < len(line); j++ {
		c := line[j]
		if inQuote {
			if c == quote {
				inQuote = false
			}
			continue
		}
		switch c {
		case quote:
			inQuote = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return j + 1, true
			}
		}
	}
	return 0, false
}

func (t *Tokenizer) emit(field []byte) bool {
	if t.mode == stringSink {
		s := bytes.TrimRight(field, whitespace)
		if t.quoted(s) {
			t.scratch = t.unescape(t.scratch[:0], s[1:len(s)-1])
			s = t.scratch
		}
		t.strs = append(t.strs, string(s))
		return true
	}

	if t.ctr >= t.expected {
		if t.delimIsSpace && len(bytes.TrimSpace(field)) == 0 {
			return true
		}
		t.implErr = fmt.Sprintf("Unexpected characters after last column. %q", field)
		return false
	}
	col := t.ctr
	if t.order != nil {
		col = t.order[t.ctr]
	}
	if col == Ignore {
		t.ctr++
		return true
	}

	out := &t.row[col]
	typ := t.types[col]
	field = bytes.TrimLeft(field, whitespace)
	if len(field) == 0 {
		switch {
		case t.permitUndefined && typ != series.String:
			out.SetNull()
		case t.permitUndefined && t.emptyIsNA:
			out.SetNull()
		default:
			out.Reset(typ)
		}
		t.ctr++
		return true
	}
	if !t.parseAs(field, typ, out) {
		t.implErr = fmt.Sprintf("Unable to interpret %q as a %s", field, typ)
		return false
	}
	t.ctr++
	return true
}

func (t *Tokenizer) parseAs(field []byte, typ series.Type, out *series.Value) bool {
	s := bytes.TrimRight(field, whitespace)
	if t.substitute(s, typ, out) {
		return true
	}
	if typ != series.String && t.quoted(s) {
		t.scratch = t.unescape(t.scratch[:0], s[1:len(s)-1])
		s = bytes.TrimSpace(t.scratch)
		if t.substitute(s, typ, out) {
			return true
		}
	}

	switch typ {
	case series.Integer:
		n, err := strconv.ParseInt(string(s), 10, 64)
		if err != nil {
			return false
		}
		out.SetInt(n)
	case series.Float:
		f, err := strconv.ParseFloat(string(s), 64)
		if err != nil {
			return false
		}
		out.SetFloat(f)
	case series.Vector:
		return parseVector(s, out)
	case series.String:
		if t.quoted(s) {
			t.scratch = t.unescape(t.scratch[:0], s[1:len(s)-1])
			s = t.scratch
			if t.isNA(s) {
				out.SetNull()
				return true
			}
		}
		out.SetString(string(s))
	default:
		return false
	}
	return true
}

func (t *Tokenizer) isNA(s []byte) bool {
	for _, na := range t.d.NAValues {
		if string(s) == na {
			return true
		}
	}
	return false
}

// substitute applies na, true and false value replacements.
func (t *Tokenizer) substitute(s []byte, typ series.Type, out *series.Value) bool {
	if t.isNA(s) {
		out.SetNull()
		return true
	}
	if typ != series.Integer && typ != series.Float {
		return false
	}
	for _, v := range t.d.TrueValues {
		if string(s) == v {
			setNumeric(out, typ, 1)
			return true
		}
	}
	for _, v := range t.d.FalseValues {
		if string(s) == v {
			setNumeric(out, typ, 0)
			return true
		}
	}
	return false
}

func setNumeric(out *series.Value, typ series.Type, n int64) {
	if typ == series.Integer {
		out.SetInt(n)
	} else {
		out.SetFloat(float64(n))
	}
}

// parseVector reads "[1 2 3]", "[1,2,3]" or "[1;2;3]".
func parseVector(s []byte, out *series.Value) bool {
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return false
	}
	out.Reset(series.Vector)
	body := s[1 : len(s)-1]
	for len(body) > 0 {
		j := bytes.IndexAny(body, " ,;\t")
		var tok []byte
		if j < 0 {
			tok, body = body, nil
		} else {
			tok, body = body[:j], body[j+1:]
		}
		if len(tok) == 0 {
			continue
		}
		f, err := strconv.ParseFloat(string(tok), 64)
		if err != nil {
			return false
		}
		out.AppendVector(f)
	}
	return true
}

func (t *Tokenizer) diagnose(line []byte, ok bool) string {
	var b strings.Builder
	if t.implErr != "" {
		b.WriteString(t.implErr)
		b.WriteByte('\n')
	}
	if !ok && t.failPos >= 0 {
		pos := min(t.failPos, len(line))
		b.WriteString("Parse failed at token ending at: \n\t")
		b.Write(line[:pos])
		b.WriteByte('^')
		b.Write(line[pos:])
		b.WriteByte('\n')
	}
	if ok && t.ctr < t.expected {
		fmt.Fprintf(&b, "Expected %d columns but found %d\n", t.expected, t.ctr)
	}
	fmt.Fprintf(&b, "Successfully parsed %d tokens: \n", t.ctr)
	for j := 0; j < t.ctr; j++ {
		col := j
		if t.order != nil {
			col = t.order[j]
		}
		if col == Ignore || col >= len(t.row) {
			continue
		}
		fmt.Fprintf(&b, "\t%d: %s\n", j, t.row[col].String())
	}
	return b.String()
}
