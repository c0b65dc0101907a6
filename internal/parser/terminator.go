package parser

import "bytes"

// terminator finds record separators. The regular terminator "\n" also
// accepts "\r" and "\r\n"; any other sequence is matched literally.
type terminator struct {
	regular bool
	seq     []byte
}

func newTerminator(s string) terminator {
	return terminator{regular: s == "\n", seq: []byte(s)}
}

// empty reports whether the whole input is a single record.
func (t terminator) empty() bool {
	return !t.regular && len(t.seq) == 0
}

// lookback is how far before a cut a terminator crossing it may start.
func (t terminator) lookback() int {
	if t.regular || len(t.seq) == 0 {
		return 0
	}
	return len(t.seq) - 1
}

// matchAt returns the length of the terminator starting at buf[i], or 0.
// The match must end at or before end.
func (t terminator) matchAt(buf []byte, i, end int) int {
	if t.regular {
		switch buf[i] {
		case '\n':
			return 1
		case '\r':
			if i+1 < end && buf[i+1] == '\n' {
				return 2
			}
			return 1
		}
		return 0
	}
	if len(t.seq) > 0 && i+len(t.seq) <= end && bytes.Equal(buf[i:i+len(t.seq)], t.seq) {
		return len(t.seq)
	}
	return 0
}

// next returns the position and length of the first terminator in
// buf[from:end], or -1.
func (t terminator) next(buf []byte, from, end int) (int, int) {
	if from >= end || t.empty() {
		return -1, 0
	}
	if t.regular {
		k := bytes.IndexAny(buf[from:end], "\r\n")
		if k < 0 {
			return -1, 0
		}
		k += from
		return k, t.matchAt(buf, k, end)
	}
	k := bytes.Index(buf[from:end], t.seq)
	if k < 0 {
		return -1, 0
	}
	return from + k, len(t.seq)
}

// endsWith reports whether buf already ends with a terminator.
func (t terminator) endsWith(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	if t.regular {
		c := buf[len(buf)-1]
		return c == '\n' || c == '\r'
	}
	return bytes.HasSuffix(buf, t.seq)
}

// appendTo appends one terminator to buf.
func (t terminator) appendTo(buf []byte) []byte {
	if t.regular {
		return append(buf, '\n')
	}
	return append(buf, t.seq...)
}
