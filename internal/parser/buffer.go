package parser

import "github.com/paveg/csvframe/internal/series"

// rowBuffer is the reusable row storage of one worker. A cycle fills it
// while parsing, then it is swapped to the write side and drained.
type rowBuffer struct {
	rows [][]series.Value
	n    int
	errs []string
}

// nextRow returns the slot for the next record. Slots are reused; only
// fields whose current type differs from the column type are reset.
func (b *rowBuffer) nextRow(types []series.Type) []series.Value {
	if b.n == len(b.rows) {
		b.rows = append(b.rows, make([]series.Value, len(types)))
	}
	row := b.rows[b.n]
	for i, t := range types {
		if row[i].Type() != t {
			row[i].Reset(t)
		}
	}
	return row
}

func (b *rowBuffer) clear() {
	b.n = 0
	b.errs = b.errs[:0]
}

func newRowBuffers(n int) []*rowBuffer {
	buffers := make([]*rowBuffer, n)
	for i := range buffers {
		buffers[i] = &rowBuffer{}
	}
	return buffers
}
