// Package table provides the destination of a parse session: an
// Arrow-backed table split into segments that are appended to row by row
// and sealed into record batches on Close, plus the string column that
// collects unparseable lines.
package table

import (
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/csvframe/internal/series"
)

type tableState int

const (
	stateNew tableState = iota
	stateOpen
	stateClosed
)

// Table is a segmented columnar table.
type Table struct {
	mem      memory.Allocator
	state    tableState
	names    []string
	types    []series.Type
	schema   *arrow.Schema
	segments []*segment
	records  []arrow.Record
}

type segment struct {
	mu       sync.Mutex
	builders []*series.ColumnBuilder
	rows     int64
}

// New creates an unopened table.
func New(mem memory.Allocator) *Table {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Table{mem: mem}
}

// OpenForWrite fixes the schema and creates numSegments empty segments.
func (t *Table) OpenForWrite(names []string, types []series.Type, numSegments int) error {
	if t.state != stateNew {
		return fmt.Errorf("table already opened")
	}
	if len(names) != len(types) {
		return fmt.Errorf("got %d column names but %d column types", len(names), len(types))
	}
	if numSegments < 1 {
		return fmt.Errorf("number of segments must be positive, got %d", numSegments)
	}

	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		if types[i] == series.Undefined {
			return fmt.Errorf("column %s has no type", name)
		}
		fields[i] = arrow.Field{Name: name, Type: series.ArrowType(types[i]), Nullable: true}
	}
	t.names = append([]string(nil), names...)
	t.types = append([]series.Type(nil), types...)
	t.schema = arrow.NewSchema(fields, nil)
	t.segments = make([]*segment, numSegments)
	for i := range t.segments {
		seg := &segment{builders: make([]*series.ColumnBuilder, len(types))}
		for j, typ := range types {
			seg.builders[j] = series.NewColumnBuilder(typ, t.mem)
		}
		t.segments[i] = seg
	}
	t.state = stateOpen
	return nil
}

// IsOpenedForWrite reports whether rows can be appended.
func (t *Table) IsOpenedForWrite() bool { return t.state == stateOpen }

// NumSegments returns the number of segments.
func (t *Table) NumSegments() int { return len(t.segments) }

// OutputIterator returns a writer appending rows to one segment.
func (t *Table) OutputIterator(segmentIndex int) (*SegmentWriter, error) {
	if t.state != stateOpen {
		return nil, fmt.Errorf("table is not open for writing")
	}
	if segmentIndex < 0 || segmentIndex >= len(t.segments) {
		return nil, fmt.Errorf("segment %d out of range [0, %d)", segmentIndex, len(t.segments))
	}
	return &SegmentWriter{seg: t.segments[segmentIndex]}, nil
}

// SegmentWriter appends rows to one segment.
type SegmentWriter struct {
	seg *segment
}

// Append adds one row. The row is copied; the caller may reuse it.
func (w *SegmentWriter) Append(row []series.Value) error {
	seg := w.seg
	seg.mu.Lock()
	defer seg.mu.Unlock()

	if len(row) != len(seg.builders) {
		return fmt.Errorf("row has %d values, table has %d columns", len(row), len(seg.builders))
	}
	for i := range row {
		if err := seg.builders[i].Append(&row[i]); err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
	}
	seg.rows++
	return nil
}

// Close seals every segment into a record batch. Closing a table that was
// never opened yields an empty table without columns.
func (t *Table) Close() error {
	switch t.state {
	case stateClosed:
		return nil
	case stateNew:
		t.schema = arrow.NewSchema(nil, nil)
		t.state = stateClosed
		return nil
	}

	t.records = make([]arrow.Record, 0, len(t.segments))
	for _, seg := range t.segments {
		seg.mu.Lock()
		cols := make([]arrow.Array, len(seg.builders))
		for i, b := range seg.builders {
			cols[i] = b.NewArray()
			b.Release()
		}
		rec := array.NewRecord(t.schema, cols, seg.rows)
		for _, c := range cols {
			c.Release()
		}
		seg.builders = nil
		seg.mu.Unlock()
		t.records = append(t.records, rec)
	}
	t.state = stateClosed
	return nil
}

// Schema returns the Arrow schema.
func (t *Table) Schema() *arrow.Schema { return t.schema }

// ColumnNames returns the column names.
func (t *Table) ColumnNames() []string { return append([]string(nil), t.names...) }

// ColumnTypes returns the column types.
func (t *Table) ColumnTypes() []series.Type { return append([]series.Type(nil), t.types...) }

// NumRows returns the number of rows written so far.
func (t *Table) NumRows() int64 {
	var n int64
	if t.state == stateClosed {
		for _, rec := range t.records {
			n += rec.NumRows()
		}
		return n
	}
	for _, seg := range t.segments {
		seg.mu.Lock()
		n += seg.rows
		seg.mu.Unlock()
	}
	return n
}

// SegmentRows returns the number of rows in each segment.
func (t *Table) SegmentRows() []int64 {
	out := make([]int64, len(t.segments))
	for i, seg := range t.segments {
		seg.mu.Lock()
		out[i] = seg.rows
		seg.mu.Unlock()
	}
	return out
}

// Records returns the sealed record batches in segment order. They stay
// owned by the table.
func (t *Table) Records() []arrow.Record { return t.records }

// ArrowTable returns the closed table as an arrow.Table, one chunk per
// segment. The caller releases it.
func (t *Table) ArrowTable() (arrow.Table, error) {
	if t.state != stateClosed {
		return nil, fmt.Errorf("table must be closed before reading")
	}
	return array.NewTableFromRecords(t.schema, t.records), nil
}

// Column returns the named column concatenated across segments. The
// caller releases it.
func (t *Table) Column(name string) (arrow.Array, error) {
	if t.state != stateClosed {
		return nil, fmt.Errorf("table must be closed before reading")
	}
	idx := -1
	for i, n := range t.names {
		if n == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("column %s does not exist", name)
	}
	chunks := make([]arrow.Array, len(t.records))
	for i, rec := range t.records {
		chunks[i] = rec.Column(idx)
	}
	return array.Concatenate(chunks, t.mem)
}

// Rows materializes the closed table as Go values, for inspection and
// tests.
func (t *Table) Rows() [][]any {
	var rows [][]any
	for _, rec := range t.records {
		for i := 0; i < int(rec.NumRows()); i++ {
			row := make([]any, rec.NumCols())
			for j := range row {
				row[j] = series.ValueAt(rec.Column(j), i)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// Release frees the table memory.
func (t *Table) Release() {
	for _, rec := range t.records {
		rec.Release()
	}
	t.records = nil
	for _, seg := range t.segments {
		for _, b := range seg.builders {
			b.Release()
		}
		seg.builders = nil
	}
}
