package io_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/csvframe/internal/io"
	"github.com/paveg/csvframe/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T, mem memory.Allocator) arrow.Table {
	t.Helper()
	ids := series.New("id", []int64{1, 2}, mem)
	defer ids.Release()
	names := series.New("name", []string{"a,b", "c"}, mem)
	defer names.Release()
	scores := series.New("score", []float64{1.5, 2}, mem)
	defer scores.Release()

	cols := []arrow.Array{ids.Array(), names.Array(), scores.Array()}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: cols[0].DataType(), Nullable: true},
		{Name: "name", Type: cols[1].DataType(), Nullable: true},
		{Name: "score", Type: cols[2].DataType(), Nullable: true},
	}, nil)
	rec := array.NewRecord(schema, cols, 2)
	defer rec.Release()
	return array.NewTableFromRecords(schema, []arrow.Record{rec})
}

func TestCSVWriter_Write(t *testing.T) {
	mem := memory.NewGoAllocator()
	table := testTable(t, mem)
	defer table.Release()

	var buf bytes.Buffer
	require.NoError(t, io.NewCSVWriter(&buf, io.DefaultCSVOptions()).Write(table))
	assert.Equal(t, "id,name,score\n1,\"a,b\",1.5\n2,c,2\n", buf.String())
}

func TestJSONWriter_Write(t *testing.T) {
	mem := memory.NewGoAllocator()
	table := testTable(t, mem)
	defer table.Release()

	var buf bytes.Buffer
	require.NoError(t, io.NewJSONWriter(&buf).Write(table))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"id":1,"name":"a,b","score":1.5}`, lines[0])
}

func TestParquet_RoundTrip(t *testing.T) {
	mem := memory.NewGoAllocator()
	table := testTable(t, mem)
	defer table.Release()

	var buf bytes.Buffer
	require.NoError(t, io.NewParquetWriter(&buf, io.DefaultParquetOptions()).Write(table))

	got, err := io.ReadParquet(bytes.NewReader(buf.Bytes()), mem)
	require.NoError(t, err)
	defer got.Release()

	assert.Equal(t, int64(2), got.NumRows())
	require.Equal(t, int64(3), got.NumCols())
	assert.Equal(t, "name", got.Schema().Field(1).Name)
	names := got.Column(1).Data().Chunk(0)
	assert.Equal(t, "a,b", series.ValueAt(names, 0))
}
