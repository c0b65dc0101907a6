package io

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/paveg/csvframe/internal/series"
)

// JSONWriter writes Arrow tables as JSON lines, one object per row
type JSONWriter struct {
	writer io.Writer
}

// NewJSONWriter creates a new JSON lines writer
func NewJSONWriter(writer io.Writer) *JSONWriter {
	return &JSONWriter{writer: writer}
}

// Write writes every row of table.
func (w *JSONWriter) Write(table arrow.Table) error {
	schema := table.Schema()
	reader := array.NewTableReader(table, DefaultBatchSize)
	defer reader.Release()

	enc := json.NewEncoder(w.writer)
	for reader.Next() {
		rec := reader.Record()
		for i := 0; i < int(rec.NumRows()); i++ {
			record := make(map[string]any, schema.NumFields())
			for j, f := range schema.Fields() {
				record[f.Name] = series.ValueAt(rec.Column(j), i)
			}
			if err := enc.Encode(record); err != nil {
				return fmt.Errorf("marshaling JSON record: %w", err)
			}
		}
	}
	return reader.Err()
}
