package io

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/paveg/csvframe/internal/series"
)

// CSVWriter writes Arrow tables to CSV format
type CSVWriter struct {
	writer  io.Writer
	options CSVOptions
}

// NewCSVWriter creates a new CSV writer with the specified options
func NewCSVWriter(writer io.Writer, options CSVOptions) *CSVWriter {
	return &CSVWriter{
		writer:  writer,
		options: options,
	}
}

// Write writes every row of table. Nulls are written as empty fields.
func (w *CSVWriter) Write(table arrow.Table) error {
	csvWriter := csv.NewWriter(w.writer)
	csvWriter.Comma = w.options.Delimiter
	defer csvWriter.Flush()

	schema := table.Schema()
	if w.options.Header {
		names := make([]string, schema.NumFields())
		for i, f := range schema.Fields() {
			names[i] = f.Name
		}
		if err := csvWriter.Write(names); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}

	reader := array.NewTableReader(table, DefaultBatchSize)
	defer reader.Release()

	row := make([]string, schema.NumFields())
	rowIndex := 0
	for reader.Next() {
		rec := reader.Record()
		for i := 0; i < int(rec.NumRows()); i++ {
			for j := range row {
				row[j] = valueAsString(rec.Column(j), i)
			}
			if err := csvWriter.Write(row); err != nil {
				return fmt.Errorf("writing row %d: %w", rowIndex, err)
			}
			rowIndex++
		}
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("reading table: %w", err)
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// valueAsString extracts a value from a column at the given index as a string
func valueAsString(arr arrow.Array, index int) string {
	switch v := series.ValueAt(arr, index).(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []float64:
		return series.FormatVector(v)
	default:
		return fmt.Sprint(v)
	}
}
