// Package io provides the byte sources the parser reads from and the
// writers for parsed tables.
//
// Key components:
//   - Input/Source: named, re-openable byte sources with size and
//     position reporting, transparent gzip/zstd decoding and BOM skipping
//   - ReadLine: record terminator aware line reading for headers and
//     skipped rows
//   - Glob: expansion of file, directory and glob paths into inputs
//   - CSV, JSON lines and Parquet writers for Arrow tables
//
// Memory management: writers take Arrow tables owned by the caller and do
// not release them.
package io

import "github.com/apache/arrow-go/v18/arrow"

// TableWriter writes an Arrow table in some output format.
type TableWriter interface {
	Write(table arrow.Table) error
}

const (
	// DefaultBatchSize is the default row group size for Parquet output
	DefaultBatchSize = 64 * 1024
	// UnknownSize is reported when a source cannot tell its size or position
	UnknownSize = -1
)

// CSVOptions contains configuration options for CSV output
type CSVOptions struct {
	// Delimiter is the field delimiter (default: comma)
	Delimiter rune
	// Header indicates whether the first row contains headers
	Header bool
}

// DefaultCSVOptions returns default CSV options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter: ',',
		Header:    true,
	}
}

// ParquetOptions contains configuration options for Parquet operations
type ParquetOptions struct {
	// Compression type for Parquet files
	Compression string
	// BatchSize for reading/writing operations
	BatchSize int
}

// DefaultParquetOptions returns default Parquet options
func DefaultParquetOptions() ParquetOptions {
	return ParquetOptions{
		Compression: "snappy",
		BatchSize:   DefaultBatchSize,
	}
}
