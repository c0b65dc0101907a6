// Package csvframe parses delimited text files into columnar Arrow tables.
// Input is read in large chunks and each chunk is split at record
// boundaries and tokenized by a pool of workers, while the records of the
// previous chunk are written to the destination table in the background.
// This package is the sole public API for the library.
package csvframe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/csvframe/internal/config"
	cferrors "github.com/paveg/csvframe/internal/errors"
	csvio "github.com/paveg/csvframe/internal/io"
	"github.com/paveg/csvframe/internal/logging"
	"github.com/paveg/csvframe/internal/monitoring"
	"github.com/paveg/csvframe/internal/parser"
	"github.com/paveg/csvframe/internal/series"
	"github.com/paveg/csvframe/internal/table"
)

// Options controls how input is split into records and columns.
type Options = config.Options

// DefaultOptions returns the default parsing options: comma separated,
// newline terminated, double quoted, with a header line.
func DefaultOptions() Options {
	return config.NewOptions()
}

// LoadOptions reads options from a .json, .yaml or .yml file. Fields
// missing from the file keep their defaults.
func LoadOptions(path string) (Options, error) {
	return config.LoadFromFile(path)
}

// Input is a named, re-openable byte source.
type Input = csvio.Input

// FileInput returns an input for a local file. Files ending in .gz or
// .zst are decompressed transparently.
func FileInput(path string) Input {
	return csvio.FileInput(path)
}

// BytesInput returns an input over an in-memory buffer.
func BytesInput(name string, data []byte) Input {
	return csvio.BytesInput(name, data)
}

// ColumnType is the logical type of a parsed column.
type ColumnType = series.Type

// Column types.
const (
	Integer = series.Integer
	Float   = series.Float
	String  = series.String
	Vector  = series.Vector
)

// ParseError is the error type returned by the read functions.
type ParseError = cferrors.ParseError

// ErrorKind classifies a ParseError.
type ErrorKind = cferrors.Kind

// Error kinds.
const (
	KindMalformedRecord = cferrors.KindMalformedRecord
	KindHeaderMismatch  = cferrors.KindHeaderMismatch
	KindEmptyInput      = cferrors.KindEmptyInput
	KindCancelled       = cferrors.KindCancelled
	KindIO              = cferrors.KindIO
	KindInvalidOptions  = cferrors.KindInvalidOptions
)

// KindOf returns the kind of the first ParseError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	return cferrors.KindOf(err)
}

// Stats summarizes a read.
type Stats = parser.Stats

// MetricsCollector records per-file parse metrics.
type MetricsCollector = monitoring.MetricsCollector

// MetricsSummary aggregates the metrics of a collector.
type MetricsSummary = monitoring.MetricsSummary

// NewMetricsCollector creates an enabled metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return monitoring.NewMetricsCollector(true)
}

// Table is a parsed, read-only columnar table.
// It wraps the internal table.Table to hide implementation details.
type Table struct {
	t *table.Table
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int64 {
	return t.t.NumRows()
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.t.ColumnNames())
}

// ColumnNames returns the column names in output order.
func (t *Table) ColumnNames() []string {
	return t.t.ColumnNames()
}

// ColumnTypes returns the column types in output order.
func (t *Table) ColumnTypes() []ColumnType {
	return t.t.ColumnTypes()
}

// Schema returns the Arrow schema of the table.
func (t *Table) Schema() *arrow.Schema {
	return t.t.Schema()
}

// SegmentRows returns the number of rows in each segment.
func (t *Table) SegmentRows() []int64 {
	return t.t.SegmentRows()
}

// Rows materializes the table as Go values, row by row.
func (t *Table) Rows() [][]any {
	return t.t.Rows()
}

// Column returns the named column as a single Arrow array.
// The caller must release it.
func (t *Table) Column(name string) (arrow.Array, error) {
	return t.t.Column(name)
}

// Arrow returns the table as an arrow.Table with one chunk per segment.
// The caller must release it.
func (t *Table) Arrow() (arrow.Table, error) {
	return t.t.ArrowTable()
}

// WriteCSV writes the table as comma separated text with a header line.
func (t *Table) WriteCSV(w io.Writer) error {
	return t.write(csvio.NewCSVWriter(w, csvio.DefaultCSVOptions()))
}

// WriteJSON writes the table as JSON lines, one object per row.
func (t *Table) WriteJSON(w io.Writer) error {
	return t.write(csvio.NewJSONWriter(w))
}

// WriteParquet writes the table as a snappy compressed Parquet file.
func (t *Table) WriteParquet(w io.Writer) error {
	return t.write(csvio.NewParquetWriter(w, csvio.DefaultParquetOptions()))
}

func (t *Table) write(w csvio.TableWriter) error {
	tbl, err := t.t.ArrowTable()
	if err != nil {
		return err
	}
	defer tbl.Release()
	return w.Write(tbl)
}

// Release frees the memory held by the table.
func (t *Table) Release() {
	t.t.Release()
}

// String returns a short description of the table.
func (t *Table) String() string {
	return fmt.Sprintf("Table[%d rows x %d cols]: %s",
		t.NumRows(), t.NumCols(), strings.Join(t.ColumnNames(), ", "))
}

// ColumnValues returns the values of the named column as T. T must match
// the column type: int64 for Integer, float64 for Float, string for
// String and []float64 for Vector.
func ColumnValues[T series.Element](t *Table, name string) ([]T, error) {
	arr, err := t.t.Column(name)
	if err != nil {
		return nil, err
	}
	defer arr.Release()
	s, err := series.FromArray[T](name, arr)
	if err != nil {
		return nil, err
	}
	defer s.Release()
	return s.Values(), nil
}

// Result is the outcome of a read.
type Result struct {
	Table *Table
	// Errors maps each parsed file to the malformed lines stored for it.
	// It is only filled when Options.StoreErrors is set.
	Errors map[string][]string
	Stats  Stats
	// SessionID identifies the read in log records.
	SessionID string
	// SchemaFingerprint hashes the header of the first input.
	SchemaFingerprint uint64
	// Metrics summarizes per-file metrics when collection was enabled.
	Metrics *MetricsSummary
}

// Release frees the memory held by the result table.
func (r *Result) Release() {
	if r != nil && r.Table != nil {
		r.Table.Release()
	}
}

type readConfig struct {
	mem     memory.Allocator
	metrics *MetricsCollector
	logger  *slog.Logger
}

// ReadOption configures a read.
type ReadOption func(*readConfig)

// WithAllocator sets the Arrow allocator used for the result table.
func WithAllocator(mem memory.Allocator) ReadOption {
	return func(c *readConfig) { c.mem = mem }
}

// WithMetrics records per-file metrics in mc.
func WithMetrics(mc *MetricsCollector) ReadOption {
	return func(c *readConfig) { c.metrics = mc }
}

// WithLogger sets the logger for the read. The default is slog.Default().
func WithLogger(logger *slog.Logger) ReadOption {
	return func(c *readConfig) { c.logger = logger }
}

// ReadCSV parses the files named by path into one table. path may name a
// file, a directory or a glob pattern; matching files are read in name
// order and must share the header of the first one.
func ReadCSV(ctx context.Context, path string, opts Options, options ...ReadOption) (*Result, error) {
	inputs, err := csvio.Glob(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, cferrors.NewEmptyInputError(csvio.SanitizeURL(path),
				fmt.Sprintf("No files corresponding to the specified path (%s)", csvio.SanitizeURL(path)))
		}
		return nil, cferrors.NewIOError("glob", csvio.SanitizeURL(path), err)
	}
	return ReadInputs(ctx, path, inputs, opts, options...)
}

// ReadCSVBytes parses an in-memory buffer. name is used in errors and
// logs.
func ReadCSVBytes(ctx context.Context, name string, data []byte, opts Options, options ...ReadOption) (*Result, error) {
	return ReadInputs(ctx, name, []Input{BytesInput(name, data)}, opts, options...)
}

// ReadInputs parses inputs in order into one table. name describes the
// inputs as a whole and is used in errors.
func ReadInputs(ctx context.Context, name string, inputs []Input, opts Options, options ...ReadOption) (*Result, error) {
	rc := &readConfig{mem: memory.NewGoAllocator()}
	for _, o := range options {
		o(rc)
	}
	if rc.metrics == nil && opts.CollectMetrics {
		rc.metrics = NewMetricsCollector()
	}
	if rc.logger != nil {
		ctx = logging.NewContext(ctx, rc.logger)
	}

	loader := parser.NewLoader(opts, parser.WithAllocator(rc.mem), parser.WithMetrics(rc.metrics))
	res, err := loader.Load(ctx, name, inputs)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Table:             &Table{t: res.Table},
		Errors:            res.Errors,
		Stats:             res.Stats,
		SessionID:         res.SessionID,
		SchemaFingerprint: res.SchemaFingerprint,
	}
	if rc.metrics.IsEnabled() {
		summary := rc.metrics.GetSummary()
		result.Metrics = &summary
	}
	return result, nil
}
