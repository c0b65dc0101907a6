package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/csvframe/internal/config"
	cferrors "github.com/paveg/csvframe/internal/errors"
	csvio "github.com/paveg/csvframe/internal/io"
	"github.com/paveg/csvframe/internal/logging"
	"github.com/paveg/csvframe/internal/monitoring"
	"github.com/paveg/csvframe/internal/series"
	"github.com/paveg/csvframe/internal/table"
	"github.com/paveg/csvframe/internal/tokenizer"
)

// Stats summarizes a load.
type Stats struct {
	LinesRead       int64         `json:"lines_read"`
	LinesFailed     int64         `json:"lines_failed"`
	FilesParsed     int           `json:"files_parsed"`
	FilesSkipped    int           `json:"files_skipped"`
	BytesRead       int64         `json:"bytes_read"`
	PeakTableMemory int64         `json:"peak_table_memory"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Result is the outcome of a load.
type Result struct {
	Table *table.Table
	// Errors maps each parsed file to its stored malformed lines. It is
	// only filled when error storage is on.
	Errors            map[string][]string
	Stats             Stats
	SessionID         string
	SchemaFingerprint uint64
}

// Loader parses a set of inputs into one table.
type Loader struct {
	opts    config.Options
	mem     memory.Allocator
	metrics *monitoring.MetricsCollector
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithAllocator sets the allocator of the destination table.
func WithAllocator(mem memory.Allocator) LoaderOption {
	return func(l *Loader) { l.mem = mem }
}

// WithMetrics records one operation per parsed file in mc.
func WithMetrics(mc *monitoring.MetricsCollector) LoaderOption {
	return func(l *Loader) { l.metrics = mc }
}

// NewLoader creates a loader for opts.
func NewLoader(opts config.Options, options ...LoaderOption) *Loader {
	l := &Loader{opts: opts.WithDefaults(), mem: memory.NewGoAllocator()}
	for _, o := range options {
		o(l)
	}
	return l
}

// schema is what the header probe of the first input decides for the
// whole session.
type schema struct {
	inputNames  []string
	outputNames []string
	types       []series.Type
	order       []int
	fingerprint uint64
}

// Load parses inputs in order into one table. pattern names the inputs in
// errors. Zero byte inputs are skipped; if every input is empty the
// result holds an empty table.
func (l *Loader) Load(ctx context.Context, pattern string, inputs []csvio.Input) (*Result, error) {
	opts := l.opts
	if err := opts.Validate(); err != nil {
		return nil, cferrors.NewInvalidOptionsError(err)
	}
	hints, err := opts.TypeHints()
	if err != nil {
		return nil, cferrors.NewInvalidOptionsError(err)
	}

	session := NewSession(logging.FromContext(ctx))
	logger := session.Logger()
	ctx = logging.NewContext(ctx, logger)

	if len(inputs) == 0 {
		return nil, cferrors.NewEmptyInputError(csvio.SanitizeURL(pattern),
			fmt.Sprintf("No files corresponding to the specified path (%s)", csvio.SanitizeURL(pattern)))
	}

	stats := Stats{}
	var nonEmpty []csvio.Input
	var totalSize int64
	for _, in := range inputs {
		if in.Size == 0 {
			logger.Info("skipping empty file", "path", csvio.SanitizeURL(in.Name))
			stats.FilesSkipped++
			continue
		}
		nonEmpty = append(nonEmpty, in)
		if in.Size < 0 || totalSize < 0 {
			totalSize = -1
		} else {
			totalSize += in.Size
		}
	}

	mem := monitoring.NewTrackedAllocator(l.mem)
	out := table.New(mem)
	result := &Result{Table: out, SessionID: session.ID}
	if len(nonEmpty) == 0 {
		if err := out.Close(); err != nil {
			return nil, err
		}
		stats.Elapsed = session.Elapsed()
		result.Stats = stats
		return result, nil
	}

	dialect := opts.Dialect()
	sch, err := l.probe(nonEmpty[0], dialect, hints, logger)
	if err != nil {
		return nil, err
	}
	if err := out.OpenForWrite(sch.outputNames, sch.types, opts.NumSegments); err != nil {
		return nil, cferrors.NewHeaderMismatchError("OpenForWrite", err.Error())
	}
	result.SchemaFingerprint = sch.fingerprint
	if opts.StoreErrors {
		result.Errors = make(map[string][]string)
	}

	p := NewParser(Config{
		Dialect:           dialect,
		Types:             sch.types,
		Order:             sch.order,
		ContinueOnFailure: opts.ContinueOnFailure,
		StoreErrors:       opts.StoreErrors,
		RowLimit:          opts.RowLimit,
		NumThreads:        opts.NumThreads,
		ReadChunkSize:     opts.ReadChunkSize,
		TotalSize:         totalSize,
	}, session)
	defer p.Close()

	headerTok := tokenizer.New(dialect)
	for _, in := range nonEmpty {
		if opts.RowLimit > 0 && session.LinesRead.Load() >= opts.RowLimit {
			break
		}
		path := csvio.SanitizeURL(in.Name)
		var skipped bool
		var stored []string
		err := l.metrics.RecordOperation("parse", path, func() (monitoring.OperationStats, error) {
			readBefore, failedBefore, bytesBefore := session.LinesRead.Load(), session.LinesFailed.Load(), p.BytesRead()
			var ferr error
			skipped, stored, ferr = l.parseFile(ctx, p, headerTok, in, sch, out)
			return monitoring.OperationStats{
				RowsProcessed: session.LinesRead.Load() - readBefore,
				RowsFailed:    session.LinesFailed.Load() - failedBefore,
				BytesRead:     p.BytesRead() - bytesBefore,
			}, ferr
		})
		if err != nil {
			_ = out.Close()
			out.Release()
			return nil, err
		}
		if skipped {
			stats.FilesSkipped++
			continue
		}
		stats.FilesParsed++
		if result.Errors != nil {
			result.Errors[path] = stored
		}
	}

	if err := out.Close(); err != nil {
		return nil, err
	}
	session.logSummary()

	stats.LinesRead = session.LinesRead.Load()
	stats.LinesFailed = session.LinesFailed.Load()
	stats.BytesRead = p.BytesRead()
	stats.PeakTableMemory = mem.PeakBytes()
	stats.Elapsed = session.Elapsed()
	result.Stats = stats
	return result, nil
}

// probe reads the header of the first input and derives the session
// schema from it and the options.
func (l *Loader) probe(in csvio.Input, dialect tokenizer.Dialect, hints map[string]series.Type,
	logger *slog.Logger) (*schema, error) {
	path := csvio.SanitizeURL(in.Name)
	src, err := in.Open()
	if err != nil {
		return nil, cferrors.NewIOError("Open", path, err)
	}
	defer src.Close()

	if err := SkipRows(src, l.opts.SkipRows, dialect.LineTerminator); err != nil {
		return nil, cferrors.NewIOError("Read", path, err)
	}
	fields, err := ReadHeaderLine(src, tokenizer.New(dialect))
	if err != nil {
		return nil, cferrors.NewIOError("Read", path, err)
	}
	if len(fields) == 0 {
		return nil, cferrors.NewEmptyInputError(path, "0 columns found")
	}

	names := PositionalNames(len(fields))
	if l.opts.UseHeader {
		names = MakeUniqueColumnNames(fields)
	}
	order, outputNames, err := ResolveOutputColumns(names, l.opts.OutputColumns)
	if err != nil {
		return nil, err
	}
	types, err := ColumnTypes(outputNames, hints, logger)
	if err != nil {
		return nil, err
	}
	return &schema{
		inputNames:  names,
		outputNames: outputNames,
		types:       types,
		order:       order,
		fingerprint: HeaderFingerprint(names),
	}, nil
}

// parseFile parses one input. It reports whether the file was skipped for
// a header of the wrong width and returns its stored malformed lines.
func (l *Loader) parseFile(ctx context.Context, p *Parser, headerTok *tokenizer.Tokenizer,
	in csvio.Input, sch *schema, out *table.Table) (bool, []string, error) {
	logger := logging.FromContext(ctx)
	path := csvio.SanitizeURL(in.Name)
	if err := cferrors.FromContext(ctx, path); err != nil {
		return false, nil, err
	}

	src, err := in.Open()
	if err != nil {
		return false, nil, cferrors.NewIOError("Open", path, err)
	}
	defer src.Close()

	terminator := headerTok.Dialect().LineTerminator
	if err := SkipRows(src, l.opts.SkipRows, terminator); err != nil {
		return false, nil, cferrors.NewIOError("Read", path, err)
	}
	if l.opts.UseHeader {
		fields, err := ReadHeaderLine(src, headerTok)
		if err != nil {
			return false, nil, cferrors.NewIOError("Read", path, err)
		}
		if len(fields) != len(sch.inputNames) {
			if !l.opts.StoreErrors {
				logger.Warn("skipping file with a different number of columns",
					"path", path, "expected", len(sch.inputNames), "found", len(fields))
				return true, nil, nil
			}
		} else if HeaderFingerprint(MakeUniqueColumnNames(fields)) != sch.fingerprint {
			logger.Warn("column names differ from the first file", "path", path)
		}
	}

	var errs *table.ErrorColumn
	if l.opts.StoreErrors {
		errs = table.NewErrorColumn(l.mem)
		defer errs.Release()
	}
	logger.Debug("parsing file", "path", path, "size", in.Size)
	if err := p.Parse(ctx, src, out, errs); err != nil {
		return false, nil, err
	}
	if errs == nil {
		return false, nil, nil
	}
	errs.Close()
	return false, errs.Values(), nil
}
