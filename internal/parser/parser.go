// Package parser turns delimited text into rows of a destination table
// using a pool of parse workers.
//
// Each cycle fills a byte buffer from the source, computes its quote parity
// bitmap, splits it into one slice per worker at true record separators
// and parses the slices in parallel. Parsed rows are handed to a background
// write task by swapping buffer sets, so writing cycle K overlaps parsing
// cycle K+1. Row order in the table is cycle order, then worker order.
package parser

import (
	"context"
	stderrors "errors"
	"io"
	"runtime"
	"slices"

	cferrors "github.com/paveg/csvframe/internal/errors"
	csvio "github.com/paveg/csvframe/internal/io"
	"github.com/paveg/csvframe/internal/parallel"
	"github.com/paveg/csvframe/internal/series"
	"github.com/paveg/csvframe/internal/table"
	"github.com/paveg/csvframe/internal/tokenizer"
)

const (
	// DefaultReadChunkSize is the number of bytes requested per fill.
	DefaultReadChunkSize = 50 * 1024 * 1024
	minAutoWorkers       = 2
)

// ByteSource is the input a Parser reads. Size and BytesRead return a
// negative value when unknown.
type ByteSource interface {
	io.Reader
	Name() string
	Size() int64
	BytesRead() int64
}

// Config describes the records a Parser produces.
type Config struct {
	Dialect tokenizer.Dialect
	// Types are the output column types.
	Types []series.Type
	// Order maps input field i to output column Order[i] or
	// tokenizer.Ignore. Nil keeps every field in input order.
	Order             []int
	ContinueOnFailure bool
	StoreErrors       bool
	// RowLimit caps the rows written across the session; 0 is unlimited.
	RowLimit int64
	// NumThreads is the worker count; 0 picks one from the CPU count.
	NumThreads    int
	ReadChunkSize int
	// TotalSize is the byte size of every input of the session, used to
	// spread rows over segments. Zero or negative disables spreading.
	TotalSize int64
}

// Parser runs the fill, scan, partition, parse and write cycle. It keeps
// byte and segment accounting across the sources of one session, so one
// Parser is used for every file of a load. It is not safe for concurrent
// use.
type Parser struct {
	cfg             Config
	session         *Session
	term            terminator
	scan            *quoteScanner
	numInputColumns int
	chunkSize       int

	pool    *parallel.WorkerPool
	writes  *parallel.TaskGroup
	toks    []*tokenizer.Tokenizer
	parsing []*rowBuffer
	writing []*rowBuffer

	buf    []byte
	bounds []int
	slices []slice

	path           string
	localRead      int64
	cumulativeRead int64
	segment        int
	numSegments    int
}

// NewParser creates a parser for cfg whose counters live in session.
func NewParser(cfg Config, session *Session) *Parser {
	if cfg.StoreErrors {
		cfg.ContinueOnFailure = true
	}
	workers := cfg.NumThreads
	if workers <= 0 {
		workers = max(runtime.NumCPU()-1, minAutoWorkers)
	}
	chunkSize := cfg.ReadChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultReadChunkSize
	}
	numInputColumns := len(cfg.Types)
	if cfg.Order != nil {
		numInputColumns = len(cfg.Order)
	}

	term := newTerminator(cfg.Dialect.LineTerminator)
	pool := parallel.NewWorkerPool(workers)
	p := &Parser{
		cfg:             cfg,
		session:         session,
		term:            term,
		scan:            newQuoteScanner(cfg.Dialect, term),
		numInputColumns: numInputColumns,
		chunkSize:       chunkSize,
		pool:            pool,
		writes:          pool.NewTaskGroup(),
		toks:            make([]*tokenizer.Tokenizer, workers),
		parsing:         newRowBuffers(workers),
		writing:         newRowBuffers(workers),
	}
	for i := range p.toks {
		p.toks[i] = tokenizer.New(cfg.Dialect)
	}
	return p
}

// NumWorkers returns the number of parse workers.
func (p *Parser) NumWorkers() int { return len(p.toks) }

// BytesRead returns the bytes read from every source parsed so far.
func (p *Parser) BytesRead() int64 { return p.cumulativeRead }

// Close releases the worker pool.
func (p *Parser) Close() {
	p.pool.Close()
}

// Parse reads src to its end and appends its records to out, which must
// be open for writing. When error storage is on and errs is non-nil,
// malformed lines are appended to errs. Every background write is joined
// before Parse returns, including on failure.
func (p *Parser) Parse(ctx context.Context, src ByteSource, out *table.Table, errs *table.ErrorColumn) (err error) {
	p.reset(src, out)
	defer func() {
		if err != nil {
			_ = p.writes.Join()
		}
		if size := src.Size(); size >= 0 {
			p.cumulativeRead += size
		} else {
			p.cumulativeRead += p.localRead
		}
	}()

	eof := false
	for !eof && !p.limitReached() {
		if eof, err = p.fill(src); err != nil {
			return cferrors.NewIOError("Read", p.path, err)
		}
		if len(p.buf) == 0 {
			break
		}
		if err = p.parseBuffer(eof); err != nil {
			return err
		}
		if err = p.writes.Join(); err != nil {
			return err
		}
		if err = cferrors.FromContext(ctx, p.path); err != nil {
			return err
		}

		truncated := p.truncateToLimit()
		p.selectSegment(src)
		if err = p.startBackgroundWrite(out, errs); err != nil {
			return err
		}
		p.session.reportProgress()
		if truncated {
			if err = p.writes.Join(); err != nil {
				return err
			}
		}
	}
	return p.writes.Join()
}

func (p *Parser) reset(src ByteSource, out *table.Table) {
	p.path = csvio.SanitizeURL(src.Name())
	p.buf = p.buf[:0]
	p.scan.reset()
	p.localRead = 0
	p.numSegments = out.NumSegments()
	for _, b := range p.parsing {
		b.clear()
	}
}

func (p *Parser) limitReached() bool {
	return p.cfg.RowLimit > 0 && p.session.LinesRead.Load() >= p.cfg.RowLimit
}

// fill appends one chunk to the buffer. A short read is the final fill of
// the source: a terminator is appended when the buffer does not end with
// one. With an empty terminator the whole source is read.
func (p *Parser) fill(src ByteSource) (bool, error) {
	for {
		old := len(p.buf)
		p.buf = slices.Grow(p.buf, p.chunkSize)[:old+p.chunkSize]
		n, err := io.ReadFull(src, p.buf[old:])
		p.buf = p.buf[:old+n]
		p.localRead += int64(n)

		switch {
		case err == nil:
			if p.term.empty() {
				continue
			}
			return false, nil
		case stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF):
			if !p.term.empty() && len(p.buf) > 0 && !p.term.endsWith(p.buf) {
				p.buf = p.term.appendTo(p.buf)
			}
			return true, nil
		default:
			return false, err
		}
	}
}

// parseBuffer scans, partitions and parses the buffer, then drops the
// consumed bytes. The first error in worker order is returned.
func (p *Parser) parseBuffer(eof bool) error {
	if !p.term.empty() {
		p.scan.scan(p.buf)
		if eof {
			p.scan.clearLast(len(p.buf))
		}
	}

	parts := p.partition(len(p.buf), len(p.toks))
	results := parallel.ProcessIndexed(p.pool, parts, p.parseSlice)

	consumed := 0
	for _, r := range results {
		if r.err != nil {
			return r.err
		}
		consumed = max(consumed, r.consumed)
	}
	p.discard(consumed)
	return nil
}

func (p *Parser) discard(n int) {
	if n <= 0 {
		return
	}
	p.buf = p.buf[:copy(p.buf, p.buf[n:])]
	p.scan.discard(n)
}
