//nolint:testpackage // requires internal access to unexported types and functions
package parser

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	cferrors "github.com/paveg/csvframe/internal/errors"
	"github.com/paveg/csvframe/internal/logging"
	"github.com/paveg/csvframe/internal/series"
	"github.com/paveg/csvframe/internal/table"
	"github.com/paveg/csvframe/internal/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSource is an in-memory ByteSource. Without knownPos it reports an
// unknown read position.
type memSource struct {
	*bytes.Reader
	name     string
	size     int64
	knownPos bool
}

func newMemSource(data string) *memSource {
	return &memSource{Reader: bytes.NewReader([]byte(data)), name: "mem.csv", size: int64(len(data)), knownPos: true}
}

func (s *memSource) Name() string { return s.name }
func (s *memSource) Size() int64  { return s.size }
func (s *memSource) BytesRead() int64 {
	if !s.knownPos {
		return -1
	}
	return s.size - int64(s.Len())
}

func stringTypes(n int) []series.Type {
	types := make([]series.Type, n)
	for i := range types {
		types[i] = series.String
	}
	return types
}

func testConfig(cols int) Config {
	return Config{
		Dialect:       tokenizer.DefaultDialect(),
		Types:         stringTypes(cols),
		NumThreads:    2,
		ReadChunkSize: 1 << 20,
	}
}

type parseRun struct {
	out     *table.Table
	errs    *table.ErrorColumn
	session *Session
	err     error
}

func runParse(t *testing.T, ctx context.Context, src ByteSource, cfg Config, segments int) parseRun {
	t.Helper()
	session := NewSession(logging.Discard())
	p := NewParser(cfg, session)
	defer p.Close()

	out := table.New(memory.NewGoAllocator())
	names := make([]string, len(cfg.Types))
	for i := range names {
		names[i] = fmt.Sprintf("c%d", i)
	}
	require.NoError(t, out.OpenForWrite(names, cfg.Types, segments))
	errs := table.NewErrorColumn(memory.NewGoAllocator())

	err := p.Parse(ctx, src, out, errs)
	require.NoError(t, out.Close())
	errs.Close()
	t.Cleanup(func() {
		out.Release()
		errs.Release()
	})
	return parseRun{out: out, errs: errs, session: session, err: err}
}

type fixture struct {
	data string
	rows [][]any
}

// generate builds a CSV body whose values contain delimiters, quotes,
// newlines and terminator bytes, quoting every value that needs it.
func generate(rng *rand.Rand, rows, cols int, sep string) fixture {
	alphabet := "abcxyz0123,\n\"" + sep
	var b strings.Builder
	expected := make([][]any, rows)
	for r := range rows {
		row := make([]any, cols)
		for c := range cols {
			n := 1 + rng.IntN(8)
			v := make([]byte, n)
			for i := range v {
				v[i] = alphabet[rng.IntN(len(alphabet))]
			}
			// keep the value free of leading and trailing whitespace
			v[0] = 'v'
			v[n-1] = 'w'
			s := string(v)
			row[c] = s
			if c > 0 {
				b.WriteByte(',')
			}
			if strings.ContainsAny(s, ",\"\n\r"+sep) {
				b.WriteByte('"')
				b.WriteString(strings.ReplaceAll(s, `"`, `""`))
				b.WriteByte('"')
			} else {
				b.WriteString(s)
			}
		}
		expected[r] = row
		b.WriteString(sep)
	}
	return fixture{data: b.String(), rows: expected}
}

var terminatorCases = []struct {
	name    string
	dialect string
	sep     string
}{
	{"lf", "\n", "\n"},
	{"crlf regular", "\n", "\r\n"},
	{"pipe", "|", "|"},
	{"crlf literal", "\r\n", "\r\n"},
	{"three bytes", "<|>", "<|>"},
	{"four bytes", "<!-|", "<!-|"},
}

func TestPartitionCoverage(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, tc := range terminatorCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(3)
			cfg.Dialect.LineTerminator = tc.dialect
			p := NewParser(cfg, NewSession(logging.Discard()))
			defer p.Close()

			for trial := range 20 {
				fx := generate(rng, 1+trial, 3, tc.sep)
				p.buf = append(p.buf[:0], fx.data...)
				p.scan.reset()
				p.scan.scan(p.buf)
				size := len(p.buf)

				ends := map[int]bool{}
				for from := 0; ; {
					_, e := p.boundaryAfter(from, size)
					if e < 0 {
						break
					}
					ends[e] = true
					from = e
				}
				assert.Len(t, ends, 1+trial)

				for n := 1; n <= 8; n++ {
					parts := p.partition(size, n)
					require.Len(t, parts, n)
					assert.Equal(t, 0, parts[0].Start)
					assert.Equal(t, size, parts[n-1].End)
					for i := range parts {
						assert.LessOrEqual(t, parts[i].Start, parts[i].End)
						if i > 0 {
							assert.Equal(t, parts[i-1].End, parts[i].Start, "gap or overlap at worker %d", i)
						}
						if b := parts[i].End; b > 0 && b < size {
							assert.True(t, ends[b], "boundary %d of %d workers is not a record end", b, n)
						}
					}
				}
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	chunkSizes := []int{1, 2, 3, 5, 7, 16, 64, 1 << 20}
	for _, tc := range terminatorCases {
		fx := generate(rng, 40, 3, tc.sep)
		for _, workers := range []int{1, 2, 8} {
			for _, chunk := range chunkSizes {
				t.Run(fmt.Sprintf("%s/workers=%d/chunk=%d", tc.name, workers, chunk), func(t *testing.T) {
					cfg := testConfig(3)
					cfg.Dialect.LineTerminator = tc.dialect
					cfg.NumThreads = workers
					cfg.ReadChunkSize = chunk

					run := runParse(t, context.Background(), newMemSource(fx.data), cfg, 1)
					require.NoError(t, run.err)
					assert.Equal(t, fx.rows, run.out.Rows())
					assert.Equal(t, int64(40), run.session.LinesRead.Load())
					assert.Equal(t, int64(0), run.session.LinesFailed.Load())
				})
			}
		}
	}
}

func TestParseWithoutFinalTerminator(t *testing.T) {
	for _, tc := range terminatorCases {
		for _, chunk := range []int{1, 4, 1 << 20} {
			t.Run(fmt.Sprintf("%s/chunk=%d", tc.name, chunk), func(t *testing.T) {
				cfg := testConfig(2)
				cfg.Dialect.LineTerminator = tc.dialect
				cfg.ReadChunkSize = chunk
				data := "1,2" + tc.sep + "3,\"4" + tc.sep + "5\""

				run := runParse(t, context.Background(), newMemSource(data), cfg, 1)
				require.NoError(t, run.err)
				assert.Equal(t, [][]any{{"1", "2"}, {"3", "4" + tc.sep + "5"}}, run.out.Rows())
			})
		}
	}
}

func TestParseOversizedRecord(t *testing.T) {
	long := strings.Repeat("x", 500)
	data := "a,b\n\"" + long + "\n" + long + "\"," + long + "\nc,d\n"
	for _, chunk := range []int{1, 3, 64} {
		t.Run(fmt.Sprintf("chunk=%d", chunk), func(t *testing.T) {
			cfg := testConfig(2)
			cfg.ReadChunkSize = chunk
			cfg.NumThreads = 4

			run := runParse(t, context.Background(), newMemSource(data), cfg, 1)
			require.NoError(t, run.err)
			assert.Equal(t, [][]any{{"a", "b"}, {long + "\n" + long, long}, {"c", "d"}}, run.out.Rows())
		})
	}
}

func TestParseQuotedNewline(t *testing.T) {
	data := "1,\"good\"\n2,\"hello\nworld\"\n3,\"ok\"\n"
	for _, workers := range []int{2, 3, 8} {
		for chunk := 1; chunk <= len(data)+1; chunk++ {
			cfg := testConfig(2)
			cfg.NumThreads = workers
			cfg.ReadChunkSize = chunk

			run := runParse(t, context.Background(), newMemSource(data), cfg, 1)
			require.NoError(t, run.err)
			assert.Equal(t, [][]any{{"1", "good"}, {"2", "hello\nworld"}, {"3", "ok"}}, run.out.Rows(),
				"workers=%d chunk=%d", workers, chunk)
		}
	}
}

func TestParseTypedColumns(t *testing.T) {
	cfg := testConfig(3)
	cfg.Types = []series.Type{series.Integer, series.Float, series.Vector}
	data := "1,1.5,[1 2]\n2,,[3]\n"

	run := runParse(t, context.Background(), newMemSource(data), cfg, 1)
	require.NoError(t, run.err)
	assert.Equal(t, [][]any{
		{int64(1), 1.5, []float64{1, 2}},
		{int64(2), nil, []float64{3}},
	}, run.out.Rows())
}

func TestParseOutputOrder(t *testing.T) {
	cfg := testConfig(2)
	cfg.Order = []int{1, tokenizer.Ignore, 0}
	data := "a,b,c\nd,e,f\n"

	run := runParse(t, context.Background(), newMemSource(data), cfg, 1)
	require.NoError(t, run.err)
	assert.Equal(t, [][]any{{"c", "a"}, {"f", "d"}}, run.out.Rows())
}

func TestParseMalformedRecord(t *testing.T) {
	data := "1,2\nBADLINE\n3,4\n"

	t.Run("fatal by default", func(t *testing.T) {
		run := runParse(t, context.Background(), newMemSource(data), testConfig(2), 1)
		require.Error(t, run.err)
		assert.ErrorIs(t, run.err, cferrors.ErrMalformedRecord)
		assert.Contains(t, run.err.Error(), "Expected 2 columns but found 1")
		assert.Contains(t, run.err.Error(), "mem.csv")
	})

	t.Run("continue and store", func(t *testing.T) {
		cfg := testConfig(2)
		cfg.StoreErrors = true

		run := runParse(t, context.Background(), newMemSource(data), cfg, 1)
		require.NoError(t, run.err)
		assert.Equal(t, [][]any{{"1", "2"}, {"3", "4"}}, run.out.Rows())
		assert.Equal(t, int64(1), run.session.LinesFailed.Load())
		assert.Equal(t, []string{"BADLINE"}, run.errs.Values())
	})

	t.Run("continue without storing", func(t *testing.T) {
		cfg := testConfig(2)
		cfg.ContinueOnFailure = true

		run := runParse(t, context.Background(), newMemSource(data), cfg, 1)
		require.NoError(t, run.err)
		assert.Equal(t, int64(2), run.session.LinesRead.Load())
		assert.Equal(t, 0, run.errs.Len())
	})
}

func TestParseSkipsBlankAndCommentLines(t *testing.T) {
	cfg := testConfig(2)
	cfg.Dialect.CommentChar = '#'
	cfg.Dialect.HasCommentChar = true
	data := "# leading comment\n1,2\n\n   \n#x,\"y\n3,4\n"

	run := runParse(t, context.Background(), newMemSource(data), cfg, 1)
	require.NoError(t, run.err)
	assert.Equal(t, [][]any{{"1", "2"}, {"3", "4"}}, run.out.Rows())
	assert.Equal(t, int64(0), run.session.LinesFailed.Load())
}

func TestParseEmptyTerminator(t *testing.T) {
	cfg := testConfig(2)
	cfg.Dialect.LineTerminator = ""
	cfg.ReadChunkSize = 2
	cfg.NumThreads = 4

	run := runParse(t, context.Background(), newMemSource("x,\"y\nz\""), cfg, 1)
	require.NoError(t, run.err)
	assert.Equal(t, [][]any{{"x", "y\nz"}}, run.out.Rows())
}

func TestParseRowLimit(t *testing.T) {
	data := "1\n2\n3\n4\n5\n"
	for _, chunk := range []int{1, 4, 1 << 20} {
		t.Run(fmt.Sprintf("chunk=%d", chunk), func(t *testing.T) {
			cfg := testConfig(1)
			cfg.RowLimit = 2
			cfg.ReadChunkSize = chunk

			run := runParse(t, context.Background(), newMemSource(data), cfg, 1)
			require.NoError(t, run.err)
			assert.Equal(t, [][]any{{"1"}, {"2"}}, run.out.Rows())
			assert.Equal(t, int64(2), run.session.LinesRead.Load())
		})
	}
}

func TestParseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := runParse(t, ctx, newMemSource("1,2\n3,4\n"), testConfig(2), 1)
	require.Error(t, run.err)
	assert.ErrorIs(t, run.err, cferrors.ErrCancelled)
	assert.ErrorIs(t, run.err, context.Canceled)
	assert.Equal(t, int64(0), run.out.NumRows())
}

func TestParseSegments(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	fx := generate(rng, 60, 2, "\n")

	src := newMemSource(fx.data)
	src.knownPos = false
	cfg := testConfig(2)
	cfg.ReadChunkSize = 32
	cfg.TotalSize = int64(len(fx.data))

	run := runParse(t, context.Background(), src, cfg, 4)
	require.NoError(t, run.err)
	assert.Equal(t, fx.rows, run.out.Rows())

	counts := run.out.SegmentRows()
	require.Len(t, counts, 4)
	nonEmpty := 0
	for _, c := range counts {
		if c > 0 {
			nonEmpty++
		}
	}
	assert.Greater(t, nonEmpty, 1)
	assert.Positive(t, counts[3])
}

func TestParseMultipleSources(t *testing.T) {
	session := NewSession(logging.Discard())
	cfg := testConfig(1)
	cfg.RowLimit = 3
	p := NewParser(cfg, session)
	defer p.Close()

	out := table.New(memory.NewGoAllocator())
	require.NoError(t, out.OpenForWrite([]string{"c0"}, cfg.Types, 1))
	require.NoError(t, p.Parse(context.Background(), newMemSource("a\nb\n"), out, nil))
	require.NoError(t, p.Parse(context.Background(), newMemSource("c\nd\n"), out, nil))
	require.NoError(t, out.Close())
	defer out.Release()

	assert.Equal(t, [][]any{{"a"}, {"b"}, {"c"}}, out.Rows())
	assert.Equal(t, int64(8), p.BytesRead())
}

func TestRowBufferReuse(t *testing.T) {
	b := &rowBuffer{}
	types := []series.Type{series.Integer, series.String}

	row := b.nextRow(types)
	row[0].SetInt(7)
	row[1].SetString("x")
	b.n++
	b.clear()

	row = b.nextRow(types)
	assert.Equal(t, int64(7), row[0].Int())
	row[0].SetNull()
	b.clear()

	row = b.nextRow(types)
	assert.Equal(t, series.Integer, row[0].Type())
	assert.Equal(t, int64(0), row[0].Int())
	assert.Equal(t, "x", row[1].Str())
	assert.Len(t, b.rows, 1)
}
