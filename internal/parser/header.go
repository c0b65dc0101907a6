package parser

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/paveg/csvframe/internal/config"
	cferrors "github.com/paveg/csvframe/internal/errors"
	"github.com/paveg/csvframe/internal/series"
	"github.com/paveg/csvframe/internal/tokenizer"
)

// LineReader reads one record at a time ahead of the parallel parse.
type LineReader interface {
	ReadLine(terminator string) (string, error)
}

// SkipRows discards n lines. Reaching the end of input is not an error.
func SkipRows(r LineReader, n int, terminator string) error {
	for range n {
		if _, err := r.ReadLine(terminator); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return nil
}

// ReadHeaderLine returns the fields of the first line that yields any,
// skipping blank and comment lines. It returns nil at end of input.
func ReadHeaderLine(r LineReader, tok *tokenizer.Tokenizer) ([]string, error) {
	terminator := tok.Dialect().LineTerminator
	for {
		line, err := r.ReadLine(terminator)
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if fields := tok.TokenizeStrings([]byte(strings.TrimSpace(line))); len(fields) > 0 {
			return fields, nil
		}
	}
}

// PositionalNames returns X1..Xn.
func PositionalNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = "X" + strconv.Itoa(i+1)
	}
	return names
}

// MakeUniqueColumnNames de-duplicates names the way R does: a repeated
// name "A" becomes "A.1", "A.2" and so on, skipping suffixes that are
// already taken. Empty names become their positional name.
func MakeUniqueColumnNames(names []string) []string {
	out := slices.Clone(names)
	taken := make(map[string]bool, len(out))
	for i, name := range out {
		if name == "" {
			out[i] = "X" + strconv.Itoa(i+1)
		}
		taken[out[i]] = true
	}

	seen := make(map[string]bool, len(out))
	for i, name := range out {
		if !seen[name] {
			seen[name] = true
			continue
		}
		for k := 1; ; k++ {
			candidate := name + "." + strconv.Itoa(k)
			if !taken[candidate] {
				out[i] = candidate
				taken[candidate] = true
				seen[candidate] = true
				break
			}
		}
	}
	return out
}

// positionalIndex parses "X<n>" and "__X<n>__" style keys.
func positionalIndex(s, prefix, suffix string) (int, bool) {
	rest, ok := strings.CutPrefix(s, prefix)
	if !ok {
		return 0, false
	}
	if rest, ok = strings.CutSuffix(rest, suffix); !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ResolveOutputColumns maps the input columns onto the requested output
// columns. Entries of outputColumns are input names or "X<n>" (1-based)
// positions. It returns the per input column order, using
// tokenizer.Ignore for dropped columns, and the output names. Without
// output columns every input column is kept in order and the order is nil.
func ResolveOutputColumns(inputNames, outputColumns []string) ([]int, []string, error) {
	if len(outputColumns) == 0 {
		return nil, slices.Clone(inputNames), nil
	}

	order := make([]int, len(inputNames))
	for i := range order {
		order[i] = tokenizer.Ignore
	}
	for j, name := range outputColumns {
		idx := slices.Index(inputNames, name)
		if idx < 0 {
			if n, ok := positionalIndex(name, "X", ""); ok && n >= 1 && n <= len(inputNames) {
				idx = n - 1
			}
		}
		if idx < 0 {
			return nil, nil, cferrors.NewHeaderMismatchError("ResolveOutputColumns",
				fmt.Sprintf("output column %q not found in the header", name))
		}
		if order[idx] != tokenizer.Ignore {
			return nil, nil, cferrors.NewHeaderMismatchError("ResolveOutputColumns",
				fmt.Sprintf("output column %q selected twice", name))
		}
		order[idx] = j
	}
	return order, slices.Clone(outputColumns), nil
}

// ColumnTypes assigns a type to every output column. Columns default to
// strings; config.AllColumnsKey sets every column, "__X<i>__" keys set
// columns by 0-based position and must then cover every column, and
// named hints set the column of that name. Hints matching no column are
// logged.
func ColumnTypes(names []string, hints map[string]series.Type, logger *slog.Logger) ([]series.Type, error) {
	types := make([]series.Type, len(names))
	for i := range types {
		types[i] = series.String
	}
	used := make(map[string]bool, len(hints))

	if t, ok := hints[config.AllColumnsKey]; ok {
		for i := range types {
			types[i] = t
		}
		used[config.AllColumnsKey] = true
	}

	positional := false
	for key := range hints {
		if _, ok := positionalIndex(key, "__X", "__"); ok {
			positional = true
			break
		}
	}
	if positional {
		for i := range types {
			key := "__X" + strconv.Itoa(i) + "__"
			t, ok := hints[key]
			if !ok {
				return nil, cferrors.NewHeaderMismatchError("ColumnTypes",
					fmt.Sprintf("positional type hints must cover every column; %s is missing", key))
			}
			types[i] = t
			used[key] = true
		}
	}

	for i, name := range names {
		if t, ok := hints[name]; ok {
			types[i] = t
			used[name] = true
		}
	}

	var unused []string
	for key := range hints {
		if !used[key] {
			unused = append(unused, key)
		}
	}
	if len(unused) > 0 && logger != nil {
		slices.Sort(unused)
		logger.Warn("type hints do not match any column", "hints", unused)
	}
	return types, nil
}

// HeaderFingerprint hashes column names in order.
func HeaderFingerprint(names []string) uint64 {
	h := xxhash.New()
	for _, name := range names {
		_, _ = h.WriteString(name)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
