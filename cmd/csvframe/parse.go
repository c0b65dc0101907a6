package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/paveg/csvframe"
	"github.com/paveg/csvframe/internal/config"
	"github.com/paveg/csvframe/internal/logging"
	"github.com/paveg/csvframe/internal/monitoring"
	"github.com/spf13/cobra"
)

const stdinPath = "-"

const parseLong = `Parses a file, a directory of files or a glob pattern into one table.
Use "-" to read from standard input. Files ending in .gz or .zst are
decompressed. The output format follows the --output extension: .parquet,
.json/.jsonl or CSV otherwise. Without --output the table is written to
standard output as CSV.`

type parseFlags struct {
	configPath   string
	output       string
	errorsOutput string
	types        []string
	logLevel     string
	logFormat    string
	metricsAddr  string
	header       bool
	delimiter    string
	terminator   string
	quote        string
	escape       string
	comment      string
	columns      []string
	rowLimit     int64
	skipRows     int
	continueOn   bool
	storeErrors  bool
	threads      int
	chunkSize    int
	segments     int
}

func newParseCmd() *cobra.Command {
	f := &parseFlags{}
	cmd := &cobra.Command{
		Use:   "parse <path>",
		Short: "parse delimited files into a table",
		Long:  parseLong,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, f, args[0])
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "options file (.json, .yaml or .yml)")
	fl.StringVarP(&f.output, "output", "o", "", "output file; stdout CSV when empty")
	fl.StringVar(&f.errorsOutput, "errors-output", "", "file receiving stored malformed lines")
	fl.StringArrayVarP(&f.types, "type", "t", nil, "column type hint as name=type; * names every column")
	fl.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	fl.StringVar(&f.logFormat, "log-format", "text", "log format: text or json")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve parse metrics on this address while running")
	fl.BoolVar(&f.header, "header", true, "treat the first line as column names")
	fl.StringVarP(&f.delimiter, "delimiter", "d", ",", "field delimiter")
	fl.StringVar(&f.terminator, "line-terminator", "\n", "record terminator; empty reads the input as one record")
	fl.StringVar(&f.quote, "quote", `"`, "quote character")
	fl.StringVar(&f.escape, "escape", `\`, "escape character; empty disables escapes")
	fl.StringVar(&f.comment, "comment", "", "comment character")
	fl.StringSliceVarP(&f.columns, "columns", "c", nil, "output columns, by name or X<n>")
	fl.Int64Var(&f.rowLimit, "row-limit", 0, "stop after this many rows; 0 reads everything")
	fl.IntVar(&f.skipRows, "skip-rows", 0, "lines to skip before the header")
	fl.BoolVar(&f.continueOn, "continue-on-failure", false, "skip malformed lines instead of failing")
	fl.BoolVar(&f.storeErrors, "store-errors", false, "keep malformed lines; implies --continue-on-failure")
	fl.IntVar(&f.threads, "threads", 0, "parser threads; 0 picks from the CPU count")
	fl.IntVar(&f.chunkSize, "chunk-size", config.DefaultReadChunkSize, "bytes read per cycle")
	fl.IntVar(&f.segments, "segments", config.DefaultNumSegments, "number of table segments")
	return cmd
}

// options layers defaults, the options file, the environment and the
// flags set on the command line, in that order.
func (f *parseFlags) options(cmd *cobra.Command) (csvframe.Options, error) {
	opts := csvframe.DefaultOptions()
	if f.configPath != "" {
		var err error
		if opts, err = csvframe.LoadOptions(f.configPath); err != nil {
			return opts, err
		}
	}
	opts = config.ApplyEnv(opts)

	fl := cmd.Flags()
	if fl.Changed("header") {
		opts.UseHeader = f.header
	}
	if fl.Changed("delimiter") {
		opts.Delimiter = unescapeFlag(f.delimiter)
	}
	if fl.Changed("line-terminator") {
		opts.LineTerminator = unescapeFlag(f.terminator)
	}
	if fl.Changed("quote") {
		opts.QuoteChar = f.quote
	}
	if fl.Changed("escape") {
		opts.EscapeChar = f.escape
	}
	if fl.Changed("comment") {
		opts.CommentChar = f.comment
	}
	if fl.Changed("columns") {
		opts.OutputColumns = f.columns
	}
	if fl.Changed("row-limit") {
		opts.RowLimit = f.rowLimit
	}
	if fl.Changed("skip-rows") {
		opts.SkipRows = f.skipRows
	}
	if fl.Changed("continue-on-failure") {
		opts.ContinueOnFailure = f.continueOn
	}
	if fl.Changed("store-errors") {
		opts.StoreErrors = f.storeErrors
	}
	if fl.Changed("threads") {
		opts.NumThreads = f.threads
	}
	if fl.Changed("chunk-size") {
		opts.ReadChunkSize = f.chunkSize
	}
	if fl.Changed("segments") {
		opts.NumSegments = f.segments
	}
	if f.errorsOutput != "" {
		opts.StoreErrors = true
	}

	for _, hint := range f.types {
		name, typ, ok := strings.Cut(hint, "=")
		if !ok || name == "" || typ == "" {
			return opts, fmt.Errorf("type hint %q must be name=type", hint)
		}
		if name == "*" {
			name = config.AllColumnsKey
		}
		if opts.ColumnTypeHints == nil {
			opts.ColumnTypeHints = make(map[string]string)
		}
		opts.ColumnTypeHints[name] = typ
	}
	return opts.WithDefaults(), nil
}

// unescapeFlag turns the escape sequences \t, \n, \r and \\ typed on a
// command line into the characters they name.
func unescapeFlag(s string) string {
	return strings.NewReplacer(`\t`, "\t", `\n`, "\n", `\r`, "\r", `\\`, `\`).Replace(s)
}

func runParse(cmd *cobra.Command, f *parseFlags, path string) error {
	logger := logging.New(f.logLevel, f.logFormat, cmd.ErrOrStderr())
	opts, err := f.options(cmd)
	if err != nil {
		return err
	}

	readOpts := []csvframe.ReadOption{csvframe.WithLogger(logger)}
	if f.metricsAddr != "" {
		collector := monitoring.NewMetricsCollector(true)
		server := monitoring.NewMonitoringServer(collector, f.metricsAddr)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("metrics server failed", "addr", f.metricsAddr, "error", err)
			}
		}()
		defer func() { _ = server.Stop() }()
		readOpts = append(readOpts, csvframe.WithMetrics(collector))
	}

	ctx := cmd.Context()
	var res *csvframe.Result
	if path == stdinPath {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		res, err = csvframe.ReadCSVBytes(ctx, "stdin", data, opts, readOpts...)
		if err != nil {
			return err
		}
	} else {
		res, err = csvframe.ReadCSV(ctx, path, opts, readOpts...)
		if err != nil {
			return err
		}
	}
	defer res.Release()

	if err := writeTable(cmd.OutOrStdout(), res.Table, f.output); err != nil {
		return err
	}
	if f.errorsOutput != "" {
		if err := writeErrors(res.Errors, f.errorsOutput); err != nil {
			return err
		}
	}

	logger.Info("parse finished",
		"session_id", res.SessionID,
		"rows", res.Table.NumRows(),
		"lines_failed", res.Stats.LinesFailed,
		"files_parsed", res.Stats.FilesParsed,
		"files_skipped", res.Stats.FilesSkipped,
		"elapsed", res.Stats.Elapsed)
	return nil
}

func writeTable(stdout io.Writer, t *csvframe.Table, output string) (err error) {
	if output == "" {
		return t.WriteCSV(stdout)
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	switch strings.ToLower(filepath.Ext(output)) {
	case ".parquet":
		return t.WriteParquet(file)
	case ".json", ".jsonl", ".ndjson":
		return t.WriteJSON(file)
	default:
		return t.WriteCSV(file)
	}
}

// writeErrors writes one "path<TAB>line" entry per stored malformed line.
func writeErrors(errs map[string][]string, output string) (err error) {
	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	paths := make([]string, 0, len(errs))
	for p := range errs {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	for _, p := range paths {
		for _, line := range errs[p] {
			if _, err := fmt.Fprintf(file, "%s\t%s\n", p, line); err != nil {
				return err
			}
		}
	}
	return nil
}
