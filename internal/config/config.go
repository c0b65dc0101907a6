// Package config provides the options of a CSV parse session
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/paveg/csvframe/internal/series"
	"github.com/paveg/csvframe/internal/tokenizer"
	"gopkg.in/yaml.v3"
)

// Special type hint keys.
const (
	AllColumnsKey = "__all_columns__"
)

// Default option values
const (
	DefaultReadChunkSize = 50 * 1024 * 1024
	DefaultNumSegments   = 1
	minAutoThreads       = 2
)

// Options represents the configuration of one parse session
type Options struct {
	// Header handling
	UseHeader bool `json:"use_header" yaml:"use_header"` // Consume the first non-comment line as column names
	SkipRows  int  `json:"skip_rows" yaml:"skip_rows"`   // Lines discarded before header detection

	// Dialect
	Delimiter        string   `json:"delimiter" yaml:"delimiter"`
	LineTerminator   string   `json:"line_terminator" yaml:"line_terminator"` // "" makes the whole input one record
	QuoteChar        string   `json:"quote_char" yaml:"quote_char"`
	EscapeChar       string   `json:"escape_char" yaml:"escape_char"` // "" disables escapes
	CommentChar      string   `json:"comment_char" yaml:"comment_char"`
	DoubleQuote      bool     `json:"double_quote" yaml:"double_quote"`
	SkipInitialSpace bool     `json:"skip_initial_space" yaml:"skip_initial_space"`
	NAValues         []string `json:"na_values" yaml:"na_values"`
	TrueValues       []string `json:"true_values" yaml:"true_values"`
	FalseValues      []string `json:"false_values" yaml:"false_values"`

	// Error policy
	ContinueOnFailure bool `json:"continue_on_failure" yaml:"continue_on_failure"`
	StoreErrors       bool `json:"store_errors" yaml:"store_errors"` // Forces ContinueOnFailure

	// Schema
	ColumnTypeHints map[string]string `json:"column_type_hints" yaml:"column_type_hints"`
	OutputColumns   []string          `json:"output_columns" yaml:"output_columns"`
	RowLimit        int64             `json:"row_limit" yaml:"row_limit"` // 0 = unlimited

	// Execution
	NumThreads     int  `json:"num_threads" yaml:"num_threads"`         // 0 = auto-detect
	ReadChunkSize  int  `json:"read_chunk_size" yaml:"read_chunk_size"` // Bytes per fill
	NumSegments    int  `json:"num_segments" yaml:"num_segments"`       // Destination segments
	CollectMetrics bool `json:"collect_metrics" yaml:"collect_metrics"`
}

// NewOptions creates options with default values
func NewOptions() Options {
	return Options{
		UseHeader:        true,
		Delimiter:        ",",
		LineTerminator:   "\n",
		QuoteChar:        `"`,
		EscapeChar:       `\`,
		DoubleQuote:      true,
		SkipInitialSpace: true,
		ReadChunkSize:    DefaultReadChunkSize,
		NumSegments:      DefaultNumSegments,
	}
}

// Validate validates the options and returns an error if invalid
func (o *Options) Validate() error {
	if o.SkipRows < 0 {
		return fmt.Errorf("SkipRows must be non-negative, got %d", o.SkipRows)
	}
	if o.RowLimit < 0 {
		return fmt.Errorf("RowLimit must be non-negative, got %d", o.RowLimit)
	}
	if o.NumThreads < 0 {
		return fmt.Errorf("NumThreads must be non-negative, got %d", o.NumThreads)
	}
	if o.ReadChunkSize <= 0 {
		return fmt.Errorf("ReadChunkSize must be positive, got %d", o.ReadChunkSize)
	}
	if o.NumSegments <= 0 {
		return fmt.Errorf("NumSegments must be positive, got %d", o.NumSegments)
	}
	if len(o.QuoteChar) != 1 {
		return fmt.Errorf("QuoteChar must be a single byte, got %q", o.QuoteChar)
	}
	if len(o.EscapeChar) > 1 {
		return fmt.Errorf("EscapeChar must be at most one byte, got %q", o.EscapeChar)
	}
	if len(o.CommentChar) > 1 {
		return fmt.Errorf("CommentChar must be at most one byte, got %q", o.CommentChar)
	}
	d := o.Dialect()
	if err := d.Validate(); err != nil {
		return err
	}
	if _, err := o.TypeHints(); err != nil {
		return err
	}
	return nil
}

// WithDefaults returns options with default values filled in for zero values.
// LineTerminator is left alone since an empty terminator is meaningful.
func (o Options) WithDefaults() Options {
	defaults := NewOptions()

	if o.Delimiter == "" {
		o.Delimiter = defaults.Delimiter
	}
	if o.QuoteChar == "" {
		o.QuoteChar = defaults.QuoteChar
	}
	if o.ReadChunkSize == 0 {
		o.ReadChunkSize = defaults.ReadChunkSize
	}
	if o.NumSegments == 0 {
		o.NumSegments = defaults.NumSegments
	}
	if o.StoreErrors {
		o.ContinueOnFailure = true
	}

	return o
}

// Dialect converts the options into the tokenizer dialect
func (o *Options) Dialect() tokenizer.Dialect {
	d := tokenizer.Dialect{
		Delimiter:        o.Delimiter,
		LineTerminator:   o.LineTerminator,
		DoubleQuote:      o.DoubleQuote,
		SkipInitialSpace: o.SkipInitialSpace,
		NAValues:         o.NAValues,
		TrueValues:       o.TrueValues,
		FalseValues:      o.FalseValues,
	}
	if o.QuoteChar != "" {
		d.QuoteChar = o.QuoteChar[0]
	}
	if o.EscapeChar != "" {
		d.EscapeChar = o.EscapeChar[0]
		d.UseEscapeChar = true
	}
	if o.CommentChar != "" {
		d.CommentChar = o.CommentChar[0]
		d.HasCommentChar = true
	}
	return d
}

// TypeHints parses the column type hints
func (o *Options) TypeHints() (map[string]series.Type, error) {
	hints := make(map[string]series.Type, len(o.ColumnTypeHints))
	for name, typ := range o.ColumnTypeHints {
		t, err := series.ParseType(typ)
		if err != nil {
			return nil, fmt.Errorf("type hint for column %q: %w", name, err)
		}
		hints[name] = t
	}
	return hints, nil
}

// Workers returns the number of parse workers
func (o *Options) Workers() int {
	if o.NumThreads > 0 {
		return o.NumThreads
	}
	return max(runtime.NumCPU()-1, minAutoThreads)
}

// LoadFromFile loads options from a file (supports JSON, YAML).
// Fields the file does not set keep their default values.
func LoadFromFile(filename string) (Options, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Options{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	options := NewOptions()
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		err = json.Unmarshal(data, &options)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &options)
	default:
		return Options{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Options{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	return options.WithDefaults(), nil
}

// LoadFromEnv loads options from environment variables
func LoadFromEnv() Options {
	return ApplyEnv(NewOptions())
}

// ApplyEnv overrides options with CSVFRAME_* environment variables
func ApplyEnv(options Options) Options {
	envBool := func(key string, dst *bool) {
		if val := os.Getenv(key); val != "" {
			if parsed, err := strconv.ParseBool(val); err == nil {
				*dst = parsed
			}
		}
	}
	envInt := func(key string, dst *int) {
		if val := os.Getenv(key); val != "" {
			if parsed, err := strconv.Atoi(val); err == nil {
				*dst = parsed
			}
		}
	}

	envBool("CSVFRAME_USE_HEADER", &options.UseHeader)
	envBool("CSVFRAME_CONTINUE_ON_FAILURE", &options.ContinueOnFailure)
	envBool("CSVFRAME_STORE_ERRORS", &options.StoreErrors)
	envBool("CSVFRAME_COLLECT_METRICS", &options.CollectMetrics)
	envInt("CSVFRAME_SKIP_ROWS", &options.SkipRows)
	envInt("CSVFRAME_NUM_THREADS", &options.NumThreads)
	envInt("CSVFRAME_READ_CHUNK_SIZE", &options.ReadChunkSize)
	envInt("CSVFRAME_NUM_SEGMENTS", &options.NumSegments)

	if val := os.Getenv("CSVFRAME_ROW_LIMIT"); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			options.RowLimit = parsed
		}
	}
	if val := os.Getenv("CSVFRAME_DELIMITER"); val != "" {
		options.Delimiter = val
	}
	if val := os.Getenv("CSVFRAME_OUTPUT_COLUMNS"); val != "" {
		options.OutputColumns = strings.Split(val, ",")
	}

	return options.WithDefaults()
}
