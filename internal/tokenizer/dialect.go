// Package tokenizer splits one CSV record into typed field values.
//
// A Tokenizer is configured once from an immutable Dialect and then reused
// for every record a worker parses. It is not safe for concurrent use; each
// parse worker owns one.
package tokenizer

import (
	"fmt"
	"strings"
)

// Dialect describes the field grammar shared by every worker of a session.
type Dialect struct {
	// Delimiter separates fields. It may be longer than one byte.
	Delimiter string
	// LineTerminator separates records. "\n" accepts "\n", "\r" and "\r\n".
	// An empty terminator makes the whole input a single record.
	LineTerminator string
	QuoteChar      byte
	EscapeChar     byte
	UseEscapeChar  bool
	CommentChar    byte
	HasCommentChar bool
	// DoubleQuote treats two quote characters inside a quoted field as one.
	DoubleQuote      bool
	SkipInitialSpace bool
	// NAValues are field texts read as missing values.
	NAValues []string
	// TrueValues and FalseValues are read as 1 and 0 in numeric columns.
	TrueValues  []string
	FalseValues []string
}

// DefaultDialect returns the comma separated dialect.
func DefaultDialect() Dialect {
	return Dialect{
		Delimiter:        ",",
		LineTerminator:   "\n",
		QuoteChar:        '"',
		EscapeChar:       '\\',
		UseEscapeChar:    true,
		DoubleQuote:      true,
		SkipInitialSpace: true,
	}
}

// Validate checks that the dialect can be tokenized unambiguously.
func (d *Dialect) Validate() error {
	if d.Delimiter == "" {
		return fmt.Errorf("delimiter must not be empty")
	}
	if d.QuoteChar == 0 {
		return fmt.Errorf("quote character must be set")
	}
	if strings.IndexByte(d.Delimiter, d.QuoteChar) >= 0 {
		return fmt.Errorf("delimiter %q must not contain the quote character", d.Delimiter)
	}
	if d.HasCommentChar && d.CommentChar == d.QuoteChar {
		return fmt.Errorf("comment character must differ from the quote character")
	}
	if d.UseEscapeChar && d.EscapeChar == d.QuoteChar && !d.DoubleQuote {
		return fmt.Errorf("escape character equal to the quote character requires double quoting")
	}
	return nil
}

// RegularLineTerminator reports whether records end at any of "\n", "\r"
// or "\r\n".
func (d *Dialect) RegularLineTerminator() bool {
	return d.LineTerminator == "\n"
}

// SpecialChars returns the bytes the quote scanner must stop at.
func (d *Dialect) SpecialChars() string {
	b := []byte{d.QuoteChar}
	if d.UseEscapeChar {
		b = append(b, d.EscapeChar)
	}
	if d.HasCommentChar {
		b = append(b, d.CommentChar)
	}
	return string(b)
}
