package parser

import (
	"bytes"
	"fmt"

	cferrors "github.com/paveg/csvframe/internal/errors"
)

const maxDiagnosisLine = 256

type sliceResult struct {
	// consumed is the offset after the last parsed record, or -1 for an
	// empty slice.
	consumed int
	err      error
}

// parseSlice parses every complete record of one slice with the tokenizer
// and row buffer of worker id.
func (p *Parser) parseSlice(id int, s slice) sliceResult {
	if s.empty() {
		return sliceResult{consumed: -1}
	}
	if p.term.empty() {
		return sliceResult{consumed: s.End, err: p.parseLine(id, p.buf[s.Start:s.End])}
	}

	start := s.Start
	for start < s.End {
		ts, te := p.boundaryAfter(start, s.End)
		if ts < 0 {
			break
		}
		if err := p.parseLine(id, p.buf[start:ts]); err != nil {
			return sliceResult{consumed: start, err: err}
		}
		start = te
	}
	return sliceResult{consumed: start}
}

// parseLine tokenizes one record into the row buffer of worker id. Blank
// and comment lines are dropped; other malformed records fail the session
// or are counted, depending on the failure policy.
func (p *Parser) parseLine(id int, line []byte) error {
	b := p.parsing[id]
	tok := p.toks[id]
	row := b.nextRow(p.cfg.Types)
	if tok.TokenizeLine(line, row, p.cfg.Types, true, p.cfg.Order) == p.numInputColumns {
		b.n++
		return nil
	}

	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil
	}
	if p.cfg.Dialect.HasCommentChar && trimmed[0] == p.cfg.Dialect.CommentChar {
		return nil
	}

	diagnosis := tok.LastError()
	if diagnosis == "" {
		shown := line
		if len(shown) > maxDiagnosisLine {
			shown = shown[:maxDiagnosisLine]
		}
		diagnosis = fmt.Sprintf("Unable to parse line %q", shown)
	}
	if !p.cfg.ContinueOnFailure {
		return cferrors.NewMalformedRecordError(p.path, diagnosis)
	}

	p.session.recordFailure(p.path, diagnosis)
	if p.cfg.StoreErrors {
		b.errs = append(b.errs, string(trimmed))
	}
	return nil
}
