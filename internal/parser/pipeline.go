package parser

import (
	"fmt"

	"github.com/paveg/csvframe/internal/table"
)

// truncateToLimit caps the valid row counts of the parse buffers so the
// session does not exceed its row limit. It reports whether the limit is
// reached by this cycle.
func (p *Parser) truncateToLimit() bool {
	if p.cfg.RowLimit <= 0 {
		return false
	}
	remaining := p.cfg.RowLimit - p.session.LinesRead.Load()
	truncated := false
	var total int64
	for _, b := range p.parsing {
		allowed := max(remaining-total, 0)
		if int64(b.n) > allowed {
			b.n = int(allowed)
			truncated = true
		}
		total += int64(b.n)
	}
	return truncated || total >= remaining
}

// selectSegment moves the output segment forward with the fraction of
// session bytes consumed so far. It never moves back.
func (p *Parser) selectSegment(src ByteSource) {
	nseg := int64(p.numSegments)
	if nseg <= 1 || p.cfg.TotalSize <= 0 {
		return
	}
	pos := src.BytesRead()
	if pos < 0 {
		pos = p.localRead
	}
	pos += p.cumulativeRead
	next := int(min(pos*nseg/p.cfg.TotalSize, nseg-1))
	p.segment = max(p.segment, next)
}

// startBackgroundWrite swaps the parse and write buffer sets and launches
// the task draining the write set into out. The caller must have joined
// the previous write.
func (p *Parser) startBackgroundWrite(out *table.Table, errs *table.ErrorColumn) error {
	p.parsing, p.writing = p.writing, p.parsing
	for _, b := range p.parsing {
		b.clear()
	}

	writer, err := out.OutputIterator(p.segment)
	if err != nil {
		return fmt.Errorf("opening segment %d: %w", p.segment, err)
	}
	var errWriter *table.ErrorWriter
	if p.cfg.StoreErrors && errs != nil {
		errWriter = errs.OutputIterator()
	}

	buffers := p.writing
	session := p.session
	p.writes.Launch(func() error {
		for _, b := range buffers {
			for _, row := range b.rows[:b.n] {
				if err := writer.Append(row); err != nil {
					return fmt.Errorf("writing row: %w", err)
				}
			}
			session.LinesRead.Add(int64(b.n))
			if errWriter == nil {
				continue
			}
			for _, line := range b.errs {
				if err := errWriter.Append(line); err != nil {
					return fmt.Errorf("storing error line: %w", err)
				}
			}
		}
		return nil
	})
	return nil
}
