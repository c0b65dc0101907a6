package parser

// slice is the half-open byte range [Start, End) of the fill buffer handed
// to one worker for one cycle.
type slice struct {
	Start int
	End   int
}

func (s slice) empty() bool { return s.End <= s.Start }

// boundaryAfter returns the first true record separator in buf[from:end]
// as the offsets of its first byte and of the byte following it. A
// separator whose last byte lies inside quotes is skipped. It returns
// -1, -1 when there is none.
func (p *Parser) boundaryAfter(from, end int) (int, int) {
	for from < end {
		k, n := p.term.next(p.buf, from, end)
		if k < 0 {
			return -1, -1
		}
		if !p.scan.inQuotes(k + n - 1) {
			return k, k + n
		}
		from = k + 1
	}
	return -1, -1
}

// partition splits the first size bytes of the fill buffer into n
// contiguous slices, one per worker. Every inner boundary is the end of a
// true record separator; a cut that finds none yields the rest of the
// buffer to the slice before it and leaves the following slices empty.
// Each boundary is resolved once and shared by the two slices it
// separates.
func (p *Parser) partition(size, n int) []slice {
	if cap(p.bounds) < n+1 {
		p.bounds = make([]int, n+1)
		p.slices = make([]slice, n)
	}
	bounds := p.bounds[:n+1]
	out := p.slices[:n]

	bounds[0] = 0
	bounds[n] = size
	if p.term.empty() {
		for i := 1; i < n; i++ {
			bounds[i] = size
		}
	} else {
		step := size / n
		for i := 1; i < n; i++ {
			from := max(i*step-p.term.lookback(), bounds[i-1], 0)
			_, e := p.boundaryAfter(from, size)
			if e < 0 {
				e = size
			}
			bounds[i] = e
		}
	}

	for i := range out {
		out[i] = slice{Start: bounds[i], End: bounds[i+1]}
	}
	return out
}
