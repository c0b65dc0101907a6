package io

import (
	"bytes"
	"io"
)

// ReadLine reads one record terminated by terminator, which is not
// included in the result. The "\n" terminator also accepts "\r" and
// "\r\n"; an empty terminator reads the rest of the input. The final line
// does not need a terminator. io.EOF is only returned when nothing was
// read.
func (s *Source) ReadLine(terminator string) (string, error) {
	switch terminator {
	case "":
		b, err := io.ReadAll(s.r)
		if err != nil {
			return "", err
		}
		if len(b) == 0 {
			return "", io.EOF
		}
		return string(b), nil
	case "\n":
		return s.readRegularLine()
	default:
		return s.readTerminatedLine([]byte(terminator))
	}
}

func (s *Source) readRegularLine() (string, error) {
	var line []byte
	for {
		c, err := s.r.ReadByte()
		if err == io.EOF {
			if line == nil {
				return "", io.EOF
			}
			return string(line), nil
		}
		if err != nil {
			return "", err
		}
		switch c {
		case '\n':
			return string(line), nil
		case '\r':
			if next, err := s.r.Peek(1); err == nil && next[0] == '\n' {
				_, _ = s.r.ReadByte()
			}
			return string(line), nil
		}
		if line == nil {
			line = make([]byte, 0, 128)
		}
		line = append(line, c)
	}
}

func (s *Source) readTerminatedLine(term []byte) (string, error) {
	var line []byte
	for {
		c, err := s.r.ReadByte()
		if err == io.EOF {
			if line == nil {
				return "", io.EOF
			}
			return string(line), nil
		}
		if err != nil {
			return "", err
		}
		line = append(line, c)
		if bytes.HasSuffix(line, term) {
			return string(line[:len(line)-len(term)]), nil
		}
	}
}
