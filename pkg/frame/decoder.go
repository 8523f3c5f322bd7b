// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"bytes"
	"fmt"
	"iter"

	mircerrors "github.com/absmach/mircd/pkg/errors"
)

// DefaultMaxLineLength is the IRC line limit, terminator included.
const DefaultMaxLineLength = 512

// Terminator ends every protocol line.
var Terminator = []byte("\r\n")

// ErrLineTooLong is returned when a line exceeds the configured maximum.
var ErrLineTooLong = mircerrors.ErrLineTooLong

// Decoder splits a byte stream into CRLF terminated lines.
// A Decoder belongs to one connection and is not safe for concurrent use.
type Decoder struct {
	buf     []byte
	maxLine int
	err     error
}

// NewDecoder creates a decoder that rejects lines longer than maxLine bytes,
// terminator included. A non-positive maxLine selects DefaultMaxLineLength.
func NewDecoder(maxLine int) *Decoder {
	if maxLine <= len(Terminator) {
		maxLine = DefaultMaxLineLength
	}
	return &Decoder{maxLine: maxLine}
}

// MaxLineLength returns the configured limit, terminator included.
func (d *Decoder) MaxLineLength() int {
	return d.maxLine
}

// Feed appends chunk to the buffered tail and yields every complete line,
// terminator stripped. Lines the caller does not consume stay buffered and
// are yielded by the next call; Feed(nil) drains them.
//
// Once a line exceeds the limit the decoder yields ErrLineTooLong and keeps
// returning it.
func (d *Decoder) Feed(chunk []byte) iter.Seq2[string, error] {
	if d.err == nil {
		d.buf = append(d.buf, chunk...)
	}

	return func(yield func(string, error) bool) {
		for {
			if d.err != nil {
				yield("", d.err)
				return
			}

			line, ok, err := d.next()
			if err != nil {
				d.fail(err)
				continue
			}
			if !ok {
				return
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}

// Buffered returns the number of bytes held for an unterminated line.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset drops buffered data and clears a previous error.
func (d *Decoder) Reset() {
	d.buf = nil
	d.err = nil
}

func (d *Decoder) next() (string, bool, error) {
	limit := d.maxLine - len(Terminator)

	i := bytes.Index(d.buf, Terminator)
	if i < 0 {
		// A trailing CR may be the first half of the terminator.
		pending := len(d.buf)
		if pending > 0 && d.buf[pending-1] == '\r' {
			pending--
		}
		if pending > limit {
			return "", false, fmt.Errorf("%w: %d bytes without terminator, limit %d", ErrLineTooLong, pending, limit)
		}
		return "", false, nil
	}
	if i > limit {
		return "", false, fmt.Errorf("%w: %d bytes, limit %d", ErrLineTooLong, i, limit)
	}

	line := string(d.buf[:i])
	d.buf = d.buf[i+len(Terminator):]
	if len(d.buf) == 0 {
		// Drop the backing array so an idle connection holds no memory.
		d.buf = nil
	}
	return line, true, nil
}

func (d *Decoder) fail(err error) {
	d.err = err
	d.buf = nil
}
