// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package protocol:
package protocol

import (
	"io"
	"strconv"

	"github.com/awinterman/anarchoresp/protocol/kind"
)

// Encode renders m into its wire form. The output is a pure function of m.
//
// Encode does not validate m; a message that breaks the invariants checked by
// Message.Validate produces bytes that will not decode back to m.
func Encode(m Message) []byte {
	return AppendMessage(make([]byte, 0, encodedSizeHint(m)), m)
}

// AppendMessage appends the wire form of m to dst and returns the extended slice.
func AppendMessage(dst []byte, m Message) []byte {
	dst = append(dst, byte(m.Kind))

	switch m.Kind {
	case kind.SimpleString, kind.Error, kind.BigNumber:
		dst = append(dst, m.Str...)
	case kind.Int:
		dst = strconv.AppendInt(dst, m.Int, 10)
	case kind.Bool:
		if m.Bool {
			dst = append(dst, 't')
		} else {
			dst = append(dst, 'f')
		}
	case kind.Null:
	case kind.BulkString:
		if m.IsNull {
			return append(dst, "-1\r\n"...)
		}
		dst = strconv.AppendInt(dst, int64(len(m.Bulk)), 10)
		dst = append(dst, kind.EOL...)
		dst = append(dst, m.Bulk...)
	case kind.VerbatimString:
		dst = strconv.AppendInt(dst, int64(m.Len()), 10)
		dst = append(dst, kind.EOL...)
		dst = append(dst, m.Format[:]...)
		dst = append(dst, ':')
		dst = append(dst, m.Str...)
	case kind.Array, kind.Set, kind.Push:
		if m.IsNull {
			return append(dst, "-1\r\n"...)
		}
		dst = strconv.AppendInt(dst, int64(len(m.Elems)), 10)
		dst = append(dst, kind.EOL...)
		for i := range m.Elems {
			dst = AppendMessage(dst, m.Elems[i])
		}
		return dst
	case kind.Map:
		dst = strconv.AppendInt(dst, int64(len(m.Pairs)), 10)
		dst = append(dst, kind.EOL...)
		for i := range m.Pairs {
			dst = AppendMessage(dst, m.Pairs[i].Key)
			dst = AppendMessage(dst, m.Pairs[i].Value)
		}
		return dst
	default:
		panic("protocol: cannot encode unknown kind " + strconv.Quote(string(m.Kind)))
	}

	return append(dst, kind.EOL...)
}

// encodedSizeHint is a cheap lower bound used to size the first allocation.
func encodedSizeHint(m Message) int {
	switch m.Kind {
	case kind.BulkString:
		return len(m.Bulk) + 16
	case kind.Array, kind.Set, kind.Push:
		return 16 * (len(m.Elems) + 1)
	case kind.Map:
		return 32 * (len(m.Pairs) + 1)
	default:
		return len(m.Str) + 24
	}
}

// Writer encodes messages onto an io.Writer, reusing one scratch buffer.
type Writer struct {
	w   io.Writer
	buf []byte
}

// NewWriter returns a *Writer that uses the given io.Writer for writes.
func NewWriter(w io.Writer) *Writer {
	var rw Writer
	rw.Reset(w)
	return &rw
}

// Reset sets the underlying io.Writer to w and resets all internal state.
func (rw *Writer) Reset(w io.Writer) {
	rw.buf = rw.buf[:0]
	rw.w = w
}

// WriteMessage writes the wire form of m. The only errors are those of the
// underlying io.Writer.
func (rw *Writer) WriteMessage(m Message) (int, error) {
	rw.buf = AppendMessage(rw.buf[:0], m)
	return rw.w.Write(rw.buf)
}

// Write allows writing raw, already encoded data to the underlying io.Writer.
func (rw *Writer) Write(p []byte) (int, error) {
	return rw.w.Write(p)
}
