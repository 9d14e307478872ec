// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package protocol:
package protocol

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/awinterman/anarchoresp/protocol/kind"
	"github.com/awinterman/anarchoresp/protocol/message"
)

const (
	// DefaultMaxBulkLen matches redis' proto-max-bulk-len.
	DefaultMaxBulkLen = 512 * 1000000
	// DefaultMaxAggregateLen caps the declared element count of one aggregate.
	DefaultMaxAggregateLen = 1 << 20
	// DefaultMaxDepth caps aggregate nesting.
	DefaultMaxDepth = 512
	// DefaultMaxLineLen caps simple string, error and big number payloads at
	// the bulk limit, so every valid message under it round-trips.
	DefaultMaxLineLen = DefaultMaxBulkLen

	// a length header is at most "-9223372036854775808", one sign and 19 digits.
	maxHeaderLen = 20
)

var eol = []byte(kind.EOL)

// Decoder parses one top-level RESP production at a time out of a caller owned
// buffer. It keeps no state between calls: on ErrIncomplete the caller appends
// more bytes and calls Decode again with the whole buffer, and parsing restarts
// from its first byte.
//
// The zero value uses the Default limits.
type Decoder struct {
	MaxBulkLen      int64
	MaxAggregateLen int64
	MaxDepth        int
	MaxLineLen      int
}

var defaultDecoder Decoder

// Decode decodes buf with the default limits.
func Decode(buf []byte) (Message, int, error) {
	return defaultDecoder.Decode(buf)
}

// Decode parses the production at the start of buf. It returns the message and
// the number of bytes it occupied, ErrIncomplete when buf ends before the
// production does, or a *DecodeError. Bytes after the first production are
// never examined.
func (d *Decoder) Decode(buf []byte) (Message, int, error) {
	p := parser{
		buf:          buf,
		maxBulk:      limit(d.MaxBulkLen, DefaultMaxBulkLen),
		maxAggregate: limit(d.MaxAggregateLen, DefaultMaxAggregateLen),
		maxDepth:     int(limit(int64(d.MaxDepth), DefaultMaxDepth)),
		maxLine:      int(limit(int64(d.MaxLineLen), DefaultMaxLineLen)),
	}
	m, end, err := p.parse(0, 0)
	if err != nil {
		return Message{}, 0, err
	}
	return m, end, nil
}

func limit(v, def int64) int64 {
	if v <= 0 {
		return def
	}
	return v
}

type parser struct {
	buf          []byte
	maxBulk      int64
	maxAggregate int64
	maxDepth     int
	maxLine      int
}

func (p *parser) fail(code Code, off int, format string, args ...any) error {
	return &DecodeError{
		Code:   code,
		Kind:   p.buf[off],
		Offset: off,
		Detail: fmt.Sprintf(format, args...),
	}
}

// parse decodes the production starting at off and returns the offset just
// past it.
func (p *parser) parse(off, depth int) (Message, int, error) {
	if off >= len(p.buf) {
		return Message{}, 0, ErrIncomplete
	}

	k := kind.Kind(p.buf[off])
	switch k.Category() {
	case kind.CategoryLine:
		return p.simple(k, off)
	case kind.CategoryBlob:
		return p.blob(k, off)
	case kind.CategoryAggregate:
		return p.aggregate(k, off, depth)
	default:
		return Message{}, 0, p.fail(UnknownType, off, "unknown type byte %q", p.buf[off])
	}
}

// line returns the bytes between start and the next EOL, and the offset after
// that EOL.
func (p *parser) line(off, start, maxLen int) ([]byte, int, error) {
	i := bytes.Index(p.buf[start:], eol)
	if i < 0 {
		// a trailing CR may still be completed by the next read.
		if len(p.buf)-start > maxLen+1 {
			return nil, 0, p.fail(LimitExceeded, off, "line exceeds %d bytes", maxLen)
		}
		return nil, 0, ErrIncomplete
	}
	if i > maxLen {
		return nil, 0, p.fail(LimitExceeded, off, "line exceeds %d bytes", maxLen)
	}
	return p.buf[start : start+i], start + i + len(eol), nil
}

func (p *parser) simple(k kind.Kind, off int) (Message, int, error) {
	payload, next, err := p.line(off, off+1, p.maxLine)
	if err != nil {
		return Message{}, 0, err
	}

	switch k {
	case kind.SimpleString:
		return message.SimpleString(string(payload)), next, nil
	case kind.Error:
		return message.Error(string(payload)), next, nil
	case kind.Int:
		i, err := strconv.ParseInt(string(payload), 10, 64)
		if err != nil {
			return Message{}, 0, p.fail(MalformedPayload, off, "invalid integer %q", payload)
		}
		return message.Int(i), next, nil
	case kind.Bool:
		switch string(payload) {
		case "t":
			return message.Bool(true), next, nil
		case "f":
			return message.Bool(false), next, nil
		}
		return Message{}, 0, p.fail(MalformedPayload, off, "invalid boolean %q", payload)
	case kind.BigNumber:
		if !message.IsDecimal(string(payload)) {
			return Message{}, 0, p.fail(MalformedPayload, off, "invalid big number %q", payload)
		}
		return message.BigNumber(string(payload)), next, nil
	case kind.Null:
		if len(payload) != 0 {
			return Message{}, 0, p.fail(MalformedPayload, off, "null with payload %q", payload)
		}
		return message.Null(), next, nil
	default:
		panic("unreachable: " + k.String())
	}
}

// header parses the decimal length or count following the tag at off. It
// returns -1 only when nullable is set and the header is the null sentinel.
func (p *parser) header(k kind.Kind, off int) (int64, int, error) {
	raw, next, err := p.line(off, off+1, maxHeaderLen)
	if err != nil {
		if IsIncomplete(err) {
			return 0, 0, err
		}
		return 0, 0, p.fail(MalformedLength, off, "%s length is not terminated", k)
	}

	if k.Nullable() && string(raw) == "-1" {
		return -1, next, nil
	}

	n, ok := parseLength(raw)
	if !ok {
		return 0, 0, p.fail(MalformedLength, off, "invalid %s length %q", k, raw)
	}
	return n, next, nil
}

// parseLength accepts a non-empty run of ASCII digits that fits an int64.
func parseLength(b []byte) (int64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		d := int64(c - '0')
		if n > (math.MaxInt64-d)/10 {
			return 0, false
		}
		n = n*10 + d
	}
	return n, true
}

func (p *parser) blob(k kind.Kind, off int) (Message, int, error) {
	n, start, err := p.header(k, off)
	if err != nil {
		return Message{}, 0, err
	}
	if n == -1 {
		return message.NullBulkString(), start, nil
	}
	if n > p.maxBulk || n > math.MaxInt-int64(len(eol)) {
		return Message{}, 0, p.fail(LimitExceeded, off, "%s length %d exceeds %d", k, n, p.maxBulk)
	}

	end := start + int(n)
	// the terminator is checked as soon as its bytes arrive, so a short
	// declared length fails without waiting for the rest of the payload.
	for i := 0; i < len(eol) && end+i < len(p.buf); i++ {
		if p.buf[end+i] != eol[i] {
			return Message{}, 0, p.fail(LengthMismatch, off, "%s payload is not %d bytes followed by CRLF", k, n)
		}
	}
	if len(p.buf) < end+len(eol) {
		return Message{}, 0, ErrIncomplete
	}

	payload := p.buf[start:end]
	next := end + len(eol)

	if k == kind.BulkString {
		return message.BulkBytes(payload), next, nil
	}

	// =<len>\r\n<fmt>:<text>\r\n
	if len(payload) < 4 || payload[3] != ':' {
		return Message{}, 0, p.fail(MalformedPayload, off, "verbatim string without a 3 byte format prefix")
	}
	m := message.Message{Kind: kind.VerbatimString, Str: string(payload[4:])}
	copy(m.Format[:], payload[:3])
	return m, next, nil
}

func (p *parser) aggregate(k kind.Kind, off, depth int) (Message, int, error) {
	n, next, err := p.header(k, off)
	if err != nil {
		return Message{}, 0, err
	}
	if n == -1 {
		return message.NullArray(), next, nil
	}
	if n > p.maxAggregate {
		return Message{}, 0, p.fail(LimitExceeded, off, "%s count %d exceeds %d", k, n, p.maxAggregate)
	}
	if depth+1 > p.maxDepth {
		return Message{}, 0, p.fail(LimitExceeded, off, "nesting exceeds depth %d", p.maxDepth)
	}

	// the declared count is untrusted until the children arrive.
	hint := int(min(n, 64))

	if k == kind.Map {
		pairs := make([]message.Pair, 0, hint)
		for i := int64(0); i < n; i++ {
			var pair message.Pair
			if pair.Key, next, err = p.parse(next, depth+1); err != nil {
				return Message{}, 0, err
			}
			if pair.Value, next, err = p.parse(next, depth+1); err != nil {
				return Message{}, 0, err
			}
			pairs = append(pairs, pair)
		}
		return message.Message{Kind: kind.Map, Pairs: pairs}, next, nil
	}

	elems := make([]message.Message, 0, hint)
	for i := int64(0); i < n; i++ {
		var child message.Message
		if child, next, err = p.parse(next, depth+1); err != nil {
			return Message{}, 0, err
		}
		elems = append(elems, child)
	}
	return message.Message{Kind: k, Elems: elems}, next, nil
}
