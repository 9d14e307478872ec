// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package message:
package message

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/awinterman/anarchoresp/protocol/kind"
)

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid message")

// Message is a composite type that represents a message in the protocol
// the Kind says which fields should be respected.
//
// A Message owns all of its data; aggregates own their children outright, so a
// Message is always a tree.
type Message struct {
	// Kind is what kind of message it is
	Kind kind.Kind

	// Str holds the text of SimpleString, Error, BigNumber and VerbatimString.
	Str  string
	Int  int64
	Bool bool

	// Bulk is the binary-safe payload of a BulkString.
	Bulk []byte

	// Format is the three byte format tag of a VerbatimString, e.g. "txt".
	Format [3]byte

	// IsNull marks the null BulkString ($-1) and the null Array (*-1).
	IsNull bool

	// Elems holds the children of Array, Set and Push.
	Elems []Message
	// Pairs holds the entries of a Map, in wire order.
	Pairs []Pair
}

// Pair is a single Map entry.
type Pair struct {
	Key   Message
	Value Message
}

func SimpleString(s string) Message {
	return Message{Kind: kind.SimpleString, Str: s}
}

func Error(s string) Message {
	return Message{Kind: kind.Error, Str: s}
}

func Null() Message {
	return Message{Kind: kind.Null}
}

func Int(i int64) Message {
	return Message{Kind: kind.Int, Int: i}
}

func Bool(b bool) Message {
	return Message{Kind: kind.Bool, Bool: b}
}

// BigNumber wraps decimal text. Use BigInt to build one from a *big.Int.
func BigNumber(decimal string) Message {
	return Message{Kind: kind.BigNumber, Str: decimal}
}

func BigInt(b *big.Int) Message {
	return BigNumber(b.String())
}

func BulkString(s string) Message {
	return Message{Kind: kind.BulkString, Bulk: []byte(s)}
}

// BulkBytes copies b into a new BulkString.
func BulkBytes(b []byte) Message {
	return Message{Kind: kind.BulkString, Bulk: bytes.Clone(nonNil(b))}
}

func NullBulkString() Message {
	return Message{Kind: kind.BulkString, IsNull: true}
}

// VerbatimString panics if format is not exactly three bytes long.
func VerbatimString(format, text string) Message {
	if len(format) != 3 {
		panic(fmt.Sprintf("verbatim format must be 3 bytes, got %q", format))
	}
	m := Message{Kind: kind.VerbatimString, Str: text}
	copy(m.Format[:], format)
	return m
}

func Array(elems ...Message) Message {
	return Message{Kind: kind.Array, Elems: nonNilElems(elems)}
}

func NullArray() Message {
	return Message{Kind: kind.Array, IsNull: true}
}

func Set(elems ...Message) Message {
	return Message{Kind: kind.Set, Elems: nonNilElems(elems)}
}

func Push(elems ...Message) Message {
	return Message{Kind: kind.Push, Elems: nonNilElems(elems)}
}

// Map builds a Map from alternating keys and values.
func Map(kvs ...Message) Message {
	if len(kvs)%2 != 0 {
		panic("must have even number of key/value pairs")
	}

	pairs := make([]Pair, 0, len(kvs)/2)
	for i := 0; i < len(kvs); i += 2 {
		pairs = append(pairs, Pair{Key: kvs[i], Value: kvs[i+1]})
	}
	return Message{Kind: kind.Map, Pairs: pairs}
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func nonNilElems(elems []Message) []Message {
	if elems == nil {
		return []Message{}
	}
	return elems
}

// Len returns the length the message declares on the wire: payload bytes for
// BulkString and VerbatimString, element (or pair) count for aggregates and -1
// for nulls. Line kinds report the payload length.
func (m Message) Len() int {
	if m.IsNull {
		return -1
	}
	switch m.Kind {
	case kind.BulkString:
		return len(m.Bulk)
	case kind.VerbatimString:
		return len(m.Format) + 1 + len(m.Str)
	case kind.Array, kind.Set, kind.Push:
		return len(m.Elems)
	case kind.Map:
		return len(m.Pairs)
	case kind.Null:
		return -1
	case kind.Int:
		return len(strconv.FormatInt(m.Int, 10))
	case kind.Bool:
		return 1
	default:
		return len(m.Str)
	}
}

// BigInt parses the decimal text of a BigNumber.
func (m Message) BigInt() (*big.Int, bool) {
	if m.Kind != kind.BigNumber {
		return nil, false
	}
	return new(big.Int).SetString(m.Str, 10)
}

// Text returns the textual payload of string-like kinds.
func (m Message) Text() (string, bool) {
	switch m.Kind {
	case kind.SimpleString, kind.Error, kind.VerbatimString:
		return m.Str, true
	case kind.BulkString:
		if m.IsNull {
			return "", false
		}
		return string(m.Bulk), true
	default:
		return "", false
	}
}

// Equal reports whether m and o are structurally identical. Null values are
// never equal to empty ones.
func (m Message) Equal(o Message) bool {
	if m.Kind != o.Kind || m.IsNull != o.IsNull {
		return false
	}
	switch m.Kind {
	case kind.SimpleString, kind.Error, kind.BigNumber:
		return m.Str == o.Str
	case kind.Int:
		return m.Int == o.Int
	case kind.Bool:
		return m.Bool == o.Bool
	case kind.BulkString:
		return bytes.Equal(m.Bulk, o.Bulk)
	case kind.VerbatimString:
		return m.Format == o.Format && m.Str == o.Str
	case kind.Null:
		return true
	case kind.Array, kind.Set, kind.Push:
		if len(m.Elems) != len(o.Elems) {
			return false
		}
		for i := range m.Elems {
			if !m.Elems[i].Equal(o.Elems[i]) {
				return false
			}
		}
		return true
	case kind.Map:
		if len(m.Pairs) != len(o.Pairs) {
			return false
		}
		for i := range m.Pairs {
			if !m.Pairs[i].Key.Equal(o.Pairs[i].Key) || !m.Pairs[i].Value.Equal(o.Pairs[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Validate checks the invariants the encoder relies on. A message built by the
// decoder always validates.
func (m Message) Validate() error {
	if m.IsNull && !m.Kind.Nullable() {
		return fmt.Errorf("%w: %s cannot be null", ErrInvalid, m.Kind)
	}

	switch m.Kind {
	case kind.SimpleString, kind.Error:
		if strings.ContainsAny(m.Str, "\r\n") {
			return fmt.Errorf("%w: %s contains a line terminator", ErrInvalid, m.Kind)
		}
	case kind.BigNumber:
		if !IsDecimal(m.Str) {
			return fmt.Errorf("%w: big number %q is not decimal", ErrInvalid, m.Str)
		}
	case kind.VerbatimString:
		if bytes.ContainsAny(m.Format[:], ":\r\n") {
			return fmt.Errorf("%w: verbatim format %q", ErrInvalid, m.Format[:])
		}
	case kind.BulkString:
		if m.IsNull && len(m.Bulk) > 0 {
			return fmt.Errorf("%w: null bulk string with payload", ErrInvalid)
		}
	case kind.Array, kind.Set, kind.Push:
		if m.IsNull && len(m.Elems) > 0 {
			return fmt.Errorf("%w: null array with elements", ErrInvalid)
		}
		if len(m.Pairs) > 0 {
			return fmt.Errorf("%w: %s with map pairs", ErrInvalid, m.Kind)
		}
		for i := range m.Elems {
			if err := m.Elems[i].Validate(); err != nil {
				return fmt.Errorf("%s[%d]: %w", m.Kind, i, err)
			}
		}
	case kind.Map:
		if len(m.Elems) > 0 {
			return fmt.Errorf("%w: map with sequence elements", ErrInvalid)
		}
		for i := range m.Pairs {
			if err := m.Pairs[i].Key.Validate(); err != nil {
				return fmt.Errorf("map key %d: %w", i, err)
			}
			if err := m.Pairs[i].Value.Validate(); err != nil {
				return fmt.Errorf("map value %d: %w", i, err)
			}
		}
	case kind.Int, kind.Bool, kind.Null:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalid, string(m.Kind))
	}
	return nil
}

// IsDecimal reports whether s is an optionally signed run of ASCII digits.
func IsDecimal(s string) bool {
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (m Message) String() string {
	return fmt.Sprintf("%s%s", string(m.Kind), m.string())
}

func (m Message) string() string {
	switch m.Kind {
	case kind.SimpleString, kind.Error, kind.BigNumber:
		return m.Str
	case kind.Int:
		return strconv.FormatInt(m.Int, 10)
	case kind.Bool:
		if m.Bool {
			return "t"
		}
		return "f"
	case kind.Null:
		return ""
	case kind.BulkString:
		if m.IsNull {
			return "nil"
		}
		return strconv.Quote(string(m.Bulk))
	case kind.VerbatimString:
		return string(m.Format[:]) + ":" + strconv.Quote(m.Str)
	case kind.Array, kind.Set, kind.Push:
		if m.IsNull {
			return "nil"
		}
		s := make([]string, 0, len(m.Elems))
		for _, msg := range m.Elems {
			s = append(s, msg.String())
		}
		return fmt.Sprintf("[%s]", strings.Join(s, " "))
	case kind.Map:
		s := make([]string, 0, len(m.Pairs))
		for _, pair := range m.Pairs {
			s = append(s, pair.Key.String()+": "+pair.Value.String())
		}
		return fmt.Sprintf("{%s}", strings.Join(s, " "))
	default:
		return fmt.Sprintf("Unknown %s", m.Kind)
	}
}
