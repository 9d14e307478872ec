// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package kind enumerates the RESP type tags.
package kind

// Kind is the leading tag byte of a RESP production.
type Kind byte

// Category groups kinds by how their payload is framed on the wire.
type Category int

const (
	EOL = "\r\n"

	SimpleString   Kind = '+'
	Error          Kind = '-'
	Int            Kind = ':'
	BulkString     Kind = '$'
	Array          Kind = '*'
	Null           Kind = '_'
	Bool           Kind = '#'
	BigNumber      Kind = '('
	VerbatimString Kind = '='
	Map            Kind = '%'
	Set            Kind = '~'
	Push           Kind = '>'
)

const (
	CategoryInvalid Category = iota
	// CategoryLine payloads run from the tag to the first EOL.
	CategoryLine
	// CategoryBlob payloads are prefixed by a decimal byte length.
	CategoryBlob
	// CategoryAggregate payloads are prefixed by a decimal element count.
	CategoryAggregate
)

var kinds = [...]Kind{
	SimpleString, Error, Int, BulkString, Array, Null,
	Bool, BigNumber, VerbatimString, Map, Set, Push,
}

// Kinds returns every kind the codec understands.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds[:])
	return out
}

// Valid reports whether b is a known tag byte.
func Valid(b byte) bool {
	return Kind(b).Category() != CategoryInvalid
}

func (i Kind) Category() Category {
	switch i {
	case SimpleString, Error, Int, Null, Bool, BigNumber:
		return CategoryLine
	case BulkString, VerbatimString:
		return CategoryBlob
	case Array, Set, Push, Map:
		return CategoryAggregate
	default:
		return CategoryInvalid
	}
}

// Nullable reports whether the kind has a distinct null form ($-1 / *-1).
func (i Kind) Nullable() bool {
	return i == BulkString || i == Array
}

func (i Kind) String() string {
	return Humanize(byte(i))
}

// Humanize returns a human-readable string for the indicator
func Humanize(indicator byte) string {
	switch Kind(indicator) {
	case SimpleString:
		return "SimpleString"
	case Error:
		return "SimpleError"
	case Int:
		return "Integer"
	case BulkString:
		return "BulkString"
	case Array:
		return "Array"
	case Null:
		return "Null"
	case Bool:
		return "Boolean"
	case BigNumber:
		return "BigNumber"
	case VerbatimString:
		return "VerbatimString"
	case Map:
		return "Map"
	case Set:
		return "Set"
	case Push:
		return "Push"
	default:
		return "Unknown"
	}
}
