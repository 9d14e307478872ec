// Copyright 2024 Outreach Corporation. All Rights Reserved.

// Description:

// Package protocol:
package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/awinterman/anarchoresp/protocol/message"
)

// Code classifies a decode failure.
type Code int

const (
	// UnknownType: the tag byte is not a RESP type.
	UnknownType Code = iota + 1
	// MalformedLength: a length or count is not a non-negative decimal and not the null sentinel.
	MalformedLength
	// LengthMismatch: a payload disagrees with its declared length.
	LengthMismatch
	// UnterminatedLine: the buffer ended mid-production. Only ever surfaced as ErrIncomplete.
	UnterminatedLine
	// MalformedPayload: a simple payload does not have its expected lexical form.
	MalformedPayload
	// LimitExceeded: a declared size or the nesting depth is above the decoder's limits.
	LimitExceeded
)

func (c Code) String() string {
	switch c {
	case UnknownType:
		return "UnknownType"
	case MalformedLength:
		return "MalformedLength"
	case LengthMismatch:
		return "LengthMismatch"
	case UnterminatedLine:
		return "UnterminatedLine"
	case MalformedPayload:
		return "MalformedPayload"
	case LimitExceeded:
		return "LimitExceeded"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Error implements error so a Code can be matched with errors.Is.
func (c Code) Error() string {
	return "protocol: " + strings.ToLower(c.String())
}

var (
	ErrUnknownType      error = UnknownType
	ErrMalformedLength  error = MalformedLength
	ErrLengthMismatch   error = LengthMismatch
	ErrUnterminatedLine error = UnterminatedLine
	ErrMalformedPayload error = MalformedPayload
	ErrLimitExceeded    error = LimitExceeded

	// ErrIncomplete is returned by Decode when the buffer holds a valid prefix
	// of a production. Retry with more bytes.
	ErrIncomplete = fmt.Errorf("incomplete message: %w", ErrUnterminatedLine)
)

// DecodeError is a terminal decode failure. The stream it came from cannot be
// resynchronised and must be dropped.
type DecodeError struct {
	Code Code
	// Kind is the tag byte of the production that failed.
	Kind byte
	// Offset is where that production starts in the decoded buffer.
	Offset int
	Detail string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: %s at offset %d: %s", e.Code.String(), e.Offset, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Code
}

// IsIncomplete reports whether err means more bytes are needed.
func IsIncomplete(err error) bool {
	return errors.Is(err, ErrIncomplete)
}

// NewError renders err as a SimpleError message, replacing line terminators so
// the result always encodes.
func NewError(err error) *Message {
	s := strings.NewReplacer("\r", " ", "\n", " ").Replace(err.Error())
	m := message.Error(s)
	return &m
}
