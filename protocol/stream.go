// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package protocol:
package protocol

import (
	"errors"
	"io"
	"iter"
)

// discardWrites adapts a plain reader to the io.ReadWriter a Conn wraps.
type discardWrites struct {
	io.Reader
	io.Writer
}

// NewReader frames r as a Conn that can only be read. Writes are discarded.
func NewReader(r io.Reader, opts ConnOptions) *Conn {
	return NewConnectionWithOptions(discardWrites{Reader: r, Writer: io.Discard}, opts)
}

// Messages iterates the frames of r with the default decoder limits. It stops
// quietly at a clean io.EOF; any other error is yielded once as the last pair.
func Messages(r io.Reader) iter.Seq2[Message, error] {
	return DecodeStream(Decoder{}, r)
}

// DecodeStream is Messages with explicit decoder limits.
func DecodeStream(d Decoder, r io.Reader) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		conn := NewReader(r, ConnOptions{Decoder: d})
		for {
			msg, err := conn.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(msg, err) || err != nil {
				return
			}
		}
	}
}

// RawFrames is Messages that also yields each frame's exact bytes.
func RawFrames(r io.Reader) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		conn := NewReader(r, ConnOptions{})
		for {
			_, raw, err := conn.ReadRaw()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(raw, err) || err != nil {
				return
			}
		}
	}
}
