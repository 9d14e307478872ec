// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package capture records the raw RESP frames a server receives so they can be
// replayed or inspected later.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync/atomic"

	"github.com/awinterman/anarchoresp/protocol"
)

// Frame is one top level RESP frame exactly as it was read off a stream.
type Frame struct {
	// Stream names the connection the frame came from.
	Stream string
	// Seq numbers the frames of a stream from 1.
	Seq  uint64
	Data []byte
}

type Sink interface {
	Capture(ctx context.Context, f Frame) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, f Frame) error

func (fn SinkFunc) Capture(ctx context.Context, f Frame) error {
	return fn(ctx, f)
}

// Tee captures every frame into all sinks, in order, and joins their errors.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, f Frame) error {
		var err error
		for _, s := range sinks {
			err = errors.Join(err, s.Capture(ctx, f))
		}
		return err
	})
}

// Recorder numbers the frames of one stream before handing them to a Sink.
type Recorder struct {
	sink   Sink
	stream string
	seq    atomic.Uint64
}

func NewRecorder(sink Sink, stream string) *Recorder {
	return &Recorder{sink: sink, stream: stream}
}

// Record captures data as the next frame of the stream. data is not retained
// after Record returns unless the sink keeps it.
func (r *Recorder) Record(ctx context.Context, data []byte) error {
	return r.sink.Capture(ctx, Frame{
		Stream: r.stream,
		Seq:    r.seq.Add(1),
		Data:   data,
	})
}

// Replay writes the exact bytes of each frame to w in order. It stops at the
// first error from frames, and before writing any frame that is not exactly one
// complete message under d's limits.
func Replay(d protocol.Decoder, frames iter.Seq2[Frame, error], w io.Writer) error {
	for f, err := range frames {
		if err != nil {
			return err
		}
		if err := checkFrame(d, f); err != nil {
			return fmt.Errorf("stream %s seq %d: %w", f.Stream, f.Seq, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return err
		}
	}
	return nil
}

// checkFrame rejects data that is not exactly one complete frame.
func checkFrame(d protocol.Decoder, f Frame) error {
	_, n, err := d.Decode(f.Data)
	if err != nil {
		return err
	}
	if n != len(f.Data) {
		return &protocol.DecodeError{
			Code:   protocol.LengthMismatch,
			Kind:   f.Data[n],
			Offset: n,
			Detail: "trailing bytes after frame",
		}
	}
	return nil
}
