// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package protocol:
package protocol

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/awinterman/anarchoresp/protocol/kind"
)

// TraceLevel is below slog.LevelDebug; frames are logged at this level.
const TraceLevel = slog.Level(-8)

// DefaultReadChunkSize is how many bytes Conn asks the transport for per read.
const DefaultReadChunkSize = 4096

// Observer is told about every frame a Conn moves. DecodeFailed is called at
// most once per Conn, for the framing error or transport failure that ends
// reading. A clean io.EOF between frames is not a failure.
type Observer interface {
	Decoded(k kind.Kind, size int)
	Encoded(k kind.Kind, size int)
	DecodeFailed(err error)
}

type ConnOptions struct {
	Decoder       Decoder
	ReadChunkSize int
	Logger        *slog.Logger
	Observer      Observer
}

func NewConnection(conn io.ReadWriter) *Conn {
	return NewConnectionWithOptions(conn, ConnOptions{})
}

func NewConnectionWithOptions(conn io.ReadWriter, opts ConnOptions) *Conn {
	if opts.ReadChunkSize <= 0 {
		opts.ReadChunkSize = DefaultReadChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.With("comp", "conn")
	}
	bw := bufio.NewWriter(conn)
	return &Conn{
		rw:       conn,
		bw:       bw,
		w:        NewWriter(bw),
		decoder:  opts.Decoder,
		chunk:    opts.ReadChunkSize,
		Logger:   opts.Logger,
		observer: opts.Observer,
	}
}

// Conn frames a byte stream into Messages. It owns the stream's read buffer:
// bytes that arrive after a complete frame stay buffered for the next Read, so
// pipelined frames are drained without further reads.
//
// One goroutine may Read while another Writes.
type Conn struct {
	rmu     sync.Mutex
	rw      io.ReadWriter
	buf     []byte
	readErr error
	failed  bool
	decoder Decoder
	chunk   int

	wmu sync.Mutex
	bw  *bufio.Writer
	w   *Writer

	Logger   *slog.Logger
	observer Observer
}

// Read returns the next complete message. It returns io.EOF if the stream ends
// cleanly between frames and io.ErrUnexpectedEOF if it ends inside one. A
// *DecodeError is terminal: every later Read returns it again.
func (conn *Conn) Read() (Message, error) {
	conn.rmu.Lock()
	defer conn.rmu.Unlock()

	m, n, err := conn.next()
	if err != nil {
		return Message{}, err
	}
	conn.consume(n)
	return m, nil
}

// ReadRaw is Read that also returns a copy of the frame's exact bytes.
func (conn *Conn) ReadRaw() (Message, []byte, error) {
	conn.rmu.Lock()
	defer conn.rmu.Unlock()

	m, n, err := conn.next()
	if err != nil {
		return Message{}, nil, err
	}
	raw := bytes.Clone(conn.buf[:n])
	conn.consume(n)
	return m, raw, nil
}

// Buffered returns the number of received bytes not yet returned as a frame.
func (conn *Conn) Buffered() int {
	conn.rmu.Lock()
	defer conn.rmu.Unlock()
	return len(conn.buf)
}

func (conn *Conn) next() (Message, int, error) {
	for {
		if len(conn.buf) > 0 {
			m, n, err := conn.decoder.Decode(conn.buf)
			if err == nil {
				conn.Logger.Log(context.Background(), TraceLevel, "read", "msg", m, "bytes", n)
				if conn.observer != nil {
					conn.observer.Decoded(m.Kind, n)
				}
				return m, n, nil
			}
			if !IsIncomplete(err) {
				conn.Logger.Debug("framing error", "error", err)
				conn.fail(err)
				conn.readErr = err
				conn.buf = nil
				return Message{}, 0, err
			}
		}

		if conn.readErr != nil {
			err := conn.readErr
			if errors.Is(err, io.EOF) && len(conn.buf) > 0 {
				err = io.ErrUnexpectedEOF
			}
			if !errors.Is(err, io.EOF) {
				conn.fail(err)
			}
			return Message{}, 0, err
		}

		conn.fill()
	}
}

func (conn *Conn) fail(err error) {
	if conn.failed {
		return
	}
	conn.failed = true
	if conn.observer != nil {
		conn.observer.DecodeFailed(err)
	}
}

// fill reads one chunk from the transport onto the end of buf.
func (conn *Conn) fill() {
	if cap(conn.buf)-len(conn.buf) < conn.chunk {
		grown := make([]byte, len(conn.buf), 2*cap(conn.buf)+conn.chunk)
		copy(grown, conn.buf)
		conn.buf = grown
	}

	n, err := conn.rw.Read(conn.buf[len(conn.buf):cap(conn.buf)])
	conn.buf = conn.buf[:len(conn.buf)+n]
	conn.Logger.Log(context.Background(), TraceLevel, "read chunk", "bytes", n, "buffered", len(conn.buf), "error", err)
	if err != nil {
		conn.readErr = err
	}
}

// consume drops the first n buffered bytes.
func (conn *Conn) consume(n int) {
	rest := copy(conn.buf, conn.buf[n:])
	conn.buf = conn.buf[:rest]
	if rest == 0 && cap(conn.buf) > 1<<20 {
		conn.buf = nil
	}
}

// Write validates m and encodes it into the connection's write buffer. Call
// Flush to send it.
func (conn *Conn) Write(m Message) (int, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}

	conn.wmu.Lock()
	defer conn.wmu.Unlock()
	n, err := conn.w.WriteMessage(m)
	if err == nil {
		conn.Logger.Log(context.Background(), TraceLevel, "write", "msg", m, "bytes", n)
		if conn.observer != nil {
			conn.observer.Encoded(m.Kind, n)
		}
	}
	return n, err
}

// WriteRaw buffers already encoded bytes.
func (conn *Conn) WriteRaw(data []byte) (int, error) {
	conn.wmu.Lock()
	defer conn.wmu.Unlock()
	return conn.w.Write(data)
}

// Flush writes any buffered data to the underlying writer.
func (conn *Conn) Flush() error {
	conn.wmu.Lock()
	defer conn.wmu.Unlock()
	return conn.bw.Flush()
}

// RawRoundtrip sends raw byte data through the connection, flushes it, and reads the response as a Message.
func (conn *Conn) RawRoundtrip(data []byte) (Message, error) {
	if _, err := conn.WriteRaw(data); err != nil {
		return Message{}, err
	}
	if err := conn.Flush(); err != nil {
		return Message{}, err
	}
	return conn.Read()
}

func (conn *Conn) RoundTrip(msg Message) (Message, error) {
	if _, err := conn.Write(msg); err != nil {
		return Message{}, err
	}
	if err := conn.Flush(); err != nil {
		return Message{}, err
	}
	resp, err := conn.Read()

	conn.Logger.Debug("command", "cmd", msg, "resp", resp, "err", err)
	return resp, err
}

// Close closes the underlying stream if it is an io.Closer.
func (conn *Conn) Close() error {
	if c, ok := conn.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
