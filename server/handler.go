// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package server:
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/awinterman/anarchoresp/capture"
	"github.com/awinterman/anarchoresp/metrics"
	"github.com/awinterman/anarchoresp/protocol"
	"github.com/awinterman/anarchoresp/protocol/kind"
	"github.com/awinterman/anarchoresp/protocol/message"
)

// Version is reported by HELLO.
var Version = "0.1.0"

const tracerName = "github.com/awinterman/anarchoresp/server"

// Handler serves RESP clients. It answers PING, ECHO, HELLO, RESET, COMMAND
// and QUIT itself, or forwards every frame but QUIT to Upstream when one is
// set.
type Handler struct {
	Decoder     protocol.Decoder
	IdleTimeout time.Duration

	// Upstream, Capture, Metrics and Tracer are optional.
	Upstream *Proxy
	Capture  capture.Sink
	Metrics  *metrics.Collector
	Tracer   trace.Tracer

	Log *slog.Logger

	nextID atomic.Int64
}

// session is the per connection state.
type session struct {
	id    int64
	proto int
	name  string
	rec   *capture.Recorder

	upstream *Session
}

func (h *Handler) logger() *slog.Logger {
	if h.Log == nil {
		return slog.With("comp", "handler")
	}
	return h.Log
}

func (h *Handler) tracer() trace.Tracer {
	if h.Tracer == nil {
		return otel.Tracer(tracerName)
	}
	return h.Tracer
}

// ServeConn is a ConnFunc. Client misbehaviour and transport errors end the
// connection but are never returned.
func (h *Handler) ServeConn(ctx context.Context, nc net.Conn) error {
	stop := context.AfterFunc(ctx, func() {
		_ = nc.Close()
	})
	defer stop()
	defer nc.Close()

	opts := protocol.ConnOptions{Decoder: h.Decoder, Logger: h.logger().With("remote", nc.RemoteAddr().String())}
	if h.Metrics != nil {
		opts.Observer = h.Metrics
		h.Metrics.ConnOpened()
		defer h.Metrics.ConnClosed()
	}
	conn := protocol.NewConnectionWithOptions(nc, opts)
	log := opts.Logger

	s := &session{id: h.nextID.Add(1), proto: 2}
	if h.Capture != nil {
		s.rec = capture.NewRecorder(h.Capture, fmt.Sprintf("%s#%d", nc.RemoteAddr(), s.id))
	}
	if h.Upstream != nil {
		s.upstream = h.Upstream.Session()
		defer s.upstream.Close()
	}

	for {
		if h.IdleTimeout > 0 {
			_ = nc.SetReadDeadline(time.Now().Add(h.IdleTimeout))
		}

		msg, raw, err := conn.ReadRaw()
		if err != nil {
			var decodeErr *protocol.DecodeError
			switch {
			case errors.As(err, &decodeErr):
				log.Info("closing on protocol error", "error", err)
				reply := protocol.NewError(fmt.Errorf("ERR Protocol error: %s", decodeErr.Detail))
				if _, werr := conn.Write(*reply); werr == nil {
					_ = conn.Flush()
				}
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				log.Debug("client closed")
			case errors.Is(err, os.ErrDeadlineExceeded):
				log.Debug("client idle", "timeout", h.IdleTimeout)
			default:
				log.Warn("read failed", "error", err)
			}
			return nil
		}

		if s.rec != nil {
			if err := s.rec.Record(ctx, raw); err != nil {
				log.Warn("capture failed", "error", err)
			}
		}

		reply, quit := h.dispatch(ctx, s, msg, raw)
		if _, err := conn.Write(reply); err != nil {
			log.Error("invalid reply", "reply", reply, "error", err)
			return nil
		}
		if err := conn.Flush(); err != nil {
			log.Debug("write failed", "error", err)
			return nil
		}
		if quit {
			return nil
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, s *session, msg protocol.Message, raw []byte) (protocol.Message, bool) {
	cmd, err := protocol.Cmd(msg)
	if err != nil {
		return message.Error("ERR Protocol error: expected an array of bulk strings"), false
	}

	_, span := h.tracer().Start(ctx, cmd.FullName(),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", cmd.Name),
			attribute.Int64("resp.session", s.id),
			attribute.Int("resp.args", len(cmd.Args)),
		))
	defer span.End()

	reply, quit := h.reply(ctx, s, cmd, raw)
	if reply.Kind == kind.Error {
		span.SetStatus(codes.Error, reply.Str)
	}
	return reply, quit
}

func (h *Handler) reply(ctx context.Context, s *session, cmd *protocol.Command, raw []byte) (protocol.Message, bool) {
	if cmd.Name == "QUIT" {
		return message.SimpleString("OK"), true
	}

	if s.upstream != nil {
		resp, err := s.upstream.Forward(ctx, cmd, raw)
		if err != nil {
			h.logger().Warn("upstream failed", "cmd", cmd.FullName(), "error", err)
			return *protocol.NewError(fmt.Errorf("ERR upstream: %w", err)), false
		}
		return resp, false
	}

	switch cmd.Name {
	case "PING":
		switch len(cmd.Args) {
		case 0:
			return message.SimpleString("PONG"), false
		case 1:
			return message.BulkBytes(cmd.Args[0]), false
		}
	case "ECHO":
		if len(cmd.Args) == 1 {
			return message.BulkBytes(cmd.Args[0]), false
		}
	case "HELLO":
		return h.hello(s, cmd), false
	case "RESET":
		if len(cmd.Args) == 0 {
			s.proto, s.name = 2, ""
			return message.SimpleString("RESET"), false
		}
	case "COMMAND":
		if cmd.Sub == "COUNT" {
			return message.Int(int64(len(builtins))), false
		}
		return message.Array(), false
	default:
		return *protocol.NewError(fmt.Errorf("ERR unknown command '%s'", cmd.Name)), false
	}

	return *protocol.NewError(fmt.Errorf("ERR wrong number of arguments for '%s' command", strings.ToLower(cmd.Name))), false
}

var builtins = []string{"PING", "ECHO", "HELLO", "RESET", "COMMAND", "QUIT"}

// hello negotiates the protocol version: HELLO [protover [SETNAME name]].
func (h *Handler) hello(s *session, cmd *protocol.Command) protocol.Message {
	args := cmd.Args
	proto := s.proto
	if len(args) > 0 {
		v, err := strconv.Atoi(string(args[0]))
		if err != nil {
			return message.Error("ERR Protocol version is not an integer or out of range")
		}
		if v != 2 && v != 3 {
			return message.Error("NOPROTO unsupported protocol version")
		}
		proto = v
		args = args[1:]
	}

	name := s.name
	for len(args) > 0 {
		if !strings.EqualFold(string(args[0]), "SETNAME") || len(args) < 2 {
			return *protocol.NewError(fmt.Errorf("ERR syntax error in HELLO option '%s'", args[0]))
		}
		name = string(args[1])
		args = args[2:]
	}
	s.proto, s.name = proto, name

	mode := "standalone"
	if h.Upstream != nil {
		mode = "proxy"
	}

	info := message.Map(
		message.BulkString("server"), message.BulkString("anarchoresp"),
		message.BulkString("version"), message.BulkString(Version),
		message.BulkString("proto"), message.Int(int64(s.proto)),
		message.BulkString("id"), message.Int(s.id),
		message.BulkString("mode"), message.BulkString(mode),
		message.BulkString("role"), message.BulkString("master"),
		message.BulkString("modules"), message.Array(),
	)
	if s.proto == 2 {
		return flatten(info)
	}
	return info
}

// flatten turns a Map into the alternating key/value Array RESP2 clients
// expect.
func flatten(m protocol.Message) protocol.Message {
	elems := make([]protocol.Message, 0, 2*len(m.Pairs))
	for _, pair := range m.Pairs {
		elems = append(elems, pair.Key, pair.Value)
	}
	return message.Array(elems...)
}
