// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package server:
package server

import (
	"context"
	"log/slog"
	"net"

	"github.com/jackc/puddle/v2"

	"github.com/awinterman/anarchoresp/protocol"
	"github.com/awinterman/anarchoresp/protocol/kind"
)

// Proxy forwards raw frames to an upstream RESP server over a pool of
// connections. Each client gets its own Session, so connection state such as
// the HELLO protocol version, SELECT or MULTI never crosses clients. Each
// forwarded frame must produce exactly one reply, so subscriptions and MONITOR
// are not supported.
type Proxy struct {
	pool *puddle.Pool[*protocol.Conn]
	log  *slog.Logger
}

// NewProxy dials addr lazily; at most size connections are open at once, which
// also bounds how many clients are forwarded concurrently.
func NewProxy(addr string, size int32, opts protocol.ConnOptions) (*Proxy, error) {
	log := slog.With("comp", "proxy", "upstream", addr)
	if opts.Logger == nil {
		opts.Logger = log
	}

	pool, err := puddle.NewPool(&puddle.Config[*protocol.Conn]{
		Constructor: func(ctx context.Context) (*protocol.Conn, error) {
			var dialer net.Dialer
			nc, err := dialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				return nil, err
			}
			log.Debug("dialed upstream", "local", nc.LocalAddr().String())
			return protocol.NewConnectionWithOptions(nc, opts), nil
		},
		Destructor: func(conn *protocol.Conn) {
			_ = conn.Close()
		},
		MaxSize: size,
	})
	if err != nil {
		return nil, err
	}

	return &Proxy{pool: pool, log: log}, nil
}

// Session starts forwarding for one client connection. Close it when the
// client goes away.
func (p *Proxy) Session() *Session {
	return &Session{proxy: p}
}

func (p *Proxy) Close() {
	p.pool.Close()
}

// stateful commands change what later commands on the same upstream connection
// see.
var stateful = map[string]bool{
	"ASKING": true, "AUTH": true, "CLIENT": true, "HELLO": true, "MULTI": true,
	"READONLY": true, "READWRITE": true, "SELECT": true, "WATCH": true,
}

// Session pins one pooled upstream connection to one client. The connection is
// acquired on the first forwarded command and held until Close.
type Session struct {
	proxy *Proxy
	res   *puddle.Resource[*protocol.Conn]
	dirty bool
}

// Forward sends raw, the frame cmd was decoded from, and returns the upstream
// reply. A connection that fails mid exchange is destroyed; the next Forward
// starts over on a fresh one.
func (s *Session) Forward(ctx context.Context, cmd *protocol.Command, raw []byte) (protocol.Message, error) {
	if s.res == nil {
		res, err := s.proxy.pool.Acquire(ctx)
		if err != nil {
			return protocol.Message{}, err
		}
		s.res = res
	}
	if stateful[cmd.Name] {
		s.dirty = true
	}

	resp, err := s.res.Value().RawRoundtrip(raw)
	if err != nil {
		s.res.Destroy()
		s.res, s.dirty = nil, false
		return protocol.Message{}, err
	}
	return resp, nil
}

// Close hands the connection back to the pool. A connection whose state was
// changed is sent RESET first, and destroyed if that does not succeed.
func (s *Session) Close() {
	res := s.res
	if res == nil {
		return
	}
	s.res = nil

	if s.dirty {
		s.dirty = false
		resp, err := res.Value().RoundTrip(protocol.NewCommand("RESET"))
		if err != nil || resp.Kind != kind.SimpleString || resp.Str != "RESET" {
			s.proxy.log.Debug("dropping upstream connection", "reset", resp, "error", err)
			res.Destroy()
			return
		}
	}
	res.Release()
}
