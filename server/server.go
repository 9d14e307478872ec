// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package server serves RESP clients, answering a few commands itself or
// proxying every frame to an upstream server.
package server

import (
	"context"
	"log/slog"
	"net"

	"github.com/sourcegraph/conc/pool"
)

// ConnFunc serves one client connection. A non-nil error is fatal to the
// whole server.
type ConnFunc func(context.Context, net.Conn) error

// Server accepts connections and runs a ConnFunc for each one.
type Server struct {
	config *Config

	l net.Listener

	connFunc ConnFunc

	log *slog.Logger
}

// New creates a new server listening on config.Address
func New(ctx context.Context, config *Config, f ConnFunc) (*Server, error) {
	var lc = net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", config.Address)
	if err != nil {
		return nil, err
	}

	return &Server{config, listener, f, slog.With("comp", "server")}, nil
}

func (r *Server) Addr() net.Addr {
	return r.l.Addr()
}

// Serve accepts until ctx is done or a ConnFunc fails, then waits for the
// remaining connections to finish. It returns the cause of the shutdown.
func (r *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	r.log.Info("listening", "addr", r.l.Addr().String(), "network", r.l.Addr().Network())
	stop := context.AfterFunc(ctx, func() {
		_ = r.l.Close()
	})
	defer stop()

	conns := pool.New()
	defer conns.Wait()

	for ctx.Err() == nil {
		conn, err := r.l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			cancel(err)
			return err
		}
		r.log.Debug("got conn", "local", conn.LocalAddr().String(), "remote", conn.RemoteAddr().String(), "network", conn.RemoteAddr().Network())

		conns.Go(func() {
			if err := r.connFunc(ctx, conn); err != nil {
				r.log.Error("cancelling", "error", err)
				cancel(err)
			}
		})
	}
	r.log.Info("listen loop exited")

	return context.Cause(ctx)
}
