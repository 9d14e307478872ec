// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package server:
package server

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/awinterman/anarchoresp/protocol"
)

// NewLogger builds the process logger. Level "trace" also logs every frame.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if strings.EqualFold(level, "trace") {
		lvl = protocol.TraceLevel
	} else if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log format %q: want text or json", format)
	}
}
